// Package sync maintains live, locally materialized views of a chat's
// messages and of a user's chat list, driven by incremental change batches
// from the document store. Consumers receive the full re-sorted sequence on
// every batch; they never have to reason about arrival order.
package sync

import (
	"context"
	"sync"

	"stompingground/internal/domain/entity"
	"stompingground/internal/domain/store"
)

// Watch states. A watch moves Idle -> Subscribing -> Active -> Stopped and
// never backwards.
const (
	StateIdle int32 = iota
	StateSubscribing
	StateActive
	StateStopped
)

// Engine owns all active watches. At most one watch exists per
// (consumer, target); starting a second one for the same key stops and
// replaces the first, so a chat view never receives duplicate delivery.
type Engine struct {
	store store.DocumentStore

	mu      sync.Mutex
	watches map[string]interface{ Stop() }
}

func NewEngine(st store.DocumentStore) *Engine {
	return &Engine{
		store:   st,
		watches: make(map[string]interface{ Stop() }),
	}
}

// WatchMessages opens a live view of one chat's messages for a consumer,
// ordered by timestamp ascending.
func (e *Engine) WatchMessages(ctx context.Context, consumerID, chatID string) (*Watch[entity.ChatMessage], error) {
	return open(e, ctx,
		consumerID+"|messages|"+chatID,
		"chats/"+chatID+"/messages",
		store.Query{},
		func(a, b entity.ChatMessage) bool { return a.CreatedAt.Before(b.CreatedAt) },
	)
}

// WatchChatList opens a live view of a user's chat list, ordered by
// creation time descending.
func (e *Engine) WatchChatList(ctx context.Context, consumerID, userID string) (*Watch[entity.Chat], error) {
	return open(e, ctx,
		consumerID+"|chatlist|"+userID,
		"chats",
		store.Query{
			Filters: []store.Filter{{Field: "participants", Op: "array-contains", Value: userID}},
		},
		func(a, b entity.Chat) bool { return a.CreatedAt.After(b.CreatedAt) },
	)
}

// StopWatch tears down one consumer's message watch on a single chat, if
// one is open.
func (e *Engine) StopWatch(consumerID, chatID string) {
	key := consumerID + "|messages|" + chatID
	e.mu.Lock()
	w, ok := e.watches[key]
	if ok {
		delete(e.watches, key)
	}
	e.mu.Unlock()

	if ok {
		w.Stop()
	}
}

// StopAll tears down every watch a consumer still holds, for use when the
// consumer disconnects.
func (e *Engine) StopAll(consumerID string) {
	prefix := consumerID + "|"
	e.mu.Lock()
	var stale []interface{ Stop() }
	for key, w := range e.watches {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			stale = append(stale, w)
			delete(e.watches, key)
		}
	}
	e.mu.Unlock()

	for _, w := range stale {
		w.Stop()
	}
}

func open[T any](e *Engine, ctx context.Context, key, collection string, q store.Query, less func(a, b T) bool) (*Watch[T], error) {
	e.mu.Lock()
	prior, replaced := e.watches[key]
	if replaced {
		delete(e.watches, key)
	}
	e.mu.Unlock()
	if replaced {
		prior.Stop()
	}

	w := &Watch[T]{
		key:     key,
		engine:  e,
		less:    less,
		byID:    make(map[string]T),
		updates: make(chan []T, 16),
		done:    make(chan struct{}),
	}
	w.state.Store(StateIdle)

	w.state.Store(StateSubscribing)
	sub, err := e.store.Subscribe(ctx, collection, q)
	if err != nil {
		w.state.Store(StateStopped)
		return nil, err
	}
	w.sub = sub
	w.state.Store(StateActive)

	e.mu.Lock()
	e.watches[key] = w
	e.mu.Unlock()

	go w.pump()
	return w, nil
}
