package sync

import (
	"sort"
	"sync"
	"sync/atomic"

	"stompingground/internal/domain/store"
	"stompingground/pkg/logger"
)

// Watch is one live subscription's materialized state. The local collection
// is owned exclusively by the watch's pump goroutine; observers only ever
// see immutable snapshots on Updates.
type Watch[T any] struct {
	key    string
	engine *Engine

	sub     store.Subscription
	less    func(a, b T) bool
	byID    map[string]T
	updates chan []T

	done     chan struct{}
	stopOnce sync.Once
	state    atomic.Int32

	mu  sync.Mutex
	err error
}

// Updates delivers the full ordered sequence after each applied change
// batch. The channel closes when the watch stops or the stream terminates;
// check Err afterwards to distinguish the two.
func (w *Watch[T]) Updates() <-chan []T {
	return w.updates
}

func (w *Watch[T]) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *Watch[T]) State() int32 {
	return w.state.Load()
}

// Stop releases the underlying change stream. Idempotent; deliveries racing
// with Stop are dropped, not queued.
func (w *Watch[T]) Stop() {
	w.stopOnce.Do(func() {
		w.state.Store(StateStopped)
		close(w.done)
		w.sub.Stop()

		w.engine.mu.Lock()
		if current, ok := w.engine.watches[w.key]; ok && current == w {
			delete(w.engine.watches, w.key)
		}
		w.engine.mu.Unlock()
	})
}

func (w *Watch[T]) pump() {
	defer close(w.updates)

	for batch := range w.sub.Changes() {
		if !w.apply(batch) {
			continue
		}

		select {
		case w.updates <- w.ordered():
		case <-w.done:
			return
		}
	}

	// Stream closed underneath us. A terminal subscription error auto-stops
	// the watch rather than letting it go silently stale.
	if err := w.sub.Err(); err != nil {
		w.mu.Lock()
		w.err = err
		w.mu.Unlock()
		logger.Error("Watch %s terminated: %v", w.key, err)
	}
	w.Stop()
}

// apply merges one change batch into the local collection. Removals go
// first; a record that fails to decode is skipped and logged so one
// malformed document never blocks delivery of the rest.
func (w *Watch[T]) apply(batch []store.Change) bool {
	applied := false

	for _, change := range batch {
		if change.Kind != store.ChangeRemoved {
			continue
		}
		if _, ok := w.byID[change.ID]; ok {
			delete(w.byID, change.ID)
			applied = true
		}
	}

	for _, change := range batch {
		if change.Kind == store.ChangeRemoved {
			continue
		}
		var record T
		if err := change.Decode(&record); err != nil {
			logger.Warn("Skipping malformed record %s on watch %s: %v", change.ID, w.key, err)
			continue
		}
		w.byID[change.ID] = record
		applied = true
	}

	return applied
}

// ordered re-sorts the whole collection; change batches may arrive out of
// order relative to the record timestamps.
func (w *Watch[T]) ordered() []T {
	out := make([]T, 0, len(w.byID))
	for _, record := range w.byID {
		out = append(out, record)
	}
	sort.SliceStable(out, func(i, j int) bool { return w.less(out[i], out[j]) })
	return out
}
