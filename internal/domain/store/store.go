package store

import "context"

// ChangeKind classifies one incremental mutation delivered by a subscription.
type ChangeKind int

const (
	ChangeAdded ChangeKind = iota
	ChangeModified
	ChangeRemoved
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeAdded:
		return "added"
	case ChangeModified:
		return "modified"
	case ChangeRemoved:
		return "removed"
	}
	return "unknown"
}

// Change is a single (docId, kind, payload) tuple from a change batch.
// Decode is nil for removals.
type Change struct {
	ID     string
	Kind   ChangeKind
	Decode func(out interface{}) error
}

// Snapshot is one document returned by a one-shot query.
type Snapshot struct {
	ID     string
	Decode func(out interface{}) error
}

type OpKind int

const (
	OpPut OpKind = iota
	OpUpdate
	OpDelete
)

// WriteOp is one entry of an atomic batch. Put carries a full document in
// Data; Update carries partial fields keyed by dot-separated field paths.
type WriteOp struct {
	Kind       OpKind
	Collection string
	DocID      string
	Data       interface{}
	Fields     map[string]interface{}
}

type Direction int

const (
	Asc Direction = iota
	Desc
)

// Filter supports the two operators the chat core needs: "==" and
// "array-contains".
type Filter struct {
	Field string
	Op    string
	Value interface{}
}

type Query struct {
	Filters []Filter
	OrderBy string
	Dir     Direction
	Limit   int
	Offset  int
}

// Subscription is a live change-stream handle. Stop is idempotent and
// guarantees no delivery on Changes after it returns; a terminal stream
// error is available from Err once Changes is closed.
type Subscription interface {
	Changes() <-chan []Change
	Err() error
	Stop()
}

// DocumentStore is the capability the chat core is built on: per-document
// CRUD, all-or-nothing batches, one-shot queries and real-time change
// subscriptions. Injected into repositories and the sync engine so tests
// can substitute an in-memory double. Collection paths are slash-separated
// ("chats/abc/messages").
type DocumentStore interface {
	Put(ctx context.Context, collection, docID string, data interface{}) error
	Update(ctx context.Context, collection, docID string, fields map[string]interface{}) error
	Delete(ctx context.Context, collection, docID string) error
	ApplyBatch(ctx context.Context, ops []WriteOp) error
	Get(ctx context.Context, collection, docID string, out interface{}) error
	Query(ctx context.Context, collection string, q Query) ([]Snapshot, error)
	Subscribe(ctx context.Context, collection string, q Query) (Subscription, error)
}
