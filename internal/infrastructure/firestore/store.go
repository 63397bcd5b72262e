package firestore

import (
	"context"
	"strings"
	"sync"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"stompingground/internal/domain/store"
	"stompingground/pkg/errors"
	"stompingground/pkg/logger"
)

// Store adapts a Firestore client to the DocumentStore capability. It is the
// production backend; tests use the memstore package instead.
type Store struct {
	client *firestore.Client
}

func NewStore(client *firestore.Client) *Store {
	return &Store{client: client}
}

func (s *Store) doc(collection, docID string) *firestore.DocumentRef {
	return s.client.Collection(collection).Doc(docID)
}

func (s *Store) Put(ctx context.Context, collection, docID string, data interface{}) error {
	if _, err := s.doc(collection, docID).Set(ctx, data); err != nil {
		return errors.StoreWrite("Failed to put document", err)
	}
	return nil
}

func (s *Store) Update(ctx context.Context, collection, docID string, fields map[string]interface{}) error {
	if _, err := s.doc(collection, docID).Update(ctx, toUpdates(fields)); err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Document", err)
		}
		return errors.StoreWrite("Failed to update document", err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, docID string) error {
	if _, err := s.doc(collection, docID).Delete(ctx); err != nil {
		return errors.StoreWrite("Failed to delete document", err)
	}
	return nil
}

func (s *Store) ApplyBatch(ctx context.Context, ops []store.WriteOp) error {
	batch := s.client.Batch()
	for _, op := range ops {
		ref := s.doc(op.Collection, op.DocID)
		switch op.Kind {
		case store.OpPut:
			batch.Set(ref, op.Data)
		case store.OpUpdate:
			batch.Update(ref, toUpdates(op.Fields))
		case store.OpDelete:
			batch.Delete(ref)
		}
	}
	if _, err := batch.Commit(ctx); err != nil {
		return errors.StoreWrite("Failed to commit batch", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, docID string, out interface{}) error {
	doc, err := s.doc(collection, docID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return errors.NotFound("Document", err)
		}
		return errors.StoreRead("Failed to get document", err)
	}
	if err := doc.DataTo(out); err != nil {
		return errors.Decode("Failed to parse document data", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, q store.Query) ([]store.Snapshot, error) {
	docs, err := s.buildQuery(collection, q).Documents(ctx).GetAll()
	if err != nil {
		return nil, errors.StoreRead("Failed to query collection", err)
	}

	snapshots := make([]store.Snapshot, 0, len(docs))
	for _, doc := range docs {
		doc := doc
		snapshots = append(snapshots, store.Snapshot{
			ID:     doc.Ref.ID,
			Decode: func(out interface{}) error { return doc.DataTo(out) },
		})
	}
	return snapshots, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, q store.Query) (store.Subscription, error) {
	sub := &subscription{
		iter:    s.buildQuery(collection, q).Snapshots(ctx),
		changes: make(chan []store.Change, 16),
		done:    make(chan struct{}),
	}
	go sub.pump()
	return sub, nil
}

func (s *Store) buildQuery(collection string, q store.Query) firestore.Query {
	query := s.client.Collection(collection).Query
	for _, f := range q.Filters {
		query = query.Where(f.Field, f.Op, f.Value)
	}
	if q.OrderBy != "" {
		dir := firestore.Asc
		if q.Dir == store.Desc {
			dir = firestore.Desc
		}
		query = query.OrderBy(q.OrderBy, dir)
	}
	if q.Offset > 0 {
		query = query.Offset(q.Offset)
	}
	if q.Limit > 0 {
		query = query.Limit(q.Limit)
	}
	return query
}

// toUpdates splits dotted paths into field path components so nested map
// keys like "seenBy.<uid>" address the nested field, not a literal key
// containing a dot.
func toUpdates(fields map[string]interface{}) []firestore.Update {
	updates := make([]firestore.Update, 0, len(fields))
	for path, value := range fields {
		updates = append(updates, firestore.Update{
			FieldPath: firestore.FieldPath(strings.Split(path, ".")),
			Value:     value,
		})
	}
	return updates
}

type subscription struct {
	iter    *firestore.QuerySnapshotIterator
	changes chan []store.Change

	done     chan struct{}
	stopOnce sync.Once

	mu  sync.Mutex
	err error
}

func (s *subscription) Changes() <-chan []store.Change {
	return s.changes
}

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop releases the underlying snapshot listener. Safe to call multiple
// times; deliveries racing with Stop are dropped, not queued.
func (s *subscription) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.iter.Stop()
	})
}

func (s *subscription) pump() {
	defer close(s.changes)

	for {
		snap, err := s.iter.Next()
		if err != nil {
			select {
			case <-s.done:
				// Stopped by the consumer; not a failure.
			default:
				logger.Error("Snapshot stream terminated: %v", err)
				s.mu.Lock()
				s.err = errors.StoreRead("Change stream terminated", err)
				s.mu.Unlock()
			}
			return
		}

		batch := make([]store.Change, 0, len(snap.Changes))
		for _, change := range snap.Changes {
			doc := change.Doc
			c := store.Change{ID: doc.Ref.ID}
			switch change.Kind {
			case firestore.DocumentAdded:
				c.Kind = store.ChangeAdded
			case firestore.DocumentModified:
				c.Kind = store.ChangeModified
			case firestore.DocumentRemoved:
				c.Kind = store.ChangeRemoved
			}
			if c.Kind != store.ChangeRemoved {
				c.Decode = func(out interface{}) error { return doc.DataTo(out) }
			}
			batch = append(batch, c)
		}
		if len(batch) == 0 {
			continue
		}

		select {
		case s.changes <- batch:
		case <-s.done:
			return
		}
	}
}
