// Package memstore is an in-memory DocumentStore with the same observable
// semantics as the Firestore adapter: atomic batches, one-shot queries and
// change-batch subscriptions with an initial snapshot. It backs tests and
// local development without Firebase credentials.
package memstore

import (
	"context"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"stompingground/internal/domain/store"
	"stompingground/pkg/errors"
)

type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]interface{}
	subs        []*subscription
	writeCount  int64
	writeErr    error
}

func New() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]interface{}),
	}
}

// WriteCount returns the number of committed mutating operations. Batch
// commits count one per contained op.
func (s *Store) WriteCount() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeCount
}

// FailWrites makes every subsequent write fail with err until called again
// with nil. Test instrumentation only.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

func (s *Store) Put(ctx context.Context, collection, docID string, data interface{}) error {
	return s.ApplyBatch(ctx, []store.WriteOp{{Kind: store.OpPut, Collection: collection, DocID: docID, Data: data}})
}

func (s *Store) Update(ctx context.Context, collection, docID string, fields map[string]interface{}) error {
	return s.ApplyBatch(ctx, []store.WriteOp{{Kind: store.OpUpdate, Collection: collection, DocID: docID, Fields: fields}})
}

func (s *Store) Delete(ctx context.Context, collection, docID string) error {
	return s.ApplyBatch(ctx, []store.WriteOp{{Kind: store.OpDelete, Collection: collection, DocID: docID}})
}

// ApplyBatch commits all ops or none. Staged copies are mutated first;
// nothing becomes visible until every op has validated.
func (s *Store) ApplyBatch(ctx context.Context, ops []store.WriteOp) error {
	s.mu.Lock()

	if s.writeErr != nil {
		err := s.writeErr
		s.mu.Unlock()
		return errors.StoreWrite("Failed to commit batch", err)
	}

	type staged struct {
		op  store.WriteOp
		doc map[string]interface{} // nil means delete
	}
	stagedOps := make([]staged, 0, len(ops))

	for _, op := range ops {
		switch op.Kind {
		case store.OpPut:
			doc, err := normalize(op.Data)
			if err != nil {
				s.mu.Unlock()
				return errors.StoreWrite("Failed to encode document", err)
			}
			stagedOps = append(stagedOps, staged{op: op, doc: doc})
		case store.OpUpdate:
			existing, ok := s.collections[op.Collection][op.DocID]
			if !ok {
				s.mu.Unlock()
				return errors.StoreWrite("Cannot update missing document "+op.Collection+"/"+op.DocID, nil)
			}
			doc := cloneDoc(existing)
			for path, value := range op.Fields {
				normalized, err := normalizeValue(value)
				if err != nil {
					s.mu.Unlock()
					return errors.StoreWrite("Failed to encode field value", err)
				}
				setField(doc, path, normalized)
			}
			stagedOps = append(stagedOps, staged{op: op, doc: doc})
		case store.OpDelete:
			stagedOps = append(stagedOps, staged{op: op, doc: nil})
		}
	}

	type event struct {
		sub    *subscription
		change store.Change
	}
	var events []event

	for _, st := range stagedOps {
		coll := s.collections[st.op.Collection]
		if coll == nil {
			coll = make(map[string]map[string]interface{})
			s.collections[st.op.Collection] = coll
		}

		if st.doc == nil {
			delete(coll, st.op.DocID)
		} else {
			coll[st.op.DocID] = st.doc
		}
		s.writeCount++

		for _, sub := range s.subs {
			if sub.collection != st.op.Collection {
				continue
			}
			wasMatched := sub.matched[st.op.DocID]
			nowMatched := st.doc != nil && matchesFilters(st.doc, sub.query.Filters)

			var change store.Change
			switch {
			case nowMatched && !wasMatched:
				change = store.Change{ID: st.op.DocID, Kind: store.ChangeAdded, Decode: decoder(st.doc)}
				sub.matched[st.op.DocID] = true
			case nowMatched && wasMatched:
				change = store.Change{ID: st.op.DocID, Kind: store.ChangeModified, Decode: decoder(st.doc)}
			case !nowMatched && wasMatched:
				change = store.Change{ID: st.op.DocID, Kind: store.ChangeRemoved}
				delete(sub.matched, st.op.DocID)
			default:
				continue
			}
			events = append(events, event{sub: sub, change: change})
		}
	}

	s.mu.Unlock()

	for _, ev := range events {
		ev.sub.deliver([]store.Change{ev.change})
	}
	return nil
}

func (s *Store) Get(ctx context.Context, collection, docID string, out interface{}) error {
	s.mu.Lock()
	doc, ok := s.collections[collection][docID]
	if ok {
		doc = cloneDoc(doc)
	}
	s.mu.Unlock()

	if !ok {
		return errors.NotFound("Document", nil)
	}
	if err := decodeDoc(doc, out); err != nil {
		return errors.Decode("Failed to parse document data", err)
	}
	return nil
}

func (s *Store) Query(ctx context.Context, collection string, q store.Query) ([]store.Snapshot, error) {
	s.mu.Lock()
	matched := s.matchingDocs(collection, q)
	s.mu.Unlock()

	sortDocs(matched, q)
	matched = paginate(matched, q)

	snapshots := make([]store.Snapshot, 0, len(matched))
	for _, m := range matched {
		snapshots = append(snapshots, store.Snapshot{ID: m.id, Decode: decoder(m.doc)})
	}
	return snapshots, nil
}

func (s *Store) Subscribe(ctx context.Context, collection string, q store.Query) (store.Subscription, error) {
	sub := &subscription{
		collection: collection,
		query:      q,
		matched:    make(map[string]bool),
		changes:    make(chan []store.Change, 64),
	}

	s.mu.Lock()
	initial := s.matchingDocs(collection, q)
	for _, m := range initial {
		sub.matched[m.id] = true
	}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	// Initial result set arrives as one batch of added changes, mirroring
	// the Firestore snapshot contract.
	if len(initial) > 0 {
		batch := make([]store.Change, 0, len(initial))
		for _, m := range initial {
			batch = append(batch, store.Change{ID: m.id, Kind: store.ChangeAdded, Decode: decoder(m.doc)})
		}
		sub.deliver(batch)
	}

	return sub, nil
}

type matchedDoc struct {
	id  string
	doc map[string]interface{}
}

func (s *Store) matchingDocs(collection string, q store.Query) []matchedDoc {
	var matched []matchedDoc
	for id, doc := range s.collections[collection] {
		if matchesFilters(doc, q.Filters) {
			matched = append(matched, matchedDoc{id: id, doc: cloneDoc(doc)})
		}
	}
	return matched
}

type subscription struct {
	collection string
	query      store.Query
	matched    map[string]bool

	changes  chan []store.Change
	stopOnce sync.Once
	mu       sync.Mutex
	stopped  bool
	err      error
}

func (s *subscription) Changes() <-chan []store.Change { return s.changes }

func (s *subscription) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stop is idempotent; deliveries racing with it are dropped.
func (s *subscription) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopped = true
		close(s.changes)
		s.mu.Unlock()
	})
}

func (s *subscription) deliver(batch []store.Change) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	select {
	case s.changes <- batch:
	default:
		// Consumer far behind; a test double may drop rather than block.
	}
}

func normalize(data interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func normalizeValue(value interface{}) (interface{}, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func decodeDoc(doc map[string]interface{}, out interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func decoder(doc map[string]interface{}) func(out interface{}) error {
	snapshot := cloneDoc(doc)
	return func(out interface{}) error { return decodeDoc(snapshot, out) }
}

func cloneDoc(doc map[string]interface{}) map[string]interface{} {
	clone, err := normalize(doc)
	if err != nil {
		return doc
	}
	return clone
}

// setField writes value at a dot-separated path, creating intermediate maps.
func setField(doc map[string]interface{}, path string, value interface{}) {
	parts := strings.Split(path, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			current[part] = next
		}
		current = next
	}
	current[parts[len(parts)-1]] = value
}

func matchesFilters(doc map[string]interface{}, filters []store.Filter) bool {
	for _, f := range filters {
		value, err := normalizeValue(f.Value)
		if err != nil {
			return false
		}
		switch f.Op {
		case "==":
			if !reflect.DeepEqual(doc[f.Field], value) {
				return false
			}
		case "array-contains":
			items, ok := doc[f.Field].([]interface{})
			if !ok {
				return false
			}
			found := false
			for _, item := range items {
				if reflect.DeepEqual(item, value) {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func sortDocs(docs []matchedDoc, q store.Query) {
	if q.OrderBy == "" {
		sort.Slice(docs, func(i, j int) bool { return docs[i].id < docs[j].id })
		return
	}
	sort.Slice(docs, func(i, j int) bool {
		less := compareValues(docs[i].doc[q.OrderBy], docs[j].doc[q.OrderBy]) < 0
		if q.Dir == store.Desc {
			return !less
		}
		return less
	})
}

func paginate(docs []matchedDoc, q store.Query) []matchedDoc {
	if q.Offset > 0 {
		if q.Offset >= len(docs) {
			return nil
		}
		docs = docs[q.Offset:]
	}
	if q.Limit > 0 && q.Limit < len(docs) {
		docs = docs[:q.Limit]
	}
	return docs
}

// compareValues orders field values the way Firestore would for the types
// the chat core stores: timestamps (RFC 3339 strings after the JSON round
// trip), numbers and strings.
func compareValues(a, b interface{}) int {
	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		at, aerr := time.Parse(time.RFC3339Nano, as)
		bt, berr := time.Parse(time.RFC3339Nano, bs)
		if aerr == nil && berr == nil {
			switch {
			case at.Before(bt):
				return -1
			case at.After(bt):
				return 1
			default:
				return 0
			}
		}
		return strings.Compare(as, bs)
	}

	af, aok := a.(float64)
	bf, bok := b.(float64)
	if aok && bok {
		switch {
		case af < bf:
			return -1
		case af > bf:
			return 1
		default:
			return 0
		}
	}

	return strings.Compare(stringify(a), stringify(b))
}

func stringify(v interface{}) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(raw)
}
