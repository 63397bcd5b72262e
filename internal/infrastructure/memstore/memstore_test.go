package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stompingground/internal/domain/store"
	apperrors "stompingground/pkg/errors"
)

type testDoc struct {
	Name         string    `json:"name"`
	Participants []string  `json:"participants,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

func TestPutAndGet(t *testing.T) {
	s := New()
	ctx := context.Background()

	err := s.Put(ctx, "docs", "d1", testDoc{Name: "first", CreatedAt: time.Now()})
	require.NoError(t, err)

	var out testDoc
	require.NoError(t, s.Get(ctx, "docs", "d1", &out))
	assert.Equal(t, "first", out.Name)
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	s := New()

	var out testDoc
	err := s.Get(context.Background(), "docs", "missing", &out)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "NOT_FOUND"))
}

func TestUpdateDottedPath(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "chats", "c1", map[string]interface{}{
		"seenBy": map[string]bool{"alice": true, "bob": false},
	}))

	require.NoError(t, s.Update(ctx, "chats", "c1", map[string]interface{}{
		"seenBy.bob": true,
	}))

	var out struct {
		SeenBy map[string]bool `json:"seenBy"`
	}
	require.NoError(t, s.Get(ctx, "chats", "c1", &out))
	assert.True(t, out.SeenBy["bob"])
	assert.True(t, out.SeenBy["alice"])
}

func TestBatchIsAtomic(t *testing.T) {
	s := New()
	ctx := context.Background()

	// An update against a missing doc must fail the whole batch; the put
	// before it must not become visible.
	err := s.ApplyBatch(ctx, []store.WriteOp{
		{Kind: store.OpPut, Collection: "docs", DocID: "d1", Data: testDoc{Name: "first"}},
		{Kind: store.OpUpdate, Collection: "docs", DocID: "missing", Fields: map[string]interface{}{"name": "x"}},
	})
	require.Error(t, err)

	var out testDoc
	err = s.Get(ctx, "docs", "d1", &out)
	assert.True(t, apperrors.Is(err, "NOT_FOUND"))
	assert.Equal(t, int64(0), s.WriteCount())
}

func TestWriteCountPerOp(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.ApplyBatch(ctx, []store.WriteOp{
		{Kind: store.OpPut, Collection: "docs", DocID: "d1", Data: testDoc{Name: "a"}},
		{Kind: store.OpPut, Collection: "docs", DocID: "d2", Data: testDoc{Name: "b"}},
	}))
	assert.Equal(t, int64(2), s.WriteCount())
}

func TestFailWrites(t *testing.T) {
	s := New()
	ctx := context.Background()

	s.FailWrites(errors.New("backend down"))
	err := s.Put(ctx, "docs", "d1", testDoc{Name: "a"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "STORE_WRITE_ERROR"))

	s.FailWrites(nil)
	require.NoError(t, s.Put(ctx, "docs", "d1", testDoc{Name: "a"}))
}

func TestQueryFilterOrderAndPaginate(t *testing.T) {
	s := New()
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.Put(ctx, "chats", "c1", testDoc{Name: "one", Participants: []string{"alice"}, CreatedAt: base}))
	require.NoError(t, s.Put(ctx, "chats", "c2", testDoc{Name: "two", Participants: []string{"alice", "bob"}, CreatedAt: base.Add(time.Hour)}))
	require.NoError(t, s.Put(ctx, "chats", "c3", testDoc{Name: "three", Participants: []string{"bob"}, CreatedAt: base.Add(2 * time.Hour)}))

	snaps, err := s.Query(ctx, "chats", store.Query{
		Filters: []store.Filter{{Field: "participants", Op: "array-contains", Value: "alice"}},
		OrderBy: "createdAt",
		Dir:     store.Desc,
	})
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, "c2", snaps[0].ID)
	assert.Equal(t, "c1", snaps[1].ID)

	snaps, err = s.Query(ctx, "chats", store.Query{OrderBy: "createdAt", Dir: store.Asc, Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, "c2", snaps[0].ID)
}

func TestSubscribeInitialSnapshot(t *testing.T) {
	s := New()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "docs", "d1", testDoc{Name: "pre"}))

	sub, err := s.Subscribe(ctx, "docs", store.Query{})
	require.NoError(t, err)
	defer sub.Stop()

	batch := <-sub.Changes()
	require.Len(t, batch, 1)
	assert.Equal(t, store.ChangeAdded, batch[0].Kind)
	assert.Equal(t, "d1", batch[0].ID)
}

func TestSubscribeSeesAddModifyRemove(t *testing.T) {
	s := New()
	ctx := context.Background()

	sub, err := s.Subscribe(ctx, "docs", store.Query{
		Filters: []store.Filter{{Field: "name", Op: "==", Value: "keep"}},
	})
	require.NoError(t, err)
	defer sub.Stop()

	require.NoError(t, s.Put(ctx, "docs", "d1", testDoc{Name: "keep"}))
	batch := <-sub.Changes()
	require.Len(t, batch, 1)
	assert.Equal(t, store.ChangeAdded, batch[0].Kind)

	require.NoError(t, s.Put(ctx, "docs", "d1", testDoc{Name: "keep", CreatedAt: time.Now()}))
	batch = <-sub.Changes()
	assert.Equal(t, store.ChangeModified, batch[0].Kind)

	// Falling out of the filter arrives as a removal.
	require.NoError(t, s.Put(ctx, "docs", "d1", testDoc{Name: "drop"}))
	batch = <-sub.Changes()
	assert.Equal(t, store.ChangeRemoved, batch[0].Kind)
}

func TestSubscriptionStopIsIdempotent(t *testing.T) {
	s := New()

	sub, err := s.Subscribe(context.Background(), "docs", store.Query{})
	require.NoError(t, err)

	sub.Stop()
	sub.Stop()

	_, open := <-sub.Changes()
	assert.False(t, open)
}
