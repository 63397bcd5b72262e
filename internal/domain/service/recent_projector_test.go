package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stompingground/internal/domain/entity"
	"stompingground/internal/domain/store"
	"stompingground/internal/infrastructure/memstore"
)

func TestOpsCoverEveryParticipant(t *testing.T) {
	p := NewRecentMessageProjector(memstore.New())

	ops := p.Ops("chat-1", []string{"alice", "bob"}, MessagePreview{Text: "hi", SenderID: "alice"})
	require.Len(t, ops, 2)
	assert.Equal(t, store.OpPut, ops[0].Kind)
	assert.Equal(t, RecentCollection("alice"), ops[0].Collection)
	assert.Equal(t, "chat-1", ops[0].DocID)
	assert.Equal(t, RecentCollection("bob"), ops[1].Collection)
}

func TestDeleteOpsMirrorOps(t *testing.T) {
	p := NewRecentMessageProjector(memstore.New())

	ops := p.DeleteOps("chat-1", []string{"alice", "bob"})
	require.Len(t, ops, 2)
	for _, op := range ops {
		assert.Equal(t, store.OpDelete, op.Kind)
		assert.Equal(t, "chat-1", op.DocID)
	}
}

func TestProjectIsIdempotent(t *testing.T) {
	st := memstore.New()
	p := NewRecentMessageProjector(st)
	ctx := context.Background()

	preview := MessagePreview{
		Text:      "campfire at eight",
		SenderID:  "alice",
		Timestamp: time.Date(2026, 6, 10, 20, 0, 0, 0, time.UTC),
	}

	require.NoError(t, p.Project(ctx, "chat-1", []string{"bob"}, preview))
	require.NoError(t, p.Project(ctx, "chat-1", []string{"bob"}, preview))

	// Re-running the projection overwrites in place; one row per chat.
	snaps, err := st.Query(ctx, RecentCollection("bob"), store.Query{})
	require.NoError(t, err)
	require.Len(t, snaps, 1)

	var entry entity.RecentMessageEntry
	require.NoError(t, snaps[0].Decode(&entry))
	assert.Equal(t, "campfire at eight", entry.Text)
	assert.Equal(t, "chat-1", entry.ChatID)
}
