package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stompingground/internal/adapter/repository"
	"stompingground/internal/domain/entity"
	"stompingground/internal/domain/service"
	"stompingground/internal/infrastructure/memstore"
)

func TestMarkChatSeenFlipsFlag(t *testing.T) {
	st := memstore.New()
	repo := repository.NewStoreChatRepository(st, service.NewRecentMessageProjector(st))
	tracker := NewSeenTracker(repo)
	ctx := context.Background()

	chat := &entity.Chat{Participants: []string{"alice", "bob"}}
	require.NoError(t, repo.Create(ctx, chat, service.MessagePreview{Text: "hi", SenderID: "alice"}))

	tracker.MarkChatSeen(ctx, chat.ID, "bob")

	stored, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.True(t, stored.SeenBy["bob"])
}

func TestMarkChatSeenSwallowsWriteFailures(t *testing.T) {
	st := memstore.New()
	repo := repository.NewStoreChatRepository(st, service.NewRecentMessageProjector(st))
	tracker := NewSeenTracker(repo)
	ctx := context.Background()

	chat := &entity.Chat{Participants: []string{"alice", "bob"}}
	require.NoError(t, repo.Create(ctx, chat, service.MessagePreview{Text: "hi", SenderID: "alice"}))

	// Failures are logged, never surfaced; the call simply returns.
	st.FailWrites(errors.New("backend down"))
	tracker.MarkChatSeen(ctx, chat.ID, "bob")
	st.FailWrites(nil)

	stored, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.False(t, stored.SeenBy["bob"])
}

func TestMarkMessageSeenFireAndForget(t *testing.T) {
	st := memstore.New()
	repo := repository.NewStoreChatRepository(st, service.NewRecentMessageProjector(st))
	tracker := NewSeenTracker(repo)
	ctx := context.Background()

	chat := &entity.Chat{Participants: []string{"alice", "bob"}}
	require.NoError(t, repo.Create(ctx, chat, service.MessagePreview{Text: "hi", SenderID: "alice"}))

	msg := &entity.ChatMessage{ChatID: chat.ID, SenderID: "alice", Text: "hello"}
	require.NoError(t, repo.CreateMessage(ctx, msg, service.MessagePreview{Text: "hello", SenderID: "alice"}))

	tracker.MarkMessageSeen(ctx, chat.ID, msg.ID, "bob")
	// Unknown message is tolerated silently.
	tracker.MarkMessageSeen(ctx, chat.ID, "missing", "bob")

	stored, err := repo.GetMessageByID(ctx, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.SeenByUser("bob"))
}
