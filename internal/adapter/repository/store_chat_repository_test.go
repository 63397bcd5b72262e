package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stompingground/internal/domain/entity"
	"stompingground/internal/domain/repository"
	"stompingground/internal/domain/service"
	"stompingground/internal/infrastructure/memstore"
	apperrors "stompingground/pkg/errors"
)

func newChatRepo(t *testing.T) (repository.ChatRepository, *memstore.Store) {
	t.Helper()
	st := memstore.New()
	projector := service.NewRecentMessageProjector(st)
	return NewStoreChatRepository(st, projector), st
}

func seedChat(t *testing.T, repo repository.ChatRepository, participants ...string) *entity.Chat {
	t.Helper()
	chat := &entity.Chat{Participants: participants}
	err := repo.Create(context.Background(), chat, service.MessagePreview{
		Text:     "Alice started a new chat",
		SenderID: participants[0],
	})
	require.NoError(t, err)
	return chat
}

func TestCreateChatSeedsSeenByAndPreviews(t *testing.T) {
	repo, _ := newChatRepo(t)
	ctx := context.Background()

	chat := seedChat(t, repo, "alice", "bob", "carol")
	require.NotEmpty(t, chat.ID)

	stored, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)

	// Creator has seen the chat, everyone else has not.
	assert.True(t, stored.SeenBy["alice"])
	assert.False(t, stored.SeenBy["bob"])
	assert.False(t, stored.SeenBy["carol"])
	assert.Equal(t, "Alice started a new chat", stored.LastMessage)

	// Every participant gets a preview row, the creator included.
	for _, userID := range []string{"alice", "bob", "carol"} {
		entries, err := repo.ListRecentMessages(ctx, userID)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, chat.ID, entries[0].ChatID)
	}
}

func TestCreateChatIsAtomic(t *testing.T) {
	repo, st := newChatRepo(t)
	ctx := context.Background()

	st.FailWrites(errors.New("backend down"))
	chat := &entity.Chat{Participants: []string{"alice", "bob"}}
	err := repo.Create(ctx, chat, service.MessagePreview{Text: "hi", SenderID: "alice"})
	require.Error(t, err)
	st.FailWrites(nil)

	// Nothing may be visible: no chat, no preview rows.
	_, err = repo.GetByID(ctx, chat.ID)
	assert.True(t, apperrors.Is(err, "NOT_FOUND"))
	for _, userID := range []string{"alice", "bob"} {
		entries, err := repo.ListRecentMessages(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestCreateMessageUpdatesChatSummary(t *testing.T) {
	repo, _ := newChatRepo(t)
	ctx := context.Background()

	chat := seedChat(t, repo, "alice", "bob", "carol")

	msg := &entity.ChatMessage{ChatID: chat.ID, SenderID: "bob", Text: "see you at the lake"}
	err := repo.CreateMessage(ctx, msg, service.MessagePreview{
		Text:       "see you at the lake",
		SenderID:   "bob",
		SenderName: "Bob",
	})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)

	stored, err := repo.GetMessageByID(ctx, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.SeenBy["bob"])
	assert.False(t, stored.SeenBy["alice"])

	// Chat summary reflects the new message and the seen map resets to
	// sender-only.
	updated, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, "see you at the lake", updated.LastMessage)
	assert.True(t, updated.SeenBy["bob"])
	assert.False(t, updated.SeenBy["alice"])
	assert.False(t, updated.SeenBy["carol"])
}

func TestCreateMessageProjectsToRecipientsOnly(t *testing.T) {
	repo, _ := newChatRepo(t)
	ctx := context.Background()

	chat := seedChat(t, repo, "alice", "bob")

	err := repo.CreateMessage(ctx, &entity.ChatMessage{
		ChatID: chat.ID, SenderID: "alice", Text: "marshmallows tonight",
	}, service.MessagePreview{Text: "marshmallows tonight", SenderID: "alice", SenderName: "Alice"})
	require.NoError(t, err)

	// Bob's preview row carries the new text; Alice's still shows the
	// chat-creation seed.
	bobEntries, err := repo.ListRecentMessages(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, bobEntries, 1)
	assert.Equal(t, "marshmallows tonight", bobEntries[0].Text)

	aliceEntries, err := repo.ListRecentMessages(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceEntries, 1)
	assert.Equal(t, "Alice started a new chat", aliceEntries[0].Text)
}

func TestCreateMessageIsAtomic(t *testing.T) {
	repo, st := newChatRepo(t)
	ctx := context.Background()

	chat := seedChat(t, repo, "alice", "bob")
	before, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)

	st.FailWrites(errors.New("backend down"))
	err = repo.CreateMessage(ctx, &entity.ChatMessage{
		ChatID: chat.ID, SenderID: "alice", Text: "lost",
	}, service.MessagePreview{Text: "lost", SenderID: "alice"})
	require.Error(t, err)
	st.FailWrites(nil)

	after, err := repo.GetByID(ctx, chat.ID)
	require.NoError(t, err)
	assert.Equal(t, before.LastMessage, after.LastMessage)

	messages, _, err := repo.ListMessages(ctx, chat.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)
}

func TestCreateMessageUnknownChat(t *testing.T) {
	repo, _ := newChatRepo(t)

	err := repo.CreateMessage(context.Background(), &entity.ChatMessage{
		ChatID: "nope", SenderID: "alice", Text: "hello",
	}, service.MessagePreview{Text: "hello", SenderID: "alice"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "NOT_FOUND"))
}

func TestListMessagesChronological(t *testing.T) {
	repo, _ := newChatRepo(t)
	ctx := context.Background()

	chat := seedChat(t, repo, "alice", "bob")
	base := time.Date(2026, 6, 10, 9, 0, 0, 0, time.UTC)

	// Insert out of order; listing must come back oldest first.
	for i, offset := range []time.Duration{2 * time.Hour, 0, time.Hour} {
		err := repo.CreateMessage(ctx, &entity.ChatMessage{
			ID:        []string{"m-late", "m-early", "m-mid"}[i],
			ChatID:    chat.ID,
			SenderID:  "alice",
			Text:      "msg",
			CreatedAt: base.Add(offset),
		}, service.MessagePreview{Text: "msg", SenderID: "alice"})
		require.NoError(t, err)
	}

	messages, total, err := repo.ListMessages(ctx, chat.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, messages, 3)
	assert.Equal(t, "m-early", messages[0].ID)
	assert.Equal(t, "m-mid", messages[1].ID)
	assert.Equal(t, "m-late", messages[2].ID)
}

func TestListByUserIDNewestFirst(t *testing.T) {
	repo, _ := newChatRepo(t)
	ctx := context.Background()

	first := seedChat(t, repo, "alice", "bob")
	second := seedChat(t, repo, "alice", "carol")
	seedChat(t, repo, "bob", "carol")

	chats, total, err := repo.ListByUserID(ctx, "alice", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, chats, 2)
	assert.Equal(t, second.ID, chats[0].ID)
	assert.Equal(t, first.ID, chats[1].ID)
}

func TestDeleteCascades(t *testing.T) {
	repo, _ := newChatRepo(t)
	ctx := context.Background()

	chat := seedChat(t, repo, "alice", "bob")
	require.NoError(t, repo.CreateMessage(ctx, &entity.ChatMessage{
		ChatID: chat.ID, SenderID: "alice", Text: "bye",
	}, service.MessagePreview{Text: "bye", SenderID: "alice"}))

	require.NoError(t, repo.Delete(ctx, chat.ID))

	_, err := repo.GetByID(ctx, chat.ID)
	assert.True(t, apperrors.Is(err, "NOT_FOUND"))

	messages, _, err := repo.ListMessages(ctx, chat.ID, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, messages)

	for _, userID := range []string{"alice", "bob"} {
		entries, err := repo.ListRecentMessages(ctx, userID)
		require.NoError(t, err)
		assert.Empty(t, entries)
	}
}

func TestUpdateChatSeenWritesOnce(t *testing.T) {
	repo, st := newChatRepo(t)
	ctx := context.Background()

	chat := seedChat(t, repo, "alice", "bob")
	before := st.WriteCount()

	updated, err := repo.UpdateChatSeen(ctx, chat.ID, "bob")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, before+1, st.WriteCount())

	// Second flip is a no-op and must not write.
	updated, err = repo.UpdateChatSeen(ctx, chat.ID, "bob")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, before+1, st.WriteCount())
}

func TestUpdateMessageSeenWritesOnce(t *testing.T) {
	repo, st := newChatRepo(t)
	ctx := context.Background()

	chat := seedChat(t, repo, "alice", "bob")
	msg := &entity.ChatMessage{ChatID: chat.ID, SenderID: "alice", Text: "hi"}
	require.NoError(t, repo.CreateMessage(ctx, msg, service.MessagePreview{Text: "hi", SenderID: "alice"}))

	before := st.WriteCount()

	updated, err := repo.UpdateMessageSeen(ctx, chat.ID, msg.ID, "bob")
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, before+1, st.WriteCount())

	updated, err = repo.UpdateMessageSeen(ctx, chat.ID, msg.ID, "bob")
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, before+1, st.WriteCount())

	stored, err := repo.GetMessageByID(ctx, chat.ID, msg.ID)
	require.NoError(t, err)
	assert.True(t, stored.SeenByUser("bob"))
	assert.True(t, stored.SeenByUser("alice"))
}
