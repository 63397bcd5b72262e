package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stompingground/internal/adapter/repository"
	"stompingground/internal/domain/entity"
	domainrepo "stompingground/internal/domain/repository"
	"stompingground/internal/domain/service"
	"stompingground/internal/infrastructure/memstore"
	"stompingground/internal/infrastructure/ratelimit"
	apperrors "stompingground/pkg/errors"
)

type chatFixture struct {
	uc       *ChatUseCase
	chatRepo domainrepo.ChatRepository
	userRepo domainrepo.UserRepository
	store    *memstore.Store
}

func newChatFixture(t *testing.T, userIDs ...string) *chatFixture {
	t.Helper()
	st := memstore.New()
	projector := service.NewRecentMessageProjector(st)
	chatRepo := repository.NewStoreChatRepository(st, projector)
	userRepo := repository.NewStoreUserRepository(st)

	ctx := context.Background()
	for _, id := range userIDs {
		require.NoError(t, userRepo.Create(ctx, &entity.User{
			ID:        id,
			Name:      "User " + id,
			Username:  id,
			Email:     id + "@camp.example",
			Type:      entity.UserTypeCamper,
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
		}))
	}

	uc := NewChatUseCase(chatRepo, userRepo, projector, NewSeenTracker(chatRepo), nil, ratelimit.NewRateLimiter())
	return &chatFixture{uc: uc, chatRepo: chatRepo, userRepo: userRepo, store: st}
}

func TestCreateChatDedupesParticipants(t *testing.T) {
	f := newChatFixture(t, "alice", "bob")
	ctx := context.Background()

	chat, err := f.uc.CreateChat(ctx, "alice", CreateChatInput{
		ParticipantIDs: []string{"bob", "bob", "alice"},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, chat.Participants)
	assert.Equal(t, "User alice started a new chat", chat.LastMessage)
}

func TestCreateChatRejectsUnknownParticipant(t *testing.T) {
	f := newChatFixture(t, "alice")

	_, err := f.uc.CreateChat(context.Background(), "alice", CreateChatInput{
		ParticipantIDs: []string{"ghost"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "BAD_REQUEST"))
}

func TestCreateChatRequiresAnotherParticipant(t *testing.T) {
	f := newChatFixture(t, "alice")

	_, err := f.uc.CreateChat(context.Background(), "alice", CreateChatInput{
		ParticipantIDs: []string{"alice"},
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "BAD_REQUEST"))
}

func TestSendMessageRequiresMembership(t *testing.T) {
	f := newChatFixture(t, "alice", "bob", "mallory")
	ctx := context.Background()

	chat, err := f.uc.CreateChat(ctx, "alice", CreateChatInput{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)

	_, err = f.uc.SendMessage(ctx, "mallory", chat.ID, SendMessageInput{Text: "let me in"})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "FORBIDDEN"))
}

func TestSendMessageRejectsEmptyText(t *testing.T) {
	f := newChatFixture(t, "alice", "bob")
	ctx := context.Background()

	chat, err := f.uc.CreateChat(ctx, "alice", CreateChatInput{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)

	_, err = f.uc.SendMessage(ctx, "alice", chat.ID, SendMessageInput{Text: "   "})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "BAD_REQUEST"))
}

func TestSendMessageRoundTrip(t *testing.T) {
	f := newChatFixture(t, "alice", "bob")
	ctx := context.Background()

	chat, err := f.uc.CreateChat(ctx, "alice", CreateChatInput{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)

	msg, err := f.uc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Text: "sing-along at the lodge"})
	require.NoError(t, err)
	require.NotEmpty(t, msg.ID)

	messages, total, err := f.uc.GetChatMessages(ctx, "alice", chat.ID, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, messages, 1)
	assert.Equal(t, "sing-along at the lodge", messages[0].Text)
	assert.True(t, messages[0].SeenByUser("bob"))
	assert.False(t, messages[0].SeenByUser("alice"))
}

func TestGetUserChatsEmbedsOtherUserAndPreview(t *testing.T) {
	f := newChatFixture(t, "alice", "bob")
	ctx := context.Background()

	chat, err := f.uc.CreateChat(ctx, "alice", CreateChatInput{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)
	_, err = f.uc.SendMessage(ctx, "bob", chat.ID, SendMessageInput{Text: "pancakes tomorrow"})
	require.NoError(t, err)

	items, total, err := f.uc.GetUserChats(ctx, "alice", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, items, 1)

	require.NotNil(t, items[0].OtherUser)
	assert.Equal(t, "bob", items[0].OtherUser.ID)
	require.NotNil(t, items[0].RecentMessage)
	assert.Equal(t, "pancakes tomorrow", items[0].RecentMessage.Text)
}

func TestGetUserChatsRepairsMissingPreview(t *testing.T) {
	f := newChatFixture(t, "alice", "bob")
	ctx := context.Background()

	chat, err := f.uc.CreateChat(ctx, "alice", CreateChatInput{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)

	// Simulate projection drift by dropping alice's preview row.
	require.NoError(t, f.store.Delete(ctx, service.RecentCollection("alice"), chat.ID))

	items, _, err := f.uc.GetUserChats(ctx, "alice", 10, 0)
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].RecentMessage)
	assert.Equal(t, chat.LastMessage, items[0].RecentMessage.Text)

	// The repaired row is persisted for the next fetch.
	entries, err := f.chatRepo.ListRecentMessages(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestDeleteChatRequiresMembership(t *testing.T) {
	f := newChatFixture(t, "alice", "bob", "mallory")
	ctx := context.Background()

	chat, err := f.uc.CreateChat(ctx, "alice", CreateChatInput{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)

	err = f.uc.DeleteChat(ctx, "mallory", chat.ID)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, "FORBIDDEN"))

	require.NoError(t, f.uc.DeleteChat(ctx, "bob", chat.ID))
	_, err = f.uc.GetChatByID(ctx, "alice", chat.ID)
	assert.True(t, apperrors.Is(err, "NOT_FOUND"))
}

func TestMarkChatSeenSurfacesAccessErrors(t *testing.T) {
	f := newChatFixture(t, "alice", "bob", "mallory")
	ctx := context.Background()

	chat, err := f.uc.CreateChat(ctx, "alice", CreateChatInput{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)

	err = f.uc.MarkChatSeen(ctx, "mallory", chat.ID)
	assert.True(t, apperrors.Is(err, "FORBIDDEN"))

	err = f.uc.MarkChatSeen(ctx, "alice", "no-such-chat")
	assert.True(t, apperrors.Is(err, "NOT_FOUND"))

	require.NoError(t, f.uc.MarkChatSeen(ctx, "bob", chat.ID))
	stored, err := f.uc.GetChatByID(ctx, "bob", chat.ID)
	require.NoError(t, err)
	assert.True(t, stored.SeenBy["bob"])
}

func TestMarkMessageSeenValidatesMessage(t *testing.T) {
	f := newChatFixture(t, "alice", "bob")
	ctx := context.Background()

	chat, err := f.uc.CreateChat(ctx, "alice", CreateChatInput{ParticipantIDs: []string{"bob"}})
	require.NoError(t, err)
	msg, err := f.uc.SendMessage(ctx, "alice", chat.ID, SendMessageInput{Text: "hey"})
	require.NoError(t, err)

	err = f.uc.MarkMessageSeen(ctx, "bob", chat.ID, "missing")
	assert.True(t, apperrors.Is(err, "NOT_FOUND"))

	require.NoError(t, f.uc.MarkMessageSeen(ctx, "bob", chat.ID, msg.ID))
}
