package usecase

import (
	"context"

	"stompingground/internal/domain/repository"
	"stompingground/pkg/logger"
)

// SeenTracker flips per-user seen flags on chats and messages. Read
// receipts are a best-effort feature: every write here is fire-and-forget,
// failures are logged and never surfaced, and nothing blocks message
// delivery on them.
type SeenTracker struct {
	chatRepo repository.ChatRepository
}

func NewSeenTracker(chatRepo repository.ChatRepository) *SeenTracker {
	return &SeenTracker{chatRepo: chatRepo}
}

// MarkChatSeen sets chat.seenBy[userID] = true, writing only when the flag
// was previously false or absent.
func (t *SeenTracker) MarkChatSeen(ctx context.Context, chatID, userID string) {
	updated, err := t.chatRepo.UpdateChatSeen(ctx, chatID, userID)
	if err != nil {
		logger.LogSeenStateError(chatID, userID, err)
		return
	}
	if updated {
		logger.Debug("Chat %s marked seen by %s", chatID, userID)
	}
}

// MarkMessageSeen sets the per-message seen flag for one user.
func (t *SeenTracker) MarkMessageSeen(ctx context.Context, chatID, messageID, userID string) {
	updated, err := t.chatRepo.UpdateMessageSeen(ctx, chatID, messageID, userID)
	if err != nil {
		logger.LogSeenStateError(chatID, userID, err)
		return
	}
	if updated {
		logger.Debug("Message %s in chat %s marked seen by %s", messageID, chatID, userID)
	}
}
