package repository

import (
	"context"

	"stompingground/internal/domain/entity"
	"stompingground/internal/domain/service"
)

type ChatRepository interface {
	Create(ctx context.Context, chat *entity.Chat, preview service.MessagePreview) error
	GetByID(ctx context.Context, id string) (*entity.Chat, error)
	ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error)
	Delete(ctx context.Context, id string) error

	// Message methods
	CreateMessage(ctx context.Context, message *entity.ChatMessage, preview service.MessagePreview) error
	GetMessageByID(ctx context.Context, chatID, messageID string) (*entity.ChatMessage, error)
	ListMessages(ctx context.Context, chatID string, limit, offset int) ([]*entity.ChatMessage, int64, error)

	// Seen-state methods; both report whether a write actually happened so
	// callers can stay idempotent.
	UpdateChatSeen(ctx context.Context, chatID, userID string) (bool, error)
	UpdateMessageSeen(ctx context.Context, chatID, messageID, userID string) (bool, error)

	// Projection read path for the chat list view.
	ListRecentMessages(ctx context.Context, userID string) ([]*entity.RecentMessageEntry, error)
}
