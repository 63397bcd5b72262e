package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stompingground/internal/domain/entity"
	"stompingground/internal/domain/repository"
	"stompingground/internal/domain/service"
	"stompingground/internal/domain/store"
	"stompingground/pkg/errors"
	"stompingground/pkg/logger"
)

const chatsCollection = "chats"

func messagesCollection(chatID string) string {
	return chatsCollection + "/" + chatID + "/messages"
}

type storeChatRepository struct {
	store     store.DocumentStore
	projector *service.RecentMessageProjector
}

func NewStoreChatRepository(st store.DocumentStore, projector *service.RecentMessageProjector) repository.ChatRepository {
	return &storeChatRepository{
		store:     st,
		projector: projector,
	}
}

// Create writes the chat document and every participant's recent-message
// entry in one atomic batch. Partial writes are never observable.
func (r *storeChatRepository) Create(ctx context.Context, chat *entity.Chat, preview service.MessagePreview) error {
	if chat.ID == "" {
		chat.ID = uuid.New().String()
	}

	now := time.Now()
	chat.CreatedAt = now
	chat.UpdatedAt = now
	if preview.Timestamp.IsZero() {
		preview.Timestamp = now
	}
	if chat.LastMessage == "" {
		chat.LastMessage = preview.Text
	}

	chat.SeenBy = make(map[string]bool, len(chat.Participants))
	for _, p := range chat.Participants {
		chat.SeenBy[p] = p == preview.SenderID
	}

	ops := []store.WriteOp{{
		Kind:       store.OpPut,
		Collection: chatsCollection,
		DocID:      chat.ID,
		Data:       chat,
	}}
	ops = append(ops, r.projector.Ops(chat.ID, chat.Participants, preview)...)

	return r.store.ApplyBatch(ctx, ops)
}

func (r *storeChatRepository) GetByID(ctx context.Context, id string) (*entity.Chat, error) {
	var chat entity.Chat
	if err := r.store.Get(ctx, chatsCollection, id, &chat); err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return nil, errors.NotFound("Chat", err)
		}
		return nil, err
	}
	return &chat, nil
}

func (r *storeChatRepository) ListByUserID(ctx context.Context, userID string, limit, offset int) ([]*entity.Chat, int64, error) {
	snapshots, err := r.store.Query(ctx, chatsCollection, store.Query{
		Filters: []store.Filter{{Field: "participants", Op: "array-contains", Value: userID}},
		OrderBy: "createdAt",
		Dir:     store.Desc,
	})
	if err != nil {
		logger.Error("Failed to fetch chats for user %s: %v", userID, err)
		return nil, 0, err
	}

	total := int64(len(snapshots))

	start := offset
	end := len(snapshots)
	if limit > 0 && limit != -1 {
		end = start + limit
		if end > len(snapshots) {
			end = len(snapshots)
		}
	}
	if start > len(snapshots) {
		start = len(snapshots)
	}

	var chats []*entity.Chat
	for i := start; i < end; i++ {
		var chat entity.Chat
		if err := snapshots[i].Decode(&chat); err != nil {
			logger.Warn("Skipping malformed chat %s for user %s: %v", snapshots[i].ID, userID, err)
			continue
		}
		chats = append(chats, &chat)
	}

	return chats, total, nil
}

// Delete removes the chat document and every participant's recent entry
// atomically, then sweeps the message subcollection best-effort. A failed
// sweep leaves orphaned messages, never a half-deleted chat.
func (r *storeChatRepository) Delete(ctx context.Context, id string) error {
	chat, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}

	ops := []store.WriteOp{{
		Kind:       store.OpDelete,
		Collection: chatsCollection,
		DocID:      id,
	}}
	ops = append(ops, r.projector.DeleteOps(id, chat.Participants)...)

	if err := r.store.ApplyBatch(ctx, ops); err != nil {
		return err
	}

	r.sweepMessages(ctx, id)
	return nil
}

func (r *storeChatRepository) sweepMessages(ctx context.Context, chatID string) {
	snapshots, err := r.store.Query(ctx, messagesCollection(chatID), store.Query{})
	if err != nil {
		logger.Warn("Message sweep for chat %s skipped: %v", chatID, err)
		return
	}
	for _, snap := range snapshots {
		if err := r.store.Delete(ctx, messagesCollection(chatID), snap.ID); err != nil {
			logger.Warn("Failed to delete message %s of chat %s: %v", snap.ID, chatID, err)
		}
	}
}

// CreateMessage appends the message and atomically updates the chat summary
// (lastMessage, updatedAt, seenBy reset) plus each non-sender participant's
// recent entry. A caller-supplied message ID makes retries idempotent.
func (r *storeChatRepository) CreateMessage(ctx context.Context, message *entity.ChatMessage, preview service.MessagePreview) error {
	chat, err := r.GetByID(ctx, message.ChatID)
	if err != nil {
		return err
	}

	if message.ID == "" {
		message.ID = uuid.New().String()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now()
	}
	message.SeenBy = map[string]bool{message.SenderID: true}

	if preview.Timestamp.IsZero() {
		preview.Timestamp = message.CreatedAt
	}

	seenReset := make(map[string]bool, len(chat.Participants))
	var recipients []string
	for _, p := range chat.Participants {
		seenReset[p] = p == message.SenderID
		if p != message.SenderID {
			recipients = append(recipients, p)
		}
	}

	ops := []store.WriteOp{
		{
			Kind:       store.OpPut,
			Collection: messagesCollection(message.ChatID),
			DocID:      message.ID,
			Data:       message,
		},
		{
			Kind:       store.OpUpdate,
			Collection: chatsCollection,
			DocID:      message.ChatID,
			Fields: map[string]interface{}{
				"lastMessage": message.Text,
				"updatedAt":   message.CreatedAt,
				"seenBy":      seenReset,
			},
		},
	}
	ops = append(ops, r.projector.Ops(message.ChatID, recipients, preview)...)

	return r.store.ApplyBatch(ctx, ops)
}

func (r *storeChatRepository) GetMessageByID(ctx context.Context, chatID, messageID string) (*entity.ChatMessage, error) {
	var message entity.ChatMessage
	if err := r.store.Get(ctx, messagesCollection(chatID), messageID, &message); err != nil {
		if errors.Is(err, "NOT_FOUND") {
			return nil, errors.NotFound("Message", err)
		}
		return nil, err
	}
	return &message, nil
}

func (r *storeChatRepository) ListMessages(ctx context.Context, chatID string, limit, offset int) ([]*entity.ChatMessage, int64, error) {
	snapshots, err := r.store.Query(ctx, messagesCollection(chatID), store.Query{
		OrderBy: "createdAt",
		Dir:     store.Asc,
	})
	if err != nil {
		logger.Error("Failed to fetch messages for chat %s: %v", chatID, err)
		return nil, 0, err
	}

	total := int64(len(snapshots))

	start := offset
	end := len(snapshots)
	if limit > 0 {
		end = start + limit
		if end > len(snapshots) {
			end = len(snapshots)
		}
	}
	if start > len(snapshots) {
		start = len(snapshots)
	}

	var messages []*entity.ChatMessage
	for i := start; i < end; i++ {
		var message entity.ChatMessage
		if err := snapshots[i].Decode(&message); err != nil {
			logger.Warn("Skipping malformed message %s in chat %s: %v", snapshots[i].ID, chatID, err)
			continue
		}
		messages = append(messages, &message)
	}

	return messages, total, nil
}

// UpdateChatSeen flips the chat-level seen flag for one user. Returns false
// without writing when the flag is already set.
func (r *storeChatRepository) UpdateChatSeen(ctx context.Context, chatID, userID string) (bool, error) {
	chat, err := r.GetByID(ctx, chatID)
	if err != nil {
		return false, err
	}
	if chat.SeenBy[userID] {
		return false, nil
	}

	err = r.store.Update(ctx, chatsCollection, chatID, map[string]interface{}{
		"seenBy." + userID: true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *storeChatRepository) UpdateMessageSeen(ctx context.Context, chatID, messageID, userID string) (bool, error) {
	message, err := r.GetMessageByID(ctx, chatID, messageID)
	if err != nil {
		return false, err
	}
	if message.SeenBy[userID] {
		return false, nil
	}

	err = r.store.Update(ctx, messagesCollection(chatID), messageID, map[string]interface{}{
		"seenBy." + userID: true,
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *storeChatRepository) ListRecentMessages(ctx context.Context, userID string) ([]*entity.RecentMessageEntry, error) {
	snapshots, err := r.store.Query(ctx, service.RecentCollection(userID), store.Query{
		OrderBy: "timestamp",
		Dir:     store.Desc,
	})
	if err != nil {
		return nil, err
	}

	var entries []*entity.RecentMessageEntry
	for _, snap := range snapshots {
		var entry entity.RecentMessageEntry
		if err := snap.Decode(&entry); err != nil {
			logger.Warn("Skipping malformed recent entry %s for user %s: %v", snap.ID, userID, err)
			continue
		}
		entries = append(entries, &entry)
	}
	return entries, nil
}
