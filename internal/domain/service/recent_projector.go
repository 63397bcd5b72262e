package service

import (
	"context"
	"time"

	"stompingground/internal/domain/entity"
	"stompingground/internal/domain/store"
	"stompingground/pkg/errors"
)

// MessagePreview carries the display fields projected into each
// participant's RecentMessageEntry.
type MessagePreview struct {
	Text            string
	SenderID        string
	SenderName      string
	SenderAvatarURL string
	Timestamp       time.Time
}

// RecentMessageProjector keeps the per-participant chat-preview rows in step
// with the authoritative chat and message documents. Projections are
// eventually consistent; drift is repaired lazily on full listing fetches.
type RecentMessageProjector struct {
	store store.DocumentStore
}

func NewRecentMessageProjector(st store.DocumentStore) *RecentMessageProjector {
	return &RecentMessageProjector{store: st}
}

// RecentCollection is the namespace a participant's preview rows live under.
func RecentCollection(userID string) string {
	return "recentMessages/" + userID + "/chats"
}

func entryFor(chatID string, preview MessagePreview) *entity.RecentMessageEntry {
	return &entity.RecentMessageEntry{
		ChatID:          chatID,
		Text:            preview.Text,
		SenderID:        preview.SenderID,
		SenderName:      preview.SenderName,
		SenderAvatarURL: preview.SenderAvatarURL,
		Timestamp:       preview.Timestamp,
	}
}

// Ops returns the batch fragment that upserts one entry per participant.
// Composed into the message-append batch by the chat repository so the
// projection lands atomically with the message itself.
func (p *RecentMessageProjector) Ops(chatID string, participants []string, preview MessagePreview) []store.WriteOp {
	ops := make([]store.WriteOp, 0, len(participants))
	for _, userID := range participants {
		ops = append(ops, store.WriteOp{
			Kind:       store.OpPut,
			Collection: RecentCollection(userID),
			DocID:      chatID,
			Data:       entryFor(chatID, preview),
		})
	}
	return ops
}

// DeleteOps returns the cascade fragment removing every participant's entry
// for a chat.
func (p *RecentMessageProjector) DeleteOps(chatID string, participants []string) []store.WriteOp {
	ops := make([]store.WriteOp, 0, len(participants))
	for _, userID := range participants {
		ops = append(ops, store.WriteOp{
			Kind:       store.OpDelete,
			Collection: RecentCollection(userID),
			DocID:      chatID,
		})
	}
	return ops
}

// Project upserts the preview row for each participant as a standalone
// repair pass. Idempotent: re-running with the same preview is a no-op
// semantically, since each entry is a full put keyed by chat id.
func (p *RecentMessageProjector) Project(ctx context.Context, chatID string, participants []string, preview MessagePreview) error {
	if err := p.store.ApplyBatch(ctx, p.Ops(chatID, participants, preview)); err != nil {
		return errors.StoreWrite("Failed to project recent message entries", err)
	}
	return nil
}
