package entity

import "time"

// ChatMessage is immutable after creation except for SeenBy updates.
// The sender's own seen flag is always true at creation.
type ChatMessage struct {
	ID        string          `json:"id" firestore:"id"`
	ChatID    string          `json:"chatId" firestore:"chatId"`
	SenderID  string          `json:"senderId" firestore:"senderId"`
	Text      string          `json:"text" firestore:"text"`
	SeenBy    map[string]bool `json:"seenBy" firestore:"seenBy"`
	CreatedAt time.Time       `json:"createdAt" firestore:"createdAt"`
}

func (m *ChatMessage) SeenByUser(userID string) bool {
	return m.SeenBy[userID]
}
