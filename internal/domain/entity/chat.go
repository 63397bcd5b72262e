package entity

import "time"

// Chat is the summary document for a conversation. SeenBy is the chat-level
// seen map, reset on every new message; per-message seen state lives on the
// messages themselves. JSON and firestore tags match so documents round-trip
// with identical field names through any store backend.
type Chat struct {
	ID           string          `json:"id" firestore:"id"`
	Name         string          `json:"name,omitempty" firestore:"name,omitempty"`
	Participants []string        `json:"participants" firestore:"participants"`
	LastMessage  string          `json:"lastMessage" firestore:"lastMessage"`
	SeenBy       map[string]bool `json:"seenBy" firestore:"seenBy"`
	CreatedAt    time.Time       `json:"createdAt" firestore:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt" firestore:"updatedAt"`
}

// HasParticipant reports membership; participant order is insertion order
// and only matters for display.
func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}
