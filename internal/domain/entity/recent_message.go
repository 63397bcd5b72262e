package entity

import "time"

// RecentMessageEntry is the denormalized chat-preview row stored under each
// participant's namespace (recentMessages/{userId}/chats/{chatId}) so the
// chat list renders without fanning out reads. It is a rebuildable
// projection; the message collection stays the source of truth.
type RecentMessageEntry struct {
	ChatID          string    `json:"chatId" firestore:"chatId"`
	Text            string    `json:"text" firestore:"text"`
	SenderID        string    `json:"senderId" firestore:"senderId"`
	SenderName      string    `json:"senderName" firestore:"senderName"`
	SenderAvatarURL string    `json:"senderAvatarURL,omitempty" firestore:"senderAvatarURL,omitempty"`
	Timestamp       time.Time `json:"timestamp" firestore:"timestamp"`
}
