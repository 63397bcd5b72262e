package entity

import "time"

// User type tags. They gate client-side surfaces only; nothing in this
// backend enforces them beyond echoing them back.
const (
	UserTypeCamper    = "camper"
	UserTypeCounselor = "counselor"
	UserTypeParent    = "parent"
	UserTypeDonor     = "donor"
)

type User struct {
	ID        string    `json:"id" firestore:"id"`
	Name      string    `json:"name" firestore:"name"`
	Username  string    `json:"username" firestore:"username"`
	Email     string    `json:"email" firestore:"email"`
	AvatarURL string    `json:"avatarURL,omitempty" firestore:"avatarURL,omitempty"`
	Bio       string    `json:"bio,omitempty" firestore:"bio,omitempty"`
	Type      string    `json:"type" firestore:"type"`
	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}
