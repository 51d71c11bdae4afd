package model

import (
	"time"
)

// User is the presence projection of a user record. Credentials live with
// the auth collaborator and are never loaded by this subsystem.
type User struct {
	ID       int64      `json:"id" bson:"id"`
	Username string     `json:"username" bson:"username"`
	IsOnline bool       `json:"isOnline" bson:"is_online"`
	LastSeen *time.Time `json:"lastSeen,omitempty" bson:"last_seen,omitempty"`
	IsAdmin  bool       `json:"isAdmin" bson:"is_admin"`
	IsTyping bool       `json:"isTyping" bson:"is_typing"`
	TypingTo *int64     `json:"typingTo,omitempty" bson:"typing_to,omitempty"`
}

// UserActivity is the admin activity view row: who is connected, when they
// were last seen, and whether they are composing.
type UserActivity struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
	IsTyping bool       `json:"isTyping"`
}
