package model

import (
	"time"
)

// Message is a persisted chat message together with its delivery lifecycle.
// IDs are numeric, assigned monotonically by the store at insert time; within
// a single process they double as the ordering proxy for a conversation.
type Message struct {
	ID          int64      `json:"id" bson:"id"`
	SenderID    int64      `json:"senderId" bson:"sender_id"`
	ReceiverID  *int64     `json:"receiverId,omitempty" bson:"receiver_id,omitempty"`
	GroupID     *int64     `json:"groupId,omitempty" bson:"group_id,omitempty"`
	Content     string     `json:"content" bson:"content"`
	CreatedAt   time.Time  `json:"createdAt" bson:"created_at"`
	Delivered   bool       `json:"isDelivered" bson:"is_delivered"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty" bson:"delivered_at,omitempty"`
	Read        bool       `json:"isRead" bson:"is_read"`
	ReadAt      *time.Time `json:"readAt,omitempty" bson:"read_at,omitempty"`
}

// Direct reports whether the message is addressed to a single user rather
// than a group. Exactly one of ReceiverID/GroupID is set on a valid message.
func (m *Message) Direct() bool {
	return m.ReceiverID != nil
}
