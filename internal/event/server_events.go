package event

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Unknownlegend09/Chathub/internal/model"
)

// ServerEvent is one of the server→client event structs.
type ServerEvent interface {
	serverEvent()
}

// MessageEvent carries a full message record to both ends of a direct
// conversation, or to everyone for a group message.
type MessageEvent struct {
	Type string `json:"type"`
	model.Message
}

// StatusEvent announces an online/offline transition. LastSeen is only set
// on the offline edge.
type StatusEvent struct {
	Type     string     `json:"type"`
	UserID   int64      `json:"userId"`
	IsOnline bool       `json:"isOnline"`
	LastSeen *time.Time `json:"lastSeen,omitempty"`
}

// TypingEvent tells a recipient that the subject started or stopped typing.
type TypingEvent struct {
	Type     string `json:"type"`
	UserID   int64  `json:"userId"`
	IsTyping bool   `json:"isTyping"`
}

// MessageDeliveredEvent notifies the original sender of delivery.
type MessageDeliveredEvent struct {
	Type        string     `json:"type"`
	MessageID   int64      `json:"messageId"`
	DeliveredAt *time.Time `json:"deliveredAt,omitempty"`
}

// MessageReadEvent notifies the original sender of a read receipt.
type MessageReadEvent struct {
	Type      string     `json:"type"`
	MessageID int64      `json:"messageId"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
}

// MessagesReadEvent reports a bulk mark-all-read with the updated count.
type MessagesReadEvent struct {
	Type        string `json:"type"`
	RecipientID int64  `json:"recipientId"`
	SenderID    int64  `json:"senderId"`
	Count       int64  `json:"count"`
}

// NotificationEvent carries a truncated preview to the receiver of a direct
// message.
type NotificationEvent struct {
	Type     string `json:"type"`
	SenderID int64  `json:"senderId"`
	Preview  string `json:"preview"`
}

// UserDeletedEvent tells every client to drop a removed user.
type UserDeletedEvent struct {
	Type   string `json:"type"`
	UserID int64  `json:"userId"`
}

func (MessageEvent) serverEvent()          {}
func (StatusEvent) serverEvent()           {}
func (TypingEvent) serverEvent()           {}
func (MessageDeliveredEvent) serverEvent() {}
func (MessageReadEvent) serverEvent()      {}
func (MessagesReadEvent) serverEvent()     {}
func (NotificationEvent) serverEvent()     {}
func (UserDeletedEvent) serverEvent()      {}

func NewMessage(m model.Message) MessageEvent {
	return MessageEvent{Type: TypeMessage, Message: m}
}

func NewStatus(userID int64, online bool, lastSeen *time.Time) StatusEvent {
	return StatusEvent{Type: TypeStatus, UserID: userID, IsOnline: online, LastSeen: lastSeen}
}

func NewTyping(userID int64, typing bool) TypingEvent {
	return TypingEvent{Type: TypeTyping, UserID: userID, IsTyping: typing}
}

func NewMessageDelivered(m model.Message) MessageDeliveredEvent {
	return MessageDeliveredEvent{Type: TypeMessageDelivered, MessageID: m.ID, DeliveredAt: m.DeliveredAt}
}

func NewMessageRead(m model.Message) MessageReadEvent {
	return MessageReadEvent{Type: TypeMessageRead, MessageID: m.ID, ReadAt: m.ReadAt}
}

func NewMessagesRead(recipientID, senderID, count int64) MessagesReadEvent {
	return MessagesReadEvent{Type: TypeMessagesRead, RecipientID: recipientID, SenderID: senderID, Count: count}
}

func NewNotification(senderID int64, preview string) NotificationEvent {
	return NotificationEvent{Type: TypeNotification, SenderID: senderID, Preview: preview}
}

func NewUserDeleted(userID int64) UserDeletedEvent {
	return UserDeletedEvent{Type: TypeUserDeleted, UserID: userID}
}

// DecodeServer parses a raw server→client frame. Used by the session channel.
func DecodeServer(raw []byte) (ServerEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var target ServerEvent
	switch env.Type {
	case TypeMessage:
		target = &MessageEvent{}
	case TypeStatus:
		target = &StatusEvent{}
	case TypeTyping:
		target = &TypingEvent{}
	case TypeMessageDelivered:
		target = &MessageDeliveredEvent{}
	case TypeMessageRead:
		target = &MessageReadEvent{}
	case TypeMessagesRead:
		target = &MessagesReadEvent{}
	case TypeNotification:
		target = &NotificationEvent{}
	case TypeUserDeleted:
		target = &UserDeletedEvent{}
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return target, nil
}
