package hub

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Unknownlegend09/Chathub/internal/event"
	"github.com/Unknownlegend09/Chathub/internal/model"
	"github.com/Unknownlegend09/Chathub/internal/repo"
)

// notification previews carry at most this many characters of content.
const previewLimit = 50

// Lifecycle translates client actions into delivery-state transitions and
// targeted broadcasts. Every operation persists first and broadcasts only on
// success.
type Lifecycle struct {
	messages repo.MessageRepository
	router   Broadcaster
	logger   *zap.Logger
}

func NewLifecycle(messages repo.MessageRepository, router Broadcaster, logger *zap.Logger) *Lifecycle {
	return &Lifecycle{
		messages: messages,
		router:   router,
		logger:   logger,
	}
}

// Send persists a new message and fans it out. Direct messages go to the
// sender and receiver, plus a preview notification to the receiver only.
// Group messages go to every live connection; membership does not filter the
// fan-out and no notification is emitted for them.
func (l *Lifecycle) Send(ctx context.Context, senderID int64, content string, receiverID, groupID *int64) (*model.Message, error) {
	msg := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		GroupID:    groupID,
		Content:    content,
	}

	stored, err := l.messages.Create(ctx, msg)
	if err != nil {
		return nil, fmt.Errorf("send: %w", err)
	}

	if stored.Direct() {
		l.router.Broadcast(event.NewMessage(*stored), stored.SenderID, *stored.ReceiverID)
		l.router.Broadcast(event.NewNotification(stored.SenderID, preview(stored.Content)), *stored.ReceiverID)
	} else {
		l.router.Broadcast(event.NewMessage(*stored))
	}

	l.logger.Debug("message sent",
		zap.Int64("message_id", stored.ID),
		zap.Int64("sender_id", stored.SenderID),
	)
	return stored, nil
}

// MarkDelivered advances a message to delivered and tells the sender.
func (l *Lifecycle) MarkDelivered(ctx context.Context, messageID int64) (*model.Message, error) {
	msg, err := l.messages.MarkDelivered(ctx, messageID)
	if err != nil {
		return nil, err
	}

	l.router.Broadcast(event.NewMessageDelivered(*msg), msg.SenderID)
	return msg, nil
}

// MarkRead advances a message to read (and therefore delivered) and tells
// the sender.
func (l *Lifecycle) MarkRead(ctx context.Context, messageID int64) (*model.Message, error) {
	msg, err := l.messages.MarkRead(ctx, messageID)
	if err != nil {
		return nil, err
	}

	l.router.Broadcast(event.NewMessageRead(*msg), msg.SenderID)
	return msg, nil
}

// MarkAllRead bulk-marks a conversation read and reports the count to the
// sender.
func (l *Lifecycle) MarkAllRead(ctx context.Context, recipientID, senderID int64) (int64, error) {
	count, err := l.messages.MarkAllRead(ctx, recipientID, senderID)
	if err != nil {
		return 0, err
	}

	l.router.Broadcast(event.NewMessagesRead(recipientID, senderID, count), senderID)
	return count, nil
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewLimit {
		return content
	}
	return string(runes[:previewLimit])
}
