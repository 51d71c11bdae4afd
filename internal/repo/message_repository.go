// Package repo implements the persistence contracts this subsystem relies
// on: the message delivery-state store and the user presence store. The
// state transition rules live here — read always implies delivered, and the
// marks are idempotent read-then-write updates.
package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/Unknownlegend09/Chathub/internal/db"
	"github.com/Unknownlegend09/Chathub/internal/model"
)

var (
	ErrMessageNotFound = errors.New("message not found")
	ErrInvalidMessage  = errors.New("invalid message: exactly one of receiver/group must be set and content must be non-empty")
)

const (
	defaultWriteTimeout = 5 * time.Second
	defaultReadTimeout  = 10 * time.Second

	messageSequence = "messages"
)

// MessageRepository is the delivery state store for messages.
type MessageRepository interface {
	// Create persists a new message with delivered=false, read=false,
	// assigning the numeric ID and creation time.
	Create(ctx context.Context, msg *model.Message) (*model.Message, error)

	// ListBetween returns the direct conversation between two users in
	// creation order.
	ListBetween(ctx context.Context, userA, userB int64) ([]model.Message, error)

	// ListForUser returns every direct message sent or received by a user,
	// used to build sidebar metadata.
	ListForUser(ctx context.Context, userID int64) ([]model.Message, error)

	// ListGroup returns a group's messages in creation order.
	ListGroup(ctx context.Context, groupID int64) ([]model.Message, error)

	// MarkDelivered sets delivered=true and stamps deliveredAt. Idempotent;
	// re-marking refreshes the timestamp. ErrMessageNotFound when absent.
	MarkDelivered(ctx context.Context, messageID int64) (*model.Message, error)

	// MarkRead sets read=true and, because read implies delivered, also
	// delivered=true. ErrMessageNotFound when absent.
	MarkRead(ctx context.Context, messageID int64) (*model.Message, error)

	// MarkAllRead bulk-marks every unread message from sender to recipient
	// as read+delivered and returns the number updated.
	MarkAllRead(ctx context.Context, recipientID, senderID int64) (int64, error)
}

type messageRepository struct {
	messages *db.Repository[model.Message]
	counters *db.Counters
	logger   *zap.Logger
}

func NewMessageRepository(messages *db.Repository[model.Message], counters *db.Counters, logger *zap.Logger) MessageRepository {
	return &messageRepository{
		messages: messages,
		counters: counters,
		logger:   logger,
	}
}

func (m *messageRepository) Create(ctx context.Context, msg *model.Message) (*model.Message, error) {
	if err := validateMessage(msg); err != nil {
		return nil, err
	}

	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	id, err := m.counters.Next(ctx, messageSequence)
	if err != nil {
		return nil, fmt.Errorf("assign message id: %w", err)
	}

	stored := *msg
	stored.ID = id
	stored.CreatedAt = time.Now().UTC()
	stored.Delivered = false
	stored.DeliveredAt = nil
	stored.Read = false
	stored.ReadAt = nil

	if _, err := m.messages.Create(ctx, stored); err != nil {
		m.logger.Error("failed to insert message",
			zap.Error(err),
			zap.Int64("sender_id", stored.SenderID),
		)
		return nil, fmt.Errorf("insert message: %w", err)
	}

	m.logger.Info("message inserted",
		zap.Int64("message_id", stored.ID),
		zap.Int64("sender_id", stored.SenderID),
	)
	return &stored, nil
}

func (m *messageRepository) ListBetween(ctx context.Context, userA, userB int64) ([]model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Or(
		db.NewFilter().Eq("sender_id", userA).Eq("receiver_id", userB).Build(),
		db.NewFilter().Eq("sender_id", userB).Eq("receiver_id", userA).Build(),
	).Build()

	return m.messages.FindAll(ctx, filter, "created_at")
}

func (m *messageRepository) ListForUser(ctx context.Context, userID int64) ([]model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Or(
		db.NewFilter().Eq("sender_id", userID).Build(),
		db.NewFilter().Eq("receiver_id", userID).Build(),
	).Build()

	return m.messages.FindAll(ctx, filter, "created_at")
}

func (m *messageRepository) ListGroup(ctx context.Context, groupID int64) ([]model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("group_id", groupID).Build()
	return m.messages.FindAll(ctx, filter, "created_at")
}

func (m *messageRepository) MarkDelivered(ctx context.Context, messageID int64) (*model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	updated, err := m.messages.FindOneAndUpdate(ctx,
		db.NewFilter().Eq("id", messageID).Build(),
		bson.M{"is_delivered": true, "delivered_at": now},
	)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("mark delivered: %w", err)
	}
	return updated, nil
}

func (m *messageRepository) MarkRead(ctx context.Context, messageID int64) (*model.Message, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	now := time.Now().UTC()
	updated, err := m.messages.FindOneAndUpdate(ctx,
		db.NewFilter().Eq("id", messageID).Build(),
		bson.M{
			"is_read":      true,
			"read_at":      now,
			"is_delivered": true,
			"delivered_at": now,
		},
	)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("mark read: %w", err)
	}
	return updated, nil
}

func (m *messageRepository) MarkAllRead(ctx context.Context, recipientID, senderID int64) (int64, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	filter := db.NewFilter().
		Eq("sender_id", senderID).
		Eq("receiver_id", recipientID).
		Eq("is_read", false).
		Build()

	result, err := m.messages.UpdateMany(ctx, filter, bson.M{
		"is_read":      true,
		"read_at":      time.Now().UTC(),
		"is_delivered": true,
	})
	if err != nil {
		return 0, fmt.Errorf("mark all read: %w", err)
	}

	m.logger.Debug("marked conversation read",
		zap.Int64("recipient_id", recipientID),
		zap.Int64("sender_id", senderID),
		zap.Int64("count", result.ModifiedCount),
	)
	return result.ModifiedCount, nil
}

func validateMessage(msg *model.Message) error {
	if msg == nil || msg.Content == "" {
		return ErrInvalidMessage
	}
	if (msg.ReceiverID == nil) == (msg.GroupID == nil) {
		return ErrInvalidMessage
	}
	return nil
}

func ensureTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if _, hadDeadline := ctx.Deadline(); hadDeadline {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
