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

var ErrUserNotFound = errors.New("user not found")

// UserRepository is the presence store. Credential fields are owned by the
// auth collaborator; this repository only touches the presence projection.
type UserRepository interface {
	Get(ctx context.Context, userID int64) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)

	// SetOnline persists the online flag. The offline transition also stamps
	// lastSeen and clears the typing state, so a disconnect can never leave
	// a stuck indicator behind.
	SetOnline(ctx context.Context, userID int64, online bool) error

	// SetTyping persists the typing flag. The target is only retained while
	// typing is true.
	SetTyping(ctx context.Context, userID int64, typing bool, target *int64) error

	// Delete removes a user record. Returns false when absent.
	Delete(ctx context.Context, userID int64) (bool, error)
}

type userRepository struct {
	users  *db.Repository[model.User]
	logger *zap.Logger
}

func NewUserRepository(users *db.Repository[model.User], logger *zap.Logger) UserRepository {
	return &userRepository{
		users:  users,
		logger: logger,
	}
}

func (r *userRepository) Get(ctx context.Context, userID int64) (*model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	user, err := r.users.FindOne(ctx, db.NewFilter().Eq("id", userID).Build())
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

func (r *userRepository) List(ctx context.Context) ([]model.User, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	return r.users.FindAll(ctx, db.Empty(), "id")
}

func (r *userRepository) SetOnline(ctx context.Context, userID int64, online bool) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	set := bson.M{"is_online": online}
	if !online {
		set["last_seen"] = time.Now().UTC()
		set["is_typing"] = false
		set["typing_to"] = nil
	}

	if _, err := r.users.UpdateOne(ctx, db.NewFilter().Eq("id", userID).Build(), set); err != nil {
		r.logger.Error("failed to update online status",
			zap.Error(err),
			zap.Int64("user_id", userID),
			zap.Bool("online", online),
		)
		return fmt.Errorf("set online: %w", err)
	}
	return nil
}

func (r *userRepository) SetTyping(ctx context.Context, userID int64, typing bool, target *int64) error {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	set := bson.M{"is_typing": typing}
	if typing && target != nil {
		set["typing_to"] = *target
	} else {
		set["typing_to"] = nil
	}

	if _, err := r.users.UpdateOne(ctx, db.NewFilter().Eq("id", userID).Build(), set); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	return nil
}

func (r *userRepository) Delete(ctx context.Context, userID int64) (bool, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	result, err := r.users.DeleteOne(ctx, db.NewFilter().Eq("id", userID).Build())
	if err != nil {
		return false, fmt.Errorf("delete user: %w", err)
	}
	return result.DeletedCount > 0, nil
}
