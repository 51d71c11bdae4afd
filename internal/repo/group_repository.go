package repo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Unknownlegend09/Chathub/internal/db"
	"github.com/Unknownlegend09/Chathub/internal/model"
)

const groupSequence = "groups"

// GroupRepository stores group channels and their membership. Membership is
// served to the sidebar; the broadcast path does not consult it.
type GroupRepository interface {
	Create(ctx context.Context, name string, createdBy int64, memberIDs []int64) (*model.Group, error)
	ListForUser(ctx context.Context, userID int64) ([]model.Group, error)
}

type groupRepository struct {
	groups   *db.Repository[model.Group]
	counters *db.Counters
	logger   *zap.Logger
}

func NewGroupRepository(groups *db.Repository[model.Group], counters *db.Counters, logger *zap.Logger) GroupRepository {
	return &groupRepository{
		groups:   groups,
		counters: counters,
		logger:   logger,
	}
}

func (r *groupRepository) Create(ctx context.Context, name string, createdBy int64, memberIDs []int64) (*model.Group, error) {
	ctx, cancel := ensureTimeout(ctx, defaultWriteTimeout)
	defer cancel()

	id, err := r.counters.Next(ctx, groupSequence)
	if err != nil {
		return nil, fmt.Errorf("assign group id: %w", err)
	}

	// The creator is always a member, listed once.
	members := []int64{createdBy}
	for _, m := range memberIDs {
		if m != createdBy {
			members = append(members, m)
		}
	}

	group := model.Group{
		ID:        id,
		Name:      name,
		CreatedBy: createdBy,
		Members:   members,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := r.groups.Create(ctx, group); err != nil {
		r.logger.Error("failed to create group", zap.Error(err), zap.String("name", name))
		return nil, fmt.Errorf("create group: %w", err)
	}
	return &group, nil
}

func (r *groupRepository) ListForUser(ctx context.Context, userID int64) ([]model.Group, error) {
	ctx, cancel := ensureTimeout(ctx, defaultReadTimeout)
	defer cancel()

	filter := db.NewFilter().Eq("members", userID).Build()
	return r.groups.FindAll(ctx, filter, "id")
}
