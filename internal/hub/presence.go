package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Unknownlegend09/Chathub/internal/event"
	"github.com/Unknownlegend09/Chathub/internal/repo"
)

// Broadcaster fans a server event out to a target set, or to everyone when
// no targets are given.
type Broadcaster interface {
	Broadcast(ev event.ServerEvent, targets ...int64)
}

// Presence drives the per-user online/offline state machine and the typing
// indicator. The offline transition always clears typing and stamps
// lastSeen. Each typing assertion arms a server-side expiry timer, refreshed
// on every repeat, so a lost stop event cannot leave the flag stuck — the
// client keeps its own 3s net on top of this one.
type Presence struct {
	users  repo.UserRepository
	router Broadcaster
	logger *zap.Logger
	ttl    time.Duration

	mu         sync.Mutex
	lastTarget map[int64]int64
	timers     map[int64]*time.Timer
	stopped    bool
}

func NewPresence(users repo.UserRepository, router Broadcaster, logger *zap.Logger, ttl time.Duration) *Presence {
	return &Presence{
		users:      users,
		router:     router,
		logger:     logger,
		ttl:        ttl,
		lastTarget: make(map[int64]int64),
		timers:     make(map[int64]*time.Timer),
	}
}

// Connect marks a user online and announces it to everyone. The broadcast
// happens only after the store write succeeded.
func (p *Presence) Connect(ctx context.Context, userID int64) error {
	if err := p.users.SetOnline(ctx, userID, true); err != nil {
		return fmt.Errorf("persist online: %w", err)
	}

	p.router.Broadcast(event.NewStatus(userID, true, nil))
	p.logger.Info("user online", zap.Int64("user_id", userID))
	return nil
}

// Disconnect marks a user offline, clearing any typing state, and announces
// the transition with the lastSeen stamp.
func (p *Presence) Disconnect(ctx context.Context, userID int64) error {
	p.clearTyping(userID)

	if err := p.users.SetOnline(ctx, userID, false); err != nil {
		return fmt.Errorf("persist offline: %w", err)
	}

	lastSeen := time.Now().UTC()
	p.router.Broadcast(event.NewStatus(userID, false, &lastSeen))
	p.logger.Info("user offline", zap.Int64("user_id", userID))
	return nil
}

// SetTyping persists the typing flag and routes the indicator. A start event
// names its target; a stop event may omit it, in which case the last known
// target receives the stop. Each start arms or refreshes the expiry timer.
func (p *Presence) SetTyping(ctx context.Context, userID int64, isTyping bool, recipientID *int64) error {
	if err := p.users.SetTyping(ctx, userID, isTyping, recipientID); err != nil {
		return fmt.Errorf("persist typing: %w", err)
	}

	if isTyping {
		if recipientID == nil {
			// Flag persisted, but with nobody to route it to there is no
			// indicator to deliver.
			return nil
		}
		p.retainTarget(userID, *recipientID)
		p.armExpiry(userID)
		p.router.Broadcast(event.NewTyping(userID, true), *recipientID)
		return nil
	}

	target, ok := p.takeTarget(userID, recipientID)
	if !ok {
		return nil
	}
	p.router.Broadcast(event.NewTyping(userID, false), target)
	return nil
}

func (p *Presence) retainTarget(userID, target int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastTarget[userID] = target
}

// takeTarget resolves where a stop indicator goes, preferring an explicit
// recipient, and releases the retained target and timer.
func (p *Presence) takeTarget(userID int64, recipientID *int64) (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.timers[userID]; ok {
		t.Stop()
		delete(p.timers, userID)
	}

	retained, had := p.lastTarget[userID]
	delete(p.lastTarget, userID)

	if recipientID != nil {
		return *recipientID, true
	}
	return retained, had
}

func (p *Presence) armExpiry(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return
	}
	if t, ok := p.timers[userID]; ok {
		t.Reset(p.ttl)
		return
	}
	p.timers[userID] = time.AfterFunc(p.ttl, func() {
		p.expire(userID)
	})
}

// expire clears a typing assertion whose stop event never arrived.
func (p *Presence) expire(userID int64) {
	p.mu.Lock()
	delete(p.timers, userID)
	target, had := p.lastTarget[userID]
	delete(p.lastTarget, userID)
	p.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	if err := p.users.SetTyping(ctx, userID, false, nil); err != nil {
		p.logger.Error("typing expiry persist failed", zap.Int64("user_id", userID), zap.Error(err))
		return
	}

	if had {
		p.router.Broadcast(event.NewTyping(userID, false), target)
	}
	p.logger.Debug("typing indicator expired", zap.Int64("user_id", userID))
}

func (p *Presence) clearTyping(userID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if t, ok := p.timers[userID]; ok {
		t.Stop()
		delete(p.timers, userID)
	}
	delete(p.lastTarget, userID)
}

// Stop cancels every pending expiry timer.
func (p *Presence) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopped = true
	for userID, t := range p.timers {
		t.Stop()
		delete(p.timers, userID)
	}
}
