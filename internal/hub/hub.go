// Package hub is the real-time core: the connection registry, the broadcast
// router, and the coordinators that translate client actions into store
// writes and targeted fan-out. State changes are broadcast only after they
// persisted; a failed store write aborts the operation silently for everyone
// but the caller.
package hub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Unknownlegend09/Chathub/internal/event"
	"github.com/Unknownlegend09/Chathub/internal/repo"
)

const (
	defaultWorkers     = 16
	defaultSendBuffer  = 256
	defaultTypingTTL   = 5 * time.Second
	defaultInboundRate = rate.Limit(50)
	defaultBurst       = 100

	handleTimeout = 10 * time.Second
)

// Options tunes the hub. Zero values fall back to defaults.
type Options struct {
	Workers        int
	SendBuffer     int
	TypingTTL      time.Duration
	InboundRate    rate.Limit
	InboundBurst   int
	AllowedOrigins []string
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = defaultWorkers
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	if o.TypingTTL <= 0 {
		o.TypingTTL = defaultTypingTTL
	}
	if o.InboundRate <= 0 {
		o.InboundRate = defaultInboundRate
	}
	if o.InboundBurst <= 0 {
		o.InboundBurst = defaultBurst
	}
	return o
}

type inboundMessage struct {
	client *Client
	raw    []byte
}

// Hub owns the registry and fans events out to live connections. Inbound
// events are processed by a worker pool so one slow store call does not
// stall every connection's reader.
type Hub struct {
	Lifecycle *Lifecycle
	Presence  *Presence

	registry *Registry
	inbound  chan inboundMessage
	logger   *zap.Logger
	metrics  *Metrics
	opts     Options
	upgrader websocket.Upgrader

	// every live connection, bound to an identity or not; the registry only
	// holds the authenticated ones
	connsMu sync.Mutex
	conns   map[*Client]struct{}

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New wires a hub with its coordinators.
func New(messages repo.MessageRepository, users repo.UserRepository, logger *zap.Logger, metrics *Metrics, opts Options) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	opts = opts.withDefaults()

	h := &Hub{
		registry: NewRegistry(),
		inbound:  make(chan inboundMessage, 4096),
		logger:   logger,
		metrics:  metrics,
		opts:     opts,
		conns:    make(map[*Client]struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}

	h.Lifecycle = NewLifecycle(messages, h, logger)
	h.Presence = NewPresence(users, h, logger, opts.TypingTTL)

	for i := 0; i < opts.Workers; i++ {
		h.wg.Add(1)
		go func() {
			defer h.wg.Done()
			for {
				select {
				case <-h.ctx.Done():
					return
				case in := <-h.inbound:
					h.handleEvent(in.client, in.raw)
				}
			}
		}()
	}

	return h
}

// Registry exposes the connection registry for the monitor view.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Broadcast serializes the event once and delivers it to the given targets,
// or to every live connection when no targets are given. Absent identities
// are skipped; a full egress buffer drops the frame rather than blocking
// delivery to other targets.
func (h *Hub) Broadcast(ev event.ServerEvent, targets ...int64) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("failed to marshal event", zap.Error(err))
		return
	}

	var clients []*Client
	if len(targets) == 0 {
		clients = h.registry.All()
	} else {
		clients = make([]*Client, 0, len(targets))
		for _, userID := range targets {
			if c, ok := h.registry.Lookup(userID); ok {
				clients = append(clients, c)
			}
		}
	}

	for _, c := range clients {
		if c.trySend(payload) {
			h.metrics.BroadcastsSent.Inc()
		} else {
			h.metrics.BroadcastsDropped.Inc()
			h.logger.Warn("egress full or closed, dropping frame",
				zap.String("connection_id", c.ID),
				zap.Int64("user_id", c.UserID()),
			)
		}
	}
}

func (h *Hub) handleEvent(c *Client, raw []byte) {
	h.metrics.EventsIn.Inc()

	ev, err := event.DecodeClient(raw)
	if err != nil {
		// A malformed event is discarded; the connection stays up.
		h.metrics.MalformedEvents.Inc()
		h.logger.Warn("discarding malformed event",
			zap.String("connection_id", c.ID),
			zap.Error(err),
		)
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, handleTimeout)
	defer cancel()

	switch e := ev.(type) {
	case event.Auth:
		h.authenticate(ctx, c, e.UserID)
	case event.Typing:
		if err := h.requireAuth(c); err != nil {
			return
		}
		if err := h.Presence.SetTyping(ctx, c.UserID(), e.IsTyping, e.RecipientID); err != nil {
			h.logger.Error("set typing failed", zap.Int64("user_id", c.UserID()), zap.Error(err))
		}
	case event.MarkDelivered:
		if err := h.requireAuth(c); err != nil {
			return
		}
		if _, err := h.Lifecycle.MarkDelivered(ctx, e.MessageID); err != nil {
			h.logEventError(c, "mark_delivered", e.MessageID, err)
		}
	case event.MarkRead:
		if err := h.requireAuth(c); err != nil {
			return
		}
		if _, err := h.Lifecycle.MarkRead(ctx, e.MessageID); err != nil {
			h.logEventError(c, "mark_read", e.MessageID, err)
		}
	}
}

func (h *Hub) authenticate(ctx context.Context, c *Client, userID int64) {
	c.bindUser(userID)

	if prev := h.registry.Register(userID, c); prev != nil {
		h.logger.Info("replacing connection for user",
			zap.Int64("user_id", userID),
			zap.String("old_connection_id", prev.ID),
			zap.String("new_connection_id", c.ID),
		)
		prev.Close()
	}
	h.metrics.ConnectedClients.Set(float64(h.registry.Len()))

	if err := h.Presence.Connect(ctx, userID); err != nil {
		h.logger.Error("presence connect failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (h *Hub) requireAuth(c *Client) error {
	if c.UserID() == 0 {
		h.logger.Warn("rejecting event from unauthenticated connection",
			zap.String("connection_id", c.ID),
		)
		return ErrUnauthenticated
	}
	return nil
}

func (h *Hub) logEventError(c *Client, op string, messageID int64, err error) {
	if errors.Is(err, repo.ErrMessageNotFound) {
		h.logger.Warn("no such message",
			zap.String("op", op),
			zap.Int64("message_id", messageID),
			zap.Int64("user_id", c.UserID()),
		)
		return
	}
	h.logger.Error("event handling failed",
		zap.String("op", op),
		zap.Int64("message_id", messageID),
		zap.Error(err),
	)
}

// dropClient runs when a connection's read pump exits for any reason; an
// abnormal close is coerced into the same path as a clean one.
func (h *Hub) dropClient(c *Client) {
	h.connsMu.Lock()
	delete(h.conns, c)
	h.connsMu.Unlock()

	userID := c.UserID()
	if userID == 0 {
		return
	}
	if !h.registry.Unregister(userID, c) {
		// A newer connection took over this identity; nothing to announce.
		return
	}
	h.metrics.ConnectedClients.Set(float64(h.registry.Len()))

	ctx, cancel := context.WithTimeout(context.Background(), handleTimeout)
	defer cancel()
	if err := h.Presence.Disconnect(ctx, userID); err != nil {
		h.logger.Error("presence disconnect failed", zap.Int64("user_id", userID), zap.Error(err))
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if len(h.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range h.opts.AllowedOrigins {
		if origin == allowed {
			return true
		}
	}
	return false
}

// ServeWS upgrades an HTTP request and starts the connection's pumps. The
// identity arrives afterwards in the auth event.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	if h.ctx.Err() != nil {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := newClient(conn, h)

	h.connsMu.Lock()
	h.conns[c] = struct{}{}
	h.connsMu.Unlock()

	go c.readMessages()
	go c.writeMessages()
}

// Stop closes every live connection, authenticated or not, and stops the
// worker pool. The inbound channel stays open so a read pump racing the
// shutdown parks its frame in the buffer instead of panicking; the workers
// exit on ctx cancellation.
func (h *Hub) Stop() {
	h.cancel()

	h.connsMu.Lock()
	clients := make([]*Client, 0, len(h.conns))
	for c := range h.conns {
		clients = append(clients, c)
	}
	h.connsMu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	h.Presence.Stop()

	h.wg.Wait()
}
