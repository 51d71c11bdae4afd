// Package channel implements the client side of the transport: one
// connection with an auth handshake, fixed-delay reconnect, in-order event
// dispatch into local caches, locally debounced typing output, and a
// periodic poll as a consistency backstop for anything the socket missed.
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Unknownlegend09/Chathub/internal/event"
	"github.com/Unknownlegend09/Chathub/internal/model"
)

// State is the session channel's connection state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateActive
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateActive:
		return "active"
	default:
		return "unknown"
	}
}

const (
	defaultReconnectDelay = 3 * time.Second
	defaultTypingExpiry   = 3 * time.Second
	defaultTypingIdle     = 2 * time.Second
	defaultPollInterval   = 3 * time.Second

	writeWait = 10 * time.Second
)

// Fetcher re-fetches the active conversation from the HTTP API. It is the
// poll/refresh collaborator; message persistence itself is out of scope here.
type Fetcher interface {
	FetchConversation(ctx context.Context, peerID int64) ([]model.Message, error)
}

// Handlers receive dispatched updates. Nil handlers are skipped. All
// handlers are invoked from the channel's own goroutines.
type Handlers struct {
	// OnConversation delivers the refreshed active conversation.
	OnConversation func(msgs []model.Message)
	// OnNotification fires for an inbound direct message addressed to this
	// user and not self-sent.
	OnNotification func(senderID int64, preview string)
	// OnPresence fires on every status event.
	OnPresence func(userID int64, online bool, lastSeen *time.Time)
	// OnTyping fires when a peer's typing indicator changes, including the
	// local 3s expiry clearing a stale one.
	OnTyping func(userID int64, typing bool)
	// OnUserListStale fires when the cached user list should be re-fetched.
	OnUserListStale func()
}

// Config configures a session channel.
type Config struct {
	// URL is the socket endpoint, e.g. ws://localhost:8081/ws.
	URL string
	// UserID is the identity sent in the auth event. The transport trusts
	// it; the HTTP handshake authenticated the session already.
	UserID int64

	Fetcher  Fetcher
	Handlers Handlers
	Logger   *zap.Logger

	ReconnectDelay time.Duration
	TypingExpiry   time.Duration
	TypingIdle     time.Duration
	PollInterval   time.Duration

	Dialer *websocket.Dialer
}

func (c Config) withDefaults() Config {
	if c.ReconnectDelay <= 0 {
		c.ReconnectDelay = defaultReconnectDelay
	}
	if c.TypingExpiry <= 0 {
		c.TypingExpiry = defaultTypingExpiry
	}
	if c.TypingIdle <= 0 {
		c.TypingIdle = defaultTypingIdle
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	return c
}

// Channel is one client session: a single connection, reconnected
// indefinitely with a fixed delay while an identity is available, and torn
// down with all its timers on Close.
type Channel struct {
	cfg   Config
	state atomic.Int32

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	connMu sync.Mutex
	conn   *websocket.Conn

	// local caches, guarded by cacheMu
	cacheMu      sync.Mutex
	typingUsers  map[int64]bool
	typingTimers map[int64]*time.Timer
	onlineUsers  map[int64]bool
	conversation []model.Message

	activePeer atomic.Int64

	// outbound typing debounce, guarded by typingMu
	typingMu        sync.Mutex
	typingActive    bool
	typingRecipient int64
	typingIdle      *time.Timer
}

// New creates a session channel and starts connecting. Returns an error if
// no user identity is available.
func New(cfg Config) (*Channel, error) {
	if cfg.UserID <= 0 {
		return nil, fmt.Errorf("channel: user identity required")
	}

	ctx, cancel := context.WithCancel(context.Background())
	ch := &Channel{
		cfg:          cfg.withDefaults(),
		ctx:          ctx,
		cancel:       cancel,
		typingUsers:  make(map[int64]bool),
		typingTimers: make(map[int64]*time.Timer),
		onlineUsers:  make(map[int64]bool),
	}

	ch.wg.Add(2)
	go ch.run()
	go ch.poll()

	return ch, nil
}

// State returns the current connection state.
func (ch *Channel) State() State {
	return State(ch.state.Load())
}

func (ch *Channel) setState(s State) {
	ch.state.Store(int32(s))
}

// run is the connect/auth/read loop. Any close or error drops back to
// disconnected and retries after the fixed delay, indefinitely.
func (ch *Channel) run() {
	defer ch.wg.Done()

	for {
		if ch.ctx.Err() != nil {
			return
		}

		ch.setState(StateConnecting)
		conn, _, err := ch.cfg.Dialer.DialContext(ch.ctx, ch.cfg.URL, nil)
		if err != nil {
			ch.cfg.Logger.Debug("dial failed", zap.Error(err))
			ch.setState(StateDisconnected)
			if !ch.sleep(ch.cfg.ReconnectDelay) {
				return
			}
			continue
		}

		if !ch.installConn(conn) {
			return
		}

		ch.setState(StateAuthenticating)
		if err := ch.send(event.Auth{Type: event.TypeAuth, UserID: ch.cfg.UserID}); err != nil {
			ch.cfg.Logger.Debug("auth send failed", zap.Error(err))
			ch.dropConn()
			if !ch.sleep(ch.cfg.ReconnectDelay) {
				return
			}
			continue
		}

		ch.readLoop(conn)

		ch.dropConn()
		ch.setState(StateDisconnected)
		if !ch.sleep(ch.cfg.ReconnectDelay) {
			return
		}
	}
}

// readLoop processes inbound events strictly in arrival order. The first
// successfully processed event moves the session to active; no explicit
// auth ack exists.
func (ch *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			ch.cfg.Logger.Debug("read closed", zap.Error(err))
			return
		}

		ev, err := event.DecodeServer(raw)
		if err != nil {
			ch.cfg.Logger.Warn("discarding malformed event", zap.Error(err))
			continue
		}

		if ch.State() == StateAuthenticating {
			ch.setState(StateActive)
		}
		ch.dispatch(ev)
	}
}

// send marshals and writes one outbound event. Drops with an error when the
// connection is down; the periodic poll covers anything lost.
func (ch *Channel) send(v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}

	ch.connMu.Lock()
	defer ch.connMu.Unlock()

	if ch.conn == nil {
		return fmt.Errorf("channel: not connected")
	}
	ch.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return ch.conn.WriteMessage(websocket.TextMessage, payload)
}

// installConn adopts a freshly dialed connection. A Close racing the dial
// runs dropConn before the conn exists; re-checking under the lock keeps
// such a conn from being installed after teardown, where nothing would ever
// close it.
func (ch *Channel) installConn(conn *websocket.Conn) bool {
	ch.connMu.Lock()
	defer ch.connMu.Unlock()

	if ch.ctx.Err() != nil {
		_ = conn.Close()
		return false
	}
	ch.conn = conn
	return true
}

func (ch *Channel) dropConn() {
	ch.connMu.Lock()
	defer ch.connMu.Unlock()

	if ch.conn != nil {
		_ = ch.conn.Close()
		ch.conn = nil
	}
}

// sleep waits for the given duration, returning false if the channel was
// closed meanwhile.
func (ch *Channel) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ch.ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// poll re-fetches the active conversation on a fixed interval, independent
// of the socket. The duplication with push events is intentional.
func (ch *Channel) poll() {
	defer ch.wg.Done()

	ticker := time.NewTicker(ch.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ch.ctx.Done():
			return
		case <-ticker.C:
			ch.refreshConversation()
		}
	}
}

// SetActiveConversation selects the direct conversation the poll and cache
// refreshes follow. Zero clears it.
func (ch *Channel) SetActiveConversation(peerID int64) {
	ch.activePeer.Store(peerID)
	if peerID > 0 {
		ch.refreshConversation()
	}
}

func (ch *Channel) refreshConversation() {
	peerID := ch.activePeer.Load()
	if peerID <= 0 || ch.cfg.Fetcher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ch.ctx, 5*time.Second)
	defer cancel()

	msgs, err := ch.cfg.Fetcher.FetchConversation(ctx, peerID)
	if err != nil {
		ch.cfg.Logger.Debug("conversation refresh failed", zap.Error(err))
		return
	}

	ch.cacheMu.Lock()
	ch.conversation = msgs
	ch.cacheMu.Unlock()

	if ch.cfg.Handlers.OnConversation != nil {
		ch.cfg.Handlers.OnConversation(msgs)
	}
}

// Conversation returns the cached active conversation.
func (ch *Channel) Conversation() []model.Message {
	ch.cacheMu.Lock()
	defer ch.cacheMu.Unlock()

	out := make([]model.Message, len(ch.conversation))
	copy(out, ch.conversation)
	return out
}

// Close tears the session down: the connection is closed and every pending
// timer is cancelled. No timer fires after Close returns.
func (ch *Channel) Close() {
	ch.cancel()
	ch.dropConn()

	ch.cacheMu.Lock()
	for userID, t := range ch.typingTimers {
		t.Stop()
		delete(ch.typingTimers, userID)
	}
	ch.cacheMu.Unlock()

	ch.typingMu.Lock()
	if ch.typingIdle != nil {
		ch.typingIdle.Stop()
		ch.typingIdle = nil
	}
	ch.typingMu.Unlock()

	ch.wg.Wait()
	ch.setState(StateDisconnected)
}
