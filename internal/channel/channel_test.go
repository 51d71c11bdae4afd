package channel

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Unknownlegend09/Chathub/internal/event"
	"github.com/Unknownlegend09/Chathub/internal/model"
)

// testServer accepts socket connections, records every inbound client event,
// and can push server events down the most recent connection.
type testServer struct {
	t        *testing.T
	srv      *httptest.Server
	upgrader websocket.Upgrader

	mu    sync.Mutex
	conns []*websocket.Conn

	inbound chan event.ClientEvent
	dials   atomic.Int32
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	ts := &testServer{
		t:       t,
		inbound: make(chan event.ClientEvent, 64),
	}
	ts.srv = httptest.NewServer(http.HandlerFunc(ts.handle))
	t.Cleanup(ts.close)
	return ts
}

func (ts *testServer) handle(w http.ResponseWriter, r *http.Request) {
	conn, err := ts.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	ts.dials.Add(1)

	ts.mu.Lock()
	ts.conns = append(ts.conns, conn)
	ts.mu.Unlock()

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		ev, err := event.DecodeClient(raw)
		if err != nil {
			continue
		}
		ts.inbound <- ev
	}
}

func (ts *testServer) url() string {
	return "ws" + strings.TrimPrefix(ts.srv.URL, "http")
}

// push writes a server event to the most recent connection.
func (ts *testServer) push(ev event.ServerEvent) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	require.NotEmpty(ts.t, ts.conns, "no connection to push to")
	conn := ts.conns[len(ts.conns)-1]

	payload, err := json.Marshal(ev)
	require.NoError(ts.t, err)
	require.NoError(ts.t, conn.WriteMessage(websocket.TextMessage, payload))
}

// dropConns closes every accepted connection, forcing the client to redial.
func (ts *testServer) dropConns() {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	for _, conn := range ts.conns {
		_ = conn.Close()
	}
	ts.conns = nil
}

func (ts *testServer) close() {
	ts.dropConns()
	ts.srv.Close()
}

func (ts *testServer) nextEvent(timeout time.Duration) (event.ClientEvent, bool) {
	select {
	case ev := <-ts.inbound:
		return ev, true
	case <-time.After(timeout):
		return nil, false
	}
}

func (ts *testServer) requireEvent(timeout time.Duration) event.ClientEvent {
	ts.t.Helper()
	ev, ok := ts.nextEvent(timeout)
	require.True(ts.t, ok, "timed out waiting for a client event")
	return ev
}

func newTestChannel(t *testing.T, ts *testServer, cfg Config) *Channel {
	t.Helper()

	cfg.URL = ts.url()
	if cfg.UserID == 0 {
		cfg.UserID = 1
	}
	if cfg.ReconnectDelay == 0 {
		cfg.ReconnectDelay = 30 * time.Millisecond
	}
	if cfg.TypingExpiry == 0 {
		cfg.TypingExpiry = 60 * time.Millisecond
	}
	if cfg.TypingIdle == 0 {
		cfg.TypingIdle = 40 * time.Millisecond
	}
	if cfg.PollInterval == 0 {
		// Keep the poll out of the way unless a test wants it.
		cfg.PollInterval = time.Hour
	}

	ch, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(ch.Close)
	return ch
}

func awaitAuth(t *testing.T, ts *testServer, userID int64) {
	t.Helper()

	ev := ts.requireEvent(2 * time.Second)
	auth, ok := ev.(event.Auth)
	require.True(t, ok, "first event must be auth, got %T", ev)
	assert.Equal(t, userID, auth.UserID)
}

func TestChannelRequiresIdentity(t *testing.T) {
	_, err := New(Config{URL: "ws://localhost:0/ws"})
	require.Error(t, err)
}

func TestChannelAuthenticatesOnConnect(t *testing.T) {
	ts := newTestServer(t)
	ch := newTestChannel(t, ts, Config{UserID: 7})

	awaitAuth(t, ts, 7)
	assert.NotEqual(t, StateDisconnected, ch.State())
}

func TestChannelReconnectsAfterDrop(t *testing.T) {
	ts := newTestServer(t)
	newTestChannel(t, ts, Config{UserID: 7})

	awaitAuth(t, ts, 7)
	ts.dropConns()

	// The fixed-delay retry loop redials and re-authenticates.
	awaitAuth(t, ts, 7)
	assert.GreaterOrEqual(t, ts.dials.Load(), int32(2))
}

func TestInboundMessageNotifiesAndAcks(t *testing.T) {
	ts := newTestServer(t)

	var notifyMu sync.Mutex
	var notified []int64
	ch := newTestChannel(t, ts, Config{
		UserID: 2,
		Handlers: Handlers{
			OnNotification: func(senderID int64, _ string) {
				notifyMu.Lock()
				notified = append(notified, senderID)
				notifyMu.Unlock()
			},
		},
	})
	awaitAuth(t, ts, 2)

	receiver := int64(2)
	ts.push(event.NewMessage(model.Message{ID: 11, SenderID: 1, ReceiverID: &receiver, Content: "hi"}))

	ev := ts.requireEvent(2 * time.Second)
	ack, ok := ev.(event.MarkDelivered)
	require.True(t, ok, "expected mark_delivered, got %T", ev)
	assert.Equal(t, int64(11), ack.MessageID)

	notifyMu.Lock()
	assert.Equal(t, []int64{1}, notified)
	notifyMu.Unlock()
	assert.Equal(t, StateActive, ch.State())
}

func TestOwnMessageNotAcked(t *testing.T) {
	ts := newTestServer(t)
	ch := newTestChannel(t, ts, Config{UserID: 1})
	awaitAuth(t, ts, 1)

	receiver := int64(2)
	ts.push(event.NewMessage(model.Message{ID: 11, SenderID: 1, ReceiverID: &receiver, Content: "hi"}))

	_, got := ts.nextEvent(150 * time.Millisecond)
	assert.False(t, got, "sender must not acknowledge its own message")
	assert.Equal(t, StateActive, ch.State())
}

func TestPeerTypingExpiresLocally(t *testing.T) {
	ts := newTestServer(t)

	var typingMu sync.Mutex
	var transitions []bool
	ch := newTestChannel(t, ts, Config{
		UserID:       2,
		TypingExpiry: 50 * time.Millisecond,
		Handlers: Handlers{
			OnTyping: func(_ int64, typing bool) {
				typingMu.Lock()
				transitions = append(transitions, typing)
				typingMu.Unlock()
			},
		},
	})
	awaitAuth(t, ts, 2)

	ts.push(event.NewTyping(1, true))

	require.Eventually(t, func() bool {
		return ch.IsTyping(1)
	}, time.Second, 5*time.Millisecond)

	// No stop event arrives; the local expiry clears the flag.
	require.Eventually(t, func() bool {
		return !ch.IsTyping(1)
	}, time.Second, 5*time.Millisecond)

	typingMu.Lock()
	assert.Equal(t, []bool{true, false}, transitions)
	typingMu.Unlock()
}

func TestPeerTypingStopCancelsExpiry(t *testing.T) {
	ts := newTestServer(t)
	ch := newTestChannel(t, ts, Config{UserID: 2, TypingExpiry: time.Hour})
	awaitAuth(t, ts, 2)

	ts.push(event.NewTyping(1, true))
	require.Eventually(t, func() bool {
		return ch.IsTyping(1)
	}, time.Second, 5*time.Millisecond)

	ts.push(event.NewTyping(1, false))
	require.Eventually(t, func() bool {
		return !ch.IsTyping(1)
	}, time.Second, 5*time.Millisecond)
}

func TestPresenceCacheFollowsStatusEvents(t *testing.T) {
	ts := newTestServer(t)

	staleCh := make(chan struct{}, 8)
	ch := newTestChannel(t, ts, Config{
		UserID: 2,
		Handlers: Handlers{
			OnUserListStale: func() {
				staleCh <- struct{}{}
			},
		},
	})
	awaitAuth(t, ts, 2)

	ts.push(event.NewStatus(1, true, nil))
	require.Eventually(t, func() bool {
		return ch.IsOnline(1)
	}, time.Second, 5*time.Millisecond)

	lastSeen := time.Now().UTC()
	ts.push(event.NewStatus(1, false, &lastSeen))
	require.Eventually(t, func() bool {
		return !ch.IsOnline(1)
	}, time.Second, 5*time.Millisecond)

	select {
	case <-staleCh:
	case <-time.After(time.Second):
		t.Fatal("expected a user list invalidation")
	}
}

func TestUserDeletedDropsCachedState(t *testing.T) {
	ts := newTestServer(t)
	ch := newTestChannel(t, ts, Config{UserID: 2, TypingExpiry: time.Hour})
	awaitAuth(t, ts, 2)

	ts.push(event.NewStatus(1, true, nil))
	ts.push(event.NewTyping(1, true))
	require.Eventually(t, func() bool {
		return ch.IsOnline(1) && ch.IsTyping(1)
	}, time.Second, 5*time.Millisecond)

	ts.push(event.NewUserDeleted(1))
	require.Eventually(t, func() bool {
		return !ch.IsOnline(1) && !ch.IsTyping(1)
	}, time.Second, 5*time.Millisecond)
}

type fakeFetcher struct {
	mu    sync.Mutex
	msgs  []model.Message
	peers []int64
}

func (f *fakeFetcher) FetchConversation(_ context.Context, peerID int64) ([]model.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.peers = append(f.peers, peerID)
	out := make([]model.Message, len(f.msgs))
	copy(out, f.msgs)
	return out, nil
}

func TestActiveConversationRefresh(t *testing.T) {
	ts := newTestServer(t)

	receiver := int64(2)
	fetcher := &fakeFetcher{msgs: []model.Message{
		{ID: 1, SenderID: 1, ReceiverID: &receiver, Content: "hello"},
	}}

	refreshed := make(chan []model.Message, 8)
	ch := newTestChannel(t, ts, Config{
		UserID:  2,
		Fetcher: fetcher,
		Handlers: Handlers{
			OnConversation: func(msgs []model.Message) {
				refreshed <- msgs
			},
		},
	})
	awaitAuth(t, ts, 2)

	ch.SetActiveConversation(1)

	select {
	case msgs := <-refreshed:
		require.Len(t, msgs, 1)
		assert.Equal(t, "hello", msgs[0].Content)
	case <-time.After(time.Second):
		t.Fatal("expected a conversation refresh")
	}

	cached := ch.Conversation()
	require.Len(t, cached, 1)
	assert.Equal(t, int64(1), cached[0].ID)
}

func TestReadReceiptTriggersRefresh(t *testing.T) {
	ts := newTestServer(t)

	fetcher := &fakeFetcher{}
	refreshed := make(chan []model.Message, 8)
	ch := newTestChannel(t, ts, Config{
		UserID:  1,
		Fetcher: fetcher,
		Handlers: Handlers{
			OnConversation: func(msgs []model.Message) {
				refreshed <- msgs
			},
		},
	})
	awaitAuth(t, ts, 1)

	ch.SetActiveConversation(2)
	<-refreshed

	ts.push(event.NewMessageRead(model.Message{ID: 4, SenderID: 1}))

	select {
	case <-refreshed:
	case <-time.After(time.Second):
		t.Fatal("expected a refresh after the read receipt")
	}
}

func TestCloseRacingDialDiscardsConn(t *testing.T) {
	ts := newTestServer(t)
	ch := newTestChannel(t, ts, Config{UserID: 2})
	awaitAuth(t, ts, 2)
	ch.Close()

	// Simulate a dial that completed after Close already ran dropConn: the
	// conn must be refused and closed, not adopted by a dead session.
	conn, _, err := websocket.DefaultDialer.Dial(ts.url(), nil)
	require.NoError(t, err)

	assert.False(t, ch.installConn(conn))
	assert.Error(t, conn.WriteMessage(websocket.TextMessage, []byte("{}")))

	// Nothing was installed; sends still report the session as down.
	assert.Error(t, ch.send(event.Typing{Type: event.TypeTyping}))
}

func TestCloseStopsEverything(t *testing.T) {
	ts := newTestServer(t)
	ch := newTestChannel(t, ts, Config{UserID: 2})
	awaitAuth(t, ts, 2)

	ch.Close()
	assert.Equal(t, StateDisconnected, ch.State())

	// Closed channels do not redial.
	dials := ts.dials.Load()
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, dials, ts.dials.Load())
}
