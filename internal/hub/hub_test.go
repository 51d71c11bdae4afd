package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Unknownlegend09/Chathub/internal/event"
)

func newTestHub(t *testing.T) (*Hub, *fakeUserStore, *Metrics) {
	t.Helper()

	store := newFakeMessageStore()
	users := newFakeUserStore()
	metrics := NewMetrics(prometheus.NewRegistry())

	h := New(store, users, zap.NewNop(), metrics, Options{
		Workers:   2,
		TypingTTL: time.Minute,
	})
	t.Cleanup(h.Stop)
	return h, users, metrics
}

// newFakeConnClient builds a client without a socket; the connClosed channel
// is pre-closed so Close never reaches for the missing conn.
func newFakeConnClient(buffer int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		ID:         uuid.New().String(),
		egress:     make(chan []byte, buffer),
		ctx:        ctx,
		cancel:     cancel,
		connClosed: make(chan struct{}),
	}
	c.connClosedOnce.Do(func() {
		close(c.connClosed)
	})
	return c
}

func receiveFrame(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case payload := <-c.egress:
		return payload
	default:
		t.Fatal("expected a frame in the egress buffer")
		return nil
	}
}

func TestBroadcastTargeted(t *testing.T) {
	h, _, _ := newTestHub(t)
	alice := newFakeConnClient(4)
	bob := newFakeConnClient(4)
	h.registry.Register(1, alice)
	h.registry.Register(2, bob)

	// Target 99 has no live connection; it is skipped, not an error.
	h.Broadcast(event.NewTyping(2, true), 1, 99)

	ev, err := event.DecodeServer(receiveFrame(t, alice))
	require.NoError(t, err)
	te, ok := ev.(*event.TypingEvent)
	require.True(t, ok)
	assert.Equal(t, int64(2), te.UserID)
	assert.True(t, te.IsTyping)

	assert.Empty(t, bob.egress)
}

func TestBroadcastToEveryone(t *testing.T) {
	h, _, _ := newTestHub(t)
	alice := newFakeConnClient(4)
	bob := newFakeConnClient(4)
	h.registry.Register(1, alice)
	h.registry.Register(2, bob)

	h.Broadcast(event.NewUserDeleted(3))

	receiveFrame(t, alice)
	receiveFrame(t, bob)
}

func TestBroadcastFullBufferDropsFrame(t *testing.T) {
	h, _, metrics := newTestHub(t)
	alice := newFakeConnClient(1)
	alice.egress <- []byte("stuck")
	h.registry.Register(1, alice)

	h.Broadcast(event.NewTyping(2, true), 1)

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BroadcastsDropped))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.BroadcastsSent))
}

func TestBroadcastSkipsClosedClient(t *testing.T) {
	h, _, metrics := newTestHub(t)
	alice := newFakeConnClient(4)
	h.registry.Register(1, alice)
	alice.Close()

	h.Broadcast(event.NewTyping(2, true), 1)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.BroadcastsDropped))
}

func TestAuthBindsAndAnnounces(t *testing.T) {
	h, users, _ := newTestHub(t)
	c := newFakeConnClient(4)

	h.handleEvent(c, []byte(`{"type":"auth","userId":5}`))

	assert.Equal(t, int64(5), c.UserID())
	current, ok := h.registry.Lookup(5)
	require.True(t, ok)
	assert.Same(t, c, current)

	online := users.onlineSnapshot()
	require.Len(t, online, 1)
	assert.Equal(t, onlineCall{userID: 5, online: true}, online[0])

	// The status broadcast reaches every live connection, including the
	// newly authenticated one.
	ev, err := event.DecodeServer(receiveFrame(t, c))
	require.NoError(t, err)
	st, ok := ev.(*event.StatusEvent)
	require.True(t, ok)
	assert.True(t, st.IsOnline)
}

func TestAuthReplacementClosesPrevious(t *testing.T) {
	h, _, _ := newTestHub(t)
	first := newFakeConnClient(4)
	second := newFakeConnClient(4)

	h.handleEvent(first, []byte(`{"type":"auth","userId":5}`))
	h.handleEvent(second, []byte(`{"type":"auth","userId":5}`))

	assert.True(t, first.IsClosed())
	assert.False(t, second.IsClosed())

	current, ok := h.registry.Lookup(5)
	require.True(t, ok)
	assert.Same(t, second, current)
}

func TestUnauthenticatedEventsRejected(t *testing.T) {
	h, users, _ := newTestHub(t)
	c := newFakeConnClient(4)

	h.handleEvent(c, []byte(`{"type":"typing","isTyping":true,"recipientId":2}`))

	assert.Empty(t, users.typingSnapshot())
}

func TestMalformedEventDiscarded(t *testing.T) {
	h, _, metrics := newTestHub(t)
	c := newFakeConnClient(4)

	h.handleEvent(c, []byte(`{"type":"call_offer"}`))

	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.MalformedEvents))
	assert.False(t, c.IsClosed())
}

func TestStopClosesUnauthenticatedConnection(t *testing.T) {
	store := newFakeMessageStore()
	users := newFakeUserStore()
	h := New(store, users, zap.NewNop(), NewMetrics(prometheus.NewRegistry()), Options{
		Workers:   2,
		TypingTTL: time.Minute,
	})

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The connection never sends auth, so the registry does not hold it.
	// Stop must still find and close it.
	h.Stop()

	// A frame racing the shutdown is dropped, never a panic.
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"typing","isTyping":true,"recipientId":2}`))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func TestServeWSRejectsAfterStop(t *testing.T) {
	h, _, _ := newTestHub(t)
	h.Stop()

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestDropClientStaleConnectionStaysSilent(t *testing.T) {
	h, users, _ := newTestHub(t)
	first := newFakeConnClient(4)
	second := newFakeConnClient(4)

	h.handleEvent(first, []byte(`{"type":"auth","userId":5}`))
	h.handleEvent(second, []byte(`{"type":"auth","userId":5}`))

	// The replaced connection's teardown must not announce the user offline.
	h.dropClient(first)
	for _, call := range users.onlineSnapshot() {
		assert.True(t, call.online)
	}

	h.dropClient(second)
	online := users.onlineSnapshot()
	require.NotEmpty(t, online)
	assert.Equal(t, onlineCall{userID: 5, online: false}, online[len(online)-1])
}
