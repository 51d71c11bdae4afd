package hub

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	// tuning parameters
	writeWait          = 10 * time.Second       // time allowed to write a message to the peer
	pongWait           = 20 * time.Second       // time allowed to read the next pong message from the peer
	pingInterval       = (pongWait * 9) / 10    // send pings to peer with this period
	maxMessageSize     = 64 * 1024              // max inbound message size (64KB)
	inboundSendTimeout = 500 * time.Millisecond // timeout for sending to the inbound channel
)

// Client is one live socket connection. Until the auth handshake completes
// the connection has no user identity and only auth events are accepted.
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub

	// pre-serialized outbound frames
	egress  chan []byte
	limiter *rate.Limiter

	// 0 until the auth event binds an identity
	userID atomic.Int64

	cancel         context.CancelFunc
	ctx            context.Context
	once           sync.Once
	connClosed     chan struct{}
	connClosedOnce sync.Once
	closed         atomic.Bool
}

func newClient(conn *websocket.Conn, h *Hub) *Client {
	ctx, cancel := context.WithCancel(context.Background())

	return &Client{
		ID:         uuid.New().String(),
		conn:       conn,
		hub:        h,
		egress:     make(chan []byte, h.opts.SendBuffer),
		limiter:    rate.NewLimiter(h.opts.InboundRate, h.opts.InboundBurst),
		cancel:     cancel,
		ctx:        ctx,
		connClosed: make(chan struct{}),
	}
}

// UserID returns the bound identity, or 0 before authentication.
func (c *Client) UserID() int64 {
	return c.userID.Load()
}

func (c *Client) bindUser(userID int64) {
	c.userID.Store(userID)
}

func (c *Client) readMessages() {
	defer func() {
		c.hub.dropClient(c)
		c.Close()
	}()

	c.conn.SetReadLimit(int64(maxMessageSize))
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(c.pongHandler)

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			_, raw, err := c.conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err,
					websocket.CloseNormalClosure,
					websocket.CloseGoingAway,
					websocket.CloseAbnormalClosure,
				) {
					c.hub.logger.Debug("client disconnected", zap.String("connection_id", c.ID))
					return
				}

				if websocket.IsUnexpectedCloseError(err,
					websocket.CloseInternalServerErr,
					websocket.CloseProtocolError,
				) {
					c.hub.logger.Warn("unexpected close", zap.String("connection_id", c.ID), zap.Error(err))
				}

				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					c.hub.logger.Debug("client timed out", zap.String("connection_id", c.ID))
					return
				}

				c.hub.logger.Debug("read error", zap.String("connection_id", c.ID), zap.Error(err))
				return
			}

			// One chatty connection must not starve the workers.
			if !c.limiter.Allow() {
				c.hub.metrics.RateLimited.Inc()
				c.hub.logger.Warn("rate limited inbound event", zap.String("connection_id", c.ID))
				continue
			}

			// Non-blocking hand-off into the worker queue keeps the reader
			// responsive to pings.
			select {
			case c.hub.inbound <- inboundMessage{client: c, raw: raw}:
			case <-time.After(inboundSendTimeout):
				c.hub.logger.Warn("inbound queue full, dropping client", zap.String("connection_id", c.ID))
				c.cancel()
				c.conn.Close()
			case <-c.ctx.Done():
				return
			}
		}
	}
}

func (c *Client) writeMessages() {
	ticker := time.NewTicker(pingInterval)

	defer func() {
		ticker.Stop()
		c.Close()
		_ = c.conn.Close()
		c.connClosedOnce.Do(func() {
			close(c.connClosed)
		})
	}()

	for {
		select {
		case <-c.ctx.Done():
			_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case payload := <-c.egress:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.hub.logger.Debug("write error", zap.String("connection_id", c.ID), zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.hub.logger.Debug("ping error", zap.String("connection_id", c.ID), zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) pongHandler(string) error {
	return c.conn.SetReadDeadline(time.Now().Add(pongWait))
}

// trySend enqueues a frame without blocking. Returns false when the client
// is closed or its egress buffer is full; the frame is dropped either way.
func (c *Client) trySend(payload []byte) bool {
	if c.closed.Load() {
		return false
	}

	select {
	case <-c.ctx.Done():
		return false
	case c.egress <- payload:
		return true
	default:
		return false
	}
}

// Close tears the client down exactly once. Safe to call from any goroutine.
func (c *Client) Close() {
	c.once.Do(func() {
		c.closed.Store(true)
		// The egress channel is never closed; the write pump exits on ctx
		// cancellation, so a racing trySend can never hit a closed channel.
		c.cancel()

		// Wait for the write pump to close the conn, or force it.
		go func() {
			select {
			case <-c.connClosed:
			case <-time.After(5 * time.Second):
				_ = c.conn.Close()
			}
		}()
	})
}

// IsClosed reports whether the client has been torn down.
func (c *Client) IsClosed() bool {
	return c.closed.Load()
}
