package channel

import (
	"time"

	"go.uber.org/zap"

	"github.com/Unknownlegend09/Chathub/internal/event"
)

// dispatch routes one inbound event into the local caches. Runs on the read
// goroutine, so events are processed strictly in arrival order.
func (ch *Channel) dispatch(ev event.ServerEvent) {
	switch e := ev.(type) {
	case *event.MessageEvent:
		ch.handleMessage(e)
	case *event.TypingEvent:
		ch.handleTyping(e)
	case *event.StatusEvent:
		ch.handlePresence(e)
	case *event.MessageDeliveredEvent, *event.MessageReadEvent, *event.MessagesReadEvent:
		// No incremental patching; the cache is re-fetched whole.
		ch.refreshConversation()
	case *event.UserDeletedEvent:
		ch.forgetUser(e.UserID)
	case *event.NotificationEvent:
		// The message event already produced the local notification.
	}
}

func (ch *Channel) handleMessage(e *event.MessageEvent) {
	ch.refreshConversation()

	mine := e.ReceiverID != nil && *e.ReceiverID == ch.cfg.UserID && e.SenderID != ch.cfg.UserID
	if !mine {
		return
	}

	if ch.cfg.Handlers.OnNotification != nil {
		ch.cfg.Handlers.OnNotification(e.SenderID, e.Content)
	}

	// Acknowledge receipt right away so the sender sees the tick.
	if err := ch.send(event.MarkDelivered{Type: event.TypeMarkDelivered, MessageID: e.ID}); err != nil {
		ch.cfg.Logger.Debug("mark_delivered send failed", zap.Error(err))
	}
}

// handleTyping updates the typing map and arms the 3s local expiry — a
// safety net independent of the server's own, in case the stop event never
// arrives here.
func (ch *Channel) handleTyping(e *event.TypingEvent) {
	ch.cacheMu.Lock()

	if t, ok := ch.typingTimers[e.UserID]; ok {
		t.Stop()
		delete(ch.typingTimers, e.UserID)
	}

	if e.IsTyping {
		ch.typingUsers[e.UserID] = true
		userID := e.UserID
		ch.typingTimers[userID] = time.AfterFunc(ch.cfg.TypingExpiry, func() {
			ch.expireTyping(userID)
		})
	} else {
		delete(ch.typingUsers, e.UserID)
	}
	ch.cacheMu.Unlock()

	if ch.cfg.Handlers.OnTyping != nil {
		ch.cfg.Handlers.OnTyping(e.UserID, e.IsTyping)
	}
}

func (ch *Channel) expireTyping(userID int64) {
	ch.cacheMu.Lock()
	delete(ch.typingTimers, userID)
	_, present := ch.typingUsers[userID]
	delete(ch.typingUsers, userID)
	ch.cacheMu.Unlock()

	if present && ch.cfg.Handlers.OnTyping != nil {
		ch.cfg.Handlers.OnTyping(userID, false)
	}
}

func (ch *Channel) handlePresence(e *event.StatusEvent) {
	ch.cacheMu.Lock()
	ch.onlineUsers[e.UserID] = e.IsOnline
	ch.cacheMu.Unlock()

	if ch.cfg.Handlers.OnPresence != nil {
		ch.cfg.Handlers.OnPresence(e.UserID, e.IsOnline, e.LastSeen)
	}
	if ch.cfg.Handlers.OnUserListStale != nil {
		ch.cfg.Handlers.OnUserListStale()
	}
}

func (ch *Channel) forgetUser(userID int64) {
	ch.cacheMu.Lock()
	delete(ch.onlineUsers, userID)
	delete(ch.typingUsers, userID)
	if t, ok := ch.typingTimers[userID]; ok {
		t.Stop()
		delete(ch.typingTimers, userID)
	}
	ch.cacheMu.Unlock()

	if ch.cfg.Handlers.OnUserListStale != nil {
		ch.cfg.Handlers.OnUserListStale()
	}
}

// IsTyping reports whether a peer is currently marked typing.
func (ch *Channel) IsTyping(userID int64) bool {
	ch.cacheMu.Lock()
	defer ch.cacheMu.Unlock()
	return ch.typingUsers[userID]
}

// IsOnline reports a peer's cached presence.
func (ch *Channel) IsOnline(userID int64) bool {
	ch.cacheMu.Lock()
	defer ch.cacheMu.Unlock()
	return ch.onlineUsers[userID]
}
