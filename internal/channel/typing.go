package channel

import (
	"time"

	"go.uber.org/zap"

	"github.com/Unknownlegend09/Chathub/internal/event"
)

// InputChanged records a keystroke aimed at a recipient. The first
// keystroke emits typing:true; every keystroke rearms the 2s idle timer,
// and only when it lapses does the stop event go out — one start, one stop,
// no matter how fast the typing.
func (ch *Channel) InputChanged(recipientID int64) {
	ch.typingMu.Lock()
	defer ch.typingMu.Unlock()

	if ch.typingActive && ch.typingRecipient != recipientID {
		// Switched conversations mid-composition; stop for the old target.
		ch.emitTyping(false, ch.typingRecipient)
		ch.typingActive = false
	}

	if !ch.typingActive {
		ch.emitTyping(true, recipientID)
		ch.typingActive = true
		ch.typingRecipient = recipientID
	}

	if ch.typingIdle != nil {
		ch.typingIdle.Reset(ch.cfg.TypingIdle)
		return
	}
	ch.typingIdle = time.AfterFunc(ch.cfg.TypingIdle, ch.idleLapsed)
}

func (ch *Channel) idleLapsed() {
	ch.typingMu.Lock()
	defer ch.typingMu.Unlock()

	if !ch.typingActive {
		return
	}
	ch.emitTyping(false, ch.typingRecipient)
	ch.typingActive = false
}

// MessageSent emits an immediate stop-typing for the recipient the message
// went to, cancelling the idle timer.
func (ch *Channel) MessageSent(recipientID int64) {
	ch.typingMu.Lock()
	defer ch.typingMu.Unlock()

	if ch.typingIdle != nil {
		ch.typingIdle.Stop()
	}
	if ch.typingActive {
		ch.emitTyping(false, recipientID)
		ch.typingActive = false
	}
}

// emitTyping must be called with typingMu held.
func (ch *Channel) emitTyping(isTyping bool, recipientID int64) {
	ev := event.Typing{
		Type:        event.TypeTyping,
		IsTyping:    isTyping,
		RecipientID: &recipientID,
	}
	if err := ch.send(ev); err != nil {
		ch.cfg.Logger.Debug("typing send failed", zap.Error(err))
	}
}
