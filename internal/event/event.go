// Package event defines the wire protocol spoken over the socket: a closed
// set of typed events in both directions. Payloads are flat JSON objects
// tagged with a "type" field; anything outside the set, or inside it with
// missing fields, decodes to ErrMalformed and is discarded by the caller.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Client → server event types.
const (
	TypeAuth          = "auth"
	TypeTyping        = "typing"
	TypeMarkDelivered = "mark_delivered"
	TypeMarkRead      = "mark_read"
)

// Server → client event types.
const (
	TypeMessage          = "message"
	TypeStatus           = "status"
	TypeMessageDelivered = "message_delivered"
	TypeMessageRead      = "message_read"
	TypeMessagesRead     = "messages_read"
	TypeNotification     = "notification"
	TypeUserDeleted      = "user_deleted"
)

// ErrMalformed marks an event that failed to parse or validate. The
// connection handling it stays alive; only the event is dropped.
var ErrMalformed = errors.New("malformed event")

// ClientEvent is one of the client→server event structs.
type ClientEvent interface {
	clientEvent()
}

// Auth binds a connection to an authenticated user identity. The identity is
// trusted as-is: the HTTP handshake already authenticated the session.
type Auth struct {
	Type   string `json:"type"`
	UserID int64  `json:"userId"`
}

// Typing asserts or clears the sender's typing indicator. RecipientID may be
// omitted on the stop event; the server routes it to the last known target.
type Typing struct {
	Type        string `json:"type"`
	IsTyping    bool   `json:"isTyping"`
	RecipientID *int64 `json:"recipientId,omitempty"`
}

// MarkDelivered acknowledges receipt of a message.
type MarkDelivered struct {
	Type      string `json:"type"`
	MessageID int64  `json:"messageId"`
}

// MarkRead acknowledges that a message was read.
type MarkRead struct {
	Type      string `json:"type"`
	MessageID int64  `json:"messageId"`
}

func (Auth) clientEvent()          {}
func (Typing) clientEvent()        {}
func (MarkDelivered) clientEvent() {}
func (MarkRead) clientEvent()      {}

type envelope struct {
	Type string `json:"type"`
}

// DecodeClient parses a raw client→server frame into its typed event.
func DecodeClient(raw []byte) (ClientEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	switch env.Type {
	case TypeAuth:
		var ev Auth
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.UserID <= 0 {
			return nil, fmt.Errorf("%w: auth requires userId", ErrMalformed)
		}
		return ev, nil
	case TypeTyping:
		var ev Typing
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		return ev, nil
	case TypeMarkDelivered:
		var ev MarkDelivered
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.MessageID <= 0 {
			return nil, fmt.Errorf("%w: mark_delivered requires messageId", ErrMalformed)
		}
		return ev, nil
	case TypeMarkRead:
		var ev MarkRead
		if err := json.Unmarshal(raw, &ev); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if ev.MessageID <= 0 {
			return nil, fmt.Errorf("%w: mark_read requires messageId", ErrMalformed)
		}
		return ev, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrMalformed, env.Type)
	}
}
