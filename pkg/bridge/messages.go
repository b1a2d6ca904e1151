package bridge

import (
	"encoding/json"

	"github.com/cognia-ai/cognia/pkg/events"
)

// ClientMessage is what a connected client sends over the socket.
type ClientMessage struct {
	// Action is one of: subscribe, unsubscribe, catchup, ping, emit.
	Action string `json:"action"`

	// Room targets subscribe, unsubscribe, and catchup.
	Room string `json:"room,omitempty"`

	// LastSeq is the last sequence the client saw, for catchup.
	LastSeq *uint64 `json:"last_seq,omitempty"`

	// Envelope carries an inbound event for emit. It is re-validated
	// server-side before touching the bus.
	Envelope json.RawMessage `json:"envelope,omitempty"`
}

// ServerMessage is what the bridge sends to a client.
type ServerMessage struct {
	Type string `json:"type"`

	ConnectionID string `json:"connection_id,omitempty"`
	Room         string `json:"room,omitempty"`
	Reason       string `json:"reason,omitempty"`
	Message      string `json:"message,omitempty"`

	// Events is a batch of sequenced envelopes (type "events" or "catchup").
	Events []SequencedEvent `json:"events,omitempty"`

	// HasMore signals catchup overflow: the retained window no longer covers
	// the client's position and a full reload is required.
	HasMore bool `json:"has_more,omitempty"`
}

// Server message types.
const (
	MsgConnectionEstablished = "connection.established"
	MsgSubscriptionConfirmed = "subscription.confirmed"
	MsgEvents                = "events"
	MsgCatchup               = "catchup"
	MsgCatchupOverflow       = "catchup.overflow"
	MsgPong                  = "pong"
	MsgError                 = "error"
	MsgAuthError             = "auth.error"
)

// InboundHandler receives re-validated envelopes emitted by clients. The
// bridge has already suppressed duplicates by correlation id.
type InboundHandler func(identity Identity, env events.Envelope)
