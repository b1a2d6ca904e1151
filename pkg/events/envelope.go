package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cognia-ai/cognia/pkg/cogerr"
)

// Envelope is the wire form of every event. Data is a discriminated union
// keyed by EventName; its shape is validated against the schema registered
// for the event name at both emit and receive.
//
// CorrelationID is the optional idempotency key: delivery is at-least-once,
// and handlers suppress duplicates by correlation id.
type Envelope struct {
	EventName     Name   `json:"event_name"`
	AgentID       string `json:"agent_id"`
	ChannelID     string `json:"channel_id"`
	Timestamp     string `json:"timestamp"` // RFC3339Nano
	CorrelationID string `json:"correlation_id,omitempty"`
	Data          any    `json:"data"`
}

// NewEnvelope builds an envelope stamped with the current time.
func NewEnvelope(name Name, agentID, channelID, correlationID string, data any) Envelope {
	return Envelope{
		EventName:     name,
		AgentID:       agentID,
		ChannelID:     channelID,
		Timestamp:     time.Now().Format(time.RFC3339Nano),
		CorrelationID: correlationID,
		Data:          data,
	}
}

// Validate checks the envelope's routing fields and validates Data against
// the schema registered for EventName. All failures wrap ErrSchemaViolation.
func (e *Envelope) Validate() error {
	if !e.EventName.Valid() {
		return fmt.Errorf("%w: unknown event name %q", cogerr.ErrSchemaViolation, e.EventName)
	}
	if e.ChannelID == "" {
		return fmt.Errorf("%w: %s: channel_id is required", cogerr.ErrSchemaViolation, e.EventName)
	}
	return ValidateData(e.EventName, e.Data)
}

// Decode unmarshals the envelope's Data into the typed payload out.
// Data may be a typed struct (in-process emit) or a map (wire receive);
// both pass through a JSON round trip.
func (e *Envelope) Decode(out any) error {
	raw, err := json.Marshal(e.Data)
	if err != nil {
		return fmt.Errorf("marshal envelope data: %w", err)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.EventName, err)
	}
	return nil
}

// MarshalWire serializes the envelope for transport.
func (e *Envelope) MarshalWire() ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope %s: %w", e.EventName, err)
	}
	return raw, nil
}

// ParseEnvelope unmarshals and validates a wire envelope.
func ParseEnvelope(raw []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(raw, &e); err != nil {
		return Envelope{}, fmt.Errorf("%w: malformed envelope: %v", cogerr.ErrSchemaViolation, err)
	}
	if err := e.Validate(); err != nil {
		return Envelope{}, err
	}
	return e, nil
}
