// Package events defines the closed set of event names exchanged between the
// server and agent clients, the envelope they travel in, and the JSON-schema
// registry every payload is validated against at emit and receive.
//
// Canonical ORPAR phase events are authoritative: only the server-side loop
// engine emits them. Client mirrors observe; any client-initiated request
// (e.g. submitting an observation) routes through the server engine.
package events

// Name is a namespaced event name from the closed enumeration below.
type Name string

// Canonical ORPAR phase events.
const (
	EventObservation Name = "orpar.observation"
	EventReasoning   Name = "orpar.reasoning"
	EventPlan        Name = "orpar.plan"
	EventAction      Name = "orpar.action"
	EventExecution   Name = "orpar.execution"
	EventReflection  Name = "orpar.reflection"
	EventInitialize  Name = "orpar.initialize"
	EventStarted     Name = "orpar.started"
	EventStopped     Name = "orpar.stopped"
)

// Auxiliary events.
const (
	// EventHint carries orparPhase metadata for client prompt assembly.
	EventHint Name = "orpar.hint"

	// EventViolation reports a rejected tool admission (phase gating or an
	// open circuit). It never advances phase.
	EventViolation Name = "tool.violation"

	// EventAgentStatus reports agent lifecycle transitions.
	EventAgentStatus Name = "agent.status"
)

// Names lists every event name in the closed enumeration.
var Names = []Name{
	EventObservation, EventReasoning, EventPlan, EventAction, EventExecution,
	EventReflection, EventInitialize, EventStarted, EventStopped,
	EventHint, EventViolation, EventAgentStatus,
}

// Valid reports whether n belongs to the closed enumeration.
func (n Name) Valid() bool {
	_, ok := schemas[n]
	return ok
}

// PhaseEvent reports whether n is one of the five canonical phase-advancing
// events a client mirror tracks.
func (n Name) PhaseEvent() bool {
	switch n {
	case EventObservation, EventReasoning, EventPlan, EventAction, EventReflection:
		return true
	}
	return false
}

// Critical reports whether n must never be dropped under backpressure.
// Phase transitions and reflections block or spill to the overflow buffer
// instead of being discarded.
func (n Name) Critical() bool {
	switch n {
	case EventObservation, EventReasoning, EventPlan, EventReflection,
		EventInitialize, EventStarted, EventStopped:
		return true
	}
	return false
}

// ChannelRoom returns the transport room name for a channel's events.
// Format: "channel:{channel_id}".
func ChannelRoom(channelID string) string {
	return "channel:" + channelID
}

// GlobalRoom is the room for server-wide agent status events.
const GlobalRoom = "channels"
