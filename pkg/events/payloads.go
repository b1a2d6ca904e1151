package events

import (
	"github.com/cognia-ai/cognia/pkg/models"
)

// ObservationPayload is the data for orpar.observation events.
// Published when an observation is recorded into a loop's buffer, whether
// externally submitted or synthesized from a completed action.
type ObservationPayload struct {
	LoopID      string             `json:"loop_id"`
	Observation models.Observation `json:"observation"`
}

// ReasoningPayload is the data for orpar.reasoning events.
type ReasoningPayload struct {
	LoopID    string           `json:"loop_id"`
	Reasoning models.Reasoning `json:"reasoning"`
}

// PlanPayload is the data for orpar.plan events.
type PlanPayload struct {
	LoopID string      `json:"loop_id"`
	Plan   models.Plan `json:"plan"`
}

// ActionPayload is the data for orpar.action events.
// Published on every per-action status transition. Per-action events for a
// given action id are ordered within the loop.
type ActionPayload struct {
	LoopID string              `json:"loop_id"`
	Action models.PlanAction   `json:"action"`
	Status models.ActionStatus `json:"status"`
}

// ExecutionPayload is the data for orpar.execution events, published when an
// action's tool execution is admitted.
type ExecutionPayload struct {
	LoopID string            `json:"loop_id"`
	Action models.PlanAction `json:"action"`
}

// ReflectionContext nests the reflection artifact the way the metadata
// contract expects it: under a context block keyed "reflection".
type ReflectionContext struct {
	Reflection models.Reflection `json:"reflection"`
}

// ReflectionPayload is the data for orpar.reflection events. Published
// exactly once per terminal plan.
type ReflectionPayload struct {
	LoopID  string            `json:"loop_id"`
	Context ReflectionContext `json:"context"`
}

// LoopConfigSnapshot is the loop configuration echoed on initialize.
type LoopConfigSnapshot struct {
	MaxObservations int    `json:"max_observations"`
	OwnerAgentID    string `json:"owner_agent_id"`
	ChannelID       string `json:"channel_id"`
}

// InitializePayload is the data for orpar.initialize events.
type InitializePayload struct {
	LoopID string             `json:"loop_id"`
	Config LoopConfigSnapshot `json:"config"`
	Status models.LoopStatus  `json:"status"` // always "initializing"
}

// StartedPayload is the data for orpar.started events.
type StartedPayload struct {
	LoopID string            `json:"loop_id"`
	Status models.LoopStatus `json:"status"` // always "starting"
}

// StoppedContext carries the stop reason.
type StoppedContext struct {
	Reason string `json:"reason"`
}

// StoppedPayload is the data for orpar.stopped events.
type StoppedPayload struct {
	LoopID  string            `json:"loop_id"`
	Status  models.LoopStatus `json:"status"` // always "stopping"
	Context StoppedContext    `json:"context"`
}

// HintPayload is the data for orpar.hint events. Metadata carries the
// recognized keys of models.MetadataMap, notably "orparPhase".
type HintPayload struct {
	LoopID   string             `json:"loop_id"`
	Metadata models.MetadataMap `json:"metadata"`
}

// ViolationPayload is the data for tool.violation events.
type ViolationPayload struct {
	LoopID   string `json:"loop_id"`
	ToolName string `json:"tool_name"`
	Phase    string `json:"phase"`
	Kind     string `json:"kind"` // cogerr kind: phase_violation or circuit_open
	Message  string `json:"message"`
}

// AgentStatusPayload is the data for agent.status events.
type AgentStatusPayload struct {
	AgentID string             `json:"agent_id"`
	Status  models.AgentStatus `json:"status"`
}
