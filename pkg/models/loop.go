package models

import "time"

// LoopStatus is a loop's lifecycle state, distinct from its cognitive phase.
type LoopStatus string

const (
	LoopInitializing LoopStatus = "initializing"
	LoopStarting     LoopStatus = "starting"
	LoopRunning      LoopStatus = "running"
	LoopStopping     LoopStatus = "stopping"
	LoopStopped      LoopStatus = "stopped"
)

// Loop is a snapshot of one cognitive loop's state. Snapshots are defensive
// copies; mutating one never affects the running loop.
type Loop struct {
	LoopID       string        `json:"loop_id"`
	OwnerAgentID string        `json:"owner_agent_id"`
	ChannelID    string        `json:"channel_id"`
	Phase        Phase         `json:"phase"`
	Status       LoopStatus    `json:"status"`
	Observations []Observation `json:"observations,omitempty"`
	Reasoning    *Reasoning    `json:"reasoning,omitempty"`
	Plan         *Plan         `json:"plan,omitempty"`
	StartedAt    time.Time     `json:"started_at"`
}

// ObservationSourceActionResult marks observations synthesized from a
// completed action's result, as opposed to externally submitted ones.
const ObservationSourceActionResult = "action_result"

// Observation is one item in a loop's observation buffer. Observations are
// immutable once recorded.
type Observation struct {
	ID      string         `json:"id"`
	AgentID string         `json:"agent_id,omitempty"`
	Source  string         `json:"source"`
	Content string         `json:"content"`
	Data    map[string]any `json:"data,omitempty"`

	// Timestamp is when the server recorded the observation, not when the
	// submitter produced it.
	Timestamp time.Time `json:"timestamp"`
}

// Reasoning is the analysis artifact produced by the reason phase.
type Reasoning struct {
	ReasoningID string  `json:"reasoning_id"`
	Analysis    string  `json:"analysis"`
	Confidence  float64 `json:"confidence"`

	// Enhanced marks reasoning enriched with retrieved memory context.
	Enhanced bool `json:"enhanced"`
}

// AgentStatus is the connection/activity state of a registered agent.
type AgentStatus string

const (
	AgentRegistered   AgentStatus = "registered"
	AgentConnected    AgentStatus = "connected"
	AgentActive       AgentStatus = "active"
	AgentPaused       AgentStatus = "paused"
	AgentDisconnected AgentStatus = "disconnected"
)

// Agent is a registered loop owner.
type Agent struct {
	AgentID     string      `json:"agent_id"`
	ChannelID   string      `json:"channel_id"`
	Status      AgentStatus `json:"status"`
	ConnectedAt time.Time   `json:"connected_at"`
}
