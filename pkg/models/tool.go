package models

import (
	"encoding/json"
	"time"
)

// ToolSource distinguishes built-in tools from ones discovered on external
// tool servers.
type ToolSource string

const (
	ToolInternal ToolSource = "internal"
	ToolExternal ToolSource = "external"
)

// RiskLevel classifies a tool's blast radius; it selects the validation
// level applied to the tool's parameters.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Valid reports whether r is a known risk level.
func (r RiskLevel) Valid() bool {
	switch r {
	case RiskLow, RiskMedium, RiskHigh, RiskCritical:
		return true
	}
	return false
}

// ToolDescriptor describes a registered tool: identity, schemas, and the
// gates (phase, risk, channel scope) applied before execution.
type ToolDescriptor struct {
	Name   string     `json:"name"`
	Source ToolSource `json:"source"`

	// ServerID names the external server the tool came from; empty for
	// internal tools.
	ServerID string `json:"server_id,omitempty"`

	// ChannelScope restricts the tool to specific channels; empty means all.
	ChannelScope []string `json:"channel_scope,omitempty"`

	InputSchema  json.RawMessage `json:"input_schema,omitempty"`
	OutputSchema json.RawMessage `json:"output_schema,omitempty"`

	RiskLevel RiskLevel `json:"risk_level"`

	// PhaseAllowed gates execution by the owning loop's current phase.
	PhaseAllowed PhaseSet `json:"phase_allowed,omitempty"`
}

// AllowedInChannel reports whether the tool may run in the given channel.
func (d *ToolDescriptor) AllowedInChannel(channelID string) bool {
	if len(d.ChannelScope) == 0 {
		return true
	}
	for _, c := range d.ChannelScope {
		if c == channelID {
			return true
		}
	}
	return false
}

// CircuitStatus is a circuit breaker's state.
type CircuitStatus string

const (
	CircuitClosed   CircuitStatus = "closed"
	CircuitHalfOpen CircuitStatus = "half_open"
	CircuitOpen     CircuitStatus = "open"
)

// CircuitState is a snapshot of one (tool, channel) breaker.
type CircuitState struct {
	ToolName         string        `json:"tool_name"`
	ChannelID        string        `json:"channel_id"`
	Status           CircuitStatus `json:"status"`
	ConsecutiveFails int           `json:"consecutive_fails"`
	LastFailureAt    time.Time     `json:"last_failure_at,omitempty"`
	OpenedAt         time.Time     `json:"opened_at,omitempty"`
	RetryAt          time.Time     `json:"retry_at,omitempty"`
}
