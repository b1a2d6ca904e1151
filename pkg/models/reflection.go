package models

import "time"

// ReflectionMetrics summarizes the plan outcome a reflection was computed
// from.
type ReflectionMetrics struct {
	ActionsTotal     int           `json:"actions_total"`
	ActionsCompleted int           `json:"actions_completed"`
	ActionsFailed    int           `json:"actions_failed"`
	ActionsSkipped   int           `json:"actions_skipped"`
	SuccessRate      float64       `json:"success_rate"`
	Duration         time.Duration `json:"duration_ns"`
}

// LearningSignals carry the reward and confidence the memory subsystem
// consumes. Reward is bounded to [-1, 1].
type LearningSignals struct {
	Reward     float64 `json:"reward"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Reflection is the artifact the reflect phase produces once per terminal
// plan. It closes the cycle: its learning signals drive memory utility
// updates before the loop returns to observe.
type Reflection struct {
	ReflectionID string            `json:"reflection_id"`
	PlanID       string            `json:"plan_id"`
	Success      bool              `json:"success"`
	Metrics      ReflectionMetrics `json:"metrics"`
	Insights     []string          `json:"insights,omitempty"`
	Improvements []string          `json:"improvements,omitempty"`
	Signals      LearningSignals   `json:"learning_signals"`
}
