package models

import "time"

// ActionStatus is one action's execution state within a plan.
type ActionStatus string

const (
	ActionPending    ActionStatus = "pending"
	ActionInProgress ActionStatus = "in_progress"
	ActionCompleted  ActionStatus = "completed"
	ActionFailed     ActionStatus = "failed"
	ActionSkipped    ActionStatus = "skipped"
)

// Terminal reports whether the action has reached a final state.
func (s ActionStatus) Terminal() bool {
	switch s {
	case ActionCompleted, ActionFailed, ActionSkipped:
		return true
	}
	return false
}

// Valid reports whether s is a known action status.
func (s ActionStatus) Valid() bool {
	switch s {
	case ActionPending, ActionInProgress, ActionCompleted, ActionFailed, ActionSkipped:
		return true
	}
	return false
}

// PlanAction is one step of a plan: a tool invocation with parameters.
type PlanAction struct {
	ID          string         `json:"id"`
	Description string         `json:"description"`
	Tool        string         `json:"tool"`
	Parameters  map[string]any `json:"parameters,omitempty"`
	Priority    int            `json:"priority"`
	Status      ActionStatus   `json:"status"`
	Result      map[string]any `json:"result,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// Plan is the act phase's work list, produced by the plan phase.
type Plan struct {
	PlanID      string       `json:"plan_id"`
	ReasoningID string       `json:"reasoning_id,omitempty"`
	Goal        string       `json:"goal"`
	Actions     []PlanAction `json:"actions"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Terminal reports whether every action has reached a final state.
func (p *Plan) Terminal() bool {
	for i := range p.Actions {
		if !p.Actions[i].Status.Terminal() {
			return false
		}
	}
	return true
}

// Action returns a pointer to the action with the given id, or nil.
func (p *Plan) Action(id string) *PlanAction {
	for i := range p.Actions {
		if p.Actions[i].ID == id {
			return &p.Actions[i]
		}
	}
	return nil
}

// CountByStatus tallies the plan's actions per status.
func (p *Plan) CountByStatus() map[ActionStatus]int {
	counts := make(map[ActionStatus]int)
	for i := range p.Actions {
		counts[p.Actions[i].Status]++
	}
	return counts
}
