// Package models defines the domain types shared across Cognia: cognitive
// phases, loops and their artifacts, memory items, and tool descriptors.
// Types here are plain data; behavior lives in the packages that own the
// corresponding subsystem.
package models

// Phase is a position in the cognitive cycle. The zero value ("") is the
// null phase: the agent is connected but not inside an active cycle.
type Phase string

const (
	PhaseObserve Phase = "observe"
	PhaseReason  Phase = "reason"
	PhasePlan    Phase = "plan"
	PhaseAct     Phase = "act"
	PhaseReflect Phase = "reflect"

	// PhaseNull is the explicit name for the out-of-cycle state.
	PhaseNull Phase = ""
)

// Phases lists the five cycle phases in cycle order. Does not include the
// null phase.
var Phases = []Phase{PhaseObserve, PhaseReason, PhasePlan, PhaseAct, PhaseReflect}

// Valid reports whether p is one of the five cycle phases or the null phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseObserve, PhaseReason, PhasePlan, PhaseAct, PhaseReflect, PhaseNull:
		return true
	}
	return false
}

// IsNull reports whether p is the out-of-cycle state.
func (p Phase) IsNull() bool { return p == PhaseNull }

// String renders the phase for display. The null phase renders as a
// human-readable marker rather than an empty string.
func (p Phase) String() string {
	if p.IsNull() {
		return "(Not in active cycle)"
	}
	return string(p)
}

// PhaseSet is a set of phases, used for tool gating and retrieval routing.
type PhaseSet map[Phase]struct{}

// NewPhaseSet builds a set from the given phases.
func NewPhaseSet(phases ...Phase) PhaseSet {
	s := make(PhaseSet, len(phases))
	for _, p := range phases {
		s[p] = struct{}{}
	}
	return s
}

// AllPhases returns a set containing all five cycle phases.
func AllPhases() PhaseSet {
	return NewPhaseSet(Phases...)
}

// Contains reports whether the set includes p.
func (s PhaseSet) Contains(p Phase) bool {
	_, ok := s[p]
	return ok
}

// Slice returns the set's members in cycle order, for stable logging.
func (s PhaseSet) Slice() []Phase {
	out := make([]Phase, 0, len(s))
	for _, p := range Phases {
		if s.Contains(p) {
			out = append(out, p)
		}
	}
	return out
}
