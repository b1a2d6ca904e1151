package mirror

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cognia-ai/cognia/pkg/events"
	"github.com/cognia-ai/cognia/pkg/models"
)

// wireEnvelope mimics an envelope after a JSON round trip: data as a map.
func wireEnvelope(name events.Name, loopID string, extra map[string]any) events.Envelope {
	data := map[string]any{"loop_id": loopID}
	for k, v := range extra {
		data[k] = v
	}
	return events.Envelope{EventName: name, AgentID: "agent-1", ChannelID: "ops", Data: data}
}

func TestMirrorTracksPhaseFromCanonicalEvents(t *testing.T) {
	c := New("ws://unused")
	c.SetActiveLoop("loop-1")

	steps := []struct {
		event events.Name
		want  models.Phase
	}{
		{events.EventObservation, models.PhaseObserve},
		{events.EventReasoning, models.PhaseReason},
		{events.EventPlan, models.PhasePlan},
		{events.EventExecution, models.PhaseAct},
		{events.EventAction, models.PhaseAct},
		{events.EventReflection, models.PhaseReflect},
	}
	for _, step := range steps {
		c.Apply(wireEnvelope(step.event, "loop-1", nil))
		assert.Equal(t, step.want, c.CurrentPhase(), "after %s", step.event)
	}

	c.Apply(wireEnvelope(events.EventStopped, "loop-1", nil))
	assert.Equal(t, models.PhaseNull, c.CurrentPhase())
}

func TestMirrorIgnoresOtherLoops(t *testing.T) {
	c := New("ws://unused")
	c.SetActiveLoop("loop-1")

	c.Apply(wireEnvelope(events.EventReasoning, "loop-2", nil))
	assert.Equal(t, models.PhaseNull, c.CurrentPhase())

	// No active loop set: everything is ignored.
	c.SetActiveLoop("")
	c.Apply(wireEnvelope(events.EventReasoning, "loop-1", nil))
	assert.Equal(t, models.PhaseNull, c.CurrentPhase())
}

func TestMirrorFollowsHintMetadata(t *testing.T) {
	c := New("ws://unused")
	c.SetActiveLoop("loop-1")

	c.Apply(wireEnvelope(events.EventHint, "loop-1", map[string]any{
		"metadata": map[string]any{models.MetaORPARPhase: "plan"},
	}))
	assert.Equal(t, models.PhasePlan, c.CurrentPhase())

	// Invalid phase metadata leaves the tracked phase untouched.
	c.Apply(wireEnvelope(events.EventHint, "loop-1", map[string]any{
		"metadata": map[string]any{models.MetaORPARPhase: "daydream"},
	}))
	assert.Equal(t, models.PhasePlan, c.CurrentPhase())
}

func TestSetActiveLoopResetsPhase(t *testing.T) {
	c := New("ws://unused")
	c.SetActiveLoop("loop-1")
	c.Apply(wireEnvelope(events.EventPlan, "loop-1", nil))
	assert.Equal(t, models.PhasePlan, c.CurrentPhase())

	c.SetActiveLoop("loop-2")
	assert.Equal(t, models.PhaseNull, c.CurrentPhase())
}

func TestRenderPrompt(t *testing.T) {
	template := "Phase: {{CURRENT_ORPAR_PHASE}}\n{{CURRENT_ORPAR_PHASE_GUIDANCE}}"

	out := RenderPrompt(template, models.PhaseReason)
	assert.Contains(t, out, "Phase: reason")
	assert.Contains(t, out, "You are reasoning.")

	out = RenderPrompt(template, models.PhaseNull)
	assert.Contains(t, out, "Phase: (Not in active cycle)")
	assert.Contains(t, out, "No cycle is active.")
}
