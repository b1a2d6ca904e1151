package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActionStatusTerminal(t *testing.T) {
	assert.False(t, ActionPending.Terminal())
	assert.False(t, ActionInProgress.Terminal())
	assert.True(t, ActionCompleted.Terminal())
	assert.True(t, ActionFailed.Terminal())
	assert.True(t, ActionSkipped.Terminal())
}

func TestPlanTerminal(t *testing.T) {
	p := &Plan{
		PlanID: "plan-1",
		Actions: []PlanAction{
			{ID: "a", Status: ActionCompleted},
			{ID: "b", Status: ActionInProgress},
		},
	}
	assert.False(t, p.Terminal())

	p.Actions[1].Status = ActionFailed
	assert.True(t, p.Terminal())
}

func TestPlanAction(t *testing.T) {
	p := &Plan{Actions: []PlanAction{{ID: "a"}, {ID: "b"}}}

	a := p.Action("b")
	assert.NotNil(t, a)

	// Returned pointer aliases the plan's slice so status updates stick
	a.Status = ActionCompleted
	assert.Equal(t, ActionCompleted, p.Actions[1].Status)

	assert.Nil(t, p.Action("missing"))
}

func TestPlanCountByStatus(t *testing.T) {
	p := &Plan{Actions: []PlanAction{
		{Status: ActionCompleted},
		{Status: ActionCompleted},
		{Status: ActionFailed},
	}}

	counts := p.CountByStatus()
	assert.Equal(t, 2, counts[ActionCompleted])
	assert.Equal(t, 1, counts[ActionFailed])
	assert.Equal(t, 0, counts[ActionPending])
}
