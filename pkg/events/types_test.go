package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNameValid(t *testing.T) {
	for _, n := range Names {
		assert.True(t, n.Valid(), "event %s", n)
	}
	assert.False(t, Name("orpar.unknown").Valid())
	assert.False(t, Name("").Valid())
}

func TestEverySchemaCompiles(t *testing.T) {
	// compileSchemas panics at init on a bad schema; reaching here means they
	// all compiled. Assert the registry covers the closed enumeration.
	assert.Len(t, schemas, len(Names))
}

func TestPhaseEvent(t *testing.T) {
	phase := []Name{EventObservation, EventReasoning, EventPlan, EventAction, EventReflection}
	for _, n := range phase {
		assert.True(t, n.PhaseEvent(), "event %s", n)
	}
	assert.False(t, EventExecution.PhaseEvent())
	assert.False(t, EventHint.PhaseEvent())
	assert.False(t, EventViolation.PhaseEvent())
}

func TestCritical(t *testing.T) {
	assert.True(t, EventReflection.Critical())
	assert.True(t, EventInitialize.Critical())
	assert.True(t, EventStopped.Critical())

	// Per-action churn and hints may drop under backpressure
	assert.False(t, EventAction.Critical())
	assert.False(t, EventExecution.Critical())
	assert.False(t, EventHint.Critical())
}

func TestChannelRoom(t *testing.T) {
	assert.Equal(t, "channel:ops", ChannelRoom("ops"))
	assert.Equal(t, "channels", GlobalRoom)
}
