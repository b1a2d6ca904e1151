package tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	return NewRegistry(NewCircuitSet(&config.ValidationConfig{
		CircuitFailThreshold:  3,
		CircuitCooldown:       30 * time.Second,
		CircuitHalfOpenProbes: 1,
	}))
}

func internalDescriptor(name string, phases ...models.Phase) models.ToolDescriptor {
	allowed := models.AllPhases()
	if len(phases) > 0 {
		allowed = models.NewPhaseSet(phases...)
	}
	return models.ToolDescriptor{
		Name:         name,
		Source:       models.ToolInternal,
		InputSchema:  json.RawMessage(`{"type":"object"}`),
		RiskLevel:    models.RiskLow,
		PhaseAllowed: allowed,
	}
}

func noopHandler(_ context.Context, params map[string]any) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

func TestRegisterIsIdempotentOnName(t *testing.T) {
	r := newTestRegistry(t)

	desc := internalDescriptor("echo")
	require.NoError(t, r.Register(desc, noopHandler))
	require.NoError(t, r.Register(desc, noopHandler), "identical re-registration is a no-op")
	assert.Equal(t, 1, r.Len())
}

func TestRegisterRejectsConflictingSchema(t *testing.T) {
	r := newTestRegistry(t)

	desc := internalDescriptor("echo")
	require.NoError(t, r.Register(desc, noopHandler))

	conflicting := desc
	conflicting.InputSchema = json.RawMessage(`{"type":"object","required":["x"]}`)
	err := r.Register(conflicting, noopHandler)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "different input schema")
}

func TestRegisterSchemaComparisonIsCanonical(t *testing.T) {
	r := newTestRegistry(t)

	desc := internalDescriptor("echo")
	desc.InputSchema = json.RawMessage(`{"type": "object", "required": ["x"]}`)
	require.NoError(t, r.Register(desc, noopHandler))

	// Whitespace differences are not conflicts
	same := desc
	same.InputSchema = json.RawMessage(`{"required":["x"],"type":"object"}`)
	require.NoError(t, r.Register(same, nil))
}

func TestRegisterInternalRequiresHandler(t *testing.T) {
	r := newTestRegistry(t)
	err := r.Register(internalDescriptor("echo"), nil)
	require.Error(t, err)
}

func TestListAvailableFiltersByPhase(t *testing.T) {
	r := newTestRegistry(t)

	require.NoError(t, r.Register(internalDescriptor("observe_only", models.PhaseObserve), noopHandler))
	require.NoError(t, r.Register(internalDescriptor("any_phase"), noopHandler))

	inObserve := r.ListAvailable("ops", models.PhaseObserve)
	assert.Len(t, inObserve, 2)

	inAct := r.ListAvailable("ops", models.PhaseAct)
	require.Len(t, inAct, 1)
	assert.Equal(t, "any_phase", inAct[0].Name)
}

func TestListAvailableFiltersByChannelScope(t *testing.T) {
	r := newTestRegistry(t)

	scoped := internalDescriptor("ops_tool")
	scoped.ChannelScope = []string{"ops"}
	require.NoError(t, r.Register(scoped, noopHandler))
	require.NoError(t, r.Register(internalDescriptor("global_tool"), noopHandler))

	inOps := r.ListAvailable("ops", models.PhaseAct)
	assert.Len(t, inOps, 2)

	inDev := r.ListAvailable("dev", models.PhaseAct)
	require.Len(t, inDev, 1)
	assert.Equal(t, "global_tool", inDev[0].Name)
}

func TestListAvailableExcludesOpenCircuits(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(internalDescriptor("flaky"), noopHandler))

	for i := 0; i < 3; i++ {
		r.breakers.RecordFailure("flaky", "ops")
	}

	assert.Empty(t, r.ListAvailable("ops", models.PhaseAct))
	assert.Len(t, r.ListAvailable("dev", models.PhaseAct), 1, "circuit is channel-scoped")
}

func TestLookupReturnsCopy(t *testing.T) {
	r := newTestRegistry(t)
	require.NoError(t, r.Register(internalDescriptor("echo"), noopHandler))

	d, ok := r.Lookup("echo")
	require.True(t, ok)
	d.Name = "mutated"

	d2, ok := r.Lookup("echo")
	require.True(t, ok)
	assert.Equal(t, "echo", d2.Name)

	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}
