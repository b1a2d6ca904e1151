package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognia-ai/cognia/pkg/cogerr"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

// passthroughValidator approves every payload and records outcomes.
type passthroughValidator struct {
	validateErr error
	outcomes    []bool
}

func (v *passthroughValidator) Validate(_ context.Context, _ models.ToolDescriptor, _ string, params map[string]any) (map[string]any, error) {
	if v.validateErr != nil {
		return nil, v.validateErr
	}
	return params, nil
}

func (v *passthroughValidator) RecordOutcome(_ models.ToolDescriptor, _ string, _ map[string]any, success bool) {
	v.outcomes = append(v.outcomes, success)
}

func newTestExecutor(t *testing.T) (*Executor, *Registry, *CircuitSet, *passthroughValidator) {
	t.Helper()
	breakers := NewCircuitSet(&config.ValidationConfig{
		CircuitFailThreshold:  2,
		CircuitCooldown:       30 * time.Second,
		CircuitHalfOpenProbes: 1,
	})
	registry := NewRegistry(breakers)
	validator := &passthroughValidator{}
	exec := NewExecutor(registry, nil, breakers, validator)
	return exec, registry, breakers, validator
}

func TestExecuteInternalTool(t *testing.T) {
	exec, registry, _, validator := newTestExecutor(t)

	require.NoError(t, registry.Register(internalDescriptor("echo"), func(_ context.Context, params map[string]any) (map[string]any, error) {
		return map[string]any{"echoed": params["msg"]}, nil
	}))

	result, err := exec.Execute(context.Background(), "ops", models.PhaseAct, "echo", map[string]any{"msg": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "hi", result["echoed"])
	assert.Equal(t, []bool{true}, validator.outcomes)
}

func TestExecuteUnknownTool(t *testing.T) {
	exec, _, _, _ := newTestExecutor(t)

	_, err := exec.Execute(context.Background(), "ops", models.PhaseAct, "missing", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cogerr.ErrToolFailure)
}

func TestExecutePhaseGate(t *testing.T) {
	exec, registry, _, _ := newTestExecutor(t)
	require.NoError(t, registry.Register(internalDescriptor("deploy", models.PhaseAct), noopHandler))

	_, err := exec.Execute(context.Background(), "ops", models.PhaseObserve, "deploy", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cogerr.ErrPhaseViolation)

	var pve *cogerr.PhaseViolationError
	require.ErrorAs(t, err, &pve)
	assert.Equal(t, models.PhaseObserve, pve.CurrentPhase)
}

func TestExecuteChannelScope(t *testing.T) {
	exec, registry, _, _ := newTestExecutor(t)

	scoped := internalDescriptor("ops_tool")
	scoped.ChannelScope = []string{"ops"}
	require.NoError(t, registry.Register(scoped, noopHandler))

	_, err := exec.Execute(context.Background(), "dev", models.PhaseAct, "ops_tool", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cogerr.ErrToolFailure)
}

func TestExecuteFailuresOpenCircuit(t *testing.T) {
	exec, registry, _, validator := newTestExecutor(t)

	boom := errors.New("boom")
	require.NoError(t, registry.Register(internalDescriptor("flaky"), func(_ context.Context, _ map[string]any) (map[string]any, error) {
		return nil, boom
	}))

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		_, err := exec.Execute(ctx, "ops", models.PhaseAct, "flaky", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, cogerr.ErrToolFailure)
	}

	// Threshold reached: admission now rejects with CircuitOpen
	_, err := exec.Execute(ctx, "ops", models.PhaseAct, "flaky", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, cogerr.ErrCircuitOpen)

	// Only the two executions that ran were recorded
	assert.Equal(t, []bool{false, false}, validator.outcomes)
}

func TestExecuteValidationFailureDoesNotCountAgainstCircuit(t *testing.T) {
	exec, registry, breakers, validator := newTestExecutor(t)
	require.NoError(t, registry.Register(internalDescriptor("echo"), noopHandler))

	validator.validateErr = cogerr.ErrSchemaViolation
	for i := 0; i < 5; i++ {
		_, err := exec.Execute(context.Background(), "ops", models.PhaseAct, "echo", nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, cogerr.ErrSchemaViolation)
	}

	assert.False(t, breakers.IsOpen("echo", "ops"))
	assert.Empty(t, validator.outcomes)
}
