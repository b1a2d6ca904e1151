package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cognia-ai/cognia/pkg/cogerr"
	"github.com/cognia-ai/cognia/pkg/models"
)

// Validator gates parameters before execution. Implemented by the validation
// pipeline; the returned map is the (possibly corrected) payload to execute
// with.
type Validator interface {
	Validate(ctx context.Context, desc models.ToolDescriptor, channelID string, params map[string]any) (map[string]any, error)

	// RecordOutcome feeds the pattern store after execution so successful
	// payload shapes inform future corrections.
	RecordOutcome(desc models.ToolDescriptor, channelID string, params map[string]any, success bool)
}

// Executor admits and runs tool executions: channel scope, phase gate,
// circuit breaker, validation/correction, then dispatch to the internal
// handler or the owning tool server.
type Executor struct {
	registry  *Registry
	client    *Client
	breakers  *CircuitSet
	validator Validator
	logger    *slog.Logger
}

// NewExecutor wires the execution path.
func NewExecutor(registry *Registry, client *Client, breakers *CircuitSet, validator Validator) *Executor {
	return &Executor{
		registry:  registry,
		client:    client,
		breakers:  breakers,
		validator: validator,
		logger:    slog.Default(),
	}
}

// Execute runs one plan action's tool call in the given channel and phase.
//
// Admission order is fixed: lookup, channel scope, phase gate, circuit,
// validation. Gating failures return typed errors (PhaseViolationError,
// CircuitOpenError) the loop engine converts into violation events; only
// executions that actually ran count against the circuit.
func (e *Executor) Execute(ctx context.Context, channelID string, phase models.Phase, toolName string, params map[string]any) (map[string]any, error) {
	desc, ok := e.registry.Lookup(toolName)
	if !ok {
		return nil, fmt.Errorf("%w: unknown tool %q", cogerr.ErrToolFailure, toolName)
	}

	if !desc.AllowedInChannel(channelID) {
		return nil, fmt.Errorf("%w: tool %q not available in channel %q", cogerr.ErrToolFailure, toolName, channelID)
	}

	if len(desc.PhaseAllowed) > 0 && !desc.PhaseAllowed.Contains(phase) {
		return nil, &cogerr.PhaseViolationError{
			ToolName:     toolName,
			CurrentPhase: phase,
			Allowed:      desc.PhaseAllowed,
		}
	}

	if err := e.breakers.Allow(toolName, channelID); err != nil {
		return nil, err
	}

	validated, err := e.validator.Validate(ctx, desc, channelID, params)
	if err != nil {
		// Validation failures are admission failures, not execution
		// failures: the breaker only counts calls that ran.
		return nil, err
	}

	result, execErr := e.dispatch(ctx, desc, validated)
	if execErr != nil {
		e.breakers.RecordFailure(toolName, channelID)
		e.validator.RecordOutcome(desc, channelID, validated, false)
		return nil, fmt.Errorf("%w: %s: %w", cogerr.ErrToolFailure, toolName, execErr)
	}

	e.breakers.RecordSuccess(toolName, channelID)
	e.validator.RecordOutcome(desc, channelID, validated, true)
	return result, nil
}

// dispatch routes to the internal handler or the owning tool server.
func (e *Executor) dispatch(ctx context.Context, desc models.ToolDescriptor, params map[string]any) (map[string]any, error) {
	if desc.Source == models.ToolInternal {
		handler := e.registry.Handler(desc.Name)
		if handler == nil {
			return nil, fmt.Errorf("internal tool %q has no handler", desc.Name)
		}
		return handler(ctx, params)
	}

	result, err := e.client.CallTool(ctx, desc.ServerID, desc.Name, params)
	if err != nil {
		return nil, err
	}
	return convertResult(result)
}

// convertResult flattens an MCP call result into an action result map.
// Tool-reported errors surface as Go errors so they count against the
// circuit.
func convertResult(result *mcpsdk.CallToolResult) (map[string]any, error) {
	content := extractTextContent(result)
	if result.IsError {
		return nil, fmt.Errorf("tool reported error: %s", content)
	}

	out := map[string]any{"content": content}
	if result.StructuredContent != nil {
		if raw, err := json.Marshal(result.StructuredContent); err == nil {
			var structured map[string]any
			if json.Unmarshal(raw, &structured) == nil {
				out["structured"] = structured
			}
		}
	}
	return out, nil
}

// extractTextContent concatenates the text blocks of a call result.
func extractTextContent(result *mcpsdk.CallToolResult) string {
	if result == nil {
		return ""
	}
	var text string
	for _, c := range result.Content {
		if tc, ok := c.(*mcpsdk.TextContent); ok {
			if text != "" {
				text += "\n"
			}
			text += tc.Text
		}
	}
	return text
}
