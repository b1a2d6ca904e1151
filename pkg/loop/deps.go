package loop

import (
	"context"

	"github.com/cognia-ai/cognia/pkg/models"
)

// PhaseLLM is the completion surface the engine reasons, plans, and reflects
// through. Satisfied by *llm.Client.
type PhaseLLM interface {
	Reason(ctx context.Context, goal string, observations []models.Observation, memories []string) (models.Reasoning, error)
	BuildPlan(ctx context.Context, goal string, reasoning models.Reasoning, tools []models.ToolDescriptor) (models.Plan, error)
	Reflect(ctx context.Context, plan models.Plan, metrics models.ReflectionMetrics) ([]string, []string, error)
}

// ToolExecutor admits and runs one tool call. Satisfied by *tools.Executor.
type ToolExecutor interface {
	Execute(ctx context.Context, channelID string, phase models.Phase, toolName string, params map[string]any) (map[string]any, error)
}

// ToolLister lists the descriptors admissible for a channel and phase.
// Satisfied by *tools.Registry.
type ToolLister interface {
	ListAvailable(channelID string, phase models.Phase) []models.ToolDescriptor
}

// MemoryHooks is the engine's view of the memory subsystem: recall feeds
// phase context, rewards and consolidation close the cycle. Satisfied by
// *memory.LoopHooks. A nil MemoryHooks disables memory entirely.
type MemoryHooks interface {
	// Recall returns memory snippets for the phase plus the ids of the items
	// touched, for later reward attribution.
	Recall(ctx context.Context, phase models.Phase, channelID, query string) (snippets []string, ids []string, err error)

	// ApplyReward attributes a cycle reward to the items a phase touched.
	ApplyReward(phase models.Phase, ids []string, reward, confidence float64)

	// Consolidate runs end-of-cycle stratum moves over the touched items.
	Consolidate(ctx context.Context, ids []string) error
}
