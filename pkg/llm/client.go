// Package llm is the phase-parameterized completion client: each cognitive
// phase resolves to its configured provider and model settings, requests flow
// through a single throttled queue, and structured outputs are parsed with a
// bounded retry before degrading to a documented fallback artifact.
package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cognia-ai/cognia/pkg/cogerr"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
	"github.com/cognia-ai/cognia/pkg/tools"
)

// Client is the phase client. Safe for concurrent use; all calls serialize
// through the request queue.
type Client struct {
	cfg       *config.LLMConfig
	providers map[string]Provider
	queue     *requestQueue
	logger    *slog.Logger
}

// NewClient builds the phase client over the given providers.
func NewClient(cfg *config.LLMConfig, providers map[string]Provider) *Client {
	if cfg == nil {
		cfg = config.DefaultLLMConfig()
	}
	logger := slog.Default().With("component", "llm")
	return &Client{
		cfg:       cfg,
		providers: providers,
		queue:     newRequestQueue(cfg.RequestDelay, cfg.RequestTimeout, logger),
		logger:    logger,
	}
}

// Start launches the request queue worker.
func (c *Client) Start(ctx context.Context) { c.queue.start(ctx) }

// Stop drains the in-flight call and halts the worker.
func (c *Client) Stop() { c.queue.stop() }

func (c *Client) providerFor(phase models.Phase) (Provider, error) {
	name := c.cfg.ProviderFor(phase)
	p, ok := c.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: no provider %q for phase %q", cogerr.ErrLLMFailure, name, phase)
	}
	return p, nil
}

// Complete issues one raw completion for the phase through the queue.
func (c *Client) Complete(ctx context.Context, phase models.Phase, req CompletionRequest) (string, error) {
	provider, err := c.providerFor(phase)
	if err != nil {
		return "", err
	}
	return c.queue.submit(ctx, provider, req)
}

// completeParsed runs the completion-then-parse cycle with the configured
// retry budget. Transport failures and unparseable outputs both consume a
// retry.
func (c *Client) completeParsed(ctx context.Context, phase models.Phase, req CompletionRequest, out any) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		text, err := c.Complete(ctx, phase, req)
		if err != nil {
			lastErr = err
			continue
		}
		if err := parseInto(text, out); err != nil {
			c.logger.Warn("Unparseable completion, retrying",
				"phase", phase, "attempt", attempt+1, "error", err)
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}

type reasonResult struct {
	Analysis   string  `json:"analysis"`
	Confidence float64 `json:"confidence"`
}

// Reason runs the reasoning completion. On failure the returned artifact is
// the degraded fallback (enhanced=false) and the error reports the cause;
// callers keep the artifact and continue.
func (c *Client) Reason(ctx context.Context, goal string, observations []models.Observation, memories []string) (models.Reasoning, error) {
	req := CompletionRequest{
		System: reasonSystem,
		Prompt: buildReasonPrompt(goal, observations, memories),
	}
	var parsed reasonResult
	if err := c.completeParsed(ctx, models.PhaseReason, req, &parsed); err != nil {
		return fallbackReasoning(observations), err
	}
	if parsed.Confidence < 0 {
		parsed.Confidence = 0
	} else if parsed.Confidence > 1 {
		parsed.Confidence = 1
	}
	return models.Reasoning{
		ReasoningID: uuid.NewString(),
		Analysis:    parsed.Analysis,
		Confidence:  parsed.Confidence,
		Enhanced:    true,
	}, nil
}

// fallbackReasoning is the degraded artifact when the provider fails: a plain
// summary of what was observed, low confidence, enhanced=false.
func fallbackReasoning(observations []models.Observation) models.Reasoning {
	var sb strings.Builder
	sb.WriteString("Unenhanced summary of observations: ")
	for i, obs := range observations {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(obs.Content)
	}
	return models.Reasoning{
		ReasoningID: uuid.NewString(),
		Analysis:    sb.String(),
		Confidence:  0.3,
		Enhanced:    false,
	}
}

type planResult struct {
	Goal    string `json:"goal"`
	Actions []struct {
		Description string `json:"description"`
		Tool        string `json:"tool"`
		Parameters  any    `json:"parameters"`
		Priority    int    `json:"priority"`
	} `json:"actions"`
}

// normalizeParams accepts the parameter shapes models actually produce: an
// object, a free-form string (run through the parsing cascade), or nothing.
func normalizeParams(v any) map[string]any {
	switch p := v.(type) {
	case nil:
		return nil
	case map[string]any:
		return p
	case string:
		return tools.ParseParams(p)
	default:
		return map[string]any{"input": p}
	}
}

// BuildPlan runs the planning completion. Actions referencing tools outside
// the offered set are dropped with a warning. On failure the fallback is an
// empty plan; the cycle completes without acting.
func (c *Client) BuildPlan(ctx context.Context, goal string, reasoning models.Reasoning, tools []models.ToolDescriptor) (models.Plan, error) {
	plan := models.Plan{
		PlanID:      uuid.NewString(),
		ReasoningID: reasoning.ReasoningID,
		Goal:        goal,
		CreatedAt:   time.Now().UTC(),
	}

	req := CompletionRequest{
		System: planSystem,
		Prompt: buildPlanPrompt(goal, reasoning, tools),
	}
	var parsed planResult
	if err := c.completeParsed(ctx, models.PhasePlan, req, &parsed); err != nil {
		return plan, err
	}

	offered := make(map[string]struct{}, len(tools))
	for _, t := range tools {
		offered[t.Name] = struct{}{}
	}
	for _, a := range parsed.Actions {
		if _, ok := offered[a.Tool]; !ok {
			c.logger.Warn("Planned action references unoffered tool, dropping",
				"tool", a.Tool, "description", a.Description)
			continue
		}
		plan.Actions = append(plan.Actions, models.PlanAction{
			ID:          uuid.NewString(),
			Description: a.Description,
			Tool:        a.Tool,
			Parameters:  normalizeParams(a.Parameters),
			Priority:    a.Priority,
			Status:      models.ActionPending,
		})
	}
	return plan, nil
}

type reflectResult struct {
	Insights     []string `json:"insights"`
	Improvements []string `json:"improvements"`
}

// Reflect runs the reflection completion for a finished plan, returning the
// derived insights and improvements. On failure both lists come back empty;
// the engine's own metrics and reward still stand.
func (c *Client) Reflect(ctx context.Context, plan models.Plan, metrics models.ReflectionMetrics) ([]string, []string, error) {
	req := CompletionRequest{
		System: reflectSystem,
		Prompt: buildReflectPrompt(plan, metrics),
	}
	var parsed reflectResult
	if err := c.completeParsed(ctx, models.PhaseReflect, req, &parsed); err != nil {
		return nil, nil, err
	}
	return parsed.Insights, parsed.Improvements, nil
}
