package validation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cognia-ai/cognia/pkg/cogerr"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

// Pipeline is the validation entry point the tool executor calls before
// every execution. It implements level selection by risk, the correction
// cycle, and outcome recording into the pattern store.
type Pipeline struct {
	schemas    *schemaCache
	rules      *RuleSet
	patterns   *PatternStore
	strategies []strategy

	confidenceThreshold float64
	maxRetries          int

	// riskCeiling rejects strict-level executions whose assessed score
	// reaches critical when the tool did not declare critical itself.
	logger *slog.Logger
}

// NewPipeline builds the pipeline from configuration.
func NewPipeline(cfg *config.ValidationConfig, rules *RuleSet) *Pipeline {
	if rules == nil {
		rules = NewRuleSet()
	}
	return &Pipeline{
		schemas:             newSchemaCache(),
		rules:               rules,
		patterns:            NewPatternStore(cfg.PatternWindow),
		strategies:          defaultStrategies(),
		confidenceThreshold: cfg.CorrectionConfidence,
		maxRetries:          cfg.MaxCorrectionRetries,
		logger:              slog.Default(),
	}
}

// Patterns exposes the pattern store for inspection and persistence.
func (p *Pipeline) Patterns() *PatternStore { return p.patterns }

// Rules exposes the semantic rule set for per-tool registration at startup.
func (p *Pipeline) Rules() *RuleSet { return p.rules }

// Validate gates one execution's parameters. Returns the payload to execute
// with — the original or a corrected one.
//
// Async level never blocks: failures are logged and the original payload is
// admitted. Blocking and strict levels must pass (after correction) or the
// execution is rejected.
func (p *Pipeline) Validate(ctx context.Context, desc models.ToolDescriptor, channelID string, params map[string]any) (map[string]any, error) {
	if params == nil {
		params = map[string]any{}
	}
	level := LevelForRisk(desc.RiskLevel)

	err := p.check(desc, level, params)
	if err == nil {
		return params, nil
	}

	if level == LevelAsync {
		// Fire-and-forget: report, never block.
		p.logger.Warn("Async validation failed; admitting anyway",
			"tool", desc.Name, "channel", channelID, "error", err)
		return params, nil
	}

	corrected, corrErr := p.correct(ctx, desc, level, channelID, params, err)
	if corrErr != nil {
		return nil, corrErr
	}
	return corrected, nil
}

// check runs the level's validations against a candidate payload.
func (p *Pipeline) check(desc models.ToolDescriptor, level Level, params map[string]any) error {
	if err := p.schemas.validate(desc.InputSchema, params); err != nil {
		return err
	}
	if level != LevelStrict {
		return nil
	}
	if err := p.rules.Check(desc.Name, params); err != nil {
		return err
	}
	assessment := AssessRisk(desc, params)
	if assessment.Level == models.RiskCritical && desc.RiskLevel != models.RiskCritical {
		return fmt.Errorf("%w: payload escalates risk to critical: %v",
			cogerr.ErrSchemaViolation, assessment.Factors)
	}
	return nil
}

// correct runs the strategy cascade until a candidate re-validates or the
// retry budget is exhausted.
func (p *Pipeline) correct(ctx context.Context, desc models.ToolDescriptor, level Level, channelID string, params map[string]any, cause error) (map[string]any, error) {
	info := extractSchemaInfo(desc.InputSchema)
	current := params
	attempts := 0

	for _, strat := range p.strategies {
		if attempts >= p.maxRetries {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		correction, ok := strat.apply(info, p.patterns, channelID, desc.Name, current)
		if !ok {
			continue
		}
		attempts++

		if correction.Confidence < p.confidenceThreshold {
			p.logger.Debug("Correction below confidence threshold",
				"tool", desc.Name, "strategy", correction.Strategy,
				"confidence", correction.Confidence)
			continue
		}
		if err := p.check(desc, level, correction.Params); err != nil {
			p.logger.Debug("Corrected payload still invalid",
				"tool", desc.Name, "strategy", correction.Strategy, "error", err)
			// Corrections compose: keep the partial fix and let the next
			// strategy work on top of it.
			current = correction.Params
			continue
		}

		p.logger.Info("Parameter correction applied",
			"tool", desc.Name, "channel", channelID,
			"strategy", correction.Strategy, "note", correction.Note)
		return correction.Params, nil
	}

	return nil, fmt.Errorf("%w: tool %q after %d correction attempt(s): %w",
		cogerr.ErrCorrectionExhausted, desc.Name, attempts, cause)
}

// RecordOutcome feeds execution results back into the pattern store.
func (p *Pipeline) RecordOutcome(desc models.ToolDescriptor, channelID string, params map[string]any, success bool) {
	if success {
		p.patterns.RecordSuccess(channelID, desc.Name, params)
		return
	}
	p.patterns.RecordFailure(channelID, desc.Name)
}
