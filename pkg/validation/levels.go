// Package validation implements the parameter validation and correction
// pipeline: JSON-schema validation, per-tool semantic rules, risk
// assessment, and confidence-gated auto-correction backed by a store of
// learned successful payload patterns.
package validation

import "github.com/cognia-ai/cognia/pkg/models"

// Level is the enforcement applied before a tool execution is admitted.
type Level string

const (
	// LevelAsync validates in the background and never blocks execution.
	LevelAsync Level = "async"

	// LevelBlocking requires schema validation to pass before admission.
	LevelBlocking Level = "blocking"

	// LevelStrict adds semantic rules and risk assessment to the blocking
	// checks.
	LevelStrict Level = "strict"
)

// LevelForRisk selects the validation level from the tool's risk level.
func LevelForRisk(risk models.RiskLevel) Level {
	switch risk {
	case models.RiskLow:
		return LevelAsync
	case models.RiskMedium:
		return LevelBlocking
	case models.RiskHigh, models.RiskCritical:
		return LevelStrict
	default:
		return LevelBlocking
	}
}
