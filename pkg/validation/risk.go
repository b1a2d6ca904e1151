package validation

import (
	"strings"

	"github.com/cognia-ai/cognia/pkg/models"
)

// RiskAssessment is the strict-level risk score for one execution.
type RiskAssessment struct {
	Score   float64          `json:"score"` // 0 (benign) .. 1 (dangerous)
	Level   models.RiskLevel `json:"level"`
	Factors []string         `json:"factors,omitempty"`
}

// AssessRisk scores an execution from the tool's declared risk plus payload
// heuristics. The declared level sets the floor; payload contents can only
// raise it.
func AssessRisk(desc models.ToolDescriptor, params map[string]any) RiskAssessment {
	score := baseScore(desc.RiskLevel)
	var factors []string

	for field, v := range params {
		s, ok := v.(string)
		if !ok {
			continue
		}
		lower := strings.ToLower(s)
		switch {
		case isPathField(field) && strings.HasPrefix(s, "/etc"):
			score += 0.2
			factors = append(factors, "system path: "+s)
		case strings.Contains(lower, "rm -rf"), strings.Contains(lower, "drop table"):
			score += 0.4
			factors = append(factors, "destructive pattern in "+field)
		}
	}
	if score > 1 {
		score = 1
	}

	return RiskAssessment{
		Score:   score,
		Level:   levelForScore(score, desc.RiskLevel),
		Factors: factors,
	}
}

func baseScore(risk models.RiskLevel) float64 {
	switch risk {
	case models.RiskLow:
		return 0.1
	case models.RiskMedium:
		return 0.3
	case models.RiskHigh:
		return 0.6
	case models.RiskCritical:
		return 0.85
	default:
		return 0.3
	}
}

// levelForScore maps the score back to a categorical level, never below the
// tool's declared level.
func levelForScore(score float64, declared models.RiskLevel) models.RiskLevel {
	var computed models.RiskLevel
	switch {
	case score >= 0.85:
		computed = models.RiskCritical
	case score >= 0.6:
		computed = models.RiskHigh
	case score >= 0.3:
		computed = models.RiskMedium
	default:
		computed = models.RiskLow
	}
	if rank(computed) < rank(declared) {
		return declared
	}
	return computed
}

func rank(r models.RiskLevel) int {
	switch r {
	case models.RiskLow:
		return 0
	case models.RiskMedium:
		return 1
	case models.RiskHigh:
		return 2
	case models.RiskCritical:
		return 3
	}
	return 1
}
