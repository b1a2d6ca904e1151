package config

import "time"

// ValidationConfig controls parameter validation and correction.
type ValidationConfig struct {
	// CorrectionConfidence is the minimum confidence a correction strategy
	// must report for its output to be applied.
	CorrectionConfidence float64 `yaml:"correction_confidence"`

	// MaxCorrectionRetries bounds the correct-and-revalidate cycle.
	MaxCorrectionRetries int `yaml:"max_correction_retries"`

	// PatternWindow is how many recent successful payloads per
	// (channel, tool) the pattern store retains for inference.
	PatternWindow int `yaml:"pattern_window"`

	// CircuitFailThreshold opens a breaker after this many consecutive
	// failures.
	CircuitFailThreshold int `yaml:"circuit_fail_threshold"`

	// CircuitCooldown is how long an open breaker waits before probing
	// half-open.
	CircuitCooldown time.Duration `yaml:"circuit_cooldown"`

	// CircuitHalfOpenProbes is how many successful probes close a half-open
	// breaker.
	CircuitHalfOpenProbes int `yaml:"circuit_half_open_probes"`
}

// DefaultValidationConfig returns the built-in validation defaults.
func DefaultValidationConfig() *ValidationConfig {
	return &ValidationConfig{
		CorrectionConfidence:  0.7,
		MaxCorrectionRetries:  3,
		PatternWindow:         50,
		CircuitFailThreshold:  5,
		CircuitCooldown:       30 * time.Second,
		CircuitHalfOpenProbes: 2,
	}
}
