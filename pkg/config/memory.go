package config

import (
	"fmt"
	"time"

	"github.com/cognia-ai/cognia/pkg/models"
)

// MULS constants referenced across the memory subsystem.
const (
	// QValueDefault initializes every new memory item's utility estimate.
	QValueDefault = 0.5

	// QValueLearningRate is the EMA step size α for Q-value updates.
	QValueLearningRate = 0.1
)

// MemoryConfig controls the memory store and utility learning.
type MemoryConfig struct {
	// LearningRate is the EMA α. Defaults to QValueLearningRate.
	LearningRate float64 `yaml:"learning_rate"`

	// QDefault initializes new items' Q-values. Defaults to QValueDefault.
	QDefault float64 `yaml:"q_default"`

	// PromoteThreshold / PromoteSuccesses gate promotion to a longer-lived
	// stratum during consolidation.
	PromoteThreshold float64 `yaml:"promote_threshold"`
	PromoteSuccesses int     `yaml:"promote_successes"`

	// DemoteThreshold / DemoteFailures gate demotion during consolidation.
	DemoteThreshold float64 `yaml:"demote_threshold"`
	DemoteFailures  int     `yaml:"demote_failures"`

	// CandidateK is the similarity top-K fetched before re-ranking.
	CandidateK int `yaml:"candidate_k"`

	// ResultN is the top-N returned after the λ-blend re-rank.
	ResultN int `yaml:"result_n"`

	// NormalizeQ enables min-max normalization of Q-values across the
	// candidate set before blending (more robust when candidate Q-values
	// cluster tightly).
	NormalizeQ bool `yaml:"normalize_q"`

	// TTLSweepInterval is how often expired items are evicted.
	TTLSweepInterval time.Duration `yaml:"ttl_sweep_interval"`

	// PhaseWeights attribute a cycle's reward across the phases that touched
	// memory. Must cover all five phases.
	PhaseWeights map[models.Phase]float64 `yaml:"phase_weights"`

	// StrataRouting overrides the per-phase retrieval routing table.
	// Phases absent from the map keep their built-in routing.
	StrataRouting map[models.Phase]StrataRoute `yaml:"strata_routing"`
}

// StrataRoute is one phase's retrieval routing: which strata to search and
// the utility blending weight λ.
type StrataRoute struct {
	Strata []models.MemoryStratum `yaml:"strata"`
	Lambda float64                `yaml:"lambda"`
}

// DefaultMemoryConfig returns the built-in MULS defaults.
func DefaultMemoryConfig() *MemoryConfig {
	return &MemoryConfig{
		LearningRate:     QValueLearningRate,
		QDefault:         QValueDefault,
		PromoteThreshold: 0.7,
		PromoteSuccesses: 3,
		DemoteThreshold:  0.3,
		DemoteFailures:   5,
		CandidateK:       20,
		ResultN:          5,
		TTLSweepInterval: time.Minute,
		PhaseWeights: map[models.Phase]float64{
			models.PhaseObserve: 0.15,
			models.PhaseReason:  0.20,
			models.PhasePlan:    0.30,
			models.PhaseAct:     0.25,
			models.PhaseReflect: 0.10,
		},
	}
}

// validate checks MULS invariants that would otherwise corrupt learning.
func (c *MemoryConfig) validate() error {
	if c.LearningRate <= 0 || c.LearningRate > 1 {
		return fmt.Errorf("memory.learning_rate must be in (0,1], got %v", c.LearningRate)
	}
	if c.QDefault < 0 || c.QDefault > 1 {
		return fmt.Errorf("memory.q_default must be in [0,1], got %v", c.QDefault)
	}
	for _, p := range models.Phases {
		w, ok := c.PhaseWeights[p]
		if !ok {
			return fmt.Errorf("memory.phase_weights missing phase %q", p)
		}
		if w < 0 || w > 1 {
			return fmt.Errorf("memory.phase_weights[%s] must be in [0,1], got %v", p, w)
		}
	}
	for p, route := range c.StrataRouting {
		if !p.Valid() {
			return fmt.Errorf("memory.strata_routing: unknown phase %q", p)
		}
		if route.Lambda < 0 || route.Lambda > 1 {
			return fmt.Errorf("memory.strata_routing[%s].lambda must be in [0,1], got %v", p, route.Lambda)
		}
		for _, s := range route.Strata {
			if !s.Valid() {
				return fmt.Errorf("memory.strata_routing[%s]: unknown stratum %q", p, s)
			}
		}
	}
	return nil
}
