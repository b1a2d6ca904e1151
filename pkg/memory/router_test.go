package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

func TestDefaultRouting(t *testing.T) {
	r := NewRouter(nil)

	tests := []struct {
		phase  models.Phase
		strata []models.MemoryStratum
		lambda float64
	}{
		{models.PhaseObserve, []models.MemoryStratum{models.StratumWorking, models.StratumShortTerm}, 0.2},
		{models.PhaseReason, []models.MemoryStratum{models.StratumEpisodic, models.StratumSemantic}, 0.5},
		{models.PhasePlan, []models.MemoryStratum{models.StratumSemantic, models.StratumLongTerm}, 0.7},
		{models.PhaseAct, []models.MemoryStratum{models.StratumWorking, models.StratumShortTerm}, 0.3},
		{models.PhaseReflect, models.Strata, 0.6},
	}
	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			strata, lambda := r.Route(tt.phase)
			assert.Equal(t, tt.strata, strata)
			assert.Equal(t, tt.lambda, lambda)
		})
	}
}

func TestNullPhaseFallsBackToChannelDefault(t *testing.T) {
	r := NewRouter(nil)
	strata, lambda := r.Route(models.PhaseNull)
	assert.Equal(t, []models.MemoryStratum{models.StratumEpisodic, models.StratumShortTerm}, strata)
	assert.Equal(t, 0.5, lambda)
}

func TestConfigOverridesSinglePhase(t *testing.T) {
	cfg := config.DefaultMemoryConfig()
	cfg.StrataRouting = map[models.Phase]config.StrataRoute{
		models.PhasePlan: {Strata: []models.MemoryStratum{models.StratumLongTerm}, Lambda: 0.9},
	}
	r := NewRouter(cfg)

	strata, lambda := r.Route(models.PhasePlan)
	assert.Equal(t, []models.MemoryStratum{models.StratumLongTerm}, strata)
	assert.Equal(t, 0.9, lambda)

	// Other phases keep the built-in table
	strata, lambda = r.Route(models.PhaseObserve)
	assert.Equal(t, []models.MemoryStratum{models.StratumWorking, models.StratumShortTerm}, strata)
	assert.Equal(t, 0.2, lambda)
}
