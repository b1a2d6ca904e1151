package memory

import (
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

// Router maps the current cycle phase to the strata worth searching and the
// utility blending weight λ. Routing is a pure function of the phase;
// configuration can override individual phases.
type Router struct {
	overrides map[models.Phase]config.StrataRoute
}

// NewRouter builds a router with the config's per-phase overrides applied on
// top of the built-in table.
func NewRouter(cfg *config.MemoryConfig) *Router {
	r := &Router{overrides: map[models.Phase]config.StrataRoute{}}
	if cfg != nil {
		for p, route := range cfg.StrataRouting {
			r.overrides[p] = route
		}
	}
	return r
}

// Route returns the strata to search and λ for the given phase. The null
// phase falls back to the channel-wide default.
func (r *Router) Route(phase models.Phase) ([]models.MemoryStratum, float64) {
	if route, ok := r.overrides[phase]; ok && len(route.Strata) > 0 {
		return append([]models.MemoryStratum(nil), route.Strata...), route.Lambda
	}
	return defaultRoute(phase)
}

func defaultRoute(phase models.Phase) ([]models.MemoryStratum, float64) {
	switch phase {
	case models.PhaseObserve:
		return []models.MemoryStratum{models.StratumWorking, models.StratumShortTerm}, 0.2
	case models.PhaseReason:
		return []models.MemoryStratum{models.StratumEpisodic, models.StratumSemantic}, 0.5
	case models.PhasePlan:
		return []models.MemoryStratum{models.StratumSemantic, models.StratumLongTerm}, 0.7
	case models.PhaseAct:
		return []models.MemoryStratum{models.StratumWorking, models.StratumShortTerm}, 0.3
	case models.PhaseReflect:
		return append([]models.MemoryStratum(nil), models.Strata...), 0.6
	default:
		// Outside an active cycle: channel-wide default.
		return []models.MemoryStratum{models.StratumEpisodic, models.StratumShortTerm}, 0.5
	}
}
