package memory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

// ErrNotFound is returned when a memory id has no item.
var ErrNotFound = errors.New("memory item not found")

// Store holds memory items across scopes and strata and implements utility
// learning on top of a similarity backend. Item state lives here; the vector
// index only answers "what is similar".
type Store struct {
	mu    sync.RWMutex
	items map[string]*models.MemoryItem

	index  VectorIndex
	router *Router
	cfg    *config.MemoryConfig
	logger *slog.Logger

	now func() time.Time

	sweepCancel context.CancelFunc
	sweepDone   chan struct{}
}

// NewStore builds a store over the given vector index.
func NewStore(cfg *config.MemoryConfig, index VectorIndex) *Store {
	if cfg == nil {
		cfg = config.DefaultMemoryConfig()
	}
	return &Store{
		items:  make(map[string]*models.MemoryItem),
		index:  index,
		router: NewRouter(cfg),
		cfg:    cfg,
		logger: slog.Default().With("component", "memory"),
		now:    time.Now,
	}
}

// Router exposes the phase-strata router the store retrieves with.
func (s *Store) Router() *Router { return s.router }

// Put stores an item, assigning an id, the default Q-value, and timestamps
// where absent. The item is indexed when it carries an embedding.
func (s *Store) Put(ctx context.Context, item models.MemoryItem) (string, error) {
	if !item.Scope.Valid() {
		return "", fmt.Errorf("invalid memory scope %q", item.Scope)
	}
	if !item.Stratum.Valid() {
		return "", fmt.Errorf("invalid memory stratum %q", item.Stratum)
	}
	if item.MemoryID == "" {
		item.MemoryID = uuid.NewString()
	}
	now := s.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
		item.QValue = s.cfg.QDefault
	}
	item.LastAccessedAt = now

	s.mu.Lock()
	stored := item
	s.items[item.MemoryID] = &stored
	s.mu.Unlock()

	if err := s.index.Upsert(ctx, &item); err != nil {
		return "", err
	}
	return item.MemoryID, nil
}

// Get returns a copy of the item.
func (s *Store) Get(id string) (models.MemoryItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return models.MemoryItem{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return *item, nil
}

// Delete removes the item from the store and the index.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	item, ok := s.items[id]
	if ok {
		delete(s.items, id)
	}
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s.index.Delete(ctx, item.Stratum, id)
}

// Len returns the number of stored items.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Items returns a copy of every stored item. Persistence flushes use this;
// callers must not expect a consistent point-in-time view across calls.
func (s *Store) Items() []models.MemoryItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MemoryItem, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, *item)
	}
	return out
}

// ScoredItem is one retrieval result with its blended ranking score.
type ScoredItem struct {
	Item       models.MemoryItem
	Similarity float64
	Score      float64
}

// Retrieve runs the two-phase retrieval for the caller's phase: similarity
// top-K per routed stratum, then a λ-blend re-rank against item utility.
// Returned items have their access bookkeeping bumped.
func (s *Store) Retrieve(ctx context.Context, phase models.Phase, scope models.MemoryScope, targetID string, embedding []float32) ([]ScoredItem, error) {
	strata, lambda := s.router.Route(phase)
	return s.RetrieveWith(ctx, strata, lambda, scope, targetID, embedding)
}

// RetrieveWith is Retrieve with explicit strata and λ, for callers outside
// the phase hot path.
func (s *Store) RetrieveWith(ctx context.Context, strata []models.MemoryStratum, lambda float64, scope models.MemoryScope, targetID string, embedding []float32) ([]ScoredItem, error) {
	candidates := make([]Candidate, 0, s.cfg.CandidateK*len(strata))
	for _, stratum := range strata {
		hits, err := s.index.Search(ctx, stratum, scope, targetID, embedding, s.cfg.CandidateK)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, hits...)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	now := s.now()
	s.mu.Lock()
	scored := make([]ScoredItem, 0, len(candidates))
	for _, c := range candidates {
		item, ok := s.items[c.ID]
		if !ok || item.Expired(now) {
			continue
		}
		scored = append(scored, ScoredItem{Item: *item, Similarity: c.Similarity})
	}

	normalize := identityQ
	if s.cfg.NormalizeQ {
		normalize = minMaxQ(scored)
	}
	for i := range scored {
		scored[i].Score = Blend(scored[i].Similarity, normalize(scored[i].Item.QValue), lambda)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	if len(scored) > s.cfg.ResultN {
		scored = scored[:s.cfg.ResultN]
	}
	for i := range scored {
		if item, ok := s.items[scored[i].Item.MemoryID]; ok {
			item.AccessCount++
			item.LastAccessedAt = now
			scored[i].Item = *item
		}
	}
	s.mu.Unlock()

	return scored, nil
}

// Blend computes the retrieval score from similarity and normalized utility.
func Blend(similarity, qNorm, lambda float64) float64 {
	return (1-lambda)*similarity + lambda*qNorm
}

func identityQ(q float64) float64 { return q }

// minMaxQ normalizes Q-values across the candidate set. A flat set maps to
// 0.5 so λ neither rewards nor punishes any candidate.
func minMaxQ(candidates []ScoredItem) func(float64) float64 {
	lo, hi := 1.0, 0.0
	for _, c := range candidates {
		if c.Item.QValue < lo {
			lo = c.Item.QValue
		}
		if c.Item.QValue > hi {
			hi = c.Item.QValue
		}
	}
	if hi <= lo {
		return func(float64) float64 { return 0.5 }
	}
	return func(q float64) float64 { return (q - lo) / (hi - lo) }
}

// ApplyReward attributes a cycle reward to the items a phase touched:
// effective reward is r · phaseWeight · confidence, then the EMA update
// qValue ← clamp(qValue + α·(r−qValue), 0, 1).
func (s *Store) ApplyReward(phase models.Phase, ids []string, reward, confidence float64) {
	if reward < -1 {
		reward = -1
	} else if reward > 1 {
		reward = 1
	}
	weight := s.cfg.PhaseWeights[phase]
	effective := reward * weight * confidence

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		item, ok := s.items[id]
		if !ok {
			continue
		}
		item.QValue = clamp01(item.QValue + s.cfg.LearningRate*(effective-item.QValue))
		if reward > 0 {
			item.SuccessCount++
		} else if reward < 0 {
			item.FailureCount++
		}
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// Consolidate runs the end-of-cycle stratum moves over the given items:
// promotion for high-utility proven items, demotion for low-utility failing
// ones, no change otherwise.
func (s *Store) Consolidate(ctx context.Context, ids []string) error {
	type move struct {
		item models.MemoryItem
		from models.MemoryStratum
	}
	var moves []move

	s.mu.Lock()
	for _, id := range ids {
		item, ok := s.items[id]
		if !ok {
			continue
		}
		from := item.Stratum
		switch {
		case item.QValue >= s.cfg.PromoteThreshold && item.SuccessCount >= s.cfg.PromoteSuccesses:
			item.Stratum = from.Next()
		case item.QValue <= s.cfg.DemoteThreshold && item.FailureCount >= s.cfg.DemoteFailures:
			item.Stratum = from.Prev()
		default:
			continue
		}
		if item.Stratum == from {
			continue
		}
		moves = append(moves, move{item: *item, from: from})
	}
	s.mu.Unlock()

	for _, m := range moves {
		if err := s.index.Delete(ctx, m.from, m.item.MemoryID); err != nil {
			s.logger.Warn("Failed to drop item from old stratum",
				"memory_id", m.item.MemoryID, "stratum", m.from, "error", err)
		}
		if err := s.index.Upsert(ctx, &m.item); err != nil {
			return err
		}
		s.logger.Info("Memory item consolidated",
			"memory_id", m.item.MemoryID, "from", m.from, "to", m.item.Stratum,
			"q_value", m.item.QValue)
	}
	return nil
}

// StartSweeper begins periodic TTL eviction. Stop with Close.
func (s *Store) StartSweeper(ctx context.Context) {
	if s.sweepCancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	s.sweepCancel = cancel
	s.sweepDone = make(chan struct{})

	go func() {
		defer close(s.sweepDone)
		ticker := time.NewTicker(s.cfg.TTLSweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.SweepExpired(ctx)
			}
		}
	}()
}

// SweepExpired evicts all items whose TTL has elapsed. Returns the count.
func (s *Store) SweepExpired(ctx context.Context) int {
	now := s.now()

	s.mu.Lock()
	var expired []*models.MemoryItem
	for id, item := range s.items {
		if item.Expired(now) {
			expired = append(expired, item)
			delete(s.items, id)
		}
	}
	s.mu.Unlock()

	for _, item := range expired {
		if err := s.index.Delete(ctx, item.Stratum, item.MemoryID); err != nil {
			s.logger.Warn("Failed to evict expired item from index",
				"memory_id", item.MemoryID, "error", err)
		}
	}
	if len(expired) > 0 {
		s.logger.Debug("Swept expired memory items", "count", len(expired))
	}
	return len(expired)
}

// Close stops the sweeper and flushes the index.
func (s *Store) Close() error {
	if s.sweepCancel != nil {
		s.sweepCancel()
		<-s.sweepDone
		s.sweepCancel = nil
	}
	return s.index.Close()
}
