package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

// fakeIndex records upserts per stratum and serves canned similarities.
type fakeIndex struct {
	byStratum map[models.MemoryStratum]map[string]*models.MemoryItem
	sims      map[string]float64
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		byStratum: map[models.MemoryStratum]map[string]*models.MemoryItem{},
		sims:      map[string]float64{},
	}
}

func (f *fakeIndex) Upsert(_ context.Context, item *models.MemoryItem) error {
	m, ok := f.byStratum[item.Stratum]
	if !ok {
		m = map[string]*models.MemoryItem{}
		f.byStratum[item.Stratum] = m
	}
	copied := *item
	m[item.MemoryID] = &copied
	return nil
}

func (f *fakeIndex) Search(_ context.Context, stratum models.MemoryStratum, scope models.MemoryScope, targetID string, _ []float32, topK int) ([]Candidate, error) {
	var out []Candidate
	for id, item := range f.byStratum[stratum] {
		if item.Scope != scope || item.TargetID != targetID {
			continue
		}
		out = append(out, Candidate{ID: id, Similarity: f.sims[id]})
		if len(out) == topK {
			break
		}
	}
	return out, nil
}

func (f *fakeIndex) Delete(_ context.Context, stratum models.MemoryStratum, id string) error {
	delete(f.byStratum[stratum], id)
	return nil
}

func (f *fakeIndex) Close() error { return nil }

func testItem(stratum models.MemoryStratum, key string) models.MemoryItem {
	return models.MemoryItem{
		Scope:     models.ScopeChannel,
		TargetID:  "ops",
		Stratum:   stratum,
		Key:       key,
		Value:     "remembered " + key,
		Embedding: []float32{1, 0, 0},
	}
}

func TestPutAssignsDefaults(t *testing.T) {
	s := NewStore(nil, newFakeIndex())

	id, err := s.Put(context.Background(), testItem(models.StratumWorking, "a"))
	require.NoError(t, err)
	require.NotEmpty(t, id)

	item, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, config.QValueDefault, item.QValue)
	assert.False(t, item.CreatedAt.IsZero())
}

func TestPutRejectsInvalidScopeAndStratum(t *testing.T) {
	s := NewStore(nil, newFakeIndex())

	bad := testItem(models.StratumWorking, "a")
	bad.Scope = "galaxy"
	_, err := s.Put(context.Background(), bad)
	assert.Error(t, err)

	bad = testItem("forever", "a")
	_, err = s.Put(context.Background(), bad)
	assert.Error(t, err)
}

func TestLambdaBlendOrdering(t *testing.T) {
	// m1 {sim 0.9, q 0.2}, m2 {sim 0.6, q 0.9}: λ=0 ranks m1 first, λ=1 and
	// λ=0.5 rank m2 first (0.75 vs 0.45).
	idx := newFakeIndex()
	cfg := config.DefaultMemoryConfig()
	s := NewStore(cfg, idx)
	ctx := context.Background()

	i1 := testItem(models.StratumEpisodic, "m1")
	id1, err := s.Put(ctx, i1)
	require.NoError(t, err)
	i2 := testItem(models.StratumEpisodic, "m2")
	id2, err := s.Put(ctx, i2)
	require.NoError(t, err)

	idx.sims[id1] = 0.9
	idx.sims[id2] = 0.6
	s.mu.Lock()
	s.items[id1].QValue = 0.2
	s.items[id2].QValue = 0.9
	s.mu.Unlock()

	strata := []models.MemoryStratum{models.StratumEpisodic}

	got, err := s.RetrieveWith(ctx, strata, 0.0, models.ScopeChannel, "ops", []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, id1, got[0].Item.MemoryID)

	got, err = s.RetrieveWith(ctx, strata, 1.0, models.ScopeChannel, "ops", []float32{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, id2, got[0].Item.MemoryID)

	got, err = s.RetrieveWith(ctx, strata, 0.5, models.ScopeChannel, "ops", []float32{1, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, id2, got[0].Item.MemoryID)
	assert.InDelta(t, 0.75, got[0].Score, 1e-9)
}

func TestRetrieveBumpsAccessBookkeeping(t *testing.T) {
	idx := newFakeIndex()
	s := NewStore(nil, idx)
	ctx := context.Background()

	id, err := s.Put(ctx, testItem(models.StratumEpisodic, "a"))
	require.NoError(t, err)
	idx.sims[id] = 0.8

	got, err := s.RetrieveWith(ctx, []models.MemoryStratum{models.StratumEpisodic}, 0.5, models.ScopeChannel, "ops", []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Item.AccessCount)
}

func TestRetrieveRoutesByPhase(t *testing.T) {
	idx := newFakeIndex()
	s := NewStore(nil, idx)
	ctx := context.Background()

	// Plan searches Semantic+LongTerm; a Working item must not surface.
	workingID, err := s.Put(ctx, testItem(models.StratumWorking, "w"))
	require.NoError(t, err)
	semanticID, err := s.Put(ctx, testItem(models.StratumSemantic, "s"))
	require.NoError(t, err)
	idx.sims[workingID] = 0.99
	idx.sims[semanticID] = 0.4

	got, err := s.Retrieve(ctx, models.PhasePlan, models.ScopeChannel, "ops", []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, semanticID, got[0].Item.MemoryID)
}

func TestApplyRewardEMA(t *testing.T) {
	s := NewStore(nil, newFakeIndex())
	ctx := context.Background()

	id, err := s.Put(ctx, testItem(models.StratumEpisodic, "a"))
	require.NoError(t, err)

	// effective = 1.0 · 0.30 (Plan weight) · 1.0 = 0.3
	// q ← 0.5 + 0.1·(0.3 − 0.5) = 0.48
	s.ApplyReward(models.PhasePlan, []string{id}, 1.0, 1.0)

	item, err := s.Get(id)
	require.NoError(t, err)
	assert.InDelta(t, 0.48, item.QValue, 1e-9)
	assert.Equal(t, 1, item.SuccessCount)
	assert.Equal(t, 0, item.FailureCount)
}

func TestApplyRewardStaysBounded(t *testing.T) {
	s := NewStore(nil, newFakeIndex())
	ctx := context.Background()

	id, err := s.Put(ctx, testItem(models.StratumEpisodic, "a"))
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		s.ApplyReward(models.PhaseReflect, []string{id}, -1.0, 1.0)
	}
	item, err := s.Get(id)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, item.QValue, 0.0)
	assert.LessOrEqual(t, item.QValue, 1.0)
	assert.Equal(t, 1000, item.FailureCount)
}

func TestConsolidatePromotes(t *testing.T) {
	idx := newFakeIndex()
	s := NewStore(nil, idx)
	ctx := context.Background()

	id, err := s.Put(ctx, testItem(models.StratumWorking, "a"))
	require.NoError(t, err)
	s.mu.Lock()
	s.items[id].QValue = 0.8
	s.items[id].SuccessCount = 3
	s.mu.Unlock()

	require.NoError(t, s.Consolidate(ctx, []string{id}))

	item, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StratumShortTerm, item.Stratum)
	assert.Contains(t, idx.byStratum[models.StratumShortTerm], id)
	assert.NotContains(t, idx.byStratum[models.StratumWorking], id)
}

func TestConsolidateDemotes(t *testing.T) {
	s := NewStore(nil, newFakeIndex())
	ctx := context.Background()

	id, err := s.Put(ctx, testItem(models.StratumEpisodic, "a"))
	require.NoError(t, err)
	s.mu.Lock()
	s.items[id].QValue = 0.2
	s.items[id].FailureCount = 5
	s.mu.Unlock()

	require.NoError(t, s.Consolidate(ctx, []string{id}))

	item, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StratumShortTerm, item.Stratum)
}

func TestConsolidateLeavesMiddleAlone(t *testing.T) {
	s := NewStore(nil, newFakeIndex())
	ctx := context.Background()

	id, err := s.Put(ctx, testItem(models.StratumEpisodic, "a"))
	require.NoError(t, err)

	require.NoError(t, s.Consolidate(ctx, []string{id}))
	item, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, models.StratumEpisodic, item.Stratum)
}

func TestSweepExpired(t *testing.T) {
	s := NewStore(nil, newFakeIndex())
	ctx := context.Background()

	fixed := time.Now()
	s.now = func() time.Time { return fixed }

	ephemeral := testItem(models.StratumWorking, "a")
	ephemeral.TTL = time.Minute
	id, err := s.Put(ctx, ephemeral)
	require.NoError(t, err)

	durable := testItem(models.StratumLongTerm, "b")
	keepID, err := s.Put(ctx, durable)
	require.NoError(t, err)

	s.now = func() time.Time { return fixed.Add(2 * time.Minute) }
	assert.Equal(t, 1, s.SweepExpired(ctx))

	_, err = s.Get(id)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(keepID)
	assert.NoError(t, err)
}

func TestMinMaxNormalization(t *testing.T) {
	idx := newFakeIndex()
	cfg := config.DefaultMemoryConfig()
	cfg.NormalizeQ = true
	s := NewStore(cfg, idx)
	ctx := context.Background()

	id1, err := s.Put(ctx, testItem(models.StratumEpisodic, "a"))
	require.NoError(t, err)
	id2, err := s.Put(ctx, testItem(models.StratumEpisodic, "b"))
	require.NoError(t, err)

	// Tightly clustered Q-values: normalization spreads them to 0 and 1
	idx.sims[id1] = 0.5
	idx.sims[id2] = 0.5
	s.mu.Lock()
	s.items[id1].QValue = 0.51
	s.items[id2].QValue = 0.52
	s.mu.Unlock()

	got, err := s.RetrieveWith(ctx, []models.MemoryStratum{models.StratumEpisodic}, 1.0, models.ScopeChannel, "ops", []float32{1, 0, 0})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, id2, got[0].Item.MemoryID)
	assert.InDelta(t, 1.0, got[0].Score, 1e-9)
	assert.InDelta(t, 0.0, got[1].Score, 1e-9)
}

func TestBlend(t *testing.T) {
	assert.InDelta(t, 0.9, Blend(0.9, 0.2, 0.0), 1e-9)
	assert.InDelta(t, 0.2, Blend(0.9, 0.2, 1.0), 1e-9)
	assert.InDelta(t, 0.55, Blend(0.9, 0.2, 0.5), 1e-9)
}
