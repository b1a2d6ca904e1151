package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognia-ai/cognia/pkg/models"
)

type fixedEmbedder struct{ vec []float32 }

func (e fixedEmbedder) Embed(context.Context, string) ([]float32, error) {
	return e.vec, nil
}

func TestLoopHooksRecallWithEmbedder(t *testing.T) {
	idx := newFakeIndex()
	s := NewStore(nil, idx)
	id, err := s.Put(context.Background(), testItem(models.StratumWorking, "a"))
	require.NoError(t, err)
	idx.sims[id] = 0.9

	h := NewLoopHooks(s, fixedEmbedder{vec: []float32{1, 0, 0}})
	snippets, ids, err := h.Recall(context.Background(), models.PhaseReason, "ops", "what happened")
	require.NoError(t, err)
	assert.Equal(t, []string{"remembered a"}, snippets)
	assert.Equal(t, []string{id}, ids)
}

func TestLoopHooksWithoutEmbedder(t *testing.T) {
	s := NewStore(nil, newFakeIndex())
	id, err := s.Put(context.Background(), testItem(models.StratumWorking, "a"))
	require.NoError(t, err)

	h := NewLoopHooks(s, nil)

	// Recall degrades to empty, never errors
	snippets, ids, err := h.Recall(context.Background(), models.PhaseReason, "ops", "query")
	require.NoError(t, err)
	assert.Empty(t, snippets)
	assert.Empty(t, ids)

	// Rewards and consolidation still learn
	h.ApplyReward(models.PhaseReason, []string{id}, 1.0, 1.0)
	got, err := s.Get(id)
	require.NoError(t, err)
	assert.Equal(t, 1, got.SuccessCount)
	assert.NotEqual(t, s.cfg.QDefault, got.QValue)

	require.NoError(t, h.Consolidate(context.Background(), []string{id}))
}
