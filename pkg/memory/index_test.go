package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognia-ai/cognia/pkg/models"
)

func TestChromemIndexPersistRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	idx, err := NewChromemIndex(dir, true)
	require.NoError(t, err)

	item := models.MemoryItem{
		MemoryID:  "m1",
		Scope:     models.ScopeChannel,
		TargetID:  "ops",
		Key:       "disk-cleanup",
		Value:     "clearing /tmp resolved the disk alert",
		Stratum:   models.StratumEpisodic,
		Embedding: []float32{0.1, 0.8, 0.2},
	}
	require.NoError(t, idx.Upsert(ctx, &item))
	require.NoError(t, idx.Close())

	reopened, err := NewChromemIndex(dir, true)
	require.NoError(t, err)
	defer reopened.Close()

	hits, err := reopened.Search(ctx, models.StratumEpisodic, models.ScopeChannel, "ops",
		[]float32{0.1, 0.8, 0.2}, 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "m1", hits[0].ID)
	assert.InDelta(t, 1.0, hits[0].Similarity, 0.01)
}

func TestChromemIndexSkipsEmbeddinglessItems(t *testing.T) {
	idx, err := NewChromemIndex("", false)
	require.NoError(t, err)

	item := models.MemoryItem{
		MemoryID: "m2",
		Scope:    models.ScopeChannel,
		TargetID: "ops",
		Stratum:  models.StratumWorking,
		Value:    "no vector",
	}
	require.NoError(t, idx.Upsert(context.Background(), &item))

	hits, err := idx.Search(context.Background(), models.StratumWorking, models.ScopeChannel, "ops",
		[]float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
