package memory

import (
	"context"

	"github.com/cognia-ai/cognia/pkg/models"
)

// Embedder turns text into the vector the similarity backend searches with.
// The embedding provider is an external collaborator behind this interface.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LoopHooks adapts the store to the loop engine: phase-routed recall over
// channel-scoped memory, reward attribution, and consolidation.
type LoopHooks struct {
	store    *Store
	embedder Embedder
}

// NewLoopHooks builds the engine-facing adapter. A nil embedder disables
// recall only; rewards and consolidation keep learning over items written
// through the store.
func NewLoopHooks(store *Store, embedder Embedder) *LoopHooks {
	return &LoopHooks{store: store, embedder: embedder}
}

// Recall retrieves the phase-routed memories most useful for the query and
// returns their values plus ids for later reward attribution. Without an
// embedder there is nothing to search with; recall comes back empty.
func (h *LoopHooks) Recall(ctx context.Context, phase models.Phase, channelID, query string) ([]string, []string, error) {
	if h.embedder == nil {
		return nil, nil, nil
	}
	embedding, err := h.embedder.Embed(ctx, query)
	if err != nil {
		return nil, nil, err
	}
	scored, err := h.store.Retrieve(ctx, phase, models.ScopeChannel, channelID, embedding)
	if err != nil {
		return nil, nil, err
	}
	snippets := make([]string, 0, len(scored))
	ids := make([]string, 0, len(scored))
	for _, s := range scored {
		snippets = append(snippets, s.Item.Value)
		ids = append(ids, s.Item.MemoryID)
	}
	return snippets, ids, nil
}

// ApplyReward forwards the phase-weighted reward to the store.
func (h *LoopHooks) ApplyReward(phase models.Phase, ids []string, reward, confidence float64) {
	h.store.ApplyReward(phase, ids, reward, confidence)
}

// Consolidate forwards end-of-cycle consolidation to the store.
func (h *LoopHooks) Consolidate(ctx context.Context, ids []string) error {
	return h.store.Consolidate(ctx, ids)
}
