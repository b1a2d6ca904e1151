package memory

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	chromem "github.com/philippgille/chromem-go"

	"github.com/cognia-ai/cognia/pkg/cogerr"
	"github.com/cognia-ai/cognia/pkg/models"
)

// Candidate is one similarity hit from the vector index. Similarity is in
// [0,1]; the store blends it with the item's utility during re-ranking.
type Candidate struct {
	ID         string
	Similarity float64
}

// VectorIndex is the opaque similarity backend behind the store. One
// collection per stratum; scope and target narrow the search via metadata.
type VectorIndex interface {
	Upsert(ctx context.Context, item *models.MemoryItem) error
	Search(ctx context.Context, stratum models.MemoryStratum, scope models.MemoryScope, targetID string, embedding []float32, topK int) ([]Candidate, error)
	Delete(ctx context.Context, stratum models.MemoryStratum, id string) error
	Close() error
}

// ChromemIndex is the embedded VectorIndex: chromem-go with pre-computed
// vectors and optional gob persistence. Single-process, memory-bound.
type ChromemIndex struct {
	db          *chromem.DB
	persistPath string
	compress    bool

	mu          sync.RWMutex
	collections map[models.MemoryStratum]*chromem.Collection

	embeddingFunc chromem.EmbeddingFunc
	logger        *slog.Logger
}

// NewChromemIndex opens (or creates) the embedded vector database. An empty
// persistPath keeps everything in memory.
func NewChromemIndex(persistPath string, compress bool) (*ChromemIndex, error) {
	db := chromem.NewDB()
	if persistPath != "" {
		if err := os.MkdirAll(persistPath, 0o755); err != nil {
			return nil, fmt.Errorf("create persist directory: %w", err)
		}
		dbPath := vectorDBPath(persistPath, compress)
		if _, statErr := os.Stat(dbPath); statErr == nil {
			// Import matches the ExportToFile call in persist; compression
			// is detected from the file itself.
			if err := db.ImportFromFile(dbPath, ""); err != nil {
				slog.Warn("Failed to load existing vector database, starting empty",
					"path", dbPath, "error", err)
				db = chromem.NewDB()
			}
		}
	}

	return &ChromemIndex{
		db:          db,
		persistPath: persistPath,
		compress:    compress,
		collections: make(map[models.MemoryStratum]*chromem.Collection),
		// Vectors arrive pre-computed; the embedding function must never run.
		embeddingFunc: func(ctx context.Context, text string) ([]float32, error) {
			return nil, fmt.Errorf("embedding requested but vectors are pre-computed")
		},
		logger: slog.Default(),
	}, nil
}

func vectorDBPath(dir string, compress bool) string {
	p := dir + "/vectors.gob"
	if compress {
		p += ".gz"
	}
	return p
}

func (x *ChromemIndex) collection(stratum models.MemoryStratum) (*chromem.Collection, error) {
	x.mu.RLock()
	if col, ok := x.collections[stratum]; ok {
		x.mu.RUnlock()
		return col, nil
	}
	x.mu.RUnlock()

	x.mu.Lock()
	defer x.mu.Unlock()
	if col, ok := x.collections[stratum]; ok {
		return col, nil
	}
	col, err := x.db.GetOrCreateCollection(string(stratum), nil, x.embeddingFunc)
	if err != nil {
		return nil, fmt.Errorf("%w: collection %q: %w", cogerr.ErrBackendUnavailable, stratum, err)
	}
	x.collections[stratum] = col
	return col, nil
}

// Upsert indexes the item under its stratum's collection. Items without an
// embedding are skipped; they remain reachable by key through the store.
func (x *ChromemIndex) Upsert(ctx context.Context, item *models.MemoryItem) error {
	if len(item.Embedding) == 0 {
		return nil
	}
	col, err := x.collection(item.Stratum)
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:      item.MemoryID,
		Content: item.Value,
		Metadata: map[string]string{
			"scope":  string(item.Scope),
			"target": item.TargetID,
			"key":    item.Key,
		},
		Embedding: item.Embedding,
	}
	if err := col.AddDocuments(ctx, []chromem.Document{doc}, runtime.NumCPU()); err != nil {
		return fmt.Errorf("%w: upsert %s: %w", cogerr.ErrBackendUnavailable, item.MemoryID, err)
	}
	if err := x.persist(); err != nil {
		x.logger.Warn("Failed to persist vector database after upsert", "error", err)
	}
	return nil
}

// Search returns the top-K most similar items in the stratum, restricted to
// the given scope and target.
func (x *ChromemIndex) Search(ctx context.Context, stratum models.MemoryStratum, scope models.MemoryScope, targetID string, embedding []float32, topK int) ([]Candidate, error) {
	col, err := x.collection(stratum)
	if err != nil {
		return nil, err
	}

	// chromem rejects queries asking for more results than the collection
	// holds.
	if n := col.Count(); topK > n {
		topK = n
	}
	if topK == 0 {
		return nil, nil
	}

	where := map[string]string{
		"scope":  string(scope),
		"target": targetID,
	}
	results, err := col.QueryEmbedding(ctx, embedding, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: search %s: %w", cogerr.ErrBackendUnavailable, stratum, err)
	}

	out := make([]Candidate, 0, len(results))
	for _, r := range results {
		sim := float64(r.Similarity)
		if sim < 0 {
			sim = 0
		} else if sim > 1 {
			sim = 1
		}
		out = append(out, Candidate{ID: r.ID, Similarity: sim})
	}
	return out, nil
}

// Delete removes the item from its stratum's collection.
func (x *ChromemIndex) Delete(ctx context.Context, stratum models.MemoryStratum, id string) error {
	col, err := x.collection(stratum)
	if err != nil {
		return err
	}
	if err := col.Delete(ctx, nil, nil, id); err != nil {
		return fmt.Errorf("%w: delete %s: %w", cogerr.ErrBackendUnavailable, id, err)
	}
	if err := x.persist(); err != nil {
		x.logger.Warn("Failed to persist vector database after delete", "error", err)
	}
	return nil
}

// Close flushes the database to disk when persistence is enabled.
func (x *ChromemIndex) Close() error {
	return x.persist()
}

func (x *ChromemIndex) persist() error {
	if x.persistPath == "" {
		return nil
	}
	if err := x.db.ExportToFile(vectorDBPath(x.persistPath, x.compress), x.compress, ""); err != nil {
		return fmt.Errorf("persist vector database: %w", err)
	}
	return nil
}

var _ VectorIndex = (*ChromemIndex)(nil)
