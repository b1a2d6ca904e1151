package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cognia-ai/cognia/pkg/models"
)

// MemoryRepo persists memory items with their utility learning state.
type MemoryRepo struct {
	pool *pgxpool.Pool
}

// NewMemoryRepo creates a memory repository over the pool.
func NewMemoryRepo(pool *pgxpool.Pool) *MemoryRepo {
	return &MemoryRepo{pool: pool}
}

// UpsertAll writes a batch of items in one round trip.
func (r *MemoryRepo) UpsertAll(ctx context.Context, items []models.MemoryItem) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range items {
		item := &items[i]
		var embedding []byte
		if len(item.Embedding) > 0 {
			var err error
			if embedding, err = json.Marshal(item.Embedding); err != nil {
				return fmt.Errorf("marshal embedding for item %s: %w", item.MemoryID, err)
			}
		}
		batch.Queue(`
			INSERT INTO memory_items (memory_id, scope, target_id, key, value,
			                          stratum, q_value, success_count, failure_count,
			                          access_count, embedding, created_at,
			                          last_accessed_at, ttl_seconds)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
			ON CONFLICT (memory_id) DO UPDATE SET
				stratum          = EXCLUDED.stratum,
				q_value          = EXCLUDED.q_value,
				success_count    = EXCLUDED.success_count,
				failure_count    = EXCLUDED.failure_count,
				access_count     = EXCLUDED.access_count,
				last_accessed_at = EXCLUDED.last_accessed_at`,
			item.MemoryID, string(item.Scope), item.TargetID, item.Key, item.Value,
			string(item.Stratum), item.QValue, item.SuccessCount, item.FailureCount,
			item.AccessCount, embedding, item.CreatedAt,
			nullableTime(item.LastAccessedAt), int64(item.TTL/time.Second))
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range items {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("upsert memory items: %w", err)
		}
	}
	return nil
}

// ListByScope loads every persisted item for one (scope, targetId).
func (r *MemoryRepo) ListByScope(ctx context.Context, scope models.MemoryScope, targetID string) ([]models.MemoryItem, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT memory_id, scope, target_id, key, value, stratum, q_value,
		       success_count, failure_count, access_count, embedding,
		       created_at, last_accessed_at, ttl_seconds
		FROM memory_items
		WHERE scope = $1 AND target_id = $2`, string(scope), targetID)
	if err != nil {
		return nil, fmt.Errorf("list memory items for %s/%s: %w", scope, targetID, err)
	}
	defer rows.Close()

	var items []models.MemoryItem
	for rows.Next() {
		var (
			item         models.MemoryItem
			scopeStr     string
			stratumStr   string
			embedding    []byte
			lastAccessed *time.Time
			ttlSeconds   int64
		)
		err := rows.Scan(&item.MemoryID, &scopeStr, &item.TargetID, &item.Key,
			&item.Value, &stratumStr, &item.QValue, &item.SuccessCount,
			&item.FailureCount, &item.AccessCount, &embedding,
			&item.CreatedAt, &lastAccessed, &ttlSeconds)
		if err != nil {
			return nil, fmt.Errorf("scan memory item: %w", err)
		}
		item.Scope = models.MemoryScope(scopeStr)
		item.Stratum = models.MemoryStratum(stratumStr)
		if len(embedding) > 0 {
			if err := json.Unmarshal(embedding, &item.Embedding); err != nil {
				return nil, fmt.Errorf("decode embedding for item %s: %w", item.MemoryID, err)
			}
		}
		if lastAccessed != nil {
			item.LastAccessedAt = *lastAccessed
		}
		item.TTL = time.Duration(ttlSeconds) * time.Second
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate memory items: %w", err)
	}
	return items, nil
}

// DeleteExpired removes items whose TTL elapsed before now.
func (r *MemoryRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM memory_items
		WHERE ttl_seconds > 0
		  AND created_at + make_interval(secs => ttl_seconds) <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired memory items: %w", err)
	}
	return tag.RowsAffected(), nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
