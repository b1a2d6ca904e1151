package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cognia-ai/cognia/pkg/validation"
)

// PatternRepo persists learned payload patterns keyed by (channel, tool).
type PatternRepo struct {
	pool *pgxpool.Pool
}

// NewPatternRepo creates a pattern repository over the pool.
func NewPatternRepo(pool *pgxpool.Pool) *PatternRepo {
	return &PatternRepo{pool: pool}
}

// SaveAll writes every snapshot in one round trip.
func (r *PatternRepo) SaveAll(ctx context.Context, snaps []validation.PatternSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, snap := range snaps {
		samples, err := json.Marshal(snap.Samples)
		if err != nil {
			return fmt.Errorf("marshal samples for %s/%s: %w", snap.ChannelID, snap.ToolName, err)
		}
		batch.Queue(`
			INSERT INTO patterns (channel_id, tool_name, samples, successes, failures, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (channel_id, tool_name) DO UPDATE SET
				samples    = EXCLUDED.samples,
				successes  = EXCLUDED.successes,
				failures   = EXCLUDED.failures,
				updated_at = now()`,
			snap.ChannelID, snap.ToolName, samples, snap.Successes, snap.Failures)
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range snaps {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save patterns: %w", err)
		}
	}
	return nil
}

// LoadAll returns every persisted pattern snapshot, for warm-starting the
// in-memory pattern store.
func (r *PatternRepo) LoadAll(ctx context.Context) ([]validation.PatternSnapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT channel_id, tool_name, samples, successes, failures FROM patterns`)
	if err != nil {
		return nil, fmt.Errorf("load patterns: %w", err)
	}
	defer rows.Close()

	var snaps []validation.PatternSnapshot
	for rows.Next() {
		var (
			snap    validation.PatternSnapshot
			samples []byte
		)
		if err := rows.Scan(&snap.ChannelID, &snap.ToolName, &samples,
			&snap.Successes, &snap.Failures); err != nil {
			return nil, fmt.Errorf("scan pattern row: %w", err)
		}
		if len(samples) > 0 {
			if err := json.Unmarshal(samples, &snap.Samples); err != nil {
				return nil, fmt.Errorf("decode samples for %s/%s: %w", snap.ChannelID, snap.ToolName, err)
			}
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pattern rows: %w", err)
	}
	return snaps, nil
}
