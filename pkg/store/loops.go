package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cognia-ai/cognia/pkg/models"
)

// LoopRepo persists loop snapshots keyed by loop id.
type LoopRepo struct {
	pool *pgxpool.Pool
}

// NewLoopRepo creates a loop repository over the pool.
func NewLoopRepo(pool *pgxpool.Pool) *LoopRepo {
	return &LoopRepo{pool: pool}
}

// Upsert writes the loop snapshot, replacing any previous snapshot for the
// same loop id.
func (r *LoopRepo) Upsert(ctx context.Context, loop models.Loop) error {
	observations, err := json.Marshal(loop.Observations)
	if err != nil {
		return fmt.Errorf("marshal observations for loop %s: %w", loop.LoopID, err)
	}
	var plan []byte
	if loop.Plan != nil {
		if plan, err = json.Marshal(loop.Plan); err != nil {
			return fmt.Errorf("marshal plan for loop %s: %w", loop.LoopID, err)
		}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO loops (loop_id, owner_agent_id, channel_id, phase, status,
		                   observations, plan, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, now())
		ON CONFLICT (loop_id) DO UPDATE SET
			phase        = EXCLUDED.phase,
			status       = EXCLUDED.status,
			observations = EXCLUDED.observations,
			plan         = EXCLUDED.plan,
			updated_at   = now()`,
		loop.LoopID, loop.OwnerAgentID, loop.ChannelID,
		string(loop.Phase), string(loop.Status), observations, plan, loop.StartedAt)
	if err != nil {
		return fmt.Errorf("upsert loop %s: %w", loop.LoopID, err)
	}
	return nil
}

// Get loads one loop snapshot.
func (r *LoopRepo) Get(ctx context.Context, loopID string) (models.Loop, error) {
	var (
		loop         models.Loop
		phase        string
		status       string
		observations []byte
		plan         []byte
	)
	err := r.pool.QueryRow(ctx, `
		SELECT loop_id, owner_agent_id, channel_id, phase, status,
		       observations, plan, started_at
		FROM loops WHERE loop_id = $1`, loopID).
		Scan(&loop.LoopID, &loop.OwnerAgentID, &loop.ChannelID, &phase, &status,
			&observations, &plan, &loop.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Loop{}, fmt.Errorf("loop %s: %w", loopID, ErrNotFound)
	}
	if err != nil {
		return models.Loop{}, fmt.Errorf("get loop %s: %w", loopID, err)
	}

	loop.Phase = models.Phase(phase)
	loop.Status = models.LoopStatus(status)
	if len(observations) > 0 {
		if err := json.Unmarshal(observations, &loop.Observations); err != nil {
			return models.Loop{}, fmt.Errorf("decode observations for loop %s: %w", loopID, err)
		}
	}
	if len(plan) > 0 {
		loop.Plan = &models.Plan{}
		if err := json.Unmarshal(plan, loop.Plan); err != nil {
			return models.Loop{}, fmt.Errorf("decode plan for loop %s: %w", loopID, err)
		}
	}
	return loop, nil
}

// ListByChannel returns all persisted loops for a channel, most recent first.
func (r *LoopRepo) ListByChannel(ctx context.Context, channelID string) ([]models.Loop, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT loop_id FROM loops
		WHERE channel_id = $1 ORDER BY started_at DESC`, channelID)
	if err != nil {
		return nil, fmt.Errorf("list loops for channel %s: %w", channelID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan loop row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate loop rows: %w", err)
	}

	loops := make([]models.Loop, 0, len(ids))
	for _, id := range ids {
		loop, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		loops = append(loops, loop)
	}
	return loops, nil
}

// PruneStopped deletes stopped loops last updated before the cutoff.
func (r *LoopRepo) PruneStopped(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		DELETE FROM loops WHERE status = $1 AND updated_at < $2`,
		string(models.LoopStopped), cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune stopped loops: %w", err)
	}
	return tag.RowsAffected(), nil
}
