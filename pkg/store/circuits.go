package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cognia-ai/cognia/pkg/models"
)

// CircuitRepo persists circuit breaker states keyed by (tool, channel).
type CircuitRepo struct {
	pool *pgxpool.Pool
}

// NewCircuitRepo creates a circuit repository over the pool.
func NewCircuitRepo(pool *pgxpool.Pool) *CircuitRepo {
	return &CircuitRepo{pool: pool}
}

// SaveAll writes every circuit state in one round trip.
func (r *CircuitRepo) SaveAll(ctx context.Context, states []models.CircuitState) error {
	if len(states) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, st := range states {
		batch.Queue(`
			INSERT INTO circuits (tool_name, channel_id, status, consecutive_fails,
			                      last_failure_at, opened_at, retry_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, now())
			ON CONFLICT (tool_name, channel_id) DO UPDATE SET
				status            = EXCLUDED.status,
				consecutive_fails = EXCLUDED.consecutive_fails,
				last_failure_at   = EXCLUDED.last_failure_at,
				opened_at         = EXCLUDED.opened_at,
				retry_at          = EXCLUDED.retry_at,
				updated_at        = now()`,
			st.ToolName, st.ChannelID, string(st.Status), st.ConsecutiveFails,
			nullableTime(st.LastFailureAt), nullableTime(st.OpenedAt), nullableTime(st.RetryAt))
	}

	results := r.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range states {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save circuits: %w", err)
		}
	}
	return nil
}

// LoadAll returns every persisted circuit state.
func (r *CircuitRepo) LoadAll(ctx context.Context) ([]models.CircuitState, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT tool_name, channel_id, status, consecutive_fails,
		       last_failure_at, opened_at, retry_at
		FROM circuits`)
	if err != nil {
		return nil, fmt.Errorf("load circuits: %w", err)
	}
	defer rows.Close()

	var states []models.CircuitState
	for rows.Next() {
		var (
			st          models.CircuitState
			status      string
			lastFailure *time.Time
			openedAt    *time.Time
			retryAt     *time.Time
		)
		if err := rows.Scan(&st.ToolName, &st.ChannelID, &status,
			&st.ConsecutiveFails, &lastFailure, &openedAt, &retryAt); err != nil {
			return nil, fmt.Errorf("scan circuit row: %w", err)
		}
		st.Status = models.CircuitStatus(status)
		if lastFailure != nil {
			st.LastFailureAt = *lastFailure
		}
		if openedAt != nil {
			st.OpenedAt = *openedAt
		}
		if retryAt != nil {
			st.RetryAt = *retryAt
		}
		states = append(states, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate circuit rows: %w", err)
	}
	return states, nil
}
