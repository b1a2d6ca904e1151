package store

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cognia-ai/cognia/pkg/bus"
	"github.com/cognia-ai/cognia/pkg/database"
	"github.com/cognia-ai/cognia/pkg/loop"
	"github.com/cognia-ai/cognia/pkg/models"
	"github.com/cognia-ai/cognia/pkg/validation"
)

// newTestPool provisions a migrated database with CI/local detection.
// In CI (CI_DATABASE_URL set): connects to the external PostgreSQL service.
// In local dev: spins up a testcontainer.
func newTestPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping database integration test in short mode")
	}
	ctx := context.Background()

	connStr := os.Getenv("CI_DATABASE_URL")
	if connStr == "" {
		pgContainer, err := postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("test"),
			postgres.WithUsername("test"),
			postgres.WithPassword("test"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second)),
		)
		require.NoError(t, err)
		t.Cleanup(func() {
			if err := testcontainers.TerminateContainer(pgContainer); err != nil {
				t.Logf("failed to terminate container: %v", err)
			}
		})

		connStr, err = pgContainer.ConnectionString(ctx, "sslmode=disable")
		require.NoError(t, err)
	}

	require.NoError(t, database.Migrate(connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

type blockingLLM struct{ release chan struct{} }

func (b *blockingLLM) Reason(ctx context.Context, _ string, _ []models.Observation, _ []string) (models.Reasoning, error) {
	select {
	case <-b.release:
	case <-ctx.Done():
	}
	return models.Reasoning{ReasoningID: "r1"}, ctx.Err()
}

func (b *blockingLLM) BuildPlan(context.Context, string, models.Reasoning, []models.ToolDescriptor) (models.Plan, error) {
	return models.Plan{PlanID: "p1"}, nil
}

func (b *blockingLLM) Reflect(context.Context, models.Plan, models.ReflectionMetrics) ([]string, []string, error) {
	return nil, nil, nil
}

type noopExecutor struct{}

func (noopExecutor) Execute(context.Context, string, models.Phase, string, map[string]any) (map[string]any, error) {
	return nil, nil
}

type noopLister struct{}

func (noopLister) ListAvailable(string, models.Phase) []models.ToolDescriptor { return nil }

func TestFlushSkipsBusyLoopWithinBoundedTime(t *testing.T) {
	pool := newTestPool(t)
	ctx := context.Background()

	b := bus.New()
	defer b.Close()
	llm := &blockingLLM{release: make(chan struct{})}
	defer close(llm.release)

	mgr := loop.NewManager(nil, b, llm, noopExecutor{}, noopLister{}, nil)
	loopID, err := mgr.StartLoop(ctx, "agent-busy", "ops", "")
	require.NoError(t, err)
	defer func() {
		stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		_ = mgr.StopLoop(stopCtx, loopID, "test over")
	}()

	// Drive the loop into its Reason phase, where the LLM stub blocks and
	// the mailbox stops answering snapshots.
	require.NoError(t, mgr.SubmitObservation("agent-busy", models.Observation{Source: "agent", Content: "go"}))
	time.Sleep(100 * time.Millisecond)

	f := NewFlusher(pool, Sources{Loops: mgr}, time.Minute)
	start := time.Now()
	f.FlushOnce(ctx)
	assert.Less(t, time.Since(start), 10*time.Second)

	// The busy loop was skipped, not half-written
	_, err = NewLoopRepo(pool).Get(ctx, loopID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoopRepoRoundTrip(t *testing.T) {
	pool := newTestPool(t)
	repo := NewLoopRepo(pool)
	ctx := context.Background()

	started := time.Now().UTC().Truncate(time.Millisecond)
	loop := models.Loop{
		LoopID:       "loop-1",
		OwnerAgentID: "agent-1",
		ChannelID:    "ops",
		Phase:        models.PhaseReason,
		Status:       models.LoopRunning,
		Observations: []models.Observation{{ID: "o1", Source: "agent", Content: "disk full"}},
		Plan: &models.Plan{
			PlanID: "p1",
			Actions: []models.PlanAction{
				{ID: "a1", Tool: "cleanup", Status: models.ActionPending},
			},
		},
		StartedAt: started,
	}
	require.NoError(t, repo.Upsert(ctx, loop))

	// Second upsert replaces the snapshot in place.
	loop.Phase = models.PhaseAct
	loop.Plan.Actions[0].Status = models.ActionCompleted
	require.NoError(t, repo.Upsert(ctx, loop))

	got, err := repo.Get(ctx, "loop-1")
	require.NoError(t, err)
	assert.Equal(t, models.PhaseAct, got.Phase)
	require.NotNil(t, got.Plan)
	assert.Equal(t, models.ActionCompleted, got.Plan.Actions[0].Status)
	require.Len(t, got.Observations, 1)
	assert.Equal(t, "disk full", got.Observations[0].Content)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	byChannel, err := repo.ListByChannel(ctx, "ops")
	require.NoError(t, err)
	assert.Len(t, byChannel, 1)
}

func TestMemoryRepoRoundTrip(t *testing.T) {
	pool := newTestPool(t)
	repo := NewMemoryRepo(pool)
	ctx := context.Background()

	created := time.Now().UTC().Truncate(time.Millisecond)
	items := []models.MemoryItem{
		{
			MemoryID: "m1", Scope: models.ScopeChannel, TargetID: "ops",
			Stratum: models.StratumEpisodic, Key: "incident", Value: "disk filled by logs",
			Embedding: []float32{0.1, 0.2}, QValue: 0.6, SuccessCount: 3,
			CreatedAt: created,
		},
		{
			MemoryID: "m2", Scope: models.ScopeChannel, TargetID: "ops",
			Stratum: models.StratumWorking, Key: "note", Value: "transient",
			QValue: 0.5, CreatedAt: created.Add(-time.Hour), TTL: time.Minute,
		},
	}
	require.NoError(t, repo.UpsertAll(ctx, items))

	got, err := repo.ListByScope(ctx, models.ScopeChannel, "ops")
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Expired items (m2: 1h old, 1m TTL) are reapable.
	n, err := repo.DeleteExpired(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err = repo.ListByScope(ctx, models.ScopeChannel, "ops")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "m1", got[0].MemoryID)
	assert.Equal(t, []float32{0.1, 0.2}, got[0].Embedding)
	assert.InDelta(t, 0.6, got[0].QValue, 1e-9)
}

func TestPatternRepoRoundTrip(t *testing.T) {
	pool := newTestPool(t)
	repo := NewPatternRepo(pool)
	ctx := context.Background()

	snaps := []validation.PatternSnapshot{
		{
			ChannelID: "ops", ToolName: "cleanup",
			Samples:   []map[string]any{{"path": "/tmp", "recursive": true}},
			Successes: 4, Failures: 1,
		},
	}
	require.NoError(t, repo.SaveAll(ctx, snaps))

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 4, got[0].Successes)
	require.Len(t, got[0].Samples, 1)
	assert.Equal(t, "/tmp", got[0].Samples[0]["path"])

	// Restore feeds a fresh in-memory store: inference works after reload.
	ps := validation.NewPatternStore(10)
	ps.Restore(got)
	pattern, ok := ps.Infer("ops", "cleanup", "path")
	require.True(t, ok)
	assert.Equal(t, "/tmp", pattern.CommonValue)
}

func TestCircuitRepoRoundTrip(t *testing.T) {
	pool := newTestPool(t)
	repo := NewCircuitRepo(pool)
	ctx := context.Background()

	opened := time.Now().UTC().Truncate(time.Millisecond)
	states := []models.CircuitState{
		{
			ToolName: "cleanup", ChannelID: "ops",
			Status: models.CircuitOpen, ConsecutiveFails: 5,
			OpenedAt: opened, RetryAt: opened.Add(time.Minute),
		},
	}
	require.NoError(t, repo.SaveAll(ctx, states))

	got, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.CircuitOpen, got[0].Status)
	assert.Equal(t, 5, got[0].ConsecutiveFails)
	assert.WithinDuration(t, opened, got[0].OpenedAt, time.Second)
}
