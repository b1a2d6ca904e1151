package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cognia-ai/cognia/pkg/loop"
	"github.com/cognia-ai/cognia/pkg/memory"
	"github.com/cognia-ai/cognia/pkg/models"
	"github.com/cognia-ai/cognia/pkg/tools"
	"github.com/cognia-ai/cognia/pkg/validation"
)

// Sources are the authoritative in-process components the flusher snapshots.
// Nil fields are skipped.
type Sources struct {
	Loops    *loop.Manager
	Memory   *memory.Store
	Patterns *validation.PatternStore
	Circuits *tools.CircuitSet
}

// Flusher periodically writes in-process state behind to PostgreSQL. Flush
// failures are logged and retried on the next tick.
type Flusher struct {
	interval time.Duration
	sources  Sources
	logger   *slog.Logger

	loops    *LoopRepo
	memory   *MemoryRepo
	patterns *PatternRepo
	circuits *CircuitRepo

	cancel context.CancelFunc
	done   chan struct{}
}

// NewFlusher builds a flusher over the pool.
func NewFlusher(pool *pgxpool.Pool, sources Sources, interval time.Duration) *Flusher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Flusher{
		interval: interval,
		sources:  sources,
		logger:   slog.Default().With("component", "store.flusher"),
		loops:    NewLoopRepo(pool),
		memory:   NewMemoryRepo(pool),
		patterns: NewPatternRepo(pool),
		circuits: NewCircuitRepo(pool),
	}
}

// Start launches the background flush loop.
func (f *Flusher) Start(ctx context.Context) {
	ctx, f.cancel = context.WithCancel(ctx)
	f.done = make(chan struct{})

	go func() {
		defer close(f.done)
		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.FlushOnce(ctx)
			}
		}
	}()
}

// Stop halts the flush loop and performs one final flush so shutdown does
// not lose the tail of state.
func (f *Flusher) Stop(ctx context.Context) {
	if f.cancel != nil {
		f.cancel()
		<-f.done
	}
	f.FlushOnce(ctx)
}

// FlushOnce snapshots every source and writes it. Each source flushes
// independently so one failing table does not starve the others.
func (f *Flusher) FlushOnce(ctx context.Context) {
	if f.sources.Loops != nil {
		f.flushLoops(ctx)
	}
	if f.sources.Memory != nil {
		if err := f.memory.UpsertAll(ctx, f.sources.Memory.Items()); err != nil {
			f.logger.Warn("Memory flush failed", "error", err)
		}
	}
	if f.sources.Patterns != nil {
		if err := f.patterns.SaveAll(ctx, f.sources.Patterns.Snapshot()); err != nil {
			f.logger.Warn("Pattern flush failed", "error", err)
		}
	}
	if f.sources.Circuits != nil {
		if err := f.circuits.SaveAll(ctx, f.sources.Circuits.Snapshot()); err != nil {
			f.logger.Warn("Circuit flush failed", "error", err)
		}
	}
}

// snapshotTimeout bounds each loop snapshot. Snapshots go through the
// loop's mailbox, and a loop mid-LLM-call answers only after the phase
// completes; a bounded wait keeps one slow loop from stalling the tick.
const snapshotTimeout = 2 * time.Second

func (f *Flusher) flushLoops(ctx context.Context) {
	for _, loopID := range f.sources.Loops.LoopIDs() {
		snapCtx, cancel := context.WithTimeout(ctx, snapshotTimeout)
		snap, err := f.sources.Loops.Snapshot(snapCtx, loopID)
		cancel()
		if err != nil {
			// A busy loop gets flushed on a later tick.
			if errors.Is(err, context.DeadlineExceeded) {
				f.logger.Debug("Loop snapshot timed out, skipping this tick", "loop_id", loopID)
				continue
			}
			// The loop finished between listing and snapshot.
			if errors.Is(err, loop.ErrLoopNotFound) || errors.Is(err, loop.ErrLoopStopped) {
				continue
			}
			f.logger.Warn("Loop snapshot failed", "loop_id", loopID, "error", err)
			continue
		}
		if err := f.loops.Upsert(ctx, snap); err != nil {
			f.logger.Warn("Loop flush failed", "loop_id", loopID, "error", err)
		}
	}
}

// MarkStopped records a loop's terminal status immediately, outside the
// periodic cycle, so restarts do not resurrect finished loops.
func (f *Flusher) MarkStopped(ctx context.Context, snap models.Loop) {
	snap.Status = models.LoopStopped
	if err := f.loops.Upsert(ctx, snap); err != nil {
		f.logger.Warn("Stopped-loop flush failed", "loop_id", snap.LoopID, "error", err)
	}
}
