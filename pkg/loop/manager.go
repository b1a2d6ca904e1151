package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cognia-ai/cognia/pkg/bus"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

// ErrTooManyLoops is returned when starting a loop would exceed the global
// concurrency limit.
var ErrTooManyLoops = errors.New("max concurrent loops reached")

// ErrAgentHasLoop is returned when an agent that already owns an active loop
// asks for another.
var ErrAgentHasLoop = errors.New("agent already owns an active loop")

// ErrLoopNotFound is returned for operations on unknown loop ids.
var ErrLoopNotFound = errors.New("loop not found")

// LifecycleNotifier receives loop lifecycle transitions for out-of-band
// delivery, e.g. chat notifications. Calls happen on manager goroutines and
// must return quickly.
type LifecycleNotifier interface {
	LoopStarted(loopID, agentID, channelID, goal string)
	LoopStopped(loopID, agentID, channelID string)
}

// Manager owns every running loop: it enforces the concurrency limit and the
// one-loop-per-agent rule, reaps loops orphaned by disconnected agents, and
// drives graceful shutdown.
type Manager struct {
	cfg      *config.LoopConfig
	bus      *bus.Bus
	llm      PhaseLLM
	executor ToolExecutor
	tools    ToolLister
	memory   MemoryHooks
	notifier LifecycleNotifier
	terminal func(models.Loop)
	logger   *slog.Logger

	mu           sync.Mutex
	loops        map[string]*Engine // by loop id
	byAgent      map[string]string  // agent id -> loop id
	disconnected map[string]time.Time

	cancel context.CancelFunc
	done   chan struct{}
}

// NewManager builds the loop manager.
func NewManager(cfg *config.LoopConfig, eventBus *bus.Bus, phaseLLM PhaseLLM, executor ToolExecutor, lister ToolLister, mem MemoryHooks) *Manager {
	if cfg == nil {
		cfg = config.DefaultLoopConfig()
	}
	return &Manager{
		cfg:          cfg,
		bus:          eventBus,
		llm:          phaseLLM,
		executor:     executor,
		tools:        lister,
		memory:       mem,
		logger:       slog.Default().With("component", "loop-manager"),
		loops:        make(map[string]*Engine),
		byAgent:      make(map[string]string),
		disconnected: make(map[string]time.Time),
	}
}

// SetNotifier installs the lifecycle notifier. Must be called before the
// first StartLoop.
func (m *Manager) SetNotifier(n LifecycleNotifier) {
	m.notifier = n
}

// SetTerminalHook installs a callback that receives each loop's final
// snapshot after it terminates, e.g. to mark the loop stopped in the
// persistence layer. Must be called before the first StartLoop.
func (m *Manager) SetTerminalHook(hook func(models.Loop)) {
	m.terminal = hook
}

// Start launches the orphan scanner.
func (m *Manager) Start(ctx context.Context) {
	if m.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})

	go func() {
		defer close(m.done)
		ticker := time.NewTicker(m.cfg.OrphanScanInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.reapOrphans()
			}
		}
	}()
}

// StartLoop creates and starts a loop for the agent. One active loop per
// agent; the global limit caps total concurrency.
func (m *Manager) StartLoop(ctx context.Context, agentID, channelID, goal string) (string, error) {
	m.mu.Lock()
	if existing, ok := m.byAgent[agentID]; ok {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: agent %s owns loop %s", ErrAgentHasLoop, agentID, existing)
	}
	if len(m.loops) >= m.cfg.MaxConcurrentLoops {
		m.mu.Unlock()
		return "", fmt.Errorf("%w: limit %d", ErrTooManyLoops, m.cfg.MaxConcurrentLoops)
	}

	engine := NewEngine(m.cfg, m.bus, m.llm, m.executor, m.tools, m.memory, agentID, channelID, goal)
	m.loops[engine.LoopID()] = engine
	m.byAgent[agentID] = engine.LoopID()
	delete(m.disconnected, agentID)
	m.mu.Unlock()

	engine.Start(ctx)
	m.logger.Info("Loop started",
		"loop_id", engine.LoopID(), "agent_id", agentID, "channel_id", channelID)
	if m.notifier != nil {
		m.notifier.LoopStarted(engine.LoopID(), agentID, channelID, goal)
	}

	// Reap the bookkeeping once the loop terminates for any reason.
	go func() {
		<-engine.Done()
		m.mu.Lock()
		delete(m.loops, engine.LoopID())
		if m.byAgent[agentID] == engine.LoopID() {
			delete(m.byAgent, agentID)
		}
		m.mu.Unlock()
		if m.terminal != nil {
			m.terminal(engine.FinalSnapshot())
		}
		if m.notifier != nil {
			m.notifier.LoopStopped(engine.LoopID(), agentID, channelID)
		}
	}()

	return engine.LoopID(), nil
}

// StopLoop requests a graceful stop and waits for the loop to terminate.
func (m *Manager) StopLoop(ctx context.Context, loopID, reason string) error {
	m.mu.Lock()
	engine, ok := m.loops[loopID]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrLoopNotFound, loopID)
	}

	engine.Stop(reason)
	select {
	case <-engine.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SubmitObservation routes an observation to the agent's active loop.
func (m *Manager) SubmitObservation(agentID string, obs models.Observation) error {
	m.mu.Lock()
	loopID, ok := m.byAgent[agentID]
	var engine *Engine
	if ok {
		engine = m.loops[loopID]
	}
	m.mu.Unlock()
	if engine == nil {
		return fmt.Errorf("%w: no active loop for agent %s", ErrLoopNotFound, agentID)
	}
	return engine.SubmitObservation(obs)
}

// Snapshot returns the loop's current state.
func (m *Manager) Snapshot(ctx context.Context, loopID string) (models.Loop, error) {
	m.mu.Lock()
	engine, ok := m.loops[loopID]
	m.mu.Unlock()
	if !ok {
		return models.Loop{}, fmt.Errorf("%w: %s", ErrLoopNotFound, loopID)
	}
	return engine.Snapshot(ctx)
}

// LoopForAgent returns the agent's active loop id.
func (m *Manager) LoopForAgent(agentID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	loopID, ok := m.byAgent[agentID]
	return loopID, ok
}

// LoopIDs returns the ids of all active loops.
func (m *Manager) LoopIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.loops))
	for id := range m.loops {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the number of active loops.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.loops)
}

// AgentDisconnected records that an agent's connection dropped; its loop
// becomes an orphan candidate after the grace period.
func (m *Manager) AgentDisconnected(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byAgent[agentID]; ok {
		m.disconnected[agentID] = time.Now()
	}
}

// AgentReconnected clears an agent's orphan candidacy.
func (m *Manager) AgentReconnected(agentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.disconnected, agentID)
}

// reapOrphans stops loops whose owner has been gone past the grace period.
func (m *Manager) reapOrphans() {
	cutoff := time.Now().Add(-m.cfg.OrphanGrace)

	m.mu.Lock()
	var orphans []*Engine
	for agentID, since := range m.disconnected {
		if since.After(cutoff) {
			continue
		}
		if loopID, ok := m.byAgent[agentID]; ok {
			if engine, ok := m.loops[loopID]; ok {
				orphans = append(orphans, engine)
			}
		}
		delete(m.disconnected, agentID)
	}
	m.mu.Unlock()

	for _, engine := range orphans {
		m.logger.Info("Stopping orphaned loop",
			"loop_id", engine.LoopID(), "agent_id", engine.OwnerAgentID())
		engine.Stop("orphaned")
	}
}

// Shutdown stops the scanner and every loop, waiting up to the configured
// graceful timeout.
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
		<-m.done
		m.cancel = nil
	}

	m.mu.Lock()
	engines := make([]*Engine, 0, len(m.loops))
	for _, e := range m.loops {
		engines = append(engines, e)
	}
	m.mu.Unlock()

	for _, e := range engines {
		e.Stop("server shutdown")
	}

	deadline := time.After(m.cfg.GracefulShutdownTimeout)
	for _, e := range engines {
		select {
		case <-e.Done():
		case <-deadline:
			m.logger.Warn("Abandoning loop at shutdown deadline", "loop_id", e.LoopID())
			return fmt.Errorf("graceful shutdown timed out with loops running")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
