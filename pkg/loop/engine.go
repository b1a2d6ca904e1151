// Package loop implements the server-side ORPAR cycle engine. Each loop is
// an actor: a mailbox drained by one goroutine that owns all loop state, so
// phase events for a loop are emitted in order and never race. Across loops,
// work is parallel; the manager bounds how many run at once.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/cognia-ai/cognia/pkg/bus"
	"github.com/cognia-ai/cognia/pkg/cogerr"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/events"
	"github.com/cognia-ai/cognia/pkg/models"
)

// ErrMailboxFull is returned when a loop's mailbox cannot accept more work.
var ErrMailboxFull = errors.New("loop mailbox full")

// ErrLoopStopped is returned when messaging a loop that has terminated.
var ErrLoopStopped = errors.New("loop stopped")

type message interface{ isMessage() }

type submitObservation struct {
	obs models.Observation
}

type snapshotRequest struct {
	reply chan models.Loop
}

func (submitObservation) isMessage() {}
func (snapshotRequest) isMessage()   {}

// Engine runs one agent's cognitive loop. All fields below the mailbox are
// owned by the run goroutine; external access goes through messages.
type Engine struct {
	loopID       string
	ownerAgentID string
	channelID    string
	goal         string

	cfg      *config.LoopConfig
	bus      *bus.Bus
	llm      PhaseLLM
	executor ToolExecutor
	tools    ToolLister
	memory   MemoryHooks
	logger   *slog.Logger

	mailbox chan message
	stopCh  chan string
	cancel  context.CancelFunc
	done    chan struct{}

	// Actor-owned state.
	phase        models.Phase
	status       models.LoopStatus
	observations []models.Observation
	reasoning    *models.Reasoning
	plan         *models.Plan
	startedAt    time.Time
	cycleStart   time.Time
	touched      map[models.Phase][]string
}

// NewEngine builds a loop for one agent. Call Start to run it.
func NewEngine(cfg *config.LoopConfig, eventBus *bus.Bus, phaseLLM PhaseLLM, executor ToolExecutor, lister ToolLister, mem MemoryHooks, ownerAgentID, channelID, goal string) *Engine {
	if cfg == nil {
		cfg = config.DefaultLoopConfig()
	}
	loopID := uuid.NewString()
	return &Engine{
		loopID:       loopID,
		ownerAgentID: ownerAgentID,
		channelID:    channelID,
		goal:         goal,
		cfg:          cfg,
		bus:          eventBus,
		llm:          phaseLLM,
		executor:     executor,
		tools:        lister,
		memory:       mem,
		logger: slog.Default().With(
			"component", "loop", "loop_id", loopID, "agent_id", ownerAgentID),
		mailbox: make(chan message, cfg.MailboxDepth),
		stopCh:  make(chan string, 1),
		done:    make(chan struct{}),
		status:  models.LoopInitializing,
		touched: make(map[models.Phase][]string),
	}
}

// LoopID returns the loop's identifier.
func (e *Engine) LoopID() string { return e.loopID }

// OwnerAgentID returns the owning agent's identifier.
func (e *Engine) OwnerAgentID() string { return e.ownerAgentID }

// ChannelID returns the loop's channel.
func (e *Engine) ChannelID() string { return e.channelID }

// Done closes when the loop has fully stopped.
func (e *Engine) Done() <-chan struct{} { return e.done }

// Start launches the loop's actor goroutine.
func (e *Engine) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	go e.run(ctx)
}

// SubmitObservation enqueues an observation. Never blocks: a full mailbox is
// backpressure the caller must surface.
func (e *Engine) SubmitObservation(obs models.Observation) error {
	select {
	case <-e.done:
		return ErrLoopStopped
	default:
	}
	select {
	case e.mailbox <- submitObservation{obs: obs}:
		return nil
	case <-e.done:
		return ErrLoopStopped
	default:
		return fmt.Errorf("%w: loop %s", ErrMailboxFull, e.loopID)
	}
}

// Stop requests a graceful stop with a reason. In-flight phase work is
// cancelled; the call does not wait (use Done).
func (e *Engine) Stop(reason string) {
	select {
	case e.stopCh <- reason:
	default:
	}
	if e.cancel != nil {
		e.cancel()
	}
}

// Snapshot returns a copy of the loop's current state, served by the actor.
func (e *Engine) Snapshot(ctx context.Context) (models.Loop, error) {
	reply := make(chan models.Loop, 1)
	select {
	case e.mailbox <- snapshotRequest{reply: reply}:
	case <-e.done:
		return models.Loop{}, ErrLoopStopped
	case <-ctx.Done():
		return models.Loop{}, ctx.Err()
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-e.done:
		return models.Loop{}, ErrLoopStopped
	case <-ctx.Done():
		return models.Loop{}, ctx.Err()
	}
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	e.startedAt = time.Now().UTC()
	e.emit(ctx, events.EventInitialize, events.InitializePayload{
		LoopID: e.loopID,
		Config: events.LoopConfigSnapshot{
			MaxObservations: e.cfg.MaxObservations,
			OwnerAgentID:    e.ownerAgentID,
			ChannelID:       e.channelID,
		},
		Status: models.LoopInitializing,
	})

	e.status = models.LoopStarting
	e.emit(ctx, events.EventStarted, events.StartedPayload{
		LoopID: e.loopID,
		Status: models.LoopStarting,
	})

	e.status = models.LoopRunning
	e.setPhase(ctx, models.PhaseObserve)

	for {
		select {
		case <-ctx.Done():
			// Stop cancels the context after queueing its reason; prefer it.
			reason := "cancelled"
			select {
			case r := <-e.stopCh:
				reason = r
			default:
			}
			e.finish(reason)
			return
		case reason := <-e.stopCh:
			e.finish(reason)
			return
		case msg := <-e.mailbox:
			switch m := msg.(type) {
			case submitObservation:
				e.recordObservation(ctx, m.obs)
				if e.phase == models.PhaseObserve && ctx.Err() == nil {
					e.runCycle(ctx)
				}
			case snapshotRequest:
				m.reply <- e.snapshot()
			}
		}
	}
}

// recordObservation appends to the bounded FIFO buffer, evicting the oldest
// on overflow, and publishes the observation event.
func (e *Engine) recordObservation(ctx context.Context, obs models.Observation) {
	if obs.ID == "" {
		obs.ID = uuid.NewString()
	}
	obs.Timestamp = time.Now().UTC()

	e.observations = append(e.observations, obs)
	if len(e.observations) > e.cfg.MaxObservations {
		evicted := len(e.observations) - e.cfg.MaxObservations
		e.observations = append([]models.Observation(nil), e.observations[evicted:]...)
		e.logger.Debug("Observation buffer overflow, evicted oldest", "evicted", evicted)
	}

	e.emit(ctx, events.EventObservation, events.ObservationPayload{
		LoopID:      e.loopID,
		Observation: obs,
	})
}

// runCycle drives one Reason → Plan → Act → Reflect pass and returns the
// loop to Observe. Phase handler errors are logged and degrade, they never
// kill the loop; only cancellation aborts mid-cycle.
func (e *Engine) runCycle(ctx context.Context) {
	e.cycleStart = time.Now().UTC()
	e.touched = make(map[models.Phase][]string)

	e.runReason(ctx)
	if ctx.Err() != nil {
		return
	}
	e.runPlan(ctx)
	if ctx.Err() != nil {
		return
	}
	if e.plan != nil && len(e.plan.Actions) > 0 {
		e.runAct(ctx)
		if ctx.Err() != nil {
			return
		}
	}
	e.runReflect(ctx)
	if ctx.Err() != nil {
		return
	}

	e.reasoning = nil
	e.plan = nil
	e.setPhase(ctx, models.PhaseObserve)
}

func (e *Engine) runReason(ctx context.Context) {
	e.setPhase(ctx, models.PhaseReason)
	phaseCtx, cancel := context.WithTimeout(ctx, e.cfg.PhaseTimeout)
	defer cancel()

	var memories []string
	if e.memory != nil {
		snippets, ids, err := e.memory.Recall(phaseCtx, models.PhaseReason, e.channelID, e.recallQuery())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Warn("Memory recall failed, reasoning without it", "error", err)
		} else {
			memories = snippets
			e.touched[models.PhaseReason] = ids
		}
	}

	reasoning, err := e.llm.Reason(phaseCtx, e.goal, e.observations, memories)
	if err != nil {
		// Only the loop's own cancellation aborts the cycle. A phase timeout
		// cancels phaseCtx alone and degrades like any provider failure: the
		// fallback artifact still advances the cycle, visible as
		// enhanced=false.
		if ctx.Err() != nil {
			return
		}
		e.logger.Warn("Reasoning degraded to fallback artifact", "error", err)
	}
	e.reasoning = &reasoning

	e.emit(ctx, events.EventReasoning, events.ReasoningPayload{
		LoopID:    e.loopID,
		Reasoning: reasoning,
	})
}

func (e *Engine) runPlan(ctx context.Context) {
	e.setPhase(ctx, models.PhasePlan)
	phaseCtx, cancel := context.WithTimeout(ctx, e.cfg.PhaseTimeout)
	defer cancel()

	available := e.tools.ListAvailable(e.channelID, models.PhaseAct)

	plan, err := e.llm.BuildPlan(phaseCtx, e.goal, *e.reasoning, available)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		e.logger.Warn("Planning degraded to empty plan", "error", err)
	}
	sort.SliceStable(plan.Actions, func(i, j int) bool {
		return plan.Actions[i].Priority < plan.Actions[j].Priority
	})
	e.plan = &plan

	e.emit(ctx, events.EventPlan, events.PlanPayload{
		LoopID: e.loopID,
		Plan:   plan,
	})
}

func (e *Engine) runAct(ctx context.Context) {
	e.setPhase(ctx, models.PhaseAct)

	for i := range e.plan.Actions {
		if ctx.Err() != nil {
			e.skipRemaining(ctx, i, "loop stopping")
			return
		}
		e.executeAction(ctx, &e.plan.Actions[i])
	}
}

func (e *Engine) executeAction(ctx context.Context, action *models.PlanAction) {
	e.updateAction(ctx, action, models.ActionInProgress)
	e.emit(ctx, events.EventExecution, events.ExecutionPayload{
		LoopID: e.loopID,
		Action: *action,
	})

	actionCtx, cancel := context.WithTimeout(ctx, e.cfg.ActionTimeout)
	result, err := e.executor.Execute(actionCtx, e.channelID, models.PhaseAct, action.Tool, action.Parameters)
	cancel()

	if err != nil {
		e.reportViolation(ctx, action.Tool, err)
		action.Error = err.Error()
		e.updateAction(ctx, action, models.ActionFailed)
		e.logger.Warn("Action failed", "action_id", action.ID, "tool", action.Tool, "error", err)
		return
	}

	action.Result = result
	e.updateAction(ctx, action, models.ActionCompleted)

	// Successful results feed the next cycle as synthesized observations.
	if len(result) > 0 {
		e.recordObservation(ctx, models.Observation{
			AgentID: e.ownerAgentID,
			Source:  models.ObservationSourceActionResult,
			Content: fmt.Sprintf("action %s (%s) completed", action.ID, action.Tool),
			Data: map[string]any{
				"action_id": action.ID,
				"result":    result,
			},
		})
	}
}

func (e *Engine) skipRemaining(ctx context.Context, from int, reason string) {
	for i := from; i < len(e.plan.Actions); i++ {
		action := &e.plan.Actions[i]
		if action.Status.Terminal() {
			continue
		}
		action.Error = reason
		e.updateAction(ctx, action, models.ActionSkipped)
	}
}

func (e *Engine) updateAction(ctx context.Context, action *models.PlanAction, status models.ActionStatus) {
	action.Status = status
	e.emit(ctx, events.EventAction, events.ActionPayload{
		LoopID: e.loopID,
		Action: *action,
		Status: status,
	})
}

// reportViolation emits a violation event for admission rejections (phase
// gating, open circuits). Other failures are plain action errors.
func (e *Engine) reportViolation(ctx context.Context, toolName string, err error) {
	var kind string
	switch {
	case errors.Is(err, cogerr.ErrPhaseViolation):
		kind = "phase_violation"
	case errors.Is(err, cogerr.ErrCircuitOpen):
		kind = "circuit_open"
	default:
		return
	}
	e.emit(ctx, events.EventViolation, events.ViolationPayload{
		LoopID:   e.loopID,
		ToolName: toolName,
		Phase:    string(e.phase),
		Kind:     kind,
		Message:  err.Error(),
	})
}

func (e *Engine) runReflect(ctx context.Context) {
	e.setPhase(ctx, models.PhaseReflect)
	phaseCtx, cancel := context.WithTimeout(ctx, e.cfg.PhaseTimeout)
	defer cancel()

	plan := models.Plan{}
	if e.plan != nil {
		plan = *e.plan
	}
	metrics := computeMetrics(plan, time.Since(e.cycleStart))
	success := metrics.ActionsFailed == 0 && metrics.ActionsCompleted > 0

	insights, improvements, err := e.llm.Reflect(phaseCtx, plan, metrics)
	if err != nil {
		// A phase timeout must not swallow the reflection: the event is
		// emitted exactly once per terminal plan, with or without insights.
		if ctx.Err() != nil {
			return
		}
		e.logger.Warn("Reflection degraded, keeping computed metrics only", "error", err)
	}

	reward := -1.0
	if success {
		reward = 1.0
	}
	confidence := 0.5
	if e.reasoning != nil {
		confidence = e.reasoning.Confidence
	}

	reflection := models.Reflection{
		ReflectionID: uuid.NewString(),
		PlanID:       plan.PlanID,
		Success:      success,
		Metrics:      metrics,
		Insights:     insights,
		Improvements: improvements,
		Signals: models.LearningSignals{
			Reward:     reward,
			Confidence: confidence,
		},
	}
	e.emit(ctx, events.EventReflection, events.ReflectionPayload{
		LoopID:  e.loopID,
		Context: events.ReflectionContext{Reflection: reflection},
	})

	if e.memory != nil {
		var all []string
		for phase, ids := range e.touched {
			e.memory.ApplyReward(phase, ids, reward, confidence)
			all = append(all, ids...)
		}
		if len(all) > 0 {
			if err := e.memory.Consolidate(phaseCtx, all); err != nil && ctx.Err() == nil {
				e.logger.Warn("Memory consolidation failed", "error", err)
			}
		}
	}
}

func computeMetrics(plan models.Plan, duration time.Duration) models.ReflectionMetrics {
	counts := plan.CountByStatus()
	total := len(plan.Actions)
	m := models.ReflectionMetrics{
		ActionsTotal:     total,
		ActionsCompleted: counts[models.ActionCompleted],
		ActionsFailed:    counts[models.ActionFailed],
		ActionsSkipped:   counts[models.ActionSkipped],
		Duration:         duration,
	}
	if total > 0 {
		m.SuccessRate = float64(m.ActionsCompleted) / float64(total)
	}
	return m
}

// setPhase moves the loop to a new phase and publishes a hint event carrying
// the phase metadata client mirrors substitute into prompts.
func (e *Engine) setPhase(ctx context.Context, phase models.Phase) {
	if e.phase == phase {
		return
	}
	e.phase = phase
	e.emit(ctx, events.EventHint, events.HintPayload{
		LoopID: e.loopID,
		Metadata: models.MetadataMap{
			models.MetaORPARPhase:  string(phase),
			models.MetaLoopOwnerID: e.ownerAgentID,
		},
	})
}

func (e *Engine) finish(reason string) {
	e.status = models.LoopStopping
	// The loop's own context is cancelled by now; the terminal event must
	// still go out.
	ctx := context.Background()
	e.emit(ctx, events.EventStopped, events.StoppedPayload{
		LoopID:  e.loopID,
		Status:  models.LoopStopping,
		Context: events.StoppedContext{Reason: reason},
	})
	e.status = models.LoopStopped
	e.phase = models.PhaseNull
	e.logger.Info("Loop stopped", "reason", reason)
}

func (e *Engine) snapshot() models.Loop {
	snap := models.Loop{
		LoopID:       e.loopID,
		OwnerAgentID: e.ownerAgentID,
		ChannelID:    e.channelID,
		Phase:        e.phase,
		Status:       e.status,
		Observations: append([]models.Observation(nil), e.observations...),
		StartedAt:    e.startedAt,
	}
	if e.reasoning != nil {
		r := *e.reasoning
		snap.Reasoning = &r
	}
	if e.plan != nil {
		p := *e.plan
		p.Actions = append([]models.PlanAction(nil), e.plan.Actions...)
		snap.Plan = &p
	}
	return snap
}

// FinalSnapshot returns the loop's terminal state. Callers must wait for
// Done first; the actor goroutine has exited and no longer touches state.
func (e *Engine) FinalSnapshot() models.Loop {
	<-e.done
	return e.snapshot()
}

// recallQuery condenses the observation buffer into the retrieval query.
func (e *Engine) recallQuery() string {
	if len(e.observations) == 0 {
		return e.goal
	}
	latest := e.observations[len(e.observations)-1]
	if e.goal == "" {
		return latest.Content
	}
	return e.goal + ": " + latest.Content
}

func (e *Engine) emit(ctx context.Context, name events.Name, data any) {
	env := events.NewEnvelope(name, e.ownerAgentID, e.channelID, uuid.NewString(), data)
	if err := e.bus.Emit(ctx, events.ChannelRoom(e.channelID), env); err != nil {
		e.logger.Error("Event emission failed", "event", name, "error", err)
	}
}
