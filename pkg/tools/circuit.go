package tools

import (
	"sync"
	"time"

	"github.com/cognia-ai/cognia/pkg/cogerr"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

type circuitKey struct {
	tool    string
	channel string
}

type circuitEntry struct {
	status           models.CircuitStatus
	consecutiveFails int
	probeSuccesses   int
	probeInFlight    bool
	lastFailureAt    time.Time
	openedAt         time.Time
	retryAt          time.Time
}

// CircuitSet tracks one breaker per (tool, channel) pair. Breakers are
// created lazily in the closed state on first use.
type CircuitSet struct {
	mu     sync.Mutex
	states map[circuitKey]*circuitEntry

	failThreshold  int
	cooldown       time.Duration
	halfOpenProbes int

	// now is swappable for tests.
	now func() time.Time
}

// NewCircuitSet creates breakers with the configured thresholds.
func NewCircuitSet(cfg *config.ValidationConfig) *CircuitSet {
	return &CircuitSet{
		states:         make(map[circuitKey]*circuitEntry),
		failThreshold:  cfg.CircuitFailThreshold,
		cooldown:       cfg.CircuitCooldown,
		halfOpenProbes: cfg.CircuitHalfOpenProbes,
		now:            time.Now,
	}
}

func (s *CircuitSet) entry(key circuitKey) *circuitEntry {
	e, ok := s.states[key]
	if !ok {
		e = &circuitEntry{status: models.CircuitClosed}
		s.states[key] = e
	}
	return e
}

// Allow admits or rejects an execution. An open breaker past its cooldown
// transitions to half-open and admits a single probe; rejected admissions
// return CircuitOpenError.
func (s *CircuitSet) Allow(toolName, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := circuitKey{toolName, channelID}
	e := s.entry(key)
	now := s.now()

	switch e.status {
	case models.CircuitClosed:
		return nil

	case models.CircuitOpen:
		if now.Before(e.retryAt) {
			return &cogerr.CircuitOpenError{ToolName: toolName, ChannelID: channelID, RetryAfter: e.retryAt}
		}
		// Cooldown elapsed: half-open and admit this call as the probe.
		e.status = models.CircuitHalfOpen
		e.probeSuccesses = 0
		e.probeInFlight = true
		return nil

	case models.CircuitHalfOpen:
		if e.probeInFlight {
			return &cogerr.CircuitOpenError{ToolName: toolName, ChannelID: channelID, RetryAfter: e.retryAt}
		}
		e.probeInFlight = true
		return nil
	}
	return nil
}

// RecordSuccess reports a successful execution. Enough successful half-open
// probes close the breaker.
func (s *CircuitSet) RecordSuccess(toolName, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(circuitKey{toolName, channelID})
	switch e.status {
	case models.CircuitClosed:
		e.consecutiveFails = 0
	case models.CircuitHalfOpen:
		e.probeInFlight = false
		e.probeSuccesses++
		if e.probeSuccesses >= s.halfOpenProbes {
			e.status = models.CircuitClosed
			e.consecutiveFails = 0
			e.probeSuccesses = 0
		}
	}
}

// RecordFailure reports a failed execution. Consecutive failures past the
// threshold open the breaker; a failed half-open probe reopens it.
func (s *CircuitSet) RecordFailure(toolName, channelID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.entry(circuitKey{toolName, channelID})
	now := s.now()
	e.lastFailureAt = now

	switch e.status {
	case models.CircuitClosed:
		e.consecutiveFails++
		if e.consecutiveFails >= s.failThreshold {
			s.open(e, now)
		}
	case models.CircuitHalfOpen:
		e.probeInFlight = false
		s.open(e, now)
	case models.CircuitOpen:
		// Late failure from a call admitted before opening; nothing to do.
	}
}

func (s *CircuitSet) open(e *circuitEntry, now time.Time) {
	e.status = models.CircuitOpen
	e.openedAt = now
	e.retryAt = now.Add(s.cooldown)
	e.probeSuccesses = 0
}

// IsOpen reports whether the breaker currently rejects admissions.
// A breaker past its cooldown counts as not-open: the next Allow will admit
// a probe.
func (s *CircuitSet) IsOpen(toolName, channelID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.states[circuitKey{toolName, channelID}]
	if !ok {
		return false
	}
	return e.status == models.CircuitOpen && s.now().Before(e.retryAt)
}

// Tick transitions open breakers past their cooldown to half-open. Called
// periodically by the registry's health tick so listAvailable reflects
// recovered tools without waiting for an admission attempt.
func (s *CircuitSet) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for _, e := range s.states {
		if e.status == models.CircuitOpen && !now.Before(e.retryAt) {
			e.status = models.CircuitHalfOpen
			e.probeSuccesses = 0
			e.probeInFlight = false
		}
	}
}

// Snapshot returns the state of every breaker touched so far.
func (s *CircuitSet) Snapshot() []models.CircuitState {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.CircuitState, 0, len(s.states))
	for key, e := range s.states {
		out = append(out, models.CircuitState{
			ToolName:         key.tool,
			ChannelID:        key.channel,
			Status:           e.status,
			ConsecutiveFails: e.consecutiveFails,
			LastFailureAt:    e.lastFailureAt,
			OpenedAt:         e.openedAt,
			RetryAt:          e.retryAt,
		})
	}
	return out
}
