// Package cogerr defines the sentinel errors and error kinds shared across
// Cognia. Components wrap these with %w so callers classify with errors.Is
// rather than string matching.
package cogerr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cognia-ai/cognia/pkg/models"
)

// Sentinel errors. Wrap with fmt.Errorf("...: %w", Err...) and test with
// errors.Is.
var (
	// ErrSchemaViolation marks payloads or parameters that failed schema
	// validation.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrPhaseViolation marks a tool invocation outside its allowed phases.
	ErrPhaseViolation = errors.New("phase violation")

	// ErrCircuitOpen marks an invocation rejected by an open circuit breaker.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrCorrectionExhausted marks parameter correction that ran out of
	// retries without reaching a valid payload.
	ErrCorrectionExhausted = errors.New("correction exhausted")

	// ErrToolFailure marks a tool execution that ran and failed.
	ErrToolFailure = errors.New("tool failure")

	// ErrLLMFailure marks an LLM call that failed after retries.
	ErrLLMFailure = errors.New("llm failure")

	// ErrBackendUnavailable marks a dependency (database, tool server) that
	// is down or unreachable.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrFatal marks unrecoverable conditions; the loop stops rather than
	// retries.
	ErrFatal = errors.New("fatal")
)

// Kind is a coarse error classification used in violation events and logs.
type Kind string

const (
	KindSchemaViolation     Kind = "schema_violation"
	KindPhaseViolation      Kind = "phase_violation"
	KindCircuitOpen         Kind = "circuit_open"
	KindCorrectionExhausted Kind = "correction_exhausted"
	KindToolFailure         Kind = "tool_failure"
	KindLLMFailure          Kind = "llm_failure"
	KindBackendUnavailable  Kind = "backend_unavailable"
	KindFatal               Kind = "fatal"
	KindCancelled           Kind = "cancelled"
	KindUnknown             Kind = "unknown"
)

// KindOf classifies an error by its sentinel. Context cancellation and
// deadline expiry classify as KindCancelled regardless of wrapping.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	case errors.Is(err, ErrSchemaViolation):
		return KindSchemaViolation
	case errors.Is(err, ErrPhaseViolation):
		return KindPhaseViolation
	case errors.Is(err, ErrCircuitOpen):
		return KindCircuitOpen
	case errors.Is(err, ErrCorrectionExhausted):
		return KindCorrectionExhausted
	case errors.Is(err, ErrToolFailure):
		return KindToolFailure
	case errors.Is(err, ErrLLMFailure):
		return KindLLMFailure
	case errors.Is(err, ErrBackendUnavailable):
		return KindBackendUnavailable
	case errors.Is(err, ErrFatal):
		return KindFatal
	default:
		return KindUnknown
	}
}

// IsCancelled reports whether err stems from context cancellation.
func IsCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// CircuitOpenError carries the breaker identity and the earliest retry time.
type CircuitOpenError struct {
	ToolName   string
	ChannelID  string
	RetryAfter time.Time
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit open for tool %q in channel %q (retry after %s)",
		e.ToolName, e.ChannelID, e.RetryAfter.Format(time.RFC3339))
}

func (e *CircuitOpenError) Unwrap() error { return ErrCircuitOpen }

// PhaseViolationError carries the tool, the loop's current phase, and the
// phases the tool is gated to.
type PhaseViolationError struct {
	ToolName     string
	CurrentPhase models.Phase
	Allowed      models.PhaseSet
}

func (e *PhaseViolationError) Error() string {
	return fmt.Sprintf("tool %q not allowed in phase %s (allowed: %v)",
		e.ToolName, e.CurrentPhase, e.Allowed.Slice())
}

func (e *PhaseViolationError) Unwrap() error { return ErrPhaseViolation }
