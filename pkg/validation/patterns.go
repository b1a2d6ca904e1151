package validation

import (
	"fmt"
	"sync"
)

// patternKey scopes learned payload shapes to one tool in one channel.
type patternKey struct {
	channelID string
	toolName  string
}

// FieldPattern is the learned profile of one parameter field: how often it
// appeared in successful payloads and its most frequent value.
type FieldPattern struct {
	Field       string  `json:"field"`
	Frequency   int     `json:"frequency"`
	CommonValue any     `json:"common_value,omitempty"`
	Confidence  float64 `json:"confidence"`
}

// PatternStore accumulates successful payload shapes per (channel, tool) and
// serves field inference for the missing-required correction strategy.
// Bounded: only the most recent window of payloads per key informs patterns.
type PatternStore struct {
	mu      sync.RWMutex
	window  int
	samples map[patternKey][]map[string]any
	// successes/failures count outcomes per key for confidence weighting.
	successes map[patternKey]int
	failures  map[patternKey]int
}

// NewPatternStore creates a store keeping the last window successful
// payloads per (channel, tool).
func NewPatternStore(window int) *PatternStore {
	if window <= 0 {
		window = 50
	}
	return &PatternStore{
		window:    window,
		samples:   make(map[patternKey][]map[string]any),
		successes: make(map[patternKey]int),
		failures:  make(map[patternKey]int),
	}
}

// RecordSuccess adds a successful payload to the window.
func (s *PatternStore) RecordSuccess(channelID, toolName string, params map[string]any) {
	key := patternKey{channelID, toolName}

	// Shallow copy so later caller mutation cannot corrupt the window.
	sample := make(map[string]any, len(params))
	for k, v := range params {
		sample[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.successes[key]++
	window := append(s.samples[key], sample)
	if len(window) > s.window {
		window = window[len(window)-s.window:]
	}
	s.samples[key] = window
}

// RecordFailure counts a failed execution; failures weaken inference
// confidence but do not contribute payload shapes.
func (s *PatternStore) RecordFailure(channelID, toolName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[patternKey{channelID, toolName}]++
}

// Infer returns the learned pattern for one field, if the window has seen
// it. Confidence is the field's appearance rate weighted by the key's
// success ratio.
func (s *PatternStore) Infer(channelID, toolName, field string) (FieldPattern, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := patternKey{channelID, toolName}
	window := s.samples[key]
	if len(window) == 0 {
		return FieldPattern{}, false
	}

	freq := 0
	valueCounts := make(map[string]int)
	valueByRepr := make(map[string]any)
	for _, sample := range window {
		v, ok := sample[field]
		if !ok {
			continue
		}
		freq++
		repr := fmt.Sprintf("%v", v)
		valueCounts[repr]++
		valueByRepr[repr] = v
	}
	if freq == 0 {
		return FieldPattern{}, false
	}

	bestRepr, bestCount := "", 0
	for repr, count := range valueCounts {
		if count > bestCount {
			bestRepr, bestCount = repr, count
		}
	}

	appearance := float64(freq) / float64(len(window))
	ratio := s.successRatioLocked(key)
	return FieldPattern{
		Field:       field,
		Frequency:   freq,
		CommonValue: valueByRepr[bestRepr],
		Confidence:  appearance * ratio,
	}, true
}

// Stats returns the success/failure counts for a key.
func (s *PatternStore) Stats(channelID, toolName string) (successes, failures int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	key := patternKey{channelID, toolName}
	return s.successes[key], s.failures[key]
}

func (s *PatternStore) successRatioLocked(key patternKey) float64 {
	total := s.successes[key] + s.failures[key]
	if total == 0 {
		return 0
	}
	return float64(s.successes[key]) / float64(total)
}

// PatternSnapshot is the persistable state of one (channel, tool) key.
type PatternSnapshot struct {
	ChannelID string           `json:"channel_id"`
	ToolName  string           `json:"tool_name"`
	Samples   []map[string]any `json:"samples"`
	Successes int              `json:"successes"`
	Failures  int              `json:"failures"`
}

// Snapshot exports every key's window and outcome counts for persistence.
func (s *PatternStore) Snapshot() []PatternSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make(map[patternKey]bool, len(s.samples))
	for k := range s.samples {
		keys[k] = true
	}
	for k := range s.successes {
		keys[k] = true
	}
	for k := range s.failures {
		keys[k] = true
	}

	snaps := make([]PatternSnapshot, 0, len(keys))
	for k := range keys {
		window := s.samples[k]
		samples := make([]map[string]any, len(window))
		for i, sample := range window {
			cp := make(map[string]any, len(sample))
			for field, v := range sample {
				cp[field] = v
			}
			samples[i] = cp
		}
		snaps = append(snaps, PatternSnapshot{
			ChannelID: k.channelID,
			ToolName:  k.toolName,
			Samples:   samples,
			Successes: s.successes[k],
			Failures:  s.failures[k],
		})
	}
	return snaps
}

// Restore loads previously persisted pattern state, replacing any existing
// state for the restored keys. Windows wider than the configured window are
// trimmed to the most recent samples.
func (s *PatternStore) Restore(snaps []PatternSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, snap := range snaps {
		key := patternKey{snap.ChannelID, snap.ToolName}
		window := snap.Samples
		if len(window) > s.window {
			window = window[len(window)-s.window:]
		}
		s.samples[key] = window
		s.successes[key] = snap.Successes
		s.failures[key] = snap.Failures
	}
}
