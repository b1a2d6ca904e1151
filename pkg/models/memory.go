package models

import "time"

// MemoryScope is who a memory item belongs to.
type MemoryScope string

const (
	ScopeAgent        MemoryScope = "agent"
	ScopeChannel      MemoryScope = "channel"
	ScopeRelationship MemoryScope = "relationship"
)

// Valid reports whether s is a known scope.
func (s MemoryScope) Valid() bool {
	switch s {
	case ScopeAgent, ScopeChannel, ScopeRelationship:
		return true
	}
	return false
}

// MemoryStratum is a retention tier. Strata order from most ephemeral to
// most durable; consolidation moves items along this order.
type MemoryStratum string

const (
	StratumWorking   MemoryStratum = "working"
	StratumShortTerm MemoryStratum = "short_term"
	StratumEpisodic  MemoryStratum = "episodic"
	StratumSemantic  MemoryStratum = "semantic"
	StratumLongTerm  MemoryStratum = "long_term"
)

// Strata lists all strata from most ephemeral to most durable.
var Strata = []MemoryStratum{
	StratumWorking,
	StratumShortTerm,
	StratumEpisodic,
	StratumSemantic,
	StratumLongTerm,
}

// Valid reports whether s is a known stratum.
func (s MemoryStratum) Valid() bool {
	switch s {
	case StratumWorking, StratumShortTerm, StratumEpisodic, StratumSemantic, StratumLongTerm:
		return true
	}
	return false
}

// Next returns the next more durable stratum, or s itself at the top.
func (s MemoryStratum) Next() MemoryStratum {
	for i, st := range Strata {
		if st == s && i < len(Strata)-1 {
			return Strata[i+1]
		}
	}
	return s
}

// Prev returns the next more ephemeral stratum, or s itself at the bottom.
func (s MemoryStratum) Prev() MemoryStratum {
	for i, st := range Strata {
		if st == s && i > 0 {
			return Strata[i-1]
		}
	}
	return s
}

// MemoryItem is one stored memory with its utility learning state.
// QValue is bounded to [0, 1].
type MemoryItem struct {
	MemoryID string      `json:"memory_id"`
	Scope    MemoryScope `json:"scope"`

	// TargetID is the scope's subject: an agent id, a channel id, or a
	// relationship key of the form "agentA|agentB".
	TargetID string `json:"target_id"`

	Stratum MemoryStratum `json:"stratum"`
	Key     string        `json:"key"`
	Value   string        `json:"value"`

	Embedding []float32 `json:"embedding,omitempty"`

	QValue       float64 `json:"q_value"`
	SuccessCount int     `json:"success_count"`
	FailureCount int     `json:"failure_count"`
	AccessCount  int     `json:"access_count"`

	LastAccessedAt time.Time `json:"last_accessed_at"`
	CreatedAt      time.Time `json:"created_at"`

	// TTL of zero means the item never expires by age.
	TTL time.Duration `json:"ttl,omitempty"`
}

// Expired reports whether the item's TTL has elapsed at now.
func (m *MemoryItem) Expired(now time.Time) bool {
	if m.TTL <= 0 {
		return false
	}
	return now.Sub(m.CreatedAt) >= m.TTL
}
