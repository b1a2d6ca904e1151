package bridge

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognia-ai/cognia/pkg/events"
)

func hintEnvelope(correlationID string) events.Envelope {
	return events.NewEnvelope(events.EventHint, "agent-1", "ops", correlationID,
		map[string]any{"loop_id": "loop-1", "metadata": map[string]any{}})
}

func TestCatchupRing_SequencesPerRoom(t *testing.T) {
	ring := newCatchupRing(8)

	assert.Equal(t, uint64(1), ring.record("channel:ops", hintEnvelope("")))
	assert.Equal(t, uint64(2), ring.record("channel:ops", hintEnvelope("")))
	// Rooms are numbered independently.
	assert.Equal(t, uint64(1), ring.record("channel:dev", hintEnvelope("")))
}

func TestCatchupRing_SinceReturnsMissedInOrder(t *testing.T) {
	ring := newCatchupRing(8)
	for i := 0; i < 5; i++ {
		ring.record("channel:ops", hintEnvelope(fmt.Sprintf("c%d", i)))
	}

	missed, overflow := ring.since("channel:ops", 2)
	require.Len(t, missed, 3)
	assert.False(t, overflow)
	assert.Equal(t, uint64(3), missed[0].Seq)
	assert.Equal(t, uint64(5), missed[2].Seq)
}

func TestCatchupRing_WindowEvictionSignalsOverflow(t *testing.T) {
	ring := newCatchupRing(3)
	for i := 0; i < 6; i++ {
		ring.record("channel:ops", hintEnvelope(""))
	}

	// Only sequences 4..6 are retained; a client at seq 1 has a gap.
	missed, overflow := ring.since("channel:ops", 1)
	require.Len(t, missed, 3)
	assert.True(t, overflow)
	assert.Equal(t, uint64(4), missed[0].Seq)

	// A client at seq 3 resumes exactly where retention begins.
	_, overflow = ring.since("channel:ops", 3)
	assert.False(t, overflow)
}

func TestCatchupRing_FreshClientGetsAllWithoutOverflow(t *testing.T) {
	ring := newCatchupRing(3)
	for i := 0; i < 6; i++ {
		ring.record("channel:ops", hintEnvelope(""))
	}

	// lastSeq 0 means "no prior position": replay what is retained, no gap.
	missed, overflow := ring.since("channel:ops", 0)
	assert.Len(t, missed, 3)
	assert.False(t, overflow)
}

func TestCatchupRing_UnknownRoom(t *testing.T) {
	ring := newCatchupRing(8)
	missed, overflow := ring.since("channel:ghost", 7)
	assert.Empty(t, missed)
	assert.False(t, overflow)
}
