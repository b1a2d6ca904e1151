package bridge

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flushCollector struct {
	mu      sync.Mutex
	batches [][]SequencedEvent
}

func (c *flushCollector) flush(_ string, batch []SequencedEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batches = append(c.batches, batch)
}

func (c *flushCollector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.batches)
}

func (c *flushCollector) batch(i int) []SequencedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batches[i]
}

func TestRoomBatcher_CoalescesWithinDelay(t *testing.T) {
	collector := &flushCollector{}
	b := newRoomBatcher("channel:ops", 50*time.Millisecond, 32, collector.flush)
	defer b.stop()

	for i := 1; i <= 3; i++ {
		b.add(SequencedEvent{Seq: uint64(i), Envelope: hintEnvelope("")})
	}

	require.Eventually(t, func() bool { return collector.count() == 1 },
		time.Second, 5*time.Millisecond)
	batch := collector.batch(0)
	require.Len(t, batch, 3)
	assert.Equal(t, uint64(1), batch[0].Seq)
	assert.Equal(t, uint64(3), batch[2].Seq)
}

func TestRoomBatcher_FlushesEarlyAtMaxSize(t *testing.T) {
	collector := &flushCollector{}
	b := newRoomBatcher("channel:ops", time.Hour, 2, collector.flush)
	defer b.stop()

	for i := 1; i <= 4; i++ {
		b.add(SequencedEvent{Seq: uint64(i), Envelope: hintEnvelope("")})
	}

	require.Eventually(t, func() bool { return collector.count() == 2 },
		time.Second, 5*time.Millisecond)
	assert.Len(t, collector.batch(0), 2)
	assert.Len(t, collector.batch(1), 2)
}

func TestRoomBatcher_StopDrainsPending(t *testing.T) {
	collector := &flushCollector{}
	b := newRoomBatcher("channel:ops", time.Hour, 32, collector.flush)

	b.add(SequencedEvent{Seq: 1, Envelope: hintEnvelope("")})
	b.add(SequencedEvent{Seq: 2, Envelope: hintEnvelope("")})
	b.stop()

	require.Equal(t, 1, collector.count())
	assert.Len(t, collector.batch(0), 2)
}
