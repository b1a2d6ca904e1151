package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognia-ai/cognia/pkg/cogerr"
	"github.com/cognia-ai/cognia/pkg/events"
	"github.com/cognia-ai/cognia/pkg/models"
)

func hintEnvelope(loopID string) events.Envelope {
	return events.NewEnvelope(events.EventHint, "agent-1", "ops", "", events.HintPayload{
		LoopID:   loopID,
		Metadata: models.MetadataMap{models.MetaORPARPhase: "observe"},
	})
}

func reflectionEnvelope(loopID string) events.Envelope {
	return events.NewEnvelope(events.EventReflection, "agent-1", "ops", "", events.ReflectionPayload{
		LoopID: loopID,
		Context: events.ReflectionContext{Reflection: models.Reflection{
			ReflectionID: "r-" + loopID,
			PlanID:       "p-" + loopID,
			Success:      true,
			Signals:      models.LearningSignals{Reward: 1},
		}},
	})
}

func TestEmitDeliversToSubscribers(t *testing.T) {
	b := New()
	defer b.Close()

	var got []events.Envelope
	unsub := b.Subscribe("room", func(_ context.Context, env events.Envelope) {
		got = append(got, env)
	})
	defer unsub()

	require.NoError(t, b.Emit(context.Background(), "room", hintEnvelope("loop-1")))
	require.NoError(t, b.Emit(context.Background(), "room", hintEnvelope("loop-2")))

	require.Len(t, got, 2)
	assert.Equal(t, events.EventHint, got[0].EventName)
}

func TestEmitRejectsInvalidEnvelope(t *testing.T) {
	b := New()
	defer b.Close()

	env := hintEnvelope("loop-1")
	env.ChannelID = ""

	err := b.Emit(context.Background(), "room", env)
	require.Error(t, err)
	assert.ErrorIs(t, err, cogerr.ErrSchemaViolation)
}

func TestUnsubscribeIsRefCounted(t *testing.T) {
	b := New()
	defer b.Close()

	var a, c int
	unsubA := b.Subscribe("room", func(_ context.Context, _ events.Envelope) { a++ })
	unsubC := b.Subscribe("room", func(_ context.Context, _ events.Envelope) { c++ })

	require.NoError(t, b.Emit(context.Background(), "room", hintEnvelope("loop-1")))
	assert.Equal(t, 2, b.SubscriberCount("room"))

	unsubA()
	unsubA() // double unsubscribe is a no-op
	assert.Equal(t, 1, b.SubscriberCount("room"))

	require.NoError(t, b.Emit(context.Background(), "room", hintEnvelope("loop-2")))
	assert.Equal(t, 1, a)
	assert.Equal(t, 2, c)

	unsubC()
	assert.Equal(t, 0, b.SubscriberCount("room"))
}

func TestAsyncTopicPreservesOrder(t *testing.T) {
	b := New()
	b.RegisterAsync("room", 64)

	var mu sync.Mutex
	var got []string
	done := make(chan struct{})
	const total = 50

	b.Subscribe("room", func(_ context.Context, env events.Envelope) {
		var p events.HintPayload
		_ = env.Decode(&p)
		mu.Lock()
		got = append(got, p.LoopID)
		if len(got) == total {
			close(done)
		}
		mu.Unlock()
	})

	for i := 0; i < total; i++ {
		require.NoError(t, b.Emit(context.Background(), "room", hintEnvelope(loopName(i))))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for async delivery")
	}
	b.Close()

	for i := 0; i < total; i++ {
		assert.Equal(t, loopName(i), got[i], "delivery order must match emission order")
	}
}

func loopName(i int) string {
	return "loop-" + string(rune('a'+i/26)) + string(rune('a'+i%26))
}

func TestOverflowDropsOldestNonCritical(t *testing.T) {
	b := New()
	b.RegisterAsync("room", 2)

	var mu sync.Mutex
	var got []events.Name
	blocked := make(chan struct{})

	b.Subscribe("room", func(_ context.Context, env events.Envelope) {
		<-blocked // hold the drainer so the queue fills
		mu.Lock()
		got = append(got, env.EventName)
		mu.Unlock()
	})

	ctx := context.Background()
	// First emit is picked up by the drainer and blocks; the next two fill
	// the queue.
	require.NoError(t, b.Emit(ctx, "room", hintEnvelope("h1")))
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, b.Emit(ctx, "room", hintEnvelope("h2")))
	require.NoError(t, b.Emit(ctx, "room", hintEnvelope("h3")))

	// Overflow: h2 is evicted to admit h4.
	require.NoError(t, b.Emit(ctx, "room", hintEnvelope("h4")))
	assert.Equal(t, int64(1), b.Dropped())

	// A critical event overflows to the spill buffer, never dropped.
	require.NoError(t, b.Emit(ctx, "room", reflectionEnvelope("loop-1")))
	assert.Equal(t, int64(1), b.Dropped())

	close(blocked)
	b.Close()

	mu.Lock()
	defer mu.Unlock()
	critical := 0
	for _, n := range got {
		if n == events.EventReflection {
			critical++
		}
	}
	assert.Equal(t, 1, critical, "spilled critical event must be delivered")
}

func TestEmitAfterClose(t *testing.T) {
	b := New()
	b.Close()

	err := b.Emit(context.Background(), "room", hintEnvelope("loop-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bus closed")
}

func TestDeduper(t *testing.T) {
	d := NewDeduper(3)

	assert.False(t, d.Seen("a"))
	assert.True(t, d.Seen("a"))

	// Empty correlation ids are never deduplicated
	assert.False(t, d.Seen(""))
	assert.False(t, d.Seen(""))

	// Window ages out the oldest id
	assert.False(t, d.Seen("b"))
	assert.False(t, d.Seen("c"))
	assert.False(t, d.Seen("d")) // evicts "a"
	assert.False(t, d.Seen("a"))
}
