package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/cognia-ai/cognia/pkg/events"
)

// DefaultAsyncDepth is the queue depth used when RegisterAsync is called
// with a non-positive depth.
const DefaultAsyncDepth = 256

// asyncTopic holds the bounded queue and overflow spill for one async topic.
//
// Overflow policy: when the queue is full, non-critical envelopes evict the
// oldest queued non-critical envelope (counted and logged); critical
// envelopes are never dropped — they spill to an unbounded overflow buffer
// the drainer empties before touching the queue again.
//
// Spill priority trades order for loss-freedom: during a burst, spilled
// critical events are delivered ahead of earlier-queued non-critical ones,
// so cross-event ordering on an async topic is only guaranteed while the
// queue is not overflowing. Subscribers needing strict order belong on a
// sync topic.
type asyncTopic struct {
	topic string
	queue chan events.Envelope

	spillMu sync.Mutex
	spill   []events.Envelope
}

// RegisterAsync marks a topic for asynchronous delivery with the given queue
// depth. Must be called before the first Emit on the topic; calling it twice
// for the same topic is a no-op.
func (b *Bus) RegisterAsync(topic string, depth int) {
	if depth <= 0 {
		depth = DefaultAsyncDepth
	}

	b.asyncMu.Lock()
	defer b.asyncMu.Unlock()
	if _, exists := b.async[topic]; exists {
		return
	}

	at := &asyncTopic{
		topic: topic,
		queue: make(chan events.Envelope, depth),
	}
	b.async[topic] = at

	b.wg.Add(1)
	go b.drain(at)
}

// enqueue places an envelope on the async queue, applying the overflow policy
// when the queue is full.
func (b *Bus) enqueue(at *asyncTopic, env events.Envelope) {
	select {
	case at.queue <- env:
		return
	default:
	}

	// Queue full.
	if env.EventName.Critical() {
		at.spillMu.Lock()
		at.spill = append(at.spill, env)
		n := len(at.spill)
		at.spillMu.Unlock()
		slog.Warn("Async topic spilled critical event",
			"topic", at.topic, "event", env.EventName, "spill_depth", n)
		return
	}

	// Drop the oldest queued envelope to make room, unless it is critical —
	// in that case drop the incoming one instead.
	select {
	case old := <-at.queue:
		if old.EventName.Critical() {
			at.spillMu.Lock()
			at.spill = append(at.spill, old)
			at.spillMu.Unlock()
		} else {
			b.dropped.Add(1)
			slog.Warn("Async topic dropped oldest event under backpressure",
				"topic", at.topic, "dropped_event", old.EventName)
		}
	default:
	}

	select {
	case at.queue <- env:
	default:
		b.dropped.Add(1)
		slog.Warn("Async topic dropped incoming event under backpressure",
			"topic", at.topic, "dropped_event", env.EventName)
	}
}

// drain delivers queued envelopes for one async topic. A single drainer per
// topic preserves per-topic emission order; distinct topics run in parallel.
func (b *Bus) drain(at *asyncTopic) {
	defer b.wg.Done()
	ctx := context.Background()

	for {
		// Spilled critical events take priority over the queue.
		at.spillMu.Lock()
		if len(at.spill) > 0 {
			env := at.spill[0]
			at.spill = at.spill[1:]
			at.spillMu.Unlock()
			b.deliver(ctx, at.topic, env)
			continue
		}
		at.spillMu.Unlock()

		env, ok := <-at.queue
		if !ok {
			// Bus closing: flush any spill that raced in, then exit.
			at.spillMu.Lock()
			rest := at.spill
			at.spill = nil
			at.spillMu.Unlock()
			for _, e := range rest {
				b.deliver(ctx, at.topic, e)
			}
			return
		}
		b.deliver(ctx, at.topic, env)
	}
}
