// Package bus provides the in-process event fabric: validated typed pub/sub
// with per-topic ordering, reference-counted subscriptions, and bounded async
// topics with an explicit overflow policy.
//
// Within a single topic, emissions from one source reach every subscriber in
// emission order. Sync topics deliver in the emitter's goroutine; async
// topics enqueue to a bounded queue drained by a dedicated goroutine per
// topic, which preserves per-topic order while keeping topics parallel.
package bus

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/cognia-ai/cognia/pkg/events"
)

// Handler receives every envelope emitted on a subscribed topic.
// Handlers must treat context cancellation as non-fatal and cease emission.
type Handler func(ctx context.Context, env events.Envelope)

// Bus is the in-process event bus. The zero value is not usable; construct
// with New.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]Handler
	nextID int

	asyncMu sync.RWMutex
	async   map[string]*asyncTopic

	// Dropped counts non-critical envelopes discarded under backpressure.
	dropped atomic.Int64

	closed atomic.Bool
	wg     sync.WaitGroup
}

// New creates an event bus.
func New() *Bus {
	return &Bus{
		subs:  make(map[string]map[int]Handler),
		async: make(map[string]*asyncTopic),
	}
}

// Subscribe registers a handler for a topic and returns its unsubscribe
// function. Subscriptions are reference-counted: each Subscribe call adds an
// independent registration removed only by its own unsubscribe.
func (b *Bus) Subscribe(topic string, h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]Handler)
	}
	id := b.nextID
	b.nextID++
	b.subs[topic][id] = h

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
}

// SubscriberCount returns the number of active handlers on a topic.
func (b *Bus) SubscriberCount(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Emit validates the envelope against the schema bound to its event name and
// delivers it to every subscriber of the topic. Validation failures fail fast
// with ErrSchemaViolation and nothing is delivered.
//
// Delivery runs in the caller's goroutine unless the topic was registered
// async via RegisterAsync.
func (b *Bus) Emit(ctx context.Context, topic string, env events.Envelope) error {
	if err := env.Validate(); err != nil {
		return fmt.Errorf("emit %s on topic %q: %w", env.EventName, topic, err)
	}
	if b.closed.Load() {
		return fmt.Errorf("emit on topic %q: bus closed", topic)
	}

	b.asyncMu.RLock()
	at := b.async[topic]
	b.asyncMu.RUnlock()

	if at != nil {
		b.enqueue(at, env)
		return nil
	}

	b.deliver(ctx, topic, env)
	return nil
}

// deliver invokes every handler registered for the topic. Handler iteration
// order is unspecified; per-topic emission order is what the contract fixes.
func (b *Bus) deliver(ctx context.Context, topic string, env events.Envelope) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.subs[topic]))
	for _, h := range b.subs[topic] {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(ctx, env)
	}
}

// Dropped returns the number of non-critical envelopes discarded so far.
func (b *Bus) Dropped() int64 { return b.dropped.Load() }

// Close stops all async topic drainers after their queues are flushed.
// Emit after Close returns an error.
func (b *Bus) Close() {
	if !b.closed.CompareAndSwap(false, true) {
		return
	}
	b.asyncMu.Lock()
	for _, at := range b.async {
		close(at.queue)
	}
	b.asyncMu.Unlock()
	b.wg.Wait()
}
