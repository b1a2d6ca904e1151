package bus

import "sync"

// Deduper suppresses duplicate deliveries by correlation id. Delivery across
// the bridge is at-least-once; handlers that must be idempotent wrap their
// work in Seen.
//
// The window is a FIFO of the most recent ids: old entries age out so the set
// stays bounded for long-lived subscribers.
type Deduper struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	order  []string
	window int
}

// NewDeduper creates a deduper remembering the last window correlation ids.
func NewDeduper(window int) *Deduper {
	if window <= 0 {
		window = 1024
	}
	return &Deduper{
		seen:   make(map[string]struct{}, window),
		window: window,
	}
}

// Seen records the correlation id and reports whether it was already present.
// Empty ids are never deduplicated — envelopes without a correlation id carry
// no idempotency contract.
func (d *Deduper) Seen(correlationID string) bool {
	if correlationID == "" {
		return false
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[correlationID]; ok {
		return true
	}
	d.seen[correlationID] = struct{}{}
	d.order = append(d.order, correlationID)
	if len(d.order) > d.window {
		oldest := d.order[0]
		d.order = d.order[1:]
		delete(d.seen, oldest)
	}
	return false
}
