package bridge

import (
	"sync"

	"github.com/cognia-ai/cognia/pkg/events"
)

// SequencedEvent is one event retained for reconnect catchup, numbered by
// its per-room sequence.
type SequencedEvent struct {
	Seq      uint64          `json:"seq"`
	Envelope events.Envelope `json:"envelope"`
}

// catchupRing retains the most recent events per room so reconnecting
// clients can resume from their last seen sequence instead of a full reload.
type catchupRing struct {
	mu     sync.RWMutex
	window int
	rooms  map[string]*roomHistory
}

type roomHistory struct {
	nextSeq uint64
	events  []SequencedEvent
}

func newCatchupRing(window int) *catchupRing {
	if window <= 0 {
		window = 256
	}
	return &catchupRing{window: window, rooms: make(map[string]*roomHistory)}
}

// record appends the envelope to the room's history and returns its sequence.
func (r *catchupRing) record(room string, env events.Envelope) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.rooms[room]
	if !ok {
		h = &roomHistory{nextSeq: 1}
		r.rooms[room] = h
	}
	seq := h.nextSeq
	h.nextSeq++
	h.events = append(h.events, SequencedEvent{Seq: seq, Envelope: env})
	if len(h.events) > r.window {
		h.events = append([]SequencedEvent(nil), h.events[len(h.events)-r.window:]...)
	}
	return seq
}

// since returns all retained events after the given sequence, in order, and
// whether older events were already evicted (the client must full-reload).
func (r *catchupRing) since(room string, lastSeq uint64) (missed []SequencedEvent, overflow bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.rooms[room]
	if !ok {
		return nil, false
	}
	if len(h.events) > 0 && lastSeq != 0 && h.events[0].Seq > lastSeq+1 {
		overflow = true
	}
	for _, e := range h.events {
		if e.Seq > lastSeq {
			missed = append(missed, e)
		}
	}
	return missed, overflow
}
