package bridge

import (
	"time"
)

// flushFunc delivers one coalesced batch to a room's members.
type flushFunc func(room string, batch []SequencedEvent)

// roomBatcher coalesces a room's outbound events: the first event arms a
// delay timer, and the batch flushes when the timer fires or the batch hits
// its size cap, whichever comes first. One batcher goroutine per active
// room, started on the room's first subscriber and stopped on its last.
type roomBatcher struct {
	room    string
	delay   time.Duration
	maxSize int
	flush   flushFunc

	events  chan SequencedEvent
	stopped chan struct{}
	done    chan struct{}
}

func newRoomBatcher(room string, delay time.Duration, maxSize int, flush flushFunc) *roomBatcher {
	if delay <= 0 {
		delay = 50 * time.Millisecond
	}
	if maxSize <= 0 {
		maxSize = 32
	}
	b := &roomBatcher{
		room:    room,
		delay:   delay,
		maxSize: maxSize,
		flush:   flush,
		events:  make(chan SequencedEvent, maxSize*4),
		stopped: make(chan struct{}),
		done:    make(chan struct{}),
	}
	go b.run()
	return b
}

// add enqueues an event for the next batch. Blocks briefly under a full
// buffer rather than dropping: the bus handler upstream tolerates the
// backpressure and ordering within the room is preserved.
func (b *roomBatcher) add(ev SequencedEvent) {
	select {
	case <-b.stopped:
	case b.events <- ev:
	}
}

// stop flushes whatever is pending and waits for the goroutine to exit.
func (b *roomBatcher) stop() {
	close(b.stopped)
	<-b.done
}

func (b *roomBatcher) run() {
	defer close(b.done)

	var batch []SequencedEvent
	timer := time.NewTimer(b.delay)
	if !timer.Stop() {
		<-timer.C
	}

	emit := func() {
		if len(batch) == 0 {
			return
		}
		b.flush(b.room, batch)
		batch = nil
	}

	for {
		select {
		case ev := <-b.events:
			if len(batch) == 0 {
				timer.Reset(b.delay)
			}
			batch = append(batch, ev)
			if len(batch) >= b.maxSize {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				emit()
			}

		case <-timer.C:
			emit()

		case <-b.stopped:
			// Drain anything already queued, then flush once.
			for {
				select {
				case ev := <-b.events:
					batch = append(batch, ev)
				default:
					emit()
					return
				}
			}
		}
	}
}
