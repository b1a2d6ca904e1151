// Package mirror is the agent-side phase mirror: a WebSocket client that
// follows the server's canonical phase events for one loop and feeds the
// current phase into prompt assembly.
//
// The mirror is strictly read-only. Phase state on the server is
// authoritative; the mirror only tracks it, and only for its active loop.
package mirror

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/cognia-ai/cognia/pkg/bridge"
	"github.com/cognia-ai/cognia/pkg/events"
	"github.com/cognia-ai/cognia/pkg/models"
)

// Client mirrors the phase of one active loop from the server's event
// stream.
type Client struct {
	url    string
	logger *slog.Logger

	mu           sync.RWMutex
	activeLoopID string
	currentPhase models.Phase

	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a mirror for the given WebSocket URL. The URL carries the
// agent's identity and credentials as handshake parameters.
func New(url string) *Client {
	return &Client{
		url:    url,
		logger: slog.Default().With("component", "mirror"),
	}
}

// SetActiveLoop switches which loop the mirror follows. Switching resets
// the tracked phase to null until the next event for the new loop arrives.
func (c *Client) SetActiveLoop(loopID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activeLoopID = loopID
	c.currentPhase = models.PhaseNull
}

// CurrentPhase returns the mirrored phase. Null when no cycle is active.
func (c *Client) CurrentPhase() models.Phase {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.currentPhase
}

// Connect dials the server and starts the read loop. Blocks only for the
// handshake.
func (c *Client) Connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return err
	}
	c.conn = conn

	runCtx, runCancel := context.WithCancel(ctx)
	c.cancel = runCancel
	c.done = make(chan struct{})
	go c.readLoop(runCtx)
	return nil
}

// Close stops the read loop and closes the socket.
func (c *Client) Close() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "")
	}
	if c.done != nil {
		<-c.done
	}
}

func (c *Client) readLoop(ctx context.Context) {
	defer close(c.done)
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		var msg bridge.ServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Warn("Ignoring malformed server message", "error", err)
			continue
		}
		switch msg.Type {
		case bridge.MsgEvents, bridge.MsgCatchup:
			for _, ev := range msg.Events {
				c.Apply(ev.Envelope)
			}
		}
	}
}

// Apply folds one envelope into the mirrored phase. Events for other loops
// are ignored; the mapping from event to phase is fixed by the canonical
// event set.
func (c *Client) Apply(env events.Envelope) {
	loopID, ok := envelopeLoopID(env)
	if !ok {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.activeLoopID == "" || loopID != c.activeLoopID {
		return
	}

	switch env.EventName {
	case events.EventObservation:
		c.currentPhase = models.PhaseObserve
	case events.EventReasoning:
		c.currentPhase = models.PhaseReason
	case events.EventPlan:
		c.currentPhase = models.PhasePlan
	case events.EventAction, events.EventExecution:
		c.currentPhase = models.PhaseAct
	case events.EventReflection:
		c.currentPhase = models.PhaseReflect
	case events.EventStopped:
		c.currentPhase = models.PhaseNull
	case events.EventHint:
		if phase, ok := envelopeHintPhase(env); ok {
			c.currentPhase = phase
		}
	}
}

// envelopeLoopID pulls loop_id out of the event data, which arrives as a
// decoded wire map.
func envelopeLoopID(env events.Envelope) (string, bool) {
	data, ok := env.Data.(map[string]any)
	if !ok {
		return "", false
	}
	id, ok := data["loop_id"].(string)
	return id, ok && id != ""
}

func envelopeHintPhase(env events.Envelope) (models.Phase, bool) {
	data, ok := env.Data.(map[string]any)
	if !ok {
		return models.PhaseNull, false
	}
	meta, ok := data["metadata"].(map[string]any)
	if !ok {
		return models.PhaseNull, false
	}
	return models.MetadataMap(meta).Phase()
}
