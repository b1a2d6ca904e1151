// Package bridge maps event bus rooms onto a bidirectional WebSocket
// transport: authenticated agents join their channel's room, server events
// fan out with batching and retry, and inbound client envelopes are
// re-validated and deduplicated before they touch the bus.
//
// Delivery inside a room is at-least-once; duplicate suppression is by
// correlation id on both directions.
package bridge

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/cognia-ai/cognia/pkg/bus"
	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/events"
)

// ConnectionManager owns every WebSocket connection and the room
// subscriptions that bridge the bus to them.
type ConnectionManager struct {
	cfg     *config.BridgeConfig
	bus     *bus.Bus
	inbound InboundHandler
	dedupe  *bus.Deduper
	history *catchupRing
	logger  *slog.Logger

	// Active connections: connection id → *Connection.
	connections map[string]*Connection
	mu          sync.RWMutex

	// Room membership: room → set of connection ids. roomSubs holds the bus
	// unsubscribe for rooms with at least one member.
	rooms    map[string]map[string]bool
	roomSubs map[string]func()
	batchers map[string]*roomBatcher
	roomMu   sync.Mutex

	// OnAgentConnected / OnAgentDisconnected let the loop manager track
	// orphan candidacy. Nil hooks are skipped.
	OnAgentConnected    func(agentID string)
	OnAgentDisconnected func(agentID string)

	closed atomic.Bool
}

// Connection is one WebSocket client.
//
// subscriptions is accessed without a lock: all reads and writes happen on
// the goroutine that owns the connection (HandleConnection's read loop and
// its deferred cleanup).
type Connection struct {
	ID       string
	Identity Identity
	conn     *websocket.Conn

	subscriptions map[string]bool
	ctx           context.Context
	cancel        context.CancelFunc

	// lastActivity is unix nanos of the last read or successful ping.
	lastActivity atomic.Int64

	// writeMu serializes frame writes; broadcasts and the read loop's
	// replies come from different goroutines.
	writeMu sync.Mutex
}

// NewConnectionManager builds the bridge over the given bus.
func NewConnectionManager(cfg *config.BridgeConfig, eventBus *bus.Bus, dedupeWindow int, inbound InboundHandler) *ConnectionManager {
	if cfg == nil {
		cfg = config.DefaultBridgeConfig()
	}
	return &ConnectionManager{
		cfg:         cfg,
		bus:         eventBus,
		inbound:     inbound,
		dedupe:      bus.NewDeduper(dedupeWindow),
		history:     newCatchupRing(cfg.CatchupWindow),
		logger:      slog.Default().With("component", "bridge"),
		connections: make(map[string]*Connection),
		rooms:       make(map[string]map[string]bool),
		roomSubs:    make(map[string]func()),
		batchers:    make(map[string]*roomBatcher),
	}
}

// HandleConnection runs the lifecycle of one authenticated socket. Blocks
// until the connection closes.
func (m *ConnectionManager) HandleConnection(parentCtx context.Context, conn *websocket.Conn, identity Identity) {
	connID := uuid.NewString()
	ctx, cancel := context.WithCancel(parentCtx)

	c := &Connection{
		ID:            connID,
		Identity:      identity,
		conn:          conn,
		subscriptions: make(map[string]bool),
		ctx:           ctx,
		cancel:        cancel,
	}
	c.lastActivity.Store(time.Now().UnixNano())

	m.registerConnection(c)
	defer m.unregisterConnection(c)

	m.sendJSON(c, ServerMessage{Type: MsgConnectionEstablished, ConnectionID: connID})

	// Agents land in their channel's room immediately.
	if identity.ChannelID != "" && !identity.User {
		m.subscribe(c, events.ChannelRoom(identity.ChannelID))
		m.sendJSON(c, ServerMessage{
			Type: MsgSubscriptionConfirmed,
			Room: events.ChannelRoom(identity.ChannelID),
		})
	}
	if m.OnAgentConnected != nil && !identity.User {
		m.OnAgentConnected(identity.AgentID)
	}

	go m.heartbeat(c)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		c.lastActivity.Store(time.Now().UnixNano())

		var msg ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			m.logger.Warn("Invalid WebSocket message", "connection_id", connID, "error", err)
			continue
		}
		m.handleClientMessage(c, &msg)
	}
}

func (m *ConnectionManager) handleClientMessage(c *Connection, msg *ClientMessage) {
	switch msg.Action {
	case "subscribe":
		if msg.Room == "" {
			m.sendJSON(c, ServerMessage{Type: MsgError, Message: "room is required for subscribe"})
			return
		}
		if !m.roomAllowed(c.Identity, msg.Room) {
			m.sendJSON(c, ServerMessage{Type: MsgError, Room: msg.Room,
				Message: "room not permitted for this identity"})
			return
		}
		m.subscribe(c, msg.Room)
		m.sendJSON(c, ServerMessage{Type: MsgSubscriptionConfirmed, Room: msg.Room})
		// Late subscribers get the retained history so they miss nothing.
		m.sendCatchup(c, msg.Room, 0)

	case "unsubscribe":
		if msg.Room == "" {
			m.sendJSON(c, ServerMessage{Type: MsgError, Message: "room is required for unsubscribe"})
			return
		}
		m.unsubscribe(c, msg.Room)

	case "catchup":
		if msg.Room == "" || msg.LastSeq == nil {
			m.sendJSON(c, ServerMessage{Type: MsgError, Message: "room and last_seq are required for catchup"})
			return
		}
		m.sendCatchup(c, msg.Room, *msg.LastSeq)

	case "ping":
		m.sendJSON(c, ServerMessage{Type: MsgPong})

	case "emit":
		m.handleInbound(c, msg.Envelope)

	default:
		m.sendJSON(c, ServerMessage{Type: MsgError, Message: "unknown action"})
	}
}

// roomAllowed enforces channel isolation: agents see only their own
// channel's room and the global room; user sessions may watch any room.
func (m *ConnectionManager) roomAllowed(identity Identity, room string) bool {
	if identity.User {
		return true
	}
	return room == events.GlobalRoom || room == events.ChannelRoom(identity.ChannelID)
}

// handleInbound re-validates a client envelope and forwards it. The bridge
// never trusts the socket: schema validation runs again server-side and the
// agent id must match the authenticated identity.
func (m *ConnectionManager) handleInbound(c *Connection, raw json.RawMessage) {
	env, err := events.ParseEnvelope(raw)
	if err != nil {
		m.logger.Warn("Rejected inbound envelope",
			"connection_id", c.ID, "agent_id", c.Identity.AgentID, "error", err)
		m.sendJSON(c, ServerMessage{Type: MsgError, Message: "invalid envelope"})
		return
	}
	if !c.Identity.User && env.AgentID != c.Identity.AgentID {
		m.sendJSON(c, ServerMessage{Type: MsgError, Message: "agent_id does not match connection identity"})
		return
	}
	if m.dedupe.Seen(env.CorrelationID) {
		return
	}
	if m.inbound != nil {
		m.inbound(c.Identity, env)
	}
}

func (m *ConnectionManager) sendCatchup(c *Connection, room string, lastSeq uint64) {
	missed, overflow := m.history.since(room, lastSeq)
	if len(missed) > 0 {
		m.sendJSON(c, ServerMessage{Type: MsgCatchup, Room: room, Events: missed})
	}
	if overflow {
		m.sendJSON(c, ServerMessage{Type: MsgCatchupOverflow, Room: room, HasMore: true})
	}
}

// subscribe adds the connection to a room, attaching the room's bus
// subscription and batcher on the first member.
func (m *ConnectionManager) subscribe(c *Connection, room string) {
	m.roomMu.Lock()
	if _, exists := m.rooms[room]; !exists {
		m.rooms[room] = make(map[string]bool)
		m.attachRoomLocked(room)
	}
	m.rooms[room][c.ID] = true
	m.roomMu.Unlock()

	c.subscriptions[room] = true
}

// unsubscribe removes the connection from a room, tearing down the bus
// subscription when the last member leaves.
func (m *ConnectionManager) unsubscribe(c *Connection, room string) {
	m.roomMu.Lock()
	if members, exists := m.rooms[room]; exists {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(m.rooms, room)
			m.detachRoomLocked(room)
		}
	}
	m.roomMu.Unlock()

	delete(c.subscriptions, room)
}

// attachRoomLocked wires bus topic → batcher for a newly active room.
// Caller holds roomMu.
func (m *ConnectionManager) attachRoomLocked(room string) {
	batcher := newRoomBatcher(room, m.cfg.BatchDelay, m.cfg.BatchMaxSize, m.broadcastBatch)
	m.batchers[room] = batcher
	m.roomSubs[room] = m.bus.Subscribe(room, func(_ context.Context, env events.Envelope) {
		seq := m.history.record(room, env)
		batcher.add(SequencedEvent{Seq: seq, Envelope: env})
	})
}

// detachRoomLocked drops the bus subscription and flushes the batcher when a
// room loses its last member. Caller holds roomMu.
func (m *ConnectionManager) detachRoomLocked(room string) {
	if unsub, ok := m.roomSubs[room]; ok {
		unsub()
		delete(m.roomSubs, room)
	}
	if batcher, ok := m.batchers[room]; ok {
		batcher.stop()
		delete(m.batchers, room)
	}
}

// broadcastBatch delivers one coalesced batch to every member of the room,
// retrying per connection with exponential backoff.
func (m *ConnectionManager) broadcastBatch(room string, batch []SequencedEvent) {
	payload, err := json.Marshal(ServerMessage{Type: MsgEvents, Room: room, Events: batch})
	if err != nil {
		m.logger.Error("Failed to marshal event batch", "room", room, "error", err)
		return
	}

	m.roomMu.Lock()
	ids := make([]string, 0, len(m.rooms[room]))
	for id := range m.rooms[room] {
		ids = append(ids, id)
	}
	m.roomMu.Unlock()

	m.mu.RLock()
	conns := make([]*Connection, 0, len(ids))
	for _, id := range ids {
		if conn, ok := m.connections[id]; ok {
			conns = append(conns, conn)
		}
	}
	m.mu.RUnlock()

	for _, conn := range conns {
		if err := m.sendWithRetry(conn, payload); err != nil {
			// The batch stays in the catchup ring; the client resumes by
			// sequence on reconnect.
			m.logger.Warn("Dropping batch for connection after retries",
				"connection_id", conn.ID, "room", room, "events", len(batch), "error", err)
		}
	}
}

func (m *ConnectionManager) sendWithRetry(c *Connection, data []byte) error {
	backoff := m.cfg.SendBackoff
	var err error
	for attempt := 0; attempt <= m.cfg.SendRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-c.ctx.Done():
				return c.ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
		if err = m.sendRaw(c, data); err == nil {
			return nil
		}
	}
	return err
}

// heartbeat pings the connection periodically and closes it once it has
// been silent past the timeout. The timeout is generous on purpose: an
// agent blocked on a slow LLM call is alive, just busy.
func (m *ConnectionManager) heartbeat(c *Connection) {
	ticker := time.NewTicker(m.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, m.cfg.WriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err == nil {
				c.lastActivity.Store(time.Now().UnixNano())
				continue
			}
			silent := time.Since(time.Unix(0, c.lastActivity.Load()))
			if silent > m.cfg.HeartbeatTimeout {
				m.logger.Info("Closing silent connection",
					"connection_id", c.ID, "agent_id", c.Identity.AgentID, "silent", silent)
				c.cancel()
				_ = c.conn.Close(websocket.StatusGoingAway, "heartbeat timeout")
				return
			}
		}
	}
}

// ActiveConnections returns the number of open sockets.
func (m *ConnectionManager) ActiveConnections() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

// roomMemberCount is used by tests to poll membership instead of sleeping.
func (m *ConnectionManager) roomMemberCount(room string) int {
	m.roomMu.Lock()
	defer m.roomMu.Unlock()
	return len(m.rooms[room])
}

func (m *ConnectionManager) registerConnection(c *Connection) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[c.ID] = c
}

func (m *ConnectionManager) unregisterConnection(c *Connection) {
	for room := range c.subscriptions {
		m.unsubscribe(c, room)
	}

	m.mu.Lock()
	delete(m.connections, c.ID)
	m.mu.Unlock()

	c.cancel()
	_ = c.conn.Close(websocket.StatusNormalClosure, "")

	if m.OnAgentDisconnected != nil && !c.Identity.User {
		m.OnAgentDisconnected(c.Identity.AgentID)
	}
}

func (m *ConnectionManager) sendJSON(c *Connection, v ServerMessage) {
	data, err := json.Marshal(v)
	if err != nil {
		m.logger.Warn("Failed to marshal WebSocket message", "connection_id", c.ID, "error", err)
		return
	}
	if err := m.sendRaw(c, data); err != nil {
		m.logger.Warn("Failed to send WebSocket message", "connection_id", c.ID, "error", err)
	}
}

func (m *ConnectionManager) sendRaw(c *Connection, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	writeCtx, cancel := context.WithTimeout(c.ctx, m.cfg.WriteTimeout)
	defer cancel()
	return c.conn.Write(writeCtx, websocket.MessageText, data)
}

// Close flushes pending batches within the drain grace period and closes
// every connection.
func (m *ConnectionManager) Close() {
	if !m.closed.CompareAndSwap(false, true) {
		return
	}

	m.roomMu.Lock()
	batchers := make([]*roomBatcher, 0, len(m.batchers))
	for room, b := range m.batchers {
		batchers = append(batchers, b)
		if unsub, ok := m.roomSubs[room]; ok {
			unsub()
		}
	}
	m.batchers = make(map[string]*roomBatcher)
	m.roomSubs = make(map[string]func())
	m.roomMu.Unlock()

	drained := make(chan struct{})
	go func() {
		for _, b := range batchers {
			b.stop()
		}
		close(drained)
	}()
	select {
	case <-drained:
	case <-time.After(m.cfg.DrainGrace):
		m.logger.Warn("Drain grace elapsed with batches pending")
	}

	m.mu.Lock()
	conns := make([]*Connection, 0, len(m.connections))
	for _, c := range m.connections {
		conns = append(conns, c)
	}
	m.mu.Unlock()
	for _, c := range conns {
		c.cancel()
		_ = c.conn.Close(websocket.StatusGoingAway, "server shutdown")
	}
}
