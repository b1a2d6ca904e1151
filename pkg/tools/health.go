package tools

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cognia-ai/cognia/pkg/config"
)

// HealthStatus captures the health check result for a single tool server.
type HealthStatus struct {
	ServerID  string    `json:"server_id"`
	Healthy   bool      `json:"healthy"`
	LastCheck time.Time `json:"last_check"`
	Error     string    `json:"error,omitempty"`
	ToolCount int       `json:"tool_count"`
	Restarts  int       `json:"restarts"`
}

// HealthMonitor periodically probes tool servers, recovers crashed sessions
// within each server's restart budget, reaps idle stdio sessions past their
// keep-alive, and keeps the registry's external descriptors fresh.
type HealthMonitor struct {
	client    *Client
	registry  *Registry
	serverReg *config.ToolServerRegistry

	statusesMu sync.RWMutex
	statuses   map[string]*HealthStatus

	// Restart budget: restarts per server within the rolling window.
	restartsMu sync.Mutex
	restarts   map[string][]time.Time

	cancel context.CancelFunc
	done   chan struct{}
	logger *slog.Logger
}

// restartWindow is the rolling window the per-server restart budget covers.
const restartWindow = time.Hour

// NewHealthMonitor creates a health monitor over the given client and
// registry.
func NewHealthMonitor(client *Client, registry *Registry, serverReg *config.ToolServerRegistry) *HealthMonitor {
	return &HealthMonitor{
		client:    client,
		registry:  registry,
		serverReg: serverReg,
		statuses:  make(map[string]*HealthStatus),
		restarts:  make(map[string][]time.Time),
		logger:    slog.Default(),
	}
}

// Start launches the background health check loop. Calling Start on an
// already-running monitor is a no-op.
func (m *HealthMonitor) Start(ctx context.Context) {
	if m.cancel != nil {
		return // already started
	}
	ctx, m.cancel = context.WithCancel(ctx)
	m.done = make(chan struct{})

	go m.loop(ctx)
}

// Stop gracefully shuts down the health monitor. After Stop returns, Start
// may be called again.
func (m *HealthMonitor) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.done != nil {
		<-m.done
	}

	m.statusesMu.Lock()
	m.statuses = make(map[string]*HealthStatus)
	m.statusesMu.Unlock()

	m.cancel = nil
	m.done = nil
}

func (m *HealthMonitor) loop(ctx context.Context) {
	defer close(m.done)

	// Run first check immediately, then per-server intervals via the
	// smallest configured probe interval.
	m.checkAll(ctx)

	ticker := time.NewTicker(m.tickInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.registry.HealthTick()
			m.reapIdle()
			m.checkAll(ctx)
		}
	}
}

// tickInterval is the smallest probe interval across servers, floored at
// one second.
func (m *HealthMonitor) tickInterval() time.Duration {
	min := time.Duration(0)
	for _, cfg := range m.serverReg.GetAll() {
		if cfg.ProbeInterval > 0 && (min == 0 || cfg.ProbeInterval < min) {
			min = cfg.ProbeInterval
		}
	}
	if min < time.Second {
		min = 30 * time.Second
	}
	return min
}

func (m *HealthMonitor) checkAll(ctx context.Context) {
	for serverID, cfg := range m.serverReg.GetAll() {
		m.checkServer(ctx, serverID, cfg)
	}
}

func (m *HealthMonitor) checkServer(ctx context.Context, serverID string, cfg *config.ToolServerConfig) {
	// Idle servers with no session are healthy-by-absence: they reconnect
	// lazily on next use.
	if !m.client.HasSession(serverID) {
		if err := m.client.InitializeServer(ctx, serverID); err != nil {
			m.setStatus(serverID, false, err.Error(), 0)
			return
		}
	}

	// Force a real probe rather than a cache hit.
	m.client.InvalidateToolCache(serverID)

	checkCtx, cancel := context.WithTimeout(ctx, HealthPingTimeout)
	defer cancel()

	tools, err := m.client.ListTools(checkCtx, serverID)
	if err != nil {
		m.logger.Debug("Health probe failed, attempting reinitialize",
			"server", serverID, "error", err)

		if !cfg.RestartOnCrash || !m.consumeRestart(serverID, cfg.MaxRestarts) {
			m.setStatus(serverID, false, "restart budget exhausted: "+err.Error(), 0)
			return
		}

		reconCtx, reconCancel := context.WithTimeout(ctx, ReinitTimeout)
		defer reconCancel()
		if reinitErr := m.client.recreateSession(reconCtx, serverID); reinitErr != nil {
			m.setStatus(serverID, false, reinitErr.Error(), 0)
			return
		}

		retryCtx, retryCancel := context.WithTimeout(ctx, HealthPingTimeout)
		defer retryCancel()
		tools, err = m.client.ListTools(retryCtx, serverID)
		if err != nil {
			m.setStatus(serverID, false, "probe failed after reinit: "+err.Error(), 0)
			return
		}
	}

	m.setStatus(serverID, true, "", len(tools))
	m.registry.RefreshServer(serverID, cfg, tools)
}

// reapIdle closes sessions idle past their server's keep-alive.
func (m *HealthMonitor) reapIdle() {
	now := time.Now()
	for serverID, cfg := range m.serverReg.GetAll() {
		if cfg.KeepAlive <= 0 || cfg.Transport.Type != config.TransportStdio {
			continue
		}
		if !m.client.HasSession(serverID) {
			continue
		}
		last := m.client.LastUsed(serverID)
		if !last.IsZero() && now.Sub(last) > cfg.KeepAlive {
			m.logger.Info("Reaping idle tool server session",
				"server", serverID, "idle", now.Sub(last).Round(time.Second))
			m.client.CloseServer(serverID)
		}
	}
}

// consumeRestart records a restart attempt and reports whether the server is
// still within its rolling budget.
func (m *HealthMonitor) consumeRestart(serverID string, maxRestarts int) bool {
	m.restartsMu.Lock()
	defer m.restartsMu.Unlock()

	now := time.Now()
	recent := m.restarts[serverID][:0]
	for _, t := range m.restarts[serverID] {
		if now.Sub(t) < restartWindow {
			recent = append(recent, t)
		}
	}
	if maxRestarts > 0 && len(recent) >= maxRestarts {
		m.restarts[serverID] = recent
		return false
	}
	m.restarts[serverID] = append(recent, now)
	return true
}

func (m *HealthMonitor) setStatus(serverID string, healthy bool, errMsg string, toolCount int) {
	m.restartsMu.Lock()
	restarts := len(m.restarts[serverID])
	m.restartsMu.Unlock()

	m.statusesMu.Lock()
	defer m.statusesMu.Unlock()
	m.statuses[serverID] = &HealthStatus{
		ServerID:  serverID,
		Healthy:   healthy,
		LastCheck: time.Now(),
		Error:     errMsg,
		ToolCount: toolCount,
		Restarts:  restarts,
	}
}

// GetStatuses returns the current health status of all monitored servers.
func (m *HealthMonitor) GetStatuses() map[string]*HealthStatus {
	m.statusesMu.RLock()
	defer m.statusesMu.RUnlock()
	result := make(map[string]*HealthStatus, len(m.statuses))
	for k, v := range m.statuses {
		cp := *v
		result[k] = &cp
	}
	return result
}

// IsHealthy returns true if all monitored servers are healthy. Returns false
// before the first check completes.
func (m *HealthMonitor) IsHealthy() bool {
	m.statusesMu.RLock()
	defer m.statusesMu.RUnlock()
	if len(m.statuses) == 0 {
		return len(m.serverReg.GetAll()) == 0
	}
	for _, s := range m.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
