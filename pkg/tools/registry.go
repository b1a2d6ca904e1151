package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/cognia-ai/cognia/pkg/config"
	"github.com/cognia-ai/cognia/pkg/models"
)

// InternalHandler executes an internal tool. Parameters arrive already
// validated (and possibly corrected); the returned map is the action result.
type InternalHandler func(ctx context.Context, params map[string]any) (map[string]any, error)

// registration pairs a descriptor with its internal handler (nil for
// external tools).
type registration struct {
	descriptor models.ToolDescriptor
	handler    InternalHandler
}

// Registry holds internal tool descriptors (statically registered at
// startup) and external descriptors discovered from tool servers. Lookup and
// availability listing are channel- and phase-aware.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*registration

	breakers *CircuitSet
	logger   *slog.Logger
}

// NewRegistry creates an empty registry over the given breaker set.
func NewRegistry(breakers *CircuitSet) *Registry {
	return &Registry{
		tools:    make(map[string]*registration),
		breakers: breakers,
		logger:   slog.Default(),
	}
}

// Register adds a tool. Idempotent on name: re-registering an identical
// descriptor is a no-op, while a conflicting input schema rejects.
func (r *Registry) Register(desc models.ToolDescriptor, handler InternalHandler) error {
	if desc.Name == "" {
		return fmt.Errorf("tool descriptor requires a name")
	}
	if desc.Source == models.ToolInternal && handler == nil {
		return fmt.Errorf("internal tool %q requires a handler", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.tools[desc.Name]; ok {
		if !bytes.Equal(normalizeSchema(existing.descriptor.InputSchema), normalizeSchema(desc.InputSchema)) {
			return fmt.Errorf("tool %q already registered with a different input schema", desc.Name)
		}
		// Same schema: refresh the descriptor (channel scope or gating may
		// have changed) and keep the existing handler if none was supplied.
		if handler == nil {
			handler = existing.handler
		}
	}

	r.tools[desc.Name] = &registration{descriptor: desc, handler: handler}
	return nil
}

// normalizeSchema canonicalizes a JSON schema for comparison. Unparseable or
// empty schemas compare by raw bytes.
func normalizeSchema(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return raw
	}
	out, err := json.Marshal(v)
	if err != nil {
		return raw
	}
	return out
}

// Lookup returns a copy of the named tool's descriptor.
func (r *Registry) Lookup(name string) (models.ToolDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[name]
	if !ok {
		return models.ToolDescriptor{}, false
	}
	return reg.descriptor, true
}

// Handler returns the internal handler for a tool, or nil for external
// tools.
func (r *Registry) Handler(name string) InternalHandler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	reg, ok := r.tools[name]
	if !ok {
		return nil
	}
	return reg.handler
}

// ListAvailable returns the tools usable from the given channel in the given
// phase: internal tools plus external tools whose channel scope admits the
// channel, filtered by phase gating and by the tool's circuit being
// not-open. Sorted by name for stable output.
func (r *Registry) ListAvailable(channelID string, phase models.Phase) []models.ToolDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.ToolDescriptor, 0, len(r.tools))
	for _, reg := range r.tools {
		d := reg.descriptor
		if !d.AllowedInChannel(channelID) {
			continue
		}
		if len(d.PhaseAllowed) > 0 && !d.PhaseAllowed.Contains(phase) {
			continue
		}
		if r.breakers.IsOpen(d.Name, channelID) {
			continue
		}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RefreshServer replaces the external descriptors for one server with the
// given discovered tool list, applying the server's defaults. Tools the
// server no longer exposes are removed.
func (r *Registry) RefreshServer(serverID string, serverCfg *config.ToolServerConfig, discovered []*mcpsdk.Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Drop stale entries for this server.
	for name, reg := range r.tools {
		if reg.descriptor.Source == models.ToolExternal && reg.descriptor.ServerID == serverID {
			delete(r.tools, name)
		}
	}

	phases := models.AllPhases()
	if len(serverCfg.DefaultPhases) > 0 {
		phases = models.NewPhaseSet(serverCfg.DefaultPhases...)
	}

	for _, tool := range discovered {
		var schema json.RawMessage
		if tool.InputSchema != nil {
			if raw, err := json.Marshal(tool.InputSchema); err == nil {
				schema = raw
			}
		}
		desc := models.ToolDescriptor{
			Name:         tool.Name,
			Source:       models.ToolExternal,
			ServerID:     serverID,
			ChannelScope: serverCfg.ChannelScope,
			InputSchema:  schema,
			RiskLevel:    serverCfg.DefaultRiskLevel,
			PhaseAllowed: phases,
		}
		if existing, ok := r.tools[tool.Name]; ok && existing.descriptor.ServerID != serverID {
			r.logger.Warn("Tool name collision between servers; keeping first registration",
				"tool", tool.Name, "kept_server", existing.descriptor.ServerID, "dropped_server", serverID)
			continue
		}
		r.tools[tool.Name] = &registration{descriptor: desc}
	}

	r.logger.Info("Refreshed external tools", "server", serverID, "tools", len(discovered))
}

// HealthTick advances circuit cooldowns so availability listings reflect
// recovered tools. Called periodically by the health monitor.
func (r *Registry) HealthTick() {
	r.breakers.Tick()
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
