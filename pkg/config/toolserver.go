package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/cognia-ai/cognia/pkg/models"
)

// Server-level defaults applied during load.
const (
	defaultToolRiskLevel           = models.RiskMedium
	defaultToolServerMaxRestarts   = 5
	defaultToolServerProbeInterval = 30 * time.Second
)

// TransportType identifies how a tool server is reached.
type TransportType string

const (
	TransportStdio TransportType = "stdio"
	TransportHTTP  TransportType = "http"
	TransportSSE   TransportType = "sse"
)

// Valid reports whether t is a known transport type.
func (t TransportType) Valid() bool {
	switch t {
	case TransportStdio, TransportHTTP, TransportSSE:
		return true
	}
	return false
}

// TransportConfig defines tool server transport configuration.
type TransportConfig struct {
	Type TransportType `yaml:"type"`

	// For stdio transport
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"` // Environment overrides for stdio subprocess

	// For http/sse transport
	URL string `yaml:"url,omitempty"`

	// Optional bearer token env var for http/sse
	TokenEnv string `yaml:"token_env,omitempty"`
}

// ToolServerConfig defines one external tool server and the defaults applied
// to the tools it exposes.
type ToolServerConfig struct {
	// Transport configuration (required)
	Transport TransportConfig `yaml:"transport"`

	// Instructions for the LLM when using this server's tools
	Instructions string `yaml:"instructions,omitempty"`

	// ChannelScope restricts the server's tools to specific channels;
	// empty means all channels.
	ChannelScope []string `yaml:"channel_scope,omitempty"`

	// DefaultRiskLevel applies to tools whose schema does not declare one.
	DefaultRiskLevel models.RiskLevel `yaml:"default_risk_level,omitempty"`

	// DefaultPhases gates tools that do not declare their own allowed
	// phases; empty means all phases.
	DefaultPhases []models.Phase `yaml:"default_phases,omitempty"`

	// KeepAlive is how long an idle stdio session stays up before it is
	// torn down; zero keeps sessions forever.
	KeepAlive time.Duration `yaml:"keep_alive,omitempty"`

	// RestartOnCrash re-launches a crashed stdio subprocess.
	RestartOnCrash bool `yaml:"restart_on_crash"`

	// MaxRestarts bounds crash restarts per hour before the server is
	// marked unhealthy.
	MaxRestarts int `yaml:"max_restarts,omitempty"`

	// ProbeInterval is how often the health monitor pings the server.
	ProbeInterval time.Duration `yaml:"probe_interval,omitempty"`
}

// ToolServerRegistry stores tool server configurations in memory with
// thread-safe access.
type ToolServerRegistry struct {
	servers map[string]*ToolServerConfig
	mu      sync.RWMutex
}

// NewToolServerRegistry creates a new tool server registry.
func NewToolServerRegistry(servers map[string]*ToolServerConfig) *ToolServerRegistry {
	// Defensive copy to prevent external mutation
	copied := make(map[string]*ToolServerConfig, len(servers))
	for k, v := range servers {
		copied[k] = v
	}
	return &ToolServerRegistry{
		servers: copied,
	}
}

// Get retrieves a tool server configuration by ID (thread-safe).
func (r *ToolServerRegistry) Get(serverID string) (*ToolServerConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	server, exists := r.servers[serverID]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrToolServerNotFound, serverID)
	}
	return server, nil
}

// GetAll returns all tool server configurations (thread-safe, returns copy).
func (r *ToolServerRegistry) GetAll() map[string]*ToolServerConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*ToolServerConfig, len(r.servers))
	for k, v := range r.servers {
		result[k] = v
	}
	return result
}

// Has checks if a tool server exists in the registry (thread-safe).
func (r *ToolServerRegistry) Has(serverID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.servers[serverID]
	return exists
}

// Len returns the number of tool servers in the registry (thread-safe).
func (r *ToolServerRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.servers)
}
