package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/cognia-ai/cognia/pkg/models"
)

// LLMProviderType identifies the provider implementation.
type LLMProviderType string

const (
	ProviderAnthropic LLMProviderType = "anthropic"
)

// Valid reports whether t is a known provider type.
func (t LLMProviderType) Valid() bool {
	return t == ProviderAnthropic
}

// LLMProviderConfig defines one named LLM provider.
type LLMProviderConfig struct {
	// Provider type (required)
	Type LLMProviderType `yaml:"type"`

	// Model name (required)
	Model string `yaml:"model"`

	// Environment variable name for the API key
	APIKeyEnv string `yaml:"api_key_env,omitempty"`

	// Optional custom endpoint/base URL
	BaseURL string `yaml:"base_url,omitempty"`

	// MaxTokens caps a single completion.
	MaxTokens int `yaml:"max_tokens,omitempty"`

	// Temperature for sampling; nil keeps the provider default.
	Temperature *float64 `yaml:"temperature,omitempty"`
}

// LLMConfig controls the phase client: which provider each phase uses and
// how requests are paced and retried.
type LLMConfig struct {
	// DefaultProvider is used by any phase without an override.
	DefaultProvider string `yaml:"default_provider"`

	// PhaseProviders overrides the provider per cognitive phase.
	PhaseProviders map[models.Phase]string `yaml:"phase_providers,omitempty"`

	// RequestDelay is the minimum gap between consecutive LLM requests,
	// enforced by the request queue to stay under rate limits.
	RequestDelay time.Duration `yaml:"request_delay"`

	// MaxRetries is how many times a failed or unparseable completion is
	// retried before falling back.
	MaxRetries int `yaml:"max_retries"`

	// RequestTimeout bounds a single completion call.
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// DefaultLLMConfig returns the built-in LLM client defaults.
func DefaultLLMConfig() *LLMConfig {
	return &LLMConfig{
		RequestDelay:   200 * time.Millisecond,
		MaxRetries:     2,
		RequestTimeout: 90 * time.Second,
	}
}

// ProviderFor resolves the provider name for a phase.
func (c *LLMConfig) ProviderFor(phase models.Phase) string {
	if name, ok := c.PhaseProviders[phase]; ok && name != "" {
		return name
	}
	return c.DefaultProvider
}

// LLMProviderRegistry stores LLM provider configurations in memory with
// thread-safe access.
type LLMProviderRegistry struct {
	providers map[string]*LLMProviderConfig
	mu        sync.RWMutex
}

// NewLLMProviderRegistry creates a new LLM provider registry.
func NewLLMProviderRegistry(providers map[string]*LLMProviderConfig) *LLMProviderRegistry {
	// Defensive copy to prevent external mutation
	copied := make(map[string]*LLMProviderConfig, len(providers))
	for k, v := range providers {
		copied[k] = v
	}
	return &LLMProviderRegistry{
		providers: copied,
	}
}

// Get retrieves an LLM provider configuration by name (thread-safe).
func (r *LLMProviderRegistry) Get(name string) (*LLMProviderConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrLLMProviderNotFound, name)
	}
	return provider, nil
}

// GetAll returns all LLM provider configurations (thread-safe, returns copy).
func (r *LLMProviderRegistry) GetAll() map[string]*LLMProviderConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*LLMProviderConfig, len(r.providers))
	for k, v := range r.providers {
		result[k] = v
	}
	return result
}

// Has checks if an LLM provider exists in the registry (thread-safe).
func (r *LLMProviderRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.providers[name]
	return exists
}

// Len returns the number of LLM providers in the registry (thread-safe).
func (r *LLMProviderRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
