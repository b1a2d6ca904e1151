package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognia-ai/cognia/pkg/models"
)

const testCogniaYAML = `
defaults:
  llm_provider: anthropic-default
  channel_id: ops

bridge:
  addr: ":9000"
  batch_max_size: 64

loop:
  max_observations: 20

memory:
  promote_threshold: 0.8

llm:
  default_provider: anthropic-default
  phase_providers:
    reason: anthropic-reason

tool_servers:
  filesystem:
    transport:
      type: stdio
      command: mcp-filesystem
      args: ["--root", "/srv"]
    restart_on_crash: true
  search:
    transport:
      type: http
      url: https://search.internal:8443/mcp
      token_env: SEARCH_TOKEN
    channel_scope: [ops]
    default_risk_level: low
`

const testProvidersYAML = `
llm_providers:
  anthropic-default:
    type: anthropic
    model: claude-sonnet-4-5
    api_key_env: ANTHROPIC_API_KEY
  anthropic-reason:
    type: anthropic
    model: claude-opus-4-1
    api_key_env: ANTHROPIC_API_KEY
    max_tokens: 8192
`

func setupTestConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cognia.yaml"), []byte(testCogniaYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "llm-providers.yaml"), []byte(testProvidersYAML), 0644))
	return dir
}

func TestInitialize(t *testing.T) {
	configDir := setupTestConfigDir(t)

	ctx := context.Background()
	cfg, err := Initialize(ctx, configDir)

	require.NoError(t, err)
	require.NotNil(t, cfg)

	// Registries are populated
	assert.True(t, cfg.ToolServerRegistry.Has("filesystem"))
	assert.True(t, cfg.ToolServerRegistry.Has("search"))
	assert.True(t, cfg.LLMProviderRegistry.Has("anthropic-default"))
	assert.True(t, cfg.LLMProviderRegistry.Has("anthropic-reason"))

	stats := cfg.Stats()
	assert.Equal(t, 2, stats.ToolServers)
	assert.Equal(t, 2, stats.LLMProviders)
}

func TestInitializeMergesUserOverDefaults(t *testing.T) {
	configDir := setupTestConfigDir(t)

	cfg, err := Initialize(context.Background(), configDir)
	require.NoError(t, err)

	// User overrides apply
	assert.Equal(t, ":9000", cfg.Bridge.Addr)
	assert.Equal(t, 64, cfg.Bridge.BatchMaxSize)
	assert.Equal(t, 20, cfg.Loop.MaxObservations)
	assert.Equal(t, 0.8, cfg.Memory.PromoteThreshold)

	// Unset fields keep built-in defaults
	assert.Equal(t, 30*time.Second, cfg.Bridge.HeartbeatInterval)
	assert.Equal(t, 50, cfg.Loop.MaxConcurrentLoops)
	assert.Equal(t, 0.3, cfg.Memory.DemoteThreshold)
	assert.Equal(t, QValueLearningRate, cfg.Memory.LearningRate)
	assert.Equal(t, 256, cfg.Bus.AsyncQueueDepth)
}

func TestInitializeToolServerDefaults(t *testing.T) {
	configDir := setupTestConfigDir(t)

	cfg, err := Initialize(context.Background(), configDir)
	require.NoError(t, err)

	fs, err := cfg.ToolServerRegistry.Get("filesystem")
	require.NoError(t, err)
	assert.Equal(t, models.RiskMedium, fs.DefaultRiskLevel)
	assert.Equal(t, defaultToolServerMaxRestarts, fs.MaxRestarts)
	assert.Equal(t, defaultToolServerProbeInterval, fs.ProbeInterval)

	search, err := cfg.ToolServerRegistry.Get("search")
	require.NoError(t, err)
	assert.Equal(t, models.RiskLow, search.DefaultRiskLevel)
	assert.Equal(t, []string{"ops"}, search.ChannelScope)
}

func TestInitializePhaseProviderResolution(t *testing.T) {
	configDir := setupTestConfigDir(t)

	cfg, err := Initialize(context.Background(), configDir)
	require.NoError(t, err)

	assert.Equal(t, "anthropic-reason", cfg.LLM.ProviderFor(models.PhaseReason))
	assert.Equal(t, "anthropic-default", cfg.LLM.ProviderFor(models.PhasePlan))
}

func TestInitializeConfigNotFound(t *testing.T) {
	_, err := Initialize(context.Background(), "/nonexistent/directory")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitializeInvalidYAML(t *testing.T) {
	configDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(configDir, "cognia.yaml"), []byte("tool_servers: ["), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644))

	_, err := Initialize(context.Background(), configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load configuration")
}

func TestInitializeValidationFailure(t *testing.T) {
	configDir := t.TempDir()

	// Tool server without a transport command must fail validation
	badYAML := `
tool_servers:
  broken:
    transport:
      type: stdio
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "cognia.yaml"), []byte(badYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644))

	_, err := Initialize(context.Background(), configDir)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration validation failed")
}

func TestInitializeUnknownPhaseProvider(t *testing.T) {
	configDir := t.TempDir()

	badYAML := `
llm:
  phase_providers:
    reason: missing-provider
`
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "cognia.yaml"), []byte(badYAML), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "llm-providers.yaml"), []byte("llm_providers: {}"), 0644))

	_, err := Initialize(context.Background(), configDir)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidReference)
}
