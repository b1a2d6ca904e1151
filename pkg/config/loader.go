package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"
)

// CogniaYAMLConfig represents the complete cognia.yaml file structure.
type CogniaYAMLConfig struct {
	Defaults    *Defaults                    `yaml:"defaults"`
	Bus         *BusConfig                   `yaml:"bus"`
	Bridge      *BridgeConfig                `yaml:"bridge"`
	Loop        *LoopConfig                  `yaml:"loop"`
	Memory      *MemoryConfig                `yaml:"memory"`
	LLM         *LLMConfig                   `yaml:"llm"`
	Validation  *ValidationConfig            `yaml:"validation"`
	Database    *DatabaseConfig              `yaml:"database"`
	Slack       *SlackYAMLConfig             `yaml:"slack"`
	ToolServers map[string]ToolServerConfig  `yaml:"tool_servers"`
}

// SlackYAMLConfig holds Slack notification settings from YAML.
type SlackYAMLConfig struct {
	Enabled  *bool  `yaml:"enabled,omitempty"`
	TokenEnv string `yaml:"token_env,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}

// LLMProvidersYAMLConfig represents the complete llm-providers.yaml file
// structure.
type LLMProvidersYAMLConfig struct {
	LLMProviders map[string]LLMProviderConfig `yaml:"llm_providers"`
}

// Initialize loads, validates, and returns ready-to-use configuration.
// This is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load YAML files from configDir
//  2. Expand environment variables
//  3. Merge user-defined values over built-in defaults
//  4. Build in-memory registries
//  5. Validate all configuration
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"tool_servers", stats.ToolServers,
		"llm_providers", stats.LLMProviders)

	return cfg, nil
}

// load is the internal loader (not exported).
func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	cogniaConfig, err := loader.loadCogniaYAML()
	if err != nil {
		return nil, NewLoadError("cognia.yaml", err)
	}

	llmProviders, err := loader.loadLLMProvidersYAML()
	if err != nil {
		return nil, NewLoadError("llm-providers.yaml", err)
	}

	// Merge user config over defaults per section: start with defaults, then
	// merge the user's non-zero values on top so unset fields keep defaults.
	busCfg, err := mergeSection(DefaultBusConfig(), cogniaConfig.Bus)
	if err != nil {
		return nil, fmt.Errorf("failed to merge bus config: %w", err)
	}
	bridgeCfg, err := mergeSection(DefaultBridgeConfig(), cogniaConfig.Bridge)
	if err != nil {
		return nil, fmt.Errorf("failed to merge bridge config: %w", err)
	}
	loopCfg, err := mergeSection(DefaultLoopConfig(), cogniaConfig.Loop)
	if err != nil {
		return nil, fmt.Errorf("failed to merge loop config: %w", err)
	}
	memoryCfg, err := mergeSection(DefaultMemoryConfig(), cogniaConfig.Memory)
	if err != nil {
		return nil, fmt.Errorf("failed to merge memory config: %w", err)
	}
	llmCfg, err := mergeSection(DefaultLLMConfig(), cogniaConfig.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to merge llm config: %w", err)
	}
	validationCfg, err := mergeSection(DefaultValidationConfig(), cogniaConfig.Validation)
	if err != nil {
		return nil, fmt.Errorf("failed to merge validation config: %w", err)
	}
	databaseCfg, err := mergeSection(DefaultDatabaseConfig(), cogniaConfig.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to merge database config: %w", err)
	}

	toolServers := make(map[string]*ToolServerConfig, len(cogniaConfig.ToolServers))
	for id := range cogniaConfig.ToolServers {
		server := cogniaConfig.ToolServers[id]
		applyToolServerDefaults(&server)
		toolServers[id] = &server
	}

	providers := make(map[string]*LLMProviderConfig, len(llmProviders))
	for name := range llmProviders {
		p := llmProviders[name]
		providers[name] = &p
	}

	defaults := cogniaConfig.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.ChannelID == "" {
		defaults.ChannelID = "general"
	}

	return &Config{
		configDir:           configDir,
		Defaults:            defaults,
		Bus:                 busCfg,
		Bridge:              bridgeCfg,
		Loop:                loopCfg,
		Memory:              memoryCfg,
		LLM:                 llmCfg,
		Validation:          validationCfg,
		Database:            databaseCfg,
		Slack:               resolveSlackConfig(cogniaConfig.Slack),
		ToolServerRegistry:  NewToolServerRegistry(toolServers),
		LLMProviderRegistry: NewLLMProviderRegistry(providers),
	}, nil
}

// mergeSection merges user-provided config into defaults (non-zero values
// override).
func mergeSection[T any](defaults *T, user *T) (*T, error) {
	if user == nil {
		return defaults, nil
	}
	if err := mergo.Merge(defaults, user, mergo.WithOverride); err != nil {
		return nil, err
	}
	return defaults, nil
}

// applyToolServerDefaults fills server-level defaults before validation.
func applyToolServerDefaults(server *ToolServerConfig) {
	if server.DefaultRiskLevel == "" {
		server.DefaultRiskLevel = defaultToolRiskLevel
	}
	if server.RestartOnCrash && server.MaxRestarts == 0 {
		server.MaxRestarts = defaultToolServerMaxRestarts
	}
	if server.ProbeInterval == 0 {
		server.ProbeInterval = defaultToolServerProbeInterval
	}
}

// validate performs comprehensive validation on loaded configuration.
func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	// Expand environment variables using {{.VAR}} template syntax.
	// ExpandEnv passes through original data on parse/execution errors,
	// letting the YAML parser produce the clearer error message.
	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadCogniaYAML() (*CogniaYAMLConfig, error) {
	var config CogniaYAMLConfig

	// Initialize map to avoid nil map
	config.ToolServers = make(map[string]ToolServerConfig)

	if err := l.loadYAML("cognia.yaml", &config); err != nil {
		return nil, err
	}

	return &config, nil
}

func (l *configLoader) loadLLMProvidersYAML() (map[string]LLMProviderConfig, error) {
	var config LLMProvidersYAMLConfig

	// Initialize map to avoid nil map
	config.LLMProviders = make(map[string]LLMProviderConfig)

	if err := l.loadYAML("llm-providers.yaml", &config); err != nil {
		return nil, err
	}

	return config.LLMProviders, nil
}

// resolveSlackConfig resolves Slack configuration from YAML, applying
// defaults.
func resolveSlackConfig(s *SlackYAMLConfig) *SlackConfig {
	cfg := &SlackConfig{
		Enabled:  false,
		TokenEnv: "SLACK_BOT_TOKEN",
	}

	if s == nil {
		return cfg
	}

	if s.Enabled != nil {
		cfg.Enabled = *s.Enabled
	}
	if s.TokenEnv != "" {
		cfg.TokenEnv = s.TokenEnv
	}
	if s.Channel != "" {
		cfg.Channel = s.Channel
	}

	return cfg
}
