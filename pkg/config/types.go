// Package config loads and validates Cognia's configuration: a YAML file in
// the config directory plus environment variables expanded with Go template
// syntax. Registries provide thread-safe access to named tool servers and
// LLM providers.
package config

// Config is the umbrella configuration object returned by Initialize and
// passed to assembly. Field groups map one-to-one onto server components.
type Config struct {
	configDir string

	Defaults   *Defaults
	Bus        *BusConfig
	Bridge     *BridgeConfig
	Loop       *LoopConfig
	Memory     *MemoryConfig
	LLM        *LLMConfig
	Validation *ValidationConfig
	Database   *DatabaseConfig
	Slack      *SlackConfig

	ToolServerRegistry  *ToolServerRegistry
	LLMProviderRegistry *LLMProviderRegistry
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string { return c.configDir }

// Stats contains statistics about loaded configuration.
type Stats struct {
	ToolServers  int
	LLMProviders int
}

// Stats returns configuration statistics for startup logging.
func (c *Config) Stats() Stats {
	s := Stats{}
	if c.ToolServerRegistry != nil {
		s.ToolServers = c.ToolServerRegistry.Len()
	}
	if c.LLMProviderRegistry != nil {
		s.LLMProviders = c.LLMProviderRegistry.Len()
	}
	return s
}

// Defaults contains system-wide defaults applied when components do not
// specify their own values.
type Defaults struct {
	// LLMProvider names the provider used when an agent does not pick one.
	LLMProvider string `yaml:"llm_provider,omitempty"`

	// ChannelID is the channel assigned to agents that register without one.
	ChannelID string `yaml:"channel_id,omitempty"`
}

// SlackConfig holds loop lifecycle notification settings.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env,omitempty"`
	Channel  string `yaml:"channel,omitempty"`
}
