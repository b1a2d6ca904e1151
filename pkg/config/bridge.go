package config

import "time"

// BridgeConfig controls the WebSocket network bridge: heartbeats, outbound
// batching, and connection auth.
type BridgeConfig struct {
	// Addr is the listen address for the HTTP/WebSocket server.
	Addr string `yaml:"addr"`

	// AllowedOrigins is additional WebSocket origin patterns beyond localhost.
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`

	// AuthTokenEnv names the environment variable holding the shared agent
	// auth token. Empty disables auth (development only).
	AuthTokenEnv string `yaml:"auth_token_env,omitempty"`

	// HeartbeatInterval is how often the server pings each connection.
	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"`

	// HeartbeatTimeout is how long a connection may go silent before it is
	// closed. Deliberately generous: an agent blocked on a long LLM call is
	// alive, just busy.
	HeartbeatTimeout time.Duration `yaml:"heartbeat_timeout"`

	// WriteTimeout bounds a single outbound frame write.
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// BatchDelay is how long the forwarder coalesces outbound events before
	// flushing a batch.
	BatchDelay time.Duration `yaml:"batch_delay"`

	// BatchMaxSize flushes early once this many events are pending.
	BatchMaxSize int `yaml:"batch_max_size"`

	// SendRetries is how many times a failed room send is retried before the
	// events are dropped (critical events are spilled to catchup instead).
	SendRetries int `yaml:"send_retries"`

	// SendBackoff is the base backoff between send retries, doubled per
	// attempt.
	SendBackoff time.Duration `yaml:"send_backoff"`

	// CatchupWindow is how many recent events per room are retained for
	// reconnect catchup.
	CatchupWindow int `yaml:"catchup_window"`

	// DrainGrace is how long Close waits for pending outbound batches.
	DrainGrace time.Duration `yaml:"drain_grace"`
}

// DefaultBridgeConfig returns the built-in bridge defaults.
func DefaultBridgeConfig() *BridgeConfig {
	return &BridgeConfig{
		Addr:              ":8000",
		HeartbeatInterval: 30 * time.Second,
		HeartbeatTimeout:  5 * time.Minute,
		WriteTimeout:      10 * time.Second,
		BatchDelay:        50 * time.Millisecond,
		BatchMaxSize:      32,
		SendRetries:       3,
		SendBackoff:       250 * time.Millisecond,
		CatchupWindow:     256,
		DrainGrace:        5 * time.Second,
	}
}
