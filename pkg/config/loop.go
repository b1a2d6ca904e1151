package config

import "time"

// LoopConfig controls the ORPAR loop engine and its manager.
type LoopConfig struct {
	// MaxObservations bounds each loop's observation buffer (FIFO eviction).
	MaxObservations int `yaml:"max_observations"`

	// MaxConcurrentLoops is the global limit of loops running at once.
	MaxConcurrentLoops int `yaml:"max_concurrent_loops"`

	// MailboxDepth is the per-loop mailbox queue depth.
	MailboxDepth int `yaml:"mailbox_depth"`

	// PhaseTimeout bounds a single phase handler, including its LLM and tool
	// calls. Generous: reasoning over a large context is legitimately slow.
	PhaseTimeout time.Duration `yaml:"phase_timeout"`

	// ActionTimeout bounds one action's tool execution.
	ActionTimeout time.Duration `yaml:"action_timeout"`

	// GracefulShutdownTimeout is how long Stop waits for running loops to
	// finish their current phase before abandoning them.
	GracefulShutdownTimeout time.Duration `yaml:"graceful_shutdown_timeout"`

	// OrphanScanInterval is how often the manager scans for loops whose
	// owning agent's socket has been gone past OrphanGrace.
	OrphanScanInterval time.Duration `yaml:"orphan_scan_interval"`

	// OrphanGrace is how long a loop may outlive its owner's connection.
	OrphanGrace time.Duration `yaml:"orphan_grace"`
}

// DefaultLoopConfig returns the built-in loop engine defaults.
func DefaultLoopConfig() *LoopConfig {
	return &LoopConfig{
		MaxObservations:         10,
		MaxConcurrentLoops:      50,
		MailboxDepth:            128,
		PhaseTimeout:            2 * time.Minute,
		ActionTimeout:           90 * time.Second,
		GracefulShutdownTimeout: 2 * time.Minute,
		OrphanScanInterval:      time.Minute,
		OrphanGrace:             5 * time.Minute,
	}
}
