package config

// BusConfig controls the in-process event bus.
type BusConfig struct {
	// AsyncQueueDepth is the bounded queue depth for async topics.
	AsyncQueueDepth int `yaml:"async_queue_depth"`

	// DedupeWindow is how many recent correlation ids handlers remember when
	// suppressing at-least-once duplicates.
	DedupeWindow int `yaml:"dedupe_window"`
}

// DefaultBusConfig returns the built-in event bus defaults.
func DefaultBusConfig() *BusConfig {
	return &BusConfig{
		AsyncQueueDepth: 256,
		DedupeWindow:    1024,
	}
}
