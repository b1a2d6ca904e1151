package config

import "time"

// DatabaseConfig controls the PostgreSQL connection pool. The DSN comes from
// an environment variable so credentials stay out of YAML.
type DatabaseConfig struct {
	// DSNEnv names the environment variable holding the connection string.
	DSNEnv string `yaml:"dsn_env"`

	// MaxConns caps the pgx pool size.
	MaxConns int32 `yaml:"max_conns"`

	// ConnectTimeout bounds the startup connectivity check.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// MigrateOnStart runs embedded migrations during startup.
	MigrateOnStart bool `yaml:"migrate_on_start"`

	// FlushInterval is how often in-process state (loops, memory, patterns,
	// circuits) is written behind to the database.
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// DefaultDatabaseConfig returns the built-in database defaults.
func DefaultDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		DSNEnv:         "DATABASE_URL",
		MaxConns:       10,
		ConnectTimeout: 10 * time.Second,
		MigrateOnStart: true,
		FlushInterval:  30 * time.Second,
	}
}
