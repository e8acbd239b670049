package config

import "time"

// ServerConfig is the root configuration for minikv-server.
type ServerConfig struct {
	Server  ServerSection  `koanf:"server"`
	Store   StoreSection   `koanf:"store"`
	Metrics MetricsSection `koanf:"metrics"`
	Log     LogSection     `koanf:"log"`
}

// ServerSection configures the key-value protocol listener.
type ServerSection struct {
	Addr         string        `koanf:"addr"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	IdleTimeout  time.Duration `koanf:"idle_timeout"`

	// RateLimit is the per-connection command rate (commands/s). 0 disables it.
	RateLimit int `koanf:"rate_limit"`

	// MaxConnections caps concurrent client connections. 0 means no cap.
	MaxConnections int `koanf:"max_connections"`
}

// StoreSection configures the in-memory store.
type StoreSection struct {
	// Shards is the fixed number of store shards.
	Shards int `koanf:"shards"`
}

// MetricsSection configures the Prometheus endpoint.
type MetricsSection struct {
	Enabled bool   `koanf:"enabled"`
	Addr    string `koanf:"addr"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
