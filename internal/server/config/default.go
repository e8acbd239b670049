package config

import "time"

// Default configuration values.
const (
	DefaultAddr         = "127.0.0.1:6379"
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
	DefaultIdleTimeout  = 5 * time.Minute

	DefaultShards = 16

	DefaultMetricsAddr = "127.0.0.1:9121"

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// MaxShards bounds store.shards.
const MaxShards = 1 << 16

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			Addr:         DefaultAddr,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			IdleTimeout:  DefaultIdleTimeout,
		},
		Store: StoreSection{
			Shards: DefaultShards,
		},
		Metrics: MetricsSection{
			Enabled: false,
			Addr:    DefaultMetricsAddr,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
