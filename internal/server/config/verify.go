package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid configuration")

// Verify validates the configuration.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyStore(&cfg.Store); err != nil {
		return err
	}
	if err := verifyMetrics(&cfg.Metrics, &cfg.Server); err != nil {
		return err
	}
	return verifyLog(&cfg.Log)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func verifyServer(cfg *ServerSection) error {
	if err := verifyAddr("server.addr", cfg.Addr); err != nil {
		return err
	}
	if cfg.ReadTimeout < 0 || cfg.WriteTimeout < 0 || cfg.IdleTimeout < 0 {
		return invalid("server timeouts must not be negative")
	}
	if cfg.RateLimit < 0 {
		return invalid("server.rate_limit must not be negative")
	}
	if cfg.MaxConnections < 0 {
		return invalid("server.max_connections must not be negative")
	}
	return nil
}

func verifyStore(cfg *StoreSection) error {
	if cfg.Shards < 1 || cfg.Shards > MaxShards {
		return invalid("store.shards must be between 1 and %d, got %d", MaxShards, cfg.Shards)
	}
	return nil
}

func verifyMetrics(cfg *MetricsSection, srv *ServerSection) error {
	if !cfg.Enabled {
		return nil
	}
	if err := verifyAddr("metrics.addr", cfg.Addr); err != nil {
		return err
	}
	if cfg.Addr == srv.Addr {
		return invalid("metrics.addr conflicts with server.addr (%s)", cfg.Addr)
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	switch strings.ToLower(cfg.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return invalid("log.level %q is not one of debug, info, warn, error", cfg.Level)
	}
	switch strings.ToLower(cfg.Format) {
	case "json", "text":
	default:
		return invalid("log.format %q is not one of json, text", cfg.Format)
	}
	return nil
}

func verifyAddr(field, addr string) error {
	if addr == "" {
		return invalid("%s is required", field)
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return invalid("%s %q: %v", field, addr, err)
	}
	return nil
}
