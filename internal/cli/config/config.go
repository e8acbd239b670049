package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/yndnr/minikv/internal/infra/confloader"
)

// EnvPrefix prefixes CLI environment variables.
const EnvPrefix = "MINIKV_CLI_"

// CLIConfig is the configuration for minikv-cli.
type CLIConfig struct {
	// Server is the default server address.
	Server string `koanf:"server"`
	// Output is the default output format (table or json).
	Output string `koanf:"output"`
	// Timeout bounds each request.
	Timeout time.Duration `koanf:"timeout"`
	// History is the interactive history file.
	History string `koanf:"history"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Server:  "127.0.0.1:6379",
		Output:  "table",
		Timeout: 10 * time.Second,
		History: filepath.Join(homeDir(), ".minikv", "history"),
	}
}

// DefaultConfigPath returns ~/.minikv/cli.yaml.
func DefaultConfigPath() string {
	return filepath.Join(homeDir(), ".minikv", "cli.yaml")
}

// Load reads the CLI configuration from path (DefaultConfigPath when empty)
// and the environment. A missing file is not an error.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}

	opts := []confloader.Option{confloader.WithEnvPrefix(EnvPrefix)}
	if _, err := os.Stat(path); err == nil {
		opts = append(opts, confloader.WithConfigFile(path))
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}

	cfg := Default()
	if err := confloader.NewLoader(opts...).Load(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func homeDir() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return dir
}
