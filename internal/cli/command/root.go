package command

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/cli/config"
	"github.com/yndnr/minikv/internal/cli/output"
	"github.com/yndnr/minikv/internal/client"
	"github.com/yndnr/minikv/internal/infra/buildinfo"
	"github.com/yndnr/minikv/internal/telemetry/logger"
)

const configKey = "config"

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "minikv-cli",
		Usage:   "minikv command-line client",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			GetCommand(),
			SetCommand(),
			BenchCommand(),
			InteractiveCommand(),
		},
		Before: func(c *cli.Context) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return fmt.Errorf("load cli config: %w", err)
			}
			if c.App.Metadata == nil {
				c.App.Metadata = map[string]any{}
			}
			c.App.Metadata[configKey] = cfg

			if c.Bool("verbose") {
				logger.SetDefault(logger.Wrap(logger.NewSlog(logger.Config{
					Level:  "debug",
					Format: "text",
					Output: c.App.ErrWriter,
				})))
			}
			return nil
		},
	}
}

// globalFlags returns the global CLI flags. Unset flags fall back to the
// CLI config file.
func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "CLI config file (default ~/.minikv/cli.yaml)",
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "minikv server address (host:port)",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Per-request timeout",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Enable debug logging on stderr",
		},
	}
}

// GlobalFlags holds the effective global settings.
type GlobalFlags struct {
	Server  string
	Output  output.Format
	Timeout time.Duration
	Verbose bool
	History string
}

// ParseGlobalFlags merges global flags over the loaded CLI config.
func ParseGlobalFlags(c *cli.Context) (*GlobalFlags, error) {
	cfg, ok := c.App.Metadata[configKey].(*config.CLIConfig)
	if !ok {
		cfg = config.Default()
	}

	g := &GlobalFlags{
		Server:  cfg.Server,
		Timeout: cfg.Timeout,
		Verbose: c.Bool("verbose"),
		History: cfg.History,
	}
	if c.IsSet("server") {
		g.Server = c.String("server")
	}
	if c.IsSet("timeout") {
		g.Timeout = c.Duration("timeout")
	}

	format := cfg.Output
	if c.IsSet("output") {
		format = c.String("output")
	}
	f, err := output.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	g.Output = f

	return g, nil
}

// connect dials the server selected by g.
func connect(ctx context.Context, g *GlobalFlags) (*client.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, g.Timeout)
	defer cancel()

	logger.Debug("connecting", "server", g.Server)
	return client.Dial(ctx, g.Server)
}

func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() != n {
		return cli.Exit(fmt.Sprintf("usage: %s %s", c.Command.Name, usage), 2)
	}
	return nil
}
