package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/cli/repl"
	"github.com/yndnr/minikv/internal/telemetry/logger"
)

// InteractiveCommand returns the interactive mode command.
func InteractiveCommand() *cli.Command {
	return &cli.Command{
		Name:    "interactive",
		Aliases: []string{"i"},
		Usage:   "Read GET/SET commands from stdin over one connection",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-history", Usage: "Do not load or save command history"},
		},
		Action: runInteractive,
	}
}

func runInteractive(c *cli.Context) error {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	cl, err := connect(c.Context, g)
	if err != nil {
		return err
	}
	defer cl.Close()

	opts := []repl.Option{repl.WithTimeout(g.Timeout)}
	var history *repl.History
	if !c.Bool("no-history") && g.History != "" {
		history = repl.NewHistory(g.History)
		if err := history.Load(); err != nil {
			logger.Warn("failed to load history", "path", g.History, "error", err)
		}
		opts = append(opts, repl.WithHistory(history))
	}

	runErr := repl.New(cl, c.App.Reader, c.App.Writer, opts...).Run(c.Context)

	if history != nil {
		if err := history.Save(); err != nil {
			logger.Warn("failed to save history", "path", g.History, "error", err)
		}
	}
	return runErr
}
