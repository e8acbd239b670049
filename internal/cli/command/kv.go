package command

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/cli/output"
)

// GetResult is the output of the get command.
type GetResult struct {
	Key   string `json:"key"`
	Found bool   `json:"found"`
	Value string `json:"value,omitempty"`
}

// GetCommand returns the get command.
func GetCommand() *cli.Command {
	return &cli.Command{
		Name:      "get",
		Usage:     "Print the value stored under KEY",
		ArgsUsage: "KEY",
		Action:    runGet,
	}
}

// SetCommand returns the set command.
func SetCommand() *cli.Command {
	return &cli.Command{
		Name:      "set",
		Usage:     "Store VALUE under KEY",
		ArgsUsage: "KEY VALUE",
		Action:    runSet,
	}
}

func runGet(c *cli.Context) error {
	if err := requireArgs(c, 1, "KEY"); err != nil {
		return err
	}
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	cl, err := connect(c.Context, g)
	if err != nil {
		return err
	}
	defer cl.Close()

	ctx, cancel := context.WithTimeout(c.Context, g.Timeout)
	defer cancel()

	key := c.Args().First()
	v, ok, err := cl.Get(ctx, key)
	if err != nil {
		return err
	}

	if g.Output == output.FormatJSON {
		return output.NewFormatter(g.Output).Format(c.App.Writer, GetResult{Key: key, Found: ok, Value: string(v)})
	}
	if !ok {
		_, err = fmt.Fprintln(c.App.Writer, "(nil)")
		return err
	}
	_, err = fmt.Fprintf(c.App.Writer, "%s\n", v)
	return err
}

func runSet(c *cli.Context) error {
	if err := requireArgs(c, 2, "KEY VALUE"); err != nil {
		return err
	}
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	cl, err := connect(c.Context, g)
	if err != nil {
		return err
	}
	defer cl.Close()

	ctx, cancel := context.WithTimeout(c.Context, g.Timeout)
	defer cancel()

	if err := cl.Set(ctx, c.Args().Get(0), []byte(c.Args().Get(1))); err != nil {
		return err
	}

	if g.Output == output.FormatJSON {
		return output.NewFormatter(g.Output).Format(c.App.Writer, map[string]string{"status": "OK"})
	}
	_, err = fmt.Fprintln(c.App.Writer, "OK")
	return err
}
