package repl

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

// Executor runs commands against a server.
type Executor interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// ErrUsage is returned for lines that do not form a valid command.
var ErrUsage = errors.New("usage")

const helpText = `Commands:
  GET <key>          print the value stored under key, or (nil)
  SET <key> <value>  store value under key
  HELP               show this help
  EXIT | QUIT        leave interactive mode
`

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	exec    Executor
	input   io.Reader
	output  io.Writer
	prompt  string
	timeout time.Duration
	history *History
}

// Option configures a REPL.
type Option func(*REPL)

// WithHistory records entered lines in h.
func WithHistory(h *History) Option {
	return func(r *REPL) { r.history = h }
}

// WithPrompt sets the prompt string.
func WithPrompt(p string) Option {
	return func(r *REPL) { r.prompt = p }
}

// WithTimeout bounds each command.
func WithTimeout(d time.Duration) Option {
	return func(r *REPL) { r.timeout = d }
}

// New creates a REPL reading commands from in and writing results to out.
func New(exec Executor, in io.Reader, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		exec:    exec,
		input:   in,
		output:  out,
		prompt:  "minikv> ",
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads and executes lines until EOF, EXIT or ctx cancellation.
// Command failures are printed and do not stop the loop; errors that leave
// the connection unusable do.
func (r *REPL) Run(ctx context.Context) error {
	scanner := bufio.NewScanner(r.input)

	for {
		fmt.Fprint(r.output, r.prompt)

		if !scanner.Scan() {
			fmt.Fprintln(r.output)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if r.history != nil {
			r.history.Add(line)
		}

		switch strings.ToUpper(line) {
		case "EXIT", "QUIT":
			return nil
		case "HELP":
			fmt.Fprint(r.output, helpText)
			continue
		}

		if err := r.execute(ctx, line); err != nil {
			if errors.Is(err, ErrUsage) {
				fmt.Fprintf(r.output, "(error) %v\n", err)
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			fmt.Fprintf(r.output, "(error) %v\n", err)
		}
	}
}

func (r *REPL) execute(ctx context.Context, line string) error {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	switch strings.ToUpper(name) {
	case "GET":
		if rest == "" || strings.ContainsAny(rest, " \t") {
			return fmt.Errorf("%w: GET <key>", ErrUsage)
		}
		v, ok, err := r.exec.Get(ctx, rest)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(r.output, "(nil)")
			return nil
		}
		fmt.Fprintf(r.output, "%q\n", v)
		return nil
	case "SET":
		key, value, ok := strings.Cut(rest, " ")
		if !ok || key == "" {
			return fmt.Errorf("%w: SET <key> <value>", ErrUsage)
		}
		if err := r.exec.Set(ctx, key, []byte(strings.TrimSpace(value))); err != nil {
			return err
		}
		fmt.Fprintln(r.output, "OK")
		return nil
	default:
		return fmt.Errorf("%w: unknown command %q, try HELP", ErrUsage, name)
	}
}
