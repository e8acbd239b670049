package command

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/minikv/internal/cli/output"
	"github.com/yndnr/minikv/internal/client"
	"github.com/yndnr/minikv/internal/telemetry/logger"
)

// BenchOptions configures a benchmark run.
type BenchOptions struct {
	Producers int
	Requests  int
	Keyspace  int
	ValueSize int
	Queue     int
	Timeout   time.Duration
}

// BenchResult summarizes a benchmark run.
type BenchResult struct {
	Producers int           `json:"producers"`
	Requests  int           `json:"requests"`
	Errors    int64         `json:"errors"`
	Elapsed   time.Duration `json:"elapsed_ns"`
	OpsPerSec float64       `json:"ops_per_sec"`
	P50       time.Duration `json:"p50_ns"`
	P99       time.Duration `json:"p99_ns"`
	Max       time.Duration `json:"max_ns"`
}

// BenchCommand returns the bench command.
func BenchCommand() *cli.Command {
	return &cli.Command{
		Name:  "bench",
		Usage: "Run concurrent GET/SET load over one shared connection",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "producers", Aliases: []string{"p"}, Value: 4, Usage: "Concurrent producers"},
			&cli.IntFlag{Name: "requests", Aliases: []string{"n"}, Value: 10000, Usage: "Total requests"},
			&cli.IntFlag{Name: "keyspace", Aliases: []string{"k"}, Value: 1000, Usage: "Number of distinct keys"},
			&cli.IntFlag{Name: "value-size", Value: 32, Usage: "SET value size in bytes"},
			&cli.IntFlag{Name: "queue", Value: client.DefaultQueueCapacity, Usage: "Request queue capacity"},
			&cli.BoolFlag{Name: "progress", Usage: "Show progress on stderr"},
		},
		Action: runBenchCommand,
	}
}

func runBenchCommand(c *cli.Context) error {
	g, err := ParseGlobalFlags(c)
	if err != nil {
		return err
	}

	opts := BenchOptions{
		Producers: c.Int("producers"),
		Requests:  c.Int("requests"),
		Keyspace:  c.Int("keyspace"),
		ValueSize: c.Int("value-size"),
		Queue:     c.Int("queue"),
		Timeout:   g.Timeout,
	}
	if opts.Producers < 1 || opts.Requests < 1 || opts.Keyspace < 1 || opts.ValueSize < 0 {
		return cli.Exit("producers, requests and keyspace must be positive", 2)
	}

	cl, err := connect(c.Context, g)
	if err != nil {
		return err
	}

	var progress *output.ProgressBar
	if c.Bool("progress") {
		progress = output.NewProgressBar(c.App.ErrWriter, "bench", int64(opts.Requests))
	}

	res, err := RunBench(c.Context, cl, opts, progress)
	if err != nil {
		return err
	}
	return output.NewFormatter(g.Output).Format(c.App.Writer, res)
}

// RunBench drives backend from opts.Producers goroutines through a
// client.Manager and closes backend when done. Requests alternate between
// SET and GET on random keys.
func RunBench(ctx context.Context, backend client.Backend, opts BenchOptions, progress *output.ProgressBar) (*BenchResult, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}

	mgr, tx := client.NewManager(backend, opts.Queue, client.WithManagerLogger(logger.Default().Slog()))
	runErr := make(chan error, 1)
	go func() { runErr <- mgr.Run() }()

	value := make([]byte, opts.ValueSize)
	for i := range value {
		value[i] = 'a' + byte(i%26)
	}

	var (
		errCount  atomic.Int64
		firstErr  error
		errOnce   sync.Once
		wg        sync.WaitGroup
		latencies = make([][]time.Duration, opts.Producers)
	)

	start := time.Now()
	for p := 0; p < opts.Producers; p++ {
		n := opts.Requests / opts.Producers
		if p < opts.Requests%opts.Producers {
			n++
		}
		s := tx.Clone()
		wg.Add(1)
		go func(p, n int) {
			defer wg.Done()
			defer s.Close()

			lat := make([]time.Duration, 0, n)
			for i := 0; i < n; i++ {
				key := "bench:" + strconv.Itoa(rand.IntN(opts.Keyspace))

				rctx, cancel := context.WithTimeout(ctx, opts.Timeout)
				t0 := time.Now()
				var err error
				if i%2 == 0 {
					err = s.Set(rctx, key, value)
				} else {
					_, _, err = s.Get(rctx, key)
				}
				lat = append(lat, time.Since(t0))
				cancel()

				if err != nil {
					errCount.Add(1)
					errOnce.Do(func() { firstErr = err })
					if errors.Is(err, context.Canceled) || errors.Is(err, client.ErrBroken) {
						break
					}
				}
				if progress != nil {
					progress.Increment(1)
				}
			}
			latencies[p] = lat
		}(p, n)
	}
	tx.Close()
	wg.Wait()
	elapsed := time.Since(start)

	if progress != nil {
		progress.Finish()
	}
	if err := <-runErr; err != nil {
		logger.Warn("closing bench connection", "error", err)
	}

	all := slices.Concat(latencies...)
	slices.Sort(all)

	res := &BenchResult{
		Producers: opts.Producers,
		Requests:  len(all),
		Errors:    errCount.Load(),
		Elapsed:   elapsed,
		OpsPerSec: float64(len(all)) / elapsed.Seconds(),
		P50:       percentile(all, 0.50),
		P99:       percentile(all, 0.99),
	}
	if len(all) > 0 {
		res.Max = all[len(all)-1]
	}

	if res.Errors == int64(res.Requests) && firstErr != nil {
		return res, fmt.Errorf("every request failed: %w", firstErr)
	}
	return res, nil
}

// percentile returns the q-quantile of sorted durations.
func percentile(sorted []time.Duration, q float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	i := int(q * float64(len(sorted)-1))
	return sorted[i]
}
