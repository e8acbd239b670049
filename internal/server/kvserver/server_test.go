package kvserver

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yndnr/minikv/internal/command"
	"github.com/yndnr/minikv/internal/connection"
	"github.com/yndnr/minikv/internal/storage/memory"
	"github.com/yndnr/minikv/internal/telemetry/metric"
	"github.com/yndnr/minikv/pkg/frame"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1:0"
	cfg.ReadTimeout = 2 * time.Second
	cfg.WriteTimeout = 2 * time.Second
	cfg.IdleTimeout = 5 * time.Second
	return cfg
}

func startServer(t *testing.T, cfg *Config, store Store, opts ...Option) *Server {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(cfg, store, opts...)
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), ln) }()

	require.Eventually(t, func() bool { return s.Addr() != nil }, time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
		assert.NoError(t, <-done)
	})
	return s
}

type testClient struct {
	nc   net.Conn
	conn *connection.Connection
}

func dial(t *testing.T, s *Server) *testClient {
	t.Helper()
	nc, err := net.Dial("tcp", s.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = nc.Close() })
	_ = nc.SetDeadline(time.Now().Add(5 * time.Second))
	return &testClient{nc: nc, conn: connection.New(nc)}
}

func (c *testClient) do(t *testing.T, cmd command.Command) frame.Frame {
	t.Helper()
	require.NoError(t, c.conn.WriteFrame(cmd.Frame()))
	reply, err := c.conn.ReadFrame()
	require.NoError(t, err)
	return reply
}

// expectClosed asserts the server ended the connection without replying.
func (c *testClient) expectClosed(t *testing.T) {
	t.Helper()
	f, err := c.conn.ReadFrame()
	assert.Error(t, err)
	assert.Nil(t, f)
}

func TestServer_SetThenGet(t *testing.T) {
	s := startServer(t, testConfig(), memory.New())
	c := dial(t, s)

	assert.Equal(t, frame.Simple("OK"), c.do(t, command.Set{Key: "foo", Value: []byte("bar")}))
	assert.Equal(t, frame.Bulk("bar"), c.do(t, command.Get{Key: "foo"}))
}

func TestServer_GetMissingKey(t *testing.T) {
	s := startServer(t, testConfig(), memory.New())
	c := dial(t, s)

	assert.Equal(t, frame.Null{}, c.do(t, command.Get{Key: "missing"}))
}

func TestServer_SharedAcrossConnections(t *testing.T) {
	s := startServer(t, testConfig(), memory.New())

	a := dial(t, s)
	b := dial(t, s)

	assert.Equal(t, frame.Simple("OK"), a.do(t, command.Set{Key: "shared", Value: []byte("v1")}))
	assert.Equal(t, frame.Bulk("v1"), b.do(t, command.Get{Key: "shared"}))
	assert.Equal(t, frame.Simple("OK"), b.do(t, command.Set{Key: "shared", Value: []byte("v2")}))
	assert.Equal(t, frame.Bulk("v2"), a.do(t, command.Get{Key: "shared"}))
}

func TestServer_PipelinedRequestsAnsweredInOrder(t *testing.T) {
	s := startServer(t, testConfig(), memory.New())
	c := dial(t, s)

	var req []byte
	req = frame.AppendFrame(req, command.Set{Key: "k", Value: []byte("1")}.Frame())
	req = frame.AppendFrame(req, command.Get{Key: "k"}.Frame())
	req = frame.AppendFrame(req, command.Get{Key: "other"}.Frame())
	_, err := c.nc.Write(req)
	require.NoError(t, err)

	for _, want := range []frame.Frame{frame.Simple("OK"), frame.Bulk("1"), frame.Null{}} {
		got, err := c.conn.ReadFrame()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestServer_RequestSplitAcrossWrites(t *testing.T) {
	s := startServer(t, testConfig(), memory.New())
	c := dial(t, s)

	req := frame.Encode(command.Set{Key: "split", Value: []byte("value")}.Frame())
	for _, b := range req {
		_, err := c.nc.Write([]byte{b})
		require.NoError(t, err)
	}

	got, err := c.conn.ReadFrame()
	require.NoError(t, err)
	assert.Equal(t, frame.Simple("OK"), got)
}

func TestServer_UnsupportedCommandClosesConnection(t *testing.T) {
	reg := metric.NewRegistry()
	s := startServer(t, testConfig(), memory.New(), WithMetrics(reg))
	c := dial(t, s)

	require.NoError(t, c.conn.WriteFrame(frame.Array{frame.BulkString("PING")}))
	c.expectClosed(t)

	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(reg.ConnectionErrors.WithLabelValues(metric.ErrKindUnsupported)) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestServer_MalformedInputClosesConnection(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unknown type byte", "!oops\r\n"},
		{"not an array", "$3\r\nGET\r\n"},
		{"wrong arity", "*1\r\n$3\r\nGET\r\n"},
		{"arrays nested too deep", strings.Repeat("*1\r\n", frame.MaxDepth+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := startServer(t, testConfig(), memory.New())
			c := dial(t, s)

			_, err := c.nc.Write([]byte(tt.input))
			require.NoError(t, err)
			c.expectClosed(t)
		})
	}
}

type panicStore struct {
	*memory.Store
}

func (p panicStore) Get(key string) ([]byte, bool) {
	if key == "boom" {
		panic("store exploded")
	}
	return p.Store.Get(key)
}

func TestServer_PanicIsolatedToConnection(t *testing.T) {
	reg := metric.NewRegistry()
	s := startServer(t, testConfig(), panicStore{memory.New()}, WithMetrics(reg))

	healthy := dial(t, s)
	assert.Equal(t, frame.Simple("OK"), healthy.do(t, command.Set{Key: "a", Value: []byte("1")}))

	bad := dial(t, s)
	require.NoError(t, bad.conn.WriteFrame(command.Get{Key: "boom"}.Frame()))
	bad.expectClosed(t)

	assert.Equal(t, frame.Bulk("1"), healthy.do(t, command.Get{Key: "a"}))

	fresh := dial(t, s)
	assert.Equal(t, frame.Bulk("1"), fresh.do(t, command.Get{Key: "a"}))

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.ConnectionErrors.WithLabelValues(metric.ErrKindPanic)))
}

func TestServer_MaxConnections(t *testing.T) {
	cfg := testConfig()
	cfg.MaxConnections = 1
	reg := metric.NewRegistry()
	s := startServer(t, cfg, memory.New(), WithMetrics(reg))

	first := dial(t, s)
	assert.Equal(t, frame.Null{}, first.do(t, command.Get{Key: "x"}))

	second := dial(t, s)
	second.expectClosed(t)
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.ConnectionsRejected))

	assert.Equal(t, frame.Null{}, first.do(t, command.Get{Key: "x"}))
}

func TestServer_RateLimitDelaysCommands(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = 10
	s := startServer(t, cfg, memory.New())
	c := dial(t, s)

	start := time.Now()
	for i := 0; i < 15; i++ {
		assert.Equal(t, frame.Null{}, c.do(t, command.Get{Key: "k"}))
	}
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestServer_IdleTimeoutClosesConnection(t *testing.T) {
	cfg := testConfig()
	cfg.IdleTimeout = 50 * time.Millisecond
	s := startServer(t, cfg, memory.New())
	c := dial(t, s)

	c.expectClosed(t)
}

func TestServer_ShutdownClosesActiveConnections(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New(testConfig(), memory.New())
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), ln) }()
	require.Eventually(t, func() bool { return s.Addr() != nil }, time.Second, 5*time.Millisecond)

	c := dial(t, s)
	assert.Equal(t, frame.Simple("OK"), c.do(t, command.Set{Key: "k", Value: []byte("v")}))
	require.Eventually(t, func() bool { return s.ActiveConnections() == 1 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	require.NoError(t, <-done)

	c.expectClosed(t)
	assert.Equal(t, 0, s.ActiveConnections())
}

func TestServer_ConcurrentClients(t *testing.T) {
	store := memory.New()
	s := startServer(t, testConfig(), store)

	const clients, perClient = 8, 50

	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			nc, err := net.Dial("tcp", s.Addr().String())
			if !assert.NoError(t, err) {
				return
			}
			defer nc.Close()
			conn := connection.New(nc)

			for j := 0; j < perClient; j++ {
				key := fmt.Sprintf("c%d-k%d", i, j)
				if !assert.NoError(t, conn.WriteFrame(command.Set{Key: key, Value: []byte(key)}.Frame())) {
					return
				}
				reply, err := conn.ReadFrame()
				if !assert.NoError(t, err) {
					return
				}
				assert.Equal(t, frame.Simple("OK"), reply)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, clients*perClient, store.Len())
	v, ok := store.Get("c3-k7")
	require.True(t, ok)
	assert.Equal(t, []byte("c3-k7"), v)
}

func TestServer_StartListensOnConfiguredAddress(t *testing.T) {
	s := New(testConfig(), memory.New())
	require.NoError(t, s.Start(context.Background()))
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		assert.NoError(t, s.Shutdown(ctx))
	}()

	require.NotNil(t, s.Addr())
	c := dial(t, s)
	assert.Equal(t, frame.Null{}, c.do(t, command.Get{Key: "nothing"}))
}

func TestServer_MetricsRecorded(t *testing.T) {
	reg := metric.NewRegistry()
	s := startServer(t, testConfig(), memory.New(), WithMetrics(reg))
	c := dial(t, s)

	c.do(t, command.Set{Key: "a", Value: []byte("b")})
	c.do(t, command.Get{Key: "a"})
	c.do(t, command.Get{Key: "a"})

	assert.Equal(t, float64(1), testutil.ToFloat64(reg.ConnectionsAccepted))
	assert.Equal(t, float64(1), testutil.ToFloat64(reg.CommandsTotal.WithLabelValues("SET")))
	assert.Eventually(t, func() bool {
		return testutil.ToFloat64(reg.CommandsTotal.WithLabelValues("GET")) == 2
	}, time.Second, 5*time.Millisecond)
}

// gateListener hands out one connection only when released, so a test can
// order Accept returning against Shutdown. Later Accept calls block until
// Close.
type gateListener struct {
	conn      net.Conn
	accepting chan struct{}
	release   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	served    bool
}

func newGateListener(conn net.Conn) *gateListener {
	return &gateListener{
		conn:      conn,
		accepting: make(chan struct{}),
		release:   make(chan struct{}),
		closed:    make(chan struct{}),
	}
}

func (l *gateListener) Accept() (net.Conn, error) {
	if !l.served {
		l.served = true
		close(l.accepting)
		<-l.release
		return l.conn, nil
	}
	<-l.closed
	return nil, net.ErrClosed
}

func (l *gateListener) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *gateListener) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)}
}

func TestServer_ConnectionAcceptedDuringShutdownIsClosed(t *testing.T) {
	cside, sside := net.Pipe()
	defer cside.Close()
	ln := newGateListener(sside)

	s := New(testConfig(), memory.New())
	done := make(chan error, 1)
	go func() { done <- s.Serve(context.Background(), ln) }()
	<-ln.accepting

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))

	// Accept returns only now, after Shutdown closed every known connection.
	close(ln.release)
	require.NoError(t, <-done)

	_ = cside.SetReadDeadline(time.Now().Add(time.Second))
	_, err := cside.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 0, s.ActiveConnections())
}

func TestServer_ServeAfterShutdown(t *testing.T) {
	s := New(testConfig(), memory.New())
	require.NoError(t, s.Shutdown(context.Background()))

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Serve(context.Background(), ln), ErrServerClosed)

	_, err = ln.Accept()
	assert.ErrorIs(t, err, net.ErrClosed)
	assert.ErrorIs(t, s.Start(context.Background()), ErrServerClosed)
}
