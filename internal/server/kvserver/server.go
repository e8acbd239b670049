package kvserver

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/minikv/internal/telemetry/metric"
)

// ErrServerClosed is returned by Start and Serve after Shutdown.
var ErrServerClosed = errors.New("kvserver: server closed")

// Config holds the server configuration.
type Config struct {
	// Address is the TCP address to listen on.
	Address string
	// ReadTimeout bounds the time to receive the rest of a request once
	// its first bytes have arrived. Helps prevent slowloris attacks.
	ReadTimeout time.Duration
	// WriteTimeout bounds the time to write a reply.
	WriteTimeout time.Duration
	// IdleTimeout bounds the time a connection may wait between requests.
	IdleTimeout time.Duration
	// RateLimit is the maximum number of commands per second per
	// connection. Excess commands are delayed, not rejected. 0 disables it.
	RateLimit int
	// MaxConnections caps concurrently served connections. 0 means no cap.
	MaxConnections int
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:      "127.0.0.1:6379",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  5 * time.Minute,
	}
}

// Store is the key-value storage the server applies commands to.
type Store interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics records server activity in reg.
func WithMetrics(reg *metric.Registry) Option {
	return func(s *Server) {
		s.metrics = reg
	}
}

// Server is the key-value protocol server.
type Server struct {
	cfg     *Config
	store   Store
	logger  *slog.Logger
	metrics *metric.Registry

	// mu guards the fields below. Connections are registered and wg is
	// incremented under mu so Shutdown sees every admitted connection.
	mu      sync.Mutex
	ln      net.Listener
	conns   map[net.Conn]struct{}
	cancel  context.CancelFunc
	stopped bool

	active  atomic.Int64
	running atomic.Bool
	wg      sync.WaitGroup
}

// New creates a server that applies commands to store.
func New(cfg *Config, store Store, opts ...Option) *Server {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	s := &Server{
		cfg:    cfg,
		store:  store,
		logger: slog.Default(),
		conns:  make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start listens on the configured address and serves connections in the
// background until Shutdown is called or ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Address)
	if err != nil {
		return err
	}
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		if err := s.Serve(ctx, ln); err != nil && !errors.Is(err, ErrServerClosed) {
			s.logger.Error("kv server error", "error", err)
		}
	}()
	return nil
}

// Serve accepts connections on ln until ln is closed, Shutdown is called or
// ctx is cancelled. It takes ownership of ln.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = ln.Close()
		return ErrServerClosed
	}
	s.ln = ln
	s.cancel = cancel
	s.running.Store(true)
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() {
		_ = ln.Close()
	})
	defer stop()

	s.logger.Info("kv server listening", "address", ln.Addr().String())
	return s.acceptLoop(ctx, ln)
}

// Addr returns the listener address, or nil before the server is serving.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// ActiveConnections returns the number of connections being served.
func (s *Server) ActiveConnections() int {
	return int(s.active.Load())
}

// Shutdown closes the listener and every active connection, then waits for
// connection goroutines to finish or ctx to expire.
func (s *Server) Shutdown(ctx context.Context) error {
	var firstErr error

	s.mu.Lock()
	s.stopped = true
	s.running.Store(false)
	if s.cancel != nil {
		s.cancel()
	}
	if s.ln != nil {
		if err := s.ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			firstErr = err
		}
	}
	for c := range s.conns {
		_ = c.Close()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	return firstErr
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) error {
	for {
		c, err := ln.Accept()
		if err != nil {
			if !s.running.Load() {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			select {
			case <-ctx.Done():
				return nil
			default:
			}
			return err
		}

		if !s.admit(c) {
			continue
		}
		go func() {
			defer s.wg.Done()
			defer s.untrack(c)
			s.serveConn(ctx, c)
		}()
	}
}

// admit registers c and adds it to wg. It closes c and reports false when
// the server is stopped or at its connection limit.
func (s *Server) admit(c net.Conn) bool {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		_ = c.Close()
		return false
	}
	if limit := s.cfg.MaxConnections; limit > 0 && s.active.Load() >= int64(limit) {
		s.mu.Unlock()
		s.logger.Warn("connection limit reached, rejecting", "remote", c.RemoteAddr().String(), "limit", limit)
		s.metrics.ConnRejected()
		_ = c.Close()
		return false
	}
	s.conns[c] = struct{}{}
	s.active.Add(1)
	s.wg.Add(1)
	s.mu.Unlock()

	s.metrics.ConnOpened()
	return true
}

func (s *Server) untrack(c net.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.active.Add(-1)
	s.mu.Unlock()
	s.metrics.ConnClosed()
}
