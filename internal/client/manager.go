package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// DefaultQueueCapacity is the default number of requests that may wait for
// the owning goroutine before senders block.
const DefaultQueueCapacity = 32

// ErrSenderClosed is returned when a closed Sender is used.
var ErrSenderClosed = errors.New("sender closed")

// Backend is an exclusive resource driven by a Manager. Only the Manager's
// Run goroutine calls it.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

// GetResult is the reply to a Get request.
type GetResult struct {
	Value []byte
	Found bool
	Err   error
}

type request interface {
	execute(b Backend)
}

type getRequest struct {
	ctx   context.Context
	key   string
	reply chan<- GetResult
}

func (r *getRequest) execute(b Backend) {
	var res GetResult
	if res.Err = r.ctx.Err(); res.Err == nil {
		res.Value, res.Found, res.Err = b.Get(r.ctx, r.key)
	}
	// The requester may have stopped waiting; the reply is dropped then.
	select {
	case r.reply <- res:
	default:
	}
}

type setRequest struct {
	ctx   context.Context
	key   string
	value []byte
	reply chan<- error
}

func (r *setRequest) execute(b Backend) {
	err := r.ctx.Err()
	if err == nil {
		err = b.Set(r.ctx, r.key, r.value)
	}
	select {
	case r.reply <- err:
	default:
	}
}

// Manager owns a Backend and serves requests from Senders one at a time.
type Manager struct {
	backend Backend
	queue   chan request
	logger  *slog.Logger

	mu      sync.Mutex
	senders int
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithManagerLogger sets the manager logger.
func WithManagerLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates a Manager for backend with a request queue of the given
// capacity and returns it with the first Sender. A capacity below 1 uses
// DefaultQueueCapacity.
func NewManager(backend Backend, capacity int, opts ...ManagerOption) (*Manager, *Sender) {
	if capacity < 1 {
		capacity = DefaultQueueCapacity
	}
	m := &Manager{
		backend: backend,
		queue:   make(chan request, capacity),
		logger:  slog.Default(),
		senders: 1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, &Sender{m: m}
}

// Run serves requests until every Sender is closed and the queue is
// drained, then closes the backend and returns its Close error.
func (m *Manager) Run() error {
	m.logger.Debug("command manager started", "capacity", cap(m.queue))

	served := 0
	for req := range m.queue {
		req.execute(m.backend)
		served++
	}

	m.logger.Debug("command manager stopped", "served", served)
	return m.backend.Close()
}

func (m *Manager) addSender() {
	m.mu.Lock()
	m.senders++
	m.mu.Unlock()
}

func (m *Manager) dropSender() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.senders--
	if m.senders == 0 {
		close(m.queue)
	}
}

// Sender submits requests to a Manager. Each Sender must be closed exactly
// once when it is no longer needed; Close is idempotent. A Sender is safe
// for concurrent use.
type Sender struct {
	m *Manager

	mu     sync.RWMutex
	closed bool
}

// Clone returns a new Sender for the same Manager. Cloning a closed Sender
// returns a closed Sender.
func (s *Sender) Clone() *Sender {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return &Sender{m: s.m, closed: true}
	}
	s.m.addSender()
	return &Sender{m: s.m}
}

// Close releases the Sender. When the last Sender is closed the Manager
// finishes the queued requests and Run returns.
func (s *Sender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.m.dropSender()
	return nil
}

// Get asks the owner for the value stored under key.
func (s *Sender) Get(ctx context.Context, key string) ([]byte, bool, error) {
	reply := make(chan GetResult, 1)
	if err := s.send(ctx, &getRequest{ctx: ctx, key: key, reply: reply}); err != nil {
		return nil, false, err
	}

	select {
	case res := <-reply:
		return res.Value, res.Found, res.Err
	case <-ctx.Done():
		return nil, false, ctx.Err()
	}
}

// Set asks the owner to store value under key.
func (s *Sender) Set(ctx context.Context, key string, value []byte) error {
	reply := make(chan error, 1)
	if err := s.send(ctx, &setRequest{ctx: ctx, key: key, value: value, reply: reply}); err != nil {
		return err
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send enqueues req. The read lock keeps the queue open while sending.
func (s *Sender) send(ctx context.Context, req request) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrSenderClosed
	}

	select {
	case s.m.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
