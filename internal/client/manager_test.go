package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memBackend is a Backend that fails the test on concurrent use.
type memBackend struct {
	t      *testing.T
	busy   atomic.Bool
	data   map[string][]byte
	calls  atomic.Int64
	closed atomic.Bool
	block  chan struct{}
}

func newMemBackend(t *testing.T) *memBackend {
	return &memBackend{t: t, data: make(map[string][]byte)}
}

func (b *memBackend) enter() func() {
	if !b.busy.CompareAndSwap(false, true) {
		b.t.Error("backend used concurrently")
	}
	b.calls.Add(1)
	if b.block != nil {
		<-b.block
	}
	return func() { b.busy.Store(false) }
}

func (b *memBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	defer b.enter()()
	v, ok := b.data[key]
	return v, ok, nil
}

func (b *memBackend) Set(_ context.Context, key string, value []byte) error {
	defer b.enter()()
	if key == "" {
		return errors.New("empty key")
	}
	b.data[key] = value
	return nil
}

func (b *memBackend) Close() error {
	b.closed.Store(true)
	return nil
}

func runManager(m *Manager) <-chan error {
	done := make(chan error, 1)
	go func() { done <- m.Run() }()
	return done
}

func TestManager_TwoProducersOverOneConnection(t *testing.T) {
	ctx := testContext(t)
	c, err := Dial(ctx, startServer(t))
	require.NoError(t, err)

	mgr, tx := NewManager(c, DefaultQueueCapacity)
	done := runManager(mgr)

	producers := []*Sender{tx, tx.Clone()}

	var wg sync.WaitGroup
	for i, s := range producers {
		wg.Add(1)
		go func(i int, s *Sender) {
			defer wg.Done()
			key := fmt.Sprintf("producer-%d", i)

			_, ok, err := s.Get(ctx, key)
			assert.NoError(t, err)
			assert.False(t, ok)

			assert.NoError(t, s.Set(ctx, key, []byte(key)))
		}(i, s)
	}
	wg.Wait()

	producers[0].Close()
	select {
	case <-done:
		t.Fatal("Run() returned while a sender was still open")
	case <-time.After(50 * time.Millisecond):
	}

	check := producers[1].Clone()
	for i := range producers {
		key := fmt.Sprintf("producer-%d", i)
		v, ok, err := check.Get(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte(key), v)
	}
	check.Close()
	producers[1].Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run() did not return after every sender closed")
	}
}

func TestManager_SerializesBackendAccess(t *testing.T) {
	b := newMemBackend(t)
	mgr, tx := NewManager(b, 4)
	done := runManager(mgr)

	const producers, perProducer = 8, 25
	ctx := testContext(t)

	var wg sync.WaitGroup
	for i := 0; i < producers; i++ {
		s := tx.Clone()
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			defer s.Close()
			for j := 0; j < perProducer; j++ {
				key := fmt.Sprintf("%d-%d", i, j)
				assert.NoError(t, s.Set(ctx, key, []byte(key)))
				v, ok, err := s.Get(ctx, key)
				assert.NoError(t, err)
				assert.True(t, ok)
				assert.Equal(t, []byte(key), v)
			}
		}(i)
	}
	wg.Wait()
	tx.Close()

	require.NoError(t, <-done)
	assert.Equal(t, int64(producers*perProducer*2), b.calls.Load())
	assert.True(t, b.closed.Load())
}

func TestManager_RunReturnsWhenOnlySenderCloses(t *testing.T) {
	b := newMemBackend(t)
	mgr, tx := NewManager(b, 0)
	assert.Equal(t, DefaultQueueCapacity, cap(mgr.queue))

	done := runManager(mgr)
	require.NoError(t, tx.Close())

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run() did not return")
	}
	assert.True(t, b.closed.Load())
}

func TestManager_DrainsQueueBeforeReturning(t *testing.T) {
	b := newMemBackend(t)
	b.block = make(chan struct{})
	mgr, tx := NewManager(b, 8)
	done := runManager(mgr)

	ctx := testContext(t)
	results := make(chan error, 3)
	for i := 0; i < 3; i++ {
		s := tx.Clone()
		go func(i int) {
			results <- s.Set(ctx, fmt.Sprintf("k%d", i), []byte("v"))
			s.Close()
		}(i)
	}
	tx.Close()

	close(b.block)
	for i := 0; i < 3; i++ {
		assert.NoError(t, <-results)
	}
	require.NoError(t, <-done)
	assert.Len(t, b.data, 3)
}

func TestSender_Closed(t *testing.T) {
	mgr, tx := NewManager(newMemBackend(t), 1)
	done := runManager(mgr)

	other := tx.Clone()
	require.NoError(t, tx.Close())
	require.NoError(t, tx.Close())

	ctx := testContext(t)
	_, _, err := tx.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrSenderClosed)
	assert.ErrorIs(t, tx.Set(ctx, "k", nil), ErrSenderClosed)

	clone := tx.Clone()
	assert.ErrorIs(t, clone.Set(ctx, "k", nil), ErrSenderClosed)

	assert.NoError(t, other.Set(ctx, "k", []byte("v")))
	other.Close()
	require.NoError(t, <-done)
}

func TestSender_BackendErrorReturned(t *testing.T) {
	mgr, tx := NewManager(newMemBackend(t), 1)
	done := runManager(mgr)

	assert.EqualError(t, tx.Set(testContext(t), "", []byte("v")), "empty key")

	tx.Close()
	require.NoError(t, <-done)
}

func TestSender_ContextCancelledWhileQueued(t *testing.T) {
	b := newMemBackend(t)
	b.block = make(chan struct{})
	mgr, tx := NewManager(b, 1)
	done := runManager(mgr)

	ctx := testContext(t)
	first := make(chan error, 1)
	go func() { first <- tx.Set(ctx, "a", []byte("1")) }()
	require.Eventually(t, func() bool { return b.calls.Load() == 1 }, time.Second, time.Millisecond)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, _, err := tx.Get(short, "a")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(b.block)
	assert.NoError(t, <-first)

	tx.Close()
	require.NoError(t, <-done)
	assert.Equal(t, int64(1), b.calls.Load())
}
