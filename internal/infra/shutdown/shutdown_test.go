package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestHandler_HooksRunInReverseOrder(t *testing.T) {
	h := NewHandler(5*time.Second, nil)

	var mu sync.Mutex
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		h.OnShutdown("hook", func(ctx context.Context) error {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			return nil
		})
	}

	h.Trigger()
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("hooks ran %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("hooks ran %v, want %v", order, want)
		}
	}
}

func TestHandler_JoinsHookErrors(t *testing.T) {
	h := NewHandler(time.Second, nil)
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := false

	h.OnShutdown("a", func(context.Context) error { return errA })
	h.OnShutdown("ok", func(context.Context) error { ran = true; return nil })
	h.OnShutdown("b", func(context.Context) error { return errB })

	h.Trigger()
	err := h.Wait(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Wait() error = %v, want both hook errors", err)
	}
	if !ran {
		t.Error("a failing hook stopped later hooks from running")
	}
}

func TestHandler_HookContextHasTimeout(t *testing.T) {
	h := NewHandler(50*time.Millisecond, nil)

	h.OnShutdown("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	h.Trigger()
	if err := h.Wait(context.Background()); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want DeadlineExceeded", err)
	}
}

func TestHandler_ContextCancel(t *testing.T) {
	h := NewHandler(time.Second, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.Wait(ctx); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed after Wait()")
	}
}

func TestHandler_TriggerIdempotent(t *testing.T) {
	h := NewHandler(time.Second, nil)
	h.Trigger()
	h.Trigger()
}
