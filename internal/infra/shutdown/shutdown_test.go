package shutdown

import (
	"context"
	"errors"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/telemetry/logger"
)

func TestHandler_ReverseOrder(t *testing.T) {
	h := NewHandler(time.Second, logger.Discard())

	var (
		mu    sync.Mutex
		order []string
	)
	for _, name := range []string{"storage", "registry", "http"} {
		name := name
		h.OnShutdown(name, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		})
	}

	h.Trigger()
	if err := h.Wait(context.Background()); err != nil {
		t.Fatalf("Wait() error = %v", err)
	}

	want := []string{"http", "registry", "storage"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
	select {
	case <-h.Done():
	default:
		t.Error("Done() not closed after Wait")
	}
}

func TestHandler_JoinsErrorsAndRunsAll(t *testing.T) {
	h := NewHandler(time.Second, logger.Discard())
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := 0

	h.OnShutdown("a", func(context.Context) error { ran++; return errA })
	h.OnShutdown("ok", func(context.Context) error { ran++; return nil })
	h.OnShutdown("b", func(context.Context) error { ran++; return errB })

	h.Trigger()
	err := h.Wait(context.Background())
	if ran != 3 {
		t.Errorf("ran %d hooks, want 3", ran)
	}
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("Wait() error = %v, want both hook errors", err)
	}
}

func TestHandler_HooksGetDeadline(t *testing.T) {
	h := NewHandler(50*time.Millisecond, logger.Discard())
	h.OnShutdown("slow", func(ctx context.Context) error {
		if _, ok := ctx.Deadline(); !ok {
			t.Error("hook context has no deadline")
		}
		<-ctx.Done()
		return ctx.Err()
	})

	h.Trigger()
	start := time.Now()
	err := h.Wait(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("timeout not applied")
	}
}

func TestHandler_ContextCancel(t *testing.T) {
	h := NewHandler(time.Second, logger.Discard())
	called := false
	h.OnShutdown("x", func(context.Context) error { called = true; return nil })

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := h.Wait(ctx); err != nil {
		t.Fatal(err)
	}
	if !called {
		t.Error("hook not run on context cancel")
	}
}

func TestHandler_Signal(t *testing.T) {
	h := NewHandler(time.Second, logger.Discard())
	called := make(chan struct{})
	h.OnShutdown("x", func(context.Context) error { close(called); return nil })

	errCh := make(chan error, 1)
	go func() { errCh <- h.Wait(context.Background()) }()

	// Give Wait time to install the signal handler.
	time.Sleep(100 * time.Millisecond)
	if err := syscall.Kill(syscall.Getpid(), syscall.SIGTERM); err != nil {
		t.Fatal(err)
	}

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("hook not run after SIGTERM")
	}
	if err := <-errCh; err != nil {
		t.Errorf("Wait() error = %v", err)
	}
}

func TestHandler_TriggerIdempotent(t *testing.T) {
	h := NewHandler(0, nil)
	h.Trigger()
	h.Trigger()
	if h.timeout != DefaultTimeout {
		t.Errorf("timeout = %v, want default", h.timeout)
	}
}
