package coordinator

import (
	"context"
	"errors"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/storage"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/metric"
)

// hydration is the single in-flight engine future of a coordinator.
// engine and err are written before done is closed.
type hydration struct {
	done   chan struct{}
	engine SyncEngine
	err    error
}

// Engine returns the room's engine, hydrating it on first use.
//
// Concurrent callers share one hydration. Cancelling ctx abandons the
// wait only; the hydration itself runs on the coordinator's lifetime.
func (c *Coordinator) Engine(ctx context.Context) (SyncEngine, error) {
	h, err := c.startHydration()
	if err != nil {
		return nil, err
	}
	select {
	case <-h.done:
		return h.engine, h.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// startHydration returns the engine future, creating it if absent.
func (c *Coordinator) startHydration() (*hydration, error) {
	id, ok := c.binder.RoomID()
	if !ok {
		return nil, domain.ErrMissingIdentity
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, domain.ErrServiceUnavailable.WithDetails("room is shutting down")
	}
	if c.hydration != nil {
		return c.hydration, nil
	}

	h := &hydration{done: make(chan struct{})}
	c.hydration = h
	go c.hydrate(h, id)
	return h, nil
}

func (c *Coordinator) hydrate(h *hydration, id domain.RoomID) {
	defer close(h.done)
	start := time.Now()

	fail := func(err error) {
		h.err = domain.ErrHydrationFailure.Wrap(err)
		c.metrics.Hydrations.WithLabelValues(metric.ResultError).Inc()
		c.logger.Error("hydration failed", "room_id", id, "error", err)
		c.markFailed(h.err)
	}

	// 1. Load the stored snapshot; absent means a new room.
	result := metric.ResultSnapshot
	data, err := c.store.Get(c.ctx, id.SnapshotKey())
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			fail(err)
			return
		}
		data, result = nil, metric.ResultEmpty
	}

	// 2. Build the engine.
	eng, err := c.factory(id.String(), data, c.scheduler.MarkDirty)
	if err != nil {
		fail(err)
		return
	}

	// 3. Publish, unless the room closed meanwhile.
	if c.isClosed() {
		_ = eng.Close()
		h.err = domain.ErrServiceUnavailable.WithDetails("room is shutting down")
		return
	}
	h.engine = eng

	metric.ObserveSince(c.metrics.HydrationDuration, start)
	c.metrics.Hydrations.WithLabelValues(result).Inc()
	c.logger.Info("room hydrated",
		"room_id", id,
		"from_snapshot", result == metric.ResultSnapshot,
		"bytes", len(data),
		"elapsed", time.Since(start))
}

func (c *Coordinator) markFailed(err error) {
	c.mu.Lock()
	c.failed = err
	cb := c.onFailed
	c.mu.Unlock()

	if cb != nil {
		go cb(c, err)
	}
}

// warmEngine returns the engine if hydration succeeded, else nil.
func (c *Coordinator) warmEngine() SyncEngine {
	c.mu.Lock()
	h := c.hydration
	c.mu.Unlock()

	if h == nil {
		return nil
	}
	select {
	case <-h.done:
		return h.engine
	default:
		return nil
	}
}
