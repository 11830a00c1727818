package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/storage"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/metric"
	"github.com/yndnr/canvasmesh-go/pkg/cmap"
)

// Coordinator states reported by Status.
const (
	StateUnbound   = "unbound"
	StateBinding   = "binding"
	StateCold      = "cold"
	StateHydrating = "hydrating"
	StateWarmClean = "warm_clean"
	StateWarmDirty = "warm_dirty"
	StateFailed    = "failed"
	StateClosed    = "closed"
)

// Config configures a Coordinator.
type Config struct {
	// Key is the room key the coordinator is registered under.
	Key string

	Store   storage.Store
	Factory EngineFactory

	// PersistInterval is the minimum spacing between snapshot writes.
	PersistInterval time.Duration

	Clock   Clock
	Logger  *slog.Logger
	Metrics *metric.Registry

	// OnFailed is called once when hydration fails.
	OnFailed func(c *Coordinator, err error)
}

// Coordinator owns one room: its identity, its engine and the sessions
// admitted to it.
type Coordinator struct {
	key       string
	store     storage.Store
	factory   EngineFactory
	logger    *slog.Logger
	metrics   *metric.Registry
	onFailed  func(*Coordinator, error)
	createdAt time.Time

	binder    *Binder
	scheduler *Scheduler

	// ctx bounds background work (hydration, timer-driven writes); it is
	// cancelled by Close, never by a request.
	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	hydration *hydration
	failed    error
	closed    bool

	sessions   *cmap.Map[uint64, *domain.Session]
	sessionSeq atomic.Uint64
}

// New creates an unbound coordinator.
func New(cfg Config) *Coordinator {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metric.NewRegistry()
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger := cfg.Logger.With("room_key", cfg.Key)

	c := &Coordinator{
		key:       cfg.Key,
		store:     cfg.Store,
		factory:   cfg.Factory,
		logger:    logger,
		metrics:   cfg.Metrics,
		onFailed:  cfg.OnFailed,
		createdAt: time.Now(),
		binder:    NewBinder(cfg.Store, cfg.Key),
		ctx:       ctx,
		cancel:    cancel,
		sessions:  cmap.New[uint64, *domain.Session](),
	}
	c.scheduler = NewScheduler(ctx, cfg.PersistInterval, c.persist, cfg.Clock, logger)
	return c
}

// Key returns the room key.
func (c *Coordinator) Key() string {
	return c.key
}

// Bind binds the room identity. See Binder.Bind.
func (c *Coordinator) Bind(ctx context.Context, candidate string) (domain.RoomID, error) {
	return c.binder.Bind(ctx, candidate)
}

// RoomID returns the bound identity, if any.
func (c *Coordinator) RoomID() (domain.RoomID, bool) {
	return c.binder.RoomID()
}

// Connect binds roomID (first writer wins) and admits the request.
func (c *Coordinator) Connect(ctx context.Context, roomID string, req AdmitRequest) (*SessionChannel, error) {
	if _, err := c.Bind(ctx, roomID); err != nil {
		return nil, err
	}
	return c.Admit(ctx, req)
}

// persist writes the warm engine's snapshot. It runs on the scheduler.
func (c *Coordinator) persist(ctx context.Context) error {
	eng := c.warmEngine()
	if eng == nil {
		return nil
	}
	id, ok := c.binder.RoomID()
	if !ok {
		return nil
	}

	start := time.Now()
	data, err := eng.Snapshot()
	if err == nil {
		err = c.store.Put(ctx, id.SnapshotKey(), data)
	}
	metric.ObserveSince(c.metrics.SnapshotWriteDuration, start)

	if err != nil {
		c.metrics.SnapshotWrites.WithLabelValues(metric.ResultError).Inc()
		return domain.ErrPersistenceWrite.Wrap(err)
	}
	c.metrics.SnapshotWrites.WithLabelValues(metric.ResultOK).Inc()
	c.metrics.SnapshotBytes.Observe(float64(len(data)))
	c.logger.Debug("snapshot written", "room_id", id, "bytes", len(data), "elapsed", time.Since(start))
	return nil
}

// Flush writes pending changes now.
func (c *Coordinator) Flush(ctx context.Context) error {
	return c.scheduler.Flush(ctx)
}

// StoredSnapshot returns the snapshot currently in storage.
func (c *Coordinator) StoredSnapshot(ctx context.Context) ([]byte, error) {
	id, ok := c.binder.RoomID()
	if !ok {
		return nil, domain.ErrMissingIdentity
	}
	data, err := c.store.Get(ctx, id.SnapshotKey())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, domain.ErrRoomNotFound.WithDetails(fmt.Sprintf("no snapshot stored for %q", id))
		}
		return nil, domain.ErrStorage.Wrap(err)
	}
	return data, nil
}

// Sessions returns the sessions with an open channel, oldest first.
func (c *Coordinator) Sessions() []domain.Session {
	out := make([]domain.Session, 0, c.sessions.Count())
	c.sessions.Range(func(_ uint64, s *domain.Session) bool {
		out = append(out, *s)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out
}

// SessionCount returns the number of sessions with an open channel.
func (c *Coordinator) SessionCount() int {
	return c.sessions.Count()
}

// Status is a point-in-time view of a coordinator.
type Status struct {
	Key         string          `json:"key"`
	RoomID      string          `json:"room_id,omitempty"`
	State       string          `json:"state"`
	Sessions    int             `json:"sessions"`
	CreatedAt   time.Time       `json:"created_at"`
	Persistence SchedulerStatus `json:"persistence"`
	Error       string          `json:"error,omitempty"`
}

// Status reports the coordinator's state.
func (c *Coordinator) Status() Status {
	st := Status{
		Key:         c.key,
		Sessions:    c.SessionCount(),
		CreatedAt:   c.createdAt,
		Persistence: c.scheduler.Status(),
	}
	if id, ok := c.binder.RoomID(); ok {
		st.RoomID = id.String()
	}
	st.State = c.state()

	c.mu.Lock()
	if c.failed != nil {
		st.Error = c.failed.Error()
	}
	c.mu.Unlock()
	return st
}

func (c *Coordinator) state() string {
	c.mu.Lock()
	closed, failed, h := c.closed, c.failed, c.hydration
	c.mu.Unlock()

	switch {
	case closed:
		return StateClosed
	case failed != nil:
		return StateFailed
	}
	if _, ok := c.binder.RoomID(); !ok {
		if c.binder.Binding() {
			return StateBinding
		}
		return StateUnbound
	}
	if h == nil {
		return StateCold
	}
	select {
	case <-h.done:
	default:
		return StateHydrating
	}
	if c.scheduler.Dirty() {
		return StateWarmDirty
	}
	return StateWarmClean
}

// Failed returns the hydration error that failed the coordinator.
func (c *Coordinator) Failed() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

// Close flushes pending changes, stops the scheduler and closes the
// engine and its sessions. It is idempotent.
func (c *Coordinator) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	h := c.hydration
	c.mu.Unlock()

	if h != nil {
		select {
		case <-h.done:
		case <-ctx.Done():
		}
	}

	// Stop accepting mutations before the final write.
	if eng := c.warmEngine(); eng != nil {
		if err := eng.Close(); err != nil {
			c.logger.Warn("engine close failed", "error", err)
		}
	}

	flushErr := c.scheduler.Flush(ctx)
	c.scheduler.Close()
	c.cancel()

	c.logger.Debug("coordinator closed")
	return flushErr
}

func (c *Coordinator) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
