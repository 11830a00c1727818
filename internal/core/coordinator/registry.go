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

	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/storage"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/metric"
)

// DefaultShardCount is the default number of registry shards.
const DefaultShardCount = 32

// flushConcurrency bounds parallel snapshot writes in FlushAll.
const flushConcurrency = 8

// RegistryConfig configures a Registry. Coordinator-level fields are
// passed to every coordinator the registry creates.
type RegistryConfig struct {
	Store           storage.Store
	Factory         EngineFactory
	PersistInterval time.Duration
	Clock           Clock
	Logger          *slog.Logger
	Metrics         *metric.Registry

	// ShardCount is rounded up to a power of two.
	ShardCount int
}

// Registry maps room keys to their single live coordinator.
type Registry struct {
	cfg    RegistryConfig
	shards []*registryShard
	mask   uint32
	closed atomic.Bool
	logger *slog.Logger
}

type registryShard struct {
	mu    sync.RWMutex
	items map[string]*Coordinator
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metric.NewRegistry()
	}
	n := 1
	for n < cfg.ShardCount {
		n <<= 1
	}
	if cfg.ShardCount <= 0 {
		n = DefaultShardCount
	}

	r := &Registry{
		cfg:    cfg,
		shards: make([]*registryShard, n),
		mask:   uint32(n - 1),
		logger: cfg.Logger,
	}
	for i := range r.shards {
		r.shards[i] = &registryShard{items: make(map[string]*Coordinator)}
	}
	return r
}

func (r *Registry) shard(key string) *registryShard {
	return r.shards[shardHash(key)&r.mask]
}

// shardHash goes through the streaming hasher. murmur3.Sum32 walks the
// input with uintptr arithmetic, which checkptr rejects under -race.
func shardHash(key string) uint32 {
	h := murmur3.New32()
	_, _ = h.Write([]byte(key))
	return h.Sum32()
}

// Coordinator returns the live coordinator for key, creating it if absent.
func (r *Registry) Coordinator(key string) (*Coordinator, error) {
	if r.closed.Load() {
		return nil, domain.ErrServiceUnavailable.WithDetails("server is shutting down")
	}
	s := r.shard(key)

	s.mu.RLock()
	c, ok := s.items[key]
	s.mu.RUnlock()
	if ok {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-checked: another caller may have created it.
	if c, ok := s.items[key]; ok {
		return c, nil
	}
	if r.closed.Load() {
		return nil, domain.ErrServiceUnavailable.WithDetails("server is shutting down")
	}

	c = New(Config{
		Key:             key,
		Store:           r.cfg.Store,
		Factory:         r.cfg.Factory,
		PersistInterval: r.cfg.PersistInterval,
		Clock:           r.cfg.Clock,
		Logger:          r.cfg.Logger,
		Metrics:         r.cfg.Metrics,
		OnFailed:        r.evict,
	})
	s.items[key] = c
	r.logger.Debug("coordinator created", "room_key", key)
	return c, nil
}

// Lookup returns the live coordinator for key without creating one.
func (r *Registry) Lookup(key string) (*Coordinator, bool) {
	s := r.shard(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.items[key]
	return c, ok
}

// Connect routes a connection to the coordinator for roomID.
func (r *Registry) Connect(ctx context.Context, roomID string, req AdmitRequest) (*SessionChannel, error) {
	c, err := r.Coordinator(roomID)
	if err != nil {
		return nil, err
	}
	return c.Connect(ctx, roomID, req)
}

// evict removes a failed coordinator so the next request recreates it.
func (r *Registry) evict(c *Coordinator, err error) {
	s := r.shard(c.Key())
	s.mu.Lock()
	if cur, ok := s.items[c.Key()]; ok && cur == c {
		delete(s.items, c.Key())
	}
	s.mu.Unlock()

	r.logger.Warn("coordinator evicted", "room_key", c.Key(), "error", err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = c.Close(ctx)
}

func (r *Registry) all() []*Coordinator {
	var out []*Coordinator
	for _, s := range r.shards {
		s.mu.RLock()
		for _, c := range s.items {
			out = append(out, c)
		}
		s.mu.RUnlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// Rooms returns the status of every live coordinator, ordered by key.
func (r *Registry) Rooms() []Status {
	coords := r.all()
	out := make([]Status, 0, len(coords))
	for _, c := range coords {
		out = append(out, c.Status())
	}
	return out
}

// RoomCount returns the number of live coordinators.
func (r *Registry) RoomCount() int {
	n := 0
	for _, s := range r.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// SessionCount returns the number of open sessions across all rooms.
func (r *Registry) SessionCount() int {
	n := 0
	for _, c := range r.all() {
		n += c.SessionCount()
	}
	return n
}

// FlushAll writes every dirty room now.
func (r *Registry) FlushAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(flushConcurrency)

	var mu sync.Mutex
	var errs []error
	for _, c := range r.all() {
		c := c
		g.Go(func() error {
			if err := c.Flush(gctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("room %s: %w", c.Key(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()
	return errors.Join(errs...)
}

// Close stops accepting new rooms, then closes every coordinator,
// flushing pending changes.
func (r *Registry) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	coords := r.all()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(flushConcurrency)

	var mu sync.Mutex
	var errs []error
	for _, c := range coords {
		c := c
		g.Go(func() error {
			if err := c.Close(gctx); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("room %s: %w", c.Key(), err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	for _, s := range r.shards {
		s.mu.Lock()
		s.items = make(map[string]*Coordinator)
		s.mu.Unlock()
	}

	r.logger.Info("registry closed", "rooms", len(coords), "errors", len(errs))
	return errors.Join(errs...)
}
