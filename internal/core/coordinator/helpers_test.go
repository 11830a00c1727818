package coordinator

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/storage/memory"
	"github.com/yndnr/canvasmesh-go/internal/syncengine"
	"github.com/yndnr/canvasmesh-go/internal/syncengine/chantest"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/metric"
)

const wait = 2 * time.Second

// ============================================================================
// Fake clock
// ============================================================================

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

// Advance moves time forward and runs due timers synchronously,
// including timers armed by the callbacks themselves.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var due *fakeTimer
		for _, t := range c.timers {
			if !t.stopped && !t.fired && !t.at.After(c.now) {
				due = t
				break
			}
		}
		if due != nil {
			due.fired = true
		}
		c.mu.Unlock()

		if due == nil {
			return
		}
		due.f()
	}
}

// Pending returns the number of armed timers.
func (c *fakeClock) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// ============================================================================
// Instrumented store
// ============================================================================

type testStore struct {
	*memory.Store

	mu      sync.Mutex
	gets    map[string]int
	puts    map[string]int
	failPut func(key string) error
	failGet func(key string) error

	// getGate, when set, blocks snapshot reads until closed.
	getGate chan struct{}
}

func newTestStore() *testStore {
	return &testStore{
		Store: memory.New(),
		gets:  make(map[string]int),
		puts:  make(map[string]int),
	}
}

func (s *testStore) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	s.gets[key]++
	fail, gate := s.failGet, s.getGate
	s.mu.Unlock()

	if gate != nil && strings.HasPrefix(key, "rooms/") {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if fail != nil {
		if err := fail(key); err != nil {
			return nil, err
		}
	}
	return s.Store.Get(ctx, key)
}

func (s *testStore) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	s.puts[key]++
	fail := s.failPut
	s.mu.Unlock()

	if fail != nil {
		if err := fail(key); err != nil {
			return err
		}
	}
	return s.Store.Put(ctx, key, value)
}

func (s *testStore) setFailPut(f func(string) error) {
	s.mu.Lock()
	s.failPut = f
	s.mu.Unlock()
}

func (s *testStore) setFailGet(f func(string) error) {
	s.mu.Lock()
	s.failGet = f
	s.mu.Unlock()
}

func (s *testStore) getCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets[key]
}

func (s *testStore) putCount(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts[key]
}

// ============================================================================
// Fixtures
// ============================================================================

type countingFactory struct {
	calls atomic.Int32
	inner EngineFactory
}

func newCountingFactory() *countingFactory {
	return &countingFactory{inner: NewSyncEngineFactory(64, nil)}
}

func (f *countingFactory) Factory() EngineFactory {
	return func(roomID string, snapshot []byte, onDirty func()) (SyncEngine, error) {
		f.calls.Add(1)
		return f.inner(roomID, snapshot, onDirty)
	}
}

type fixture struct {
	store   *testStore
	clock   *fakeClock
	factory *countingFactory
	coord   *Coordinator
}

func newFixture(t *testing.T, key string) *fixture {
	t.Helper()
	f := &fixture{
		store:   newTestStore(),
		clock:   newFakeClock(),
		factory: newCountingFactory(),
	}
	f.coord = f.newCoordinator(key)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), wait)
		defer cancel()
		_ = f.coord.Close(ctx)
	})
	return f
}

func (f *fixture) newCoordinator(key string) *Coordinator {
	return New(Config{
		Key:             key,
		Store:           f.store,
		Factory:         f.factory.Factory(),
		PersistInterval: 10 * time.Second,
		Clock:           f.clock,
		Metrics:         metric.NewRegistry(),
	})
}

// upgrader returns an AdmitRequest whose upgrade yields a chantest
// channel, and counts upgrades.
type upgrader struct {
	calls atomic.Int32
	ch    *chantest.Channel
}

func newUpgrader() *upgrader {
	return &upgrader{ch: chantest.New()}
}

func (u *upgrader) request(sessionID string) AdmitRequest {
	return AdmitRequest{
		SessionID:  sessionID,
		RemoteAddr: "127.0.0.1:5000",
		UserAgent:  "test",
		Upgrade: func() (syncengine.Channel, error) {
			u.calls.Add(1)
			return u.ch, nil
		},
	}
}

func pushMsg(clientClock int64, id string) string {
	return `{"type":"push","clientClock":` + strconv.FormatInt(clientClock, 10) + `,"diff":{"put":{"` + id + `":{"id":"` + id + `"}}}}`
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(wait)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
