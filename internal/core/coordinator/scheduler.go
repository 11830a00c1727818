package coordinator

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// DefaultPersistInterval is the minimum spacing between snapshot writes.
const DefaultPersistInterval = 10 * time.Second

// SchedulerState is the state of the persistence task.
type SchedulerState int

const (
	// StateIdle: no write pending.
	StateIdle SchedulerState = iota
	// StateScheduled: a write is due at the next tick.
	StateScheduled
	// StateRunning: a write is in flight.
	StateRunning
	// StateRunningDirty: a write is in flight and more changes arrived.
	StateRunningDirty
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateScheduled:
		return "scheduled"
	case StateRunning:
		return "running"
	case StateRunningDirty:
		return "running_dirty"
	default:
		return "unknown"
	}
}

// PersistFunc writes the current state once.
type PersistFunc func(ctx context.Context) error

// SchedulerStatus is a point-in-time view of a Scheduler.
type SchedulerStatus struct {
	State     string    `json:"state"`
	Dirty     bool      `json:"dirty"`
	LastRunAt time.Time `json:"last_run_at,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Runs      uint64    `json:"runs"`
	Failures  uint64    `json:"failures"`
}

// Scheduler throttles persistence to at most one run per interval,
// leading and trailing.
//
// The first MarkDirty after an idle period schedules a run at
// lastRunAt+interval, or immediately when that is already past. Signals
// while scheduled are absorbed. Signals while running schedule exactly
// one trailing run. Runs never overlap.
//
// A failed run leaves the state dirty and is not retried on its own;
// the next MarkDirty schedules the retry.
type Scheduler struct {
	interval time.Duration
	persist  PersistFunc
	clock    Clock
	logger   *slog.Logger
	ctx      context.Context

	mu        sync.Mutex
	state     SchedulerState
	dirty     bool
	lastRunAt time.Time
	lastErr   error
	timer     Timer
	gen       uint64
	runDone   chan struct{}
	closed    bool
	runs      uint64
	failures  uint64
}

// NewScheduler creates an idle scheduler. Timer-driven runs use ctx.
func NewScheduler(ctx context.Context, interval time.Duration, persist PersistFunc, clock Clock, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultPersistInterval
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		interval: interval,
		persist:  persist,
		clock:    clock,
		logger:   logger,
		ctx:      ctx,
	}
}

// MarkDirty records that state changed. It never writes inline.
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.dirty = true

	switch s.state {
	case StateIdle:
		s.scheduleLocked()
	case StateRunning:
		s.state = StateRunningDirty
	}
}

// scheduleLocked arms the timer for the next allowed run.
func (s *Scheduler) scheduleLocked() {
	delay := time.Duration(0)
	if !s.lastRunAt.IsZero() {
		delay = s.lastRunAt.Add(s.interval).Sub(s.clock.Now())
		if delay < 0 {
			delay = 0
		}
	}

	s.gen++
	gen := s.gen
	s.timer = s.clock.AfterFunc(delay, func() { s.fire(gen) })
	s.state = StateScheduled
}

func (s *Scheduler) fire(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen || s.state != StateScheduled {
		s.mu.Unlock()
		return
	}
	s.beginLocked()
	s.mu.Unlock()

	err := s.persist(s.ctx)
	s.finish(err)
}

// beginLocked moves to running. Changes from here on mark a new cycle.
func (s *Scheduler) beginLocked() {
	s.timer = nil
	s.state = StateRunning
	s.dirty = false
	s.lastRunAt = s.clock.Now()
	s.runDone = make(chan struct{})
}

func (s *Scheduler) finish(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs++
	s.lastErr = err
	if err != nil {
		s.failures++
		s.dirty = true
		s.logger.Error("snapshot write failed", "error", err)
	}

	close(s.runDone)
	s.runDone = nil

	if s.state == StateRunningDirty && !s.closed {
		s.scheduleLocked()
		return
	}
	s.state = StateIdle
}

// Flush waits for any in-flight run, then runs immediately if dirty.
// A pending timer is cancelled in favour of the immediate run.
func (s *Scheduler) Flush(ctx context.Context) error {
	for {
		s.mu.Lock()
		if done := s.runDone; done != nil {
			s.mu.Unlock()
			select {
			case <-done:
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if !s.dirty {
			s.mu.Unlock()
			return nil
		}
		if s.timer != nil {
			s.timer.Stop()
		}
		s.gen++
		s.beginLocked()
		s.mu.Unlock()

		err := s.persist(ctx)
		s.finish(err)
		return err
	}
}

// Close cancels pending timers. An in-flight run completes; later
// MarkDirty calls are ignored. Flush keeps working after Close.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	if s.state == StateScheduled {
		s.state = StateIdle
	}
}

// Dirty reports whether unpersisted changes exist.
func (s *Scheduler) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty || s.state == StateRunningDirty
}

// State returns the current state.
func (s *Scheduler) State() SchedulerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a snapshot of the scheduler.
func (s *Scheduler) Status() SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := SchedulerStatus{
		State:     s.state.String(),
		Dirty:     s.dirty,
		LastRunAt: s.lastRunAt,
		Runs:      s.runs,
		Failures:  s.failures,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}
