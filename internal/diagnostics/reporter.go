package diagnostics

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/metric"
)

// DefaultQueueSize is the number of reports buffered ahead of the sink.
const DefaultQueueSize = 1024

// Entry is an accepted report as handed to the sink.
type Entry struct {
	ID         string             `json:"id"`
	RoomID     string             `json:"room_id,omitempty"`
	RemoteAddr string             `json:"remote_addr,omitempty"`
	ReceivedAt time.Time          `json:"received_at"`
	Report     domain.ErrorReport `json:"report"`
}

// Sink receives reports from the worker, one at a time.
type Sink interface {
	Write(ctx context.Context, e Entry) error
}

// Config configures a Reporter.
type Config struct {
	QueueSize int

	// Sink defaults to a LogSink on Logger.
	Sink    Sink
	Logger  *slog.Logger
	Metrics *metric.Registry
}

// Reporter accepts client error reports without ever blocking or failing
// the caller. Reports are queued and delivered to the sink by a single
// worker; a full queue drops the report.
type Reporter struct {
	sink    Sink
	logger  *slog.Logger
	metrics *metric.Registry

	mu     sync.RWMutex
	queue  chan Entry
	closed bool
	doneCh chan struct{}
}

// New creates a Reporter and starts its worker.
func New(cfg Config) *Reporter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metric.NewRegistry()
	}
	if cfg.Sink == nil {
		cfg.Sink = NewLogSink(cfg.Logger)
	}

	r := &Reporter{
		sink:    cfg.Sink,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		queue:   make(chan Entry, cfg.QueueSize),
		doneCh:  make(chan struct{}),
	}
	go r.run()
	return r
}

// Report queues rep for delivery and returns its id. roomID is the bound
// room identity when the caller knows it, otherwise empty.
//
// Report never blocks and never fails: overflow, shutdown and panics are
// counted and logged locally.
func (r *Reporter) Report(ctx context.Context, roomID, remoteAddr string, rep domain.ErrorReport) (id string) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(domain.ErrReportingFailure.WithDetails(fmt.Sprint(p)), id)
		}
	}()

	rep.Normalize()
	id = domain.NewReportID()
	e := Entry{
		ID:         id,
		RoomID:     roomID,
		RemoteAddr: remoteAddr,
		ReceivedAt: time.Now().UTC(),
		Report:     rep,
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		r.drop(id, "reporter closed")
		return id
	}
	select {
	case r.queue <- e:
		r.metrics.ErrorReports.WithLabelValues(metric.ResultAccepted).Inc()
	default:
		r.drop(id, "queue full")
	}
	return id
}

func (r *Reporter) run() {
	defer close(r.doneCh)
	for e := range r.queue {
		r.deliver(e)
	}
}

// deliver writes one entry. Sink errors and panics stay here.
func (r *Reporter) deliver(e Entry) {
	defer func() {
		if p := recover(); p != nil {
			r.fail(domain.ErrReportingFailure.WithDetails(fmt.Sprint(p)), e.ID)
		}
	}()

	if err := r.sink.Write(context.Background(), e); err != nil {
		r.fail(domain.ErrReportingFailure.Wrap(err), e.ID)
	}
}

func (r *Reporter) drop(id, reason string) {
	r.metrics.ErrorReports.WithLabelValues(metric.ResultDropped).Inc()
	r.logger.Warn("error report dropped", "report_id", id, "reason", reason)
}

func (r *Reporter) fail(err error, id string) {
	r.metrics.ErrorReports.WithLabelValues(metric.ResultFailed).Inc()
	r.logger.Error("error report failed", "report_id", id, "error", err)
}

// Pending returns the number of queued reports.
func (r *Reporter) Pending() int {
	return len(r.queue)
}

// Close stops accepting reports and waits for the queue to drain.
func (r *Reporter) Close(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	select {
	case <-r.doneCh:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("diagnostics: drain: %w", ctx.Err())
	}
}
