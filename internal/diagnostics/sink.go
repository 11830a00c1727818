package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/yndnr/canvasmesh-go/internal/storage"
)

// LogSink writes each report as one structured log record.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink returns a sink that logs to logger.
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger.With("component", "client_error")}
}

// Write logs e at warn level.
func (s *LogSink) Write(ctx context.Context, e Entry) error {
	s.logger.WarnContext(ctx, "client error reported",
		"report_id", e.ID,
		"room_id", e.RoomID,
		"remote_addr", e.RemoteAddr,
		"error", e.Report.Error,
		"stack", e.Report.Stack,
		"context", e.Report.Context,
		"client_timestamp", e.Report.Timestamp,
		"user_agent", e.Report.UserAgent,
		"url", e.Report.URL,
	)
	return nil
}

// ReportKeyPrefix prefixes report keys in a StoreSink.
const ReportKeyPrefix = "reports/"

// StoreSink keeps reports in a storage backend under
// reports/{reportId}, so they survive restarts and can be listed.
type StoreSink struct {
	store storage.Store
}

// NewStoreSink returns a sink that writes into store.
func NewStoreSink(store storage.Store) *StoreSink {
	return &StoreSink{store: store}
}

// Write stores e as JSON.
func (s *StoreSink) Write(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return s.store.Put(ctx, ReportKeyPrefix+e.ID, data)
}

// MultiSink writes to every sink in order, continuing past failures.
type MultiSink []Sink

// Write returns the joined errors of every sink.
func (m MultiSink) Write(ctx context.Context, e Entry) error {
	var errs []error
	for _, s := range m {
		if err := s.Write(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
