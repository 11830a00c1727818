package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/core/coordinator"
	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/diagnostics"
	"github.com/yndnr/canvasmesh-go/internal/server/wsconn"
	"github.com/yndnr/canvasmesh-go/internal/storage"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/logger"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/metric"
)

// MaxReportBytes bounds a POST /api/log-error body.
const MaxReportBytes = 256 << 10

// Upgrader performs the WebSocket handshake.
type Upgrader interface {
	Upgrade(w http.ResponseWriter, r *http.Request) (*wsconn.Conn, error)
}

// Config holds the handler dependencies.
type Config struct {
	Registry *coordinator.Registry
	Reporter *diagnostics.Reporter
	Upgrader Upgrader
	Store    storage.Store
	Metrics  *metric.Registry
	Logger   *slog.Logger

	// StartedAt is reported as uptime by the status summary.
	StartedAt time.Time
}

// Handler serves the HTTP API.
type Handler struct {
	registry  *coordinator.Registry
	reporter  *diagnostics.Reporter
	upgrader  Upgrader
	store     storage.Store
	metrics   *metric.Registry
	logger    *slog.Logger
	startedAt time.Time
	mux       *http.ServeMux
}

// New creates a Handler and registers its routes.
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.StartedAt.IsZero() {
		cfg.StartedAt = time.Now()
	}
	h := &Handler{
		registry:  cfg.Registry,
		reporter:  cfg.Reporter,
		upgrader:  cfg.Upgrader,
		store:     cfg.Store,
		metrics:   cfg.Metrics,
		logger:    cfg.Logger.With("component", "http"),
		startedAt: cfg.StartedAt,
		mux:       http.NewServeMux(),
	}
	h.registerRoutes()
	return h
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	h.mux.HandleFunc("GET /health", h.handleHealth)
	h.mux.HandleFunc("GET /ready", h.handleReady)
	if h.metrics != nil {
		h.mux.Handle("GET /metrics", h.metrics.Handler())
	}

	h.mux.HandleFunc("GET /api/connect/{roomId}", h.handleConnect)
	h.mux.HandleFunc("POST /api/log-error", h.handleLogError)

	h.mux.HandleFunc("GET /admin/v1/status/summary", h.handleStatusSummary)
	h.mux.HandleFunc("GET /admin/v1/rooms", h.handleListRooms)
	h.mux.HandleFunc("GET /admin/v1/rooms/{roomId}", h.handleGetRoom)
	h.mux.HandleFunc("POST /admin/v1/rooms/{roomId}/flush", h.handleFlushRoom)
	h.mux.HandleFunc("GET /admin/v1/rooms/{roomId}/snapshot", h.handleRoomSnapshot)
}

// writeJSON writes a success envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	requestID := getRequestID(r)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID, data)); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}

// writeError writes an error envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details any) {
	requestID := getRequestID(r)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(requestID, code, message, details))
}

// handleError converts domain errors to HTTP responses. Anything else
// is logged and reported as CM-SYS-5000.
func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	var de *domain.DomainError
	if errors.As(err, &de) {
		status := errorCodeToHTTPStatus(de.Code)
		if status >= 500 {
			h.logger.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		}
		var details any
		if de.Details != "" {
			details = de.Details
		}
		h.writeError(w, r, status, de.Code, de.Message, details)
		return
	}

	h.logger.ErrorContext(r.Context(), "internal error", "path", r.URL.Path, "error", err)
	h.writeError(w, r, http.StatusInternalServerError, domain.ErrInternalServer.Code, domain.ErrInternalServer.Message, nil)
}

// errorCodeToHTTPStatus maps error codes to HTTP status codes by suffix.
func errorCodeToHTTPStatus(code string) int {
	switch {
	case strings.HasSuffix(code, "-4040"):
		return http.StatusNotFound
	case strings.HasSuffix(code, "-4030"):
		return http.StatusForbidden
	case strings.HasSuffix(code, "-4290"):
		return http.StatusTooManyRequests
	case strings.HasSuffix(code, "-4000"), strings.HasSuffix(code, "-4001"), strings.HasSuffix(code, "-4002"):
		return http.StatusBadRequest
	case strings.HasSuffix(code, "-5030"):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// getRequestID returns the id the RequestID middleware stored, falling
// back to the inbound header.
func getRequestID(r *http.Request) string {
	if id := logger.RequestIDFromContext(r.Context()); id != "" {
		return id
	}
	return r.Header.Get("X-Request-ID")
}
