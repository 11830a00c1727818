package localserver

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/server/httpserver"
	"github.com/yndnr/canvasmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/logger"
)

// Control holds the process controls exposed on the socket. A nil
// function leaves its route unregistered.
type Control struct {
	// Shutdown starts a graceful shutdown and returns immediately.
	Shutdown func()
	// Reload re-reads the configuration and returns the active log level.
	Reload func() (string, error)
}

// ReloadResponse is the data of POST /local/v1/reload.
type ReloadResponse struct {
	LogLevel string `json:"log_level"`
}

// ShutdownResponse is the data of POST /local/v1/shutdown.
type ShutdownResponse struct {
	Status string `json:"status"`
}

// NewHandler routes the local controls and passes everything else to
// admin.
func NewHandler(admin http.Handler, ctl Control, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	mux.Handle("/", admin)

	wrap := func(h http.HandlerFunc) http.Handler {
		return httpserver.Chain(h, httpserver.RequestID(), httpserver.Recover(log), httpserver.AccessLog(log))
	}

	if ctl.Shutdown != nil {
		mux.Handle("POST /local/v1/shutdown", wrap(func(w http.ResponseWriter, r *http.Request) {
			log.InfoContext(r.Context(), "shutdown requested on local socket")
			ctl.Shutdown()
			writeJSON(w, r, http.StatusAccepted, ShutdownResponse{Status: "shutting_down"})
		}))
	}
	if ctl.Reload != nil {
		mux.Handle("POST /local/v1/reload", wrap(func(w http.ResponseWriter, r *http.Request) {
			level, err := ctl.Reload()
			if err != nil {
				log.ErrorContext(r.Context(), "config reload failed", "error", err)
				resp := handler.NewErrorResponse(logger.RequestIDFromContext(r.Context()),
					domain.ErrInternalServer.Code, "reload failed: "+err.Error(), nil)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_ = json.NewEncoder(w).Encode(resp)
				return
			}
			log.InfoContext(r.Context(), "config reloaded", "log_level", level)
			writeJSON(w, r, http.StatusOK, ReloadResponse{LogLevel: level})
		}))
	}
	return mux
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(handler.NewResponse(logger.RequestIDFromContext(r.Context()), data))
}
