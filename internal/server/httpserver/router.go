package httpserver

import (
	"log/slog"
	"net/http"

	"github.com/yndnr/canvasmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/metric"
)

// RouterConfig configures the public router.
type RouterConfig struct {
	Handler *handler.Handler
	Metrics *metric.Registry
	Logger  *slog.Logger

	// CORSAllowedOrigins is applied to POST /api/log-error.
	CORSAllowedOrigins []string

	// RateLimit is the per-IP request rate on /api routes; zero disables it.
	RateLimit float64
	RateBurst int

	// AdminAllowList enables /admin/v1 for the listed IPs or CIDRs.
	// Empty leaves the admin API off this router.
	AdminAllowList []string
}

// NewRouter creates the public router.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	h := cfg.Handler
	log := cfg.Logger

	mux := http.NewServeMux()

	// Probes and metrics: no rate limit, no access log.
	probe := Chain(h, RequestID(), Recover(log))
	mux.Handle("GET /health", probe)
	mux.Handle("GET /ready", probe)
	mux.Handle("GET /metrics", probe)

	// Order: RequestID -> Recover -> Metrics -> AccessLog -> RateLimit -> Handler
	api := func(route string, extra ...Middleware) http.Handler {
		mws := []Middleware{
			RequestID(),
			Recover(log),
			Metrics(cfg.Metrics, route),
			AccessLog(log),
			RateLimit(cfg.RateLimit, cfg.RateBurst),
		}
		return Chain(h, append(mws, extra...)...)
	}
	mux.Handle("GET /api/connect/{roomId}", api("connect"))
	mux.Handle("POST /api/log-error", api("log_error", CORS(cfg.CORSAllowedOrigins)))
	mux.Handle("OPTIONS /api/log-error", Chain(h, CORS(cfg.CORSAllowedOrigins)))

	if len(cfg.AdminAllowList) > 0 {
		admin := Chain(h,
			RequestID(),
			Recover(log),
			NetworkACL(cfg.AdminAllowList, log),
			Metrics(cfg.Metrics, "admin"),
			AccessLog(log),
		)
		mux.Handle("/admin/v1/", admin)
	}

	return mux
}

// NewAdminRouter creates the router served on the local socket: probes
// and the admin API, with no network checks.
func NewAdminRouter(h *handler.Handler, m *metric.Registry, log *slog.Logger) http.Handler {
	if log == nil {
		log = slog.Default()
	}
	mux := http.NewServeMux()
	probe := Chain(h, RequestID(), Recover(log))
	mux.Handle("GET /health", probe)
	mux.Handle("GET /ready", probe)
	mux.Handle("GET /metrics", probe)
	mux.Handle("/admin/v1/", Chain(h, RequestID(), Recover(log), Metrics(m, "admin_local"), AccessLog(log)))
	return mux
}
