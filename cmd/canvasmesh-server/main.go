package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/core/coordinator"
	"github.com/yndnr/canvasmesh-go/internal/diagnostics"
	"github.com/yndnr/canvasmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/canvasmesh-go/internal/infra/confloader"
	"github.com/yndnr/canvasmesh-go/internal/infra/shutdown"
	"github.com/yndnr/canvasmesh-go/internal/server/config"
	"github.com/yndnr/canvasmesh-go/internal/server/httpserver"
	"github.com/yndnr/canvasmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/canvasmesh-go/internal/server/localserver"
	"github.com/yndnr/canvasmesh-go/internal/server/wsconn"
	"github.com/yndnr/canvasmesh-go/internal/storage"
	"github.com/yndnr/canvasmesh-go/internal/storage/backend"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/logger"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/metric"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// flags holds command line overrides.
type flags struct {
	configFile  string
	logLevel    string
	addr        string
	showVersion bool
}

func parseFlags() flags {
	var f flags
	flag.StringVar(&f.configFile, "config", "", "Path to configuration file")
	flag.StringVar(&f.logLevel, "log-level", "", "Override log.level")
	flag.StringVar(&f.addr, "addr", "", "Override server.http.addr")
	flag.BoolVar(&f.showVersion, "version", false, "Show version information")
	flag.Parse()
	return f
}

func (f flags) overrides() map[string]any {
	m := make(map[string]any)
	if f.logLevel != "" {
		m["log.level"] = f.logLevel
	}
	if f.addr != "" {
		m["server.http.addr"] = f.addr
	}
	return m
}

func run() error {
	f := parseFlags()
	if f.showVersion {
		fmt.Println("canvasmesh-server " + buildinfo.String())
		return nil
	}

	cfg, err := loadConfig(f.configFile, f.overrides())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: os.Stdout,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)

	info := buildinfo.Get()
	log.Info("starting canvasmesh-server",
		"version", info.Version,
		"commit", info.Commit,
		"config", f.configFile)
	log.Debug("effective configuration", "config", config.Sanitize(cfg))

	ctx := context.Background()
	metrics := metric.NewRegistry()

	store, err := backend.Open(ctx, storageConfig(cfg.Storage), log, metrics.Registerer())
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	registry := coordinator.NewRegistry(coordinator.RegistryConfig{
		Store:           store,
		Factory:         coordinator.NewSyncEngineFactory(cfg.Room.SessionBuffer, log),
		PersistInterval: cfg.Room.PersistInterval,
		Logger:          log,
		Metrics:         metrics,
		ShardCount:      cfg.Room.ShardCount,
	})
	if err := metrics.RegisterSource(registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	reporter := diagnostics.New(diagnostics.Config{
		QueueSize: cfg.Diagnostics.QueueSize,
		Sink:      reportSink(cfg.Diagnostics, store, log),
		Logger:    log,
		Metrics:   metrics,
	})

	upgrader := wsconn.NewUpgrader(wsconn.Config{
		ReadBufferSize:  cfg.Server.WS.ReadBufferSize,
		WriteBufferSize: cfg.Server.WS.WriteBufferSize,
		AllowedOrigins:  cfg.Server.WS.AllowedOrigins,
		PingInterval:    cfg.Server.WS.PingInterval,
		WriteTimeout:    cfg.Server.WS.WriteTimeout,
		MaxMessageBytes: cfg.Server.WS.MaxMessageBytes,
	}, log)

	h := handler.New(handler.Config{
		Registry:  registry,
		Reporter:  reporter,
		Upgrader:  upgrader,
		Store:     store,
		Metrics:   metrics,
		Logger:    log,
		StartedAt: time.Now(),
	})

	httpSrv := httpserver.New(httpserver.Config{
		Addr:              cfg.Server.HTTP.Addr,
		TLSCertFile:       cfg.Server.HTTP.TLSCertFile,
		TLSKeyFile:        cfg.Server.HTTP.TLSKeyFile,
		ReadHeaderTimeout: cfg.Server.HTTP.ReadHeaderTimeout,
	}, httpserver.NewRouter(httpserver.RouterConfig{
		Handler:            h,
		Metrics:            metrics,
		Logger:             log,
		CORSAllowedOrigins: cfg.Server.HTTP.CORSAllowedOrigins,
		RateLimit:          cfg.Server.HTTP.RateLimit,
		RateBurst:          cfg.Server.HTTP.RateBurst,
		AdminAllowList:     cfg.Server.HTTP.AdminAllowList,
	}), log)
	if err := httpSrv.Listen(); err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Server.HTTP.Addr, err)
	}

	sh := shutdown.NewHandler(cfg.Server.HTTP.ShutdownTimeout, log)
	reload := func() (string, error) {
		return reloadLogLevel(f.configFile, f.overrides())
	}

	// Hooks run in reverse registration order: listeners stop first,
	// then rooms flush, then the store closes.
	sh.OnShutdown("storage", func(context.Context) error {
		return store.Close()
	})
	sh.OnShutdown("diagnostics", reporter.Close)
	sh.OnShutdown("rooms", registry.Close)

	if cfg.Server.Local.Enabled {
		localSrv := localserver.New(cfg.Server.Local.Path,
			localserver.NewHandler(httpserver.NewAdminRouter(h, metrics, log), localserver.Control{
				Shutdown: sh.Trigger,
				Reload:   reload,
			}, log), log)
		if err := localSrv.Listen(); err != nil {
			log.Warn("local socket disabled", "path", cfg.Server.Local.Path, "error", err)
		} else {
			go serve(log, "local", localSrv.Serve, sh)
			sh.OnShutdown("local", localSrv.Shutdown)
		}
	}

	go serve(log, "http", httpSrv.Serve, sh)
	sh.OnShutdown("http", httpSrv.Shutdown)

	if f.configFile != "" {
		stop, err := watchConfig(f.configFile, reload, log)
		if err != nil {
			log.Warn("config file watch disabled", "file", f.configFile, "error", err)
		} else {
			sh.OnShutdown("config-watcher", func(context.Context) error { return stop() })
		}
	}

	log.Info("server started", "addr", httpSrv.Addr())
	if err := sh.Wait(ctx); err != nil {
		log.Error("shutdown completed with errors", "error", err)
		return err
	}
	log.Info("server stopped gracefully")
	return nil
}

// serve runs a listener and starts shutdown if it fails.
func serve(log *slog.Logger, name string, fn func() error, sh *shutdown.Handler) {
	if err := fn(); err != nil {
		log.Error("listener failed", "listener", name, "error", err)
		sh.Trigger()
	}
}

// loadConfig layers the file, CANVASMESH_* variables and flag overrides
// over the defaults, then verifies the result.
func loadConfig(configFile string, overrides map[string]any) (*config.ServerConfig, error) {
	cfg := config.Default()

	loader := confloader.NewLoader(confloader.WithKnownKeys(confloader.KeysOf(cfg)))

	if err := loader.LoadFile(configFile); err != nil {
		return nil, err
	}
	if err := loader.LoadEnv(); err != nil {
		return nil, err
	}
	if len(overrides) > 0 {
		if err := loader.LoadMap(overrides); err != nil {
			return nil, err
		}
	}
	if err := loader.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := config.Verify(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// reloadLogLevel re-reads the configuration and applies its log level.
// Other settings need a restart.
func reloadLogLevel(configFile string, overrides map[string]any) (string, error) {
	cfg, err := loadConfig(configFile, overrides)
	if err != nil {
		return logger.GetLevel(), err
	}
	if err := logger.SetLevel(cfg.Log.Level); err != nil {
		return logger.GetLevel(), err
	}
	return logger.GetLevel(), nil
}

func watchConfig(path string, reload func() (string, error), log *slog.Logger) (func() error, error) {
	w, err := confloader.NewWatcher(confloader.WithWatcherLogger(log))
	if err != nil {
		return nil, err
	}
	if err := w.Watch(path); err != nil {
		_ = w.Stop()
		return nil, err
	}
	w.OnChange(func(string) {
		level, err := reload()
		if err != nil {
			log.Error("config reload failed", "file", path, "error", err)
			return
		}
		log.Info("config reloaded", "file", path, "log_level", level)
	})
	w.StartAsync()
	return w.Stop, nil
}

func storageConfig(s config.StorageSection) backend.Config {
	return backend.Config{
		Backend:            s.Backend,
		DataDir:            s.DataDir,
		BadgerGCInterval:   s.Badger.GCInterval,
		BadgerSyncWrites:   s.Badger.SyncWrites,
		RedisAddr:          s.Redis.Addr,
		RedisDB:            s.Redis.DB,
		RedisPassword:      s.Redis.Password,
		RedisKeyPrefix:     s.Redis.KeyPrefix,
		FileDir:            s.File.Dir,
		FileRetentionCount: s.File.RetentionCount,
		EncryptionKey:      s.EncryptionKey,
	}
}

func reportSink(cfg config.DiagnosticsSection, store storage.Store, log *slog.Logger) diagnostics.Sink {
	sink := diagnostics.MultiSink{diagnostics.NewLogSink(log)}
	if cfg.Persist {
		sink = append(sink, diagnostics.NewStoreSink(store))
	}
	return sink
}
