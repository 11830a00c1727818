// Package backend assembles a storage.Store from configuration.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yndnr/canvasmesh-go/internal/storage"
	"github.com/yndnr/canvasmesh-go/internal/storage/memory"
	"github.com/yndnr/canvasmesh-go/internal/storage/redis"
	"github.com/yndnr/canvasmesh-go/internal/storage/snapshot"
)

// Backend names.
const (
	Badger = "badger"
	Redis  = "redis"
	File   = "file"
	Memory = "memory"
)

// Config selects and configures a backend.
type Config struct {
	Backend string
	DataDir string

	BadgerGCInterval time.Duration
	BadgerSyncWrites bool

	RedisAddr      string
	RedisDB        int
	RedisPassword  string
	RedisKeyPrefix string

	FileDir            string
	FileRetentionCount int

	// EncryptionKey enables encryption at rest when non-empty.
	EncryptionKey string
}

// Open creates the configured store. Metrics are registered on reg when
// the backend exposes any; reg may be nil.
func Open(ctx context.Context, cfg Config, logger *slog.Logger, reg prometheus.Registerer) (storage.Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store storage.Store
		err   error
	)
	switch cfg.Backend {
	case Badger, "":
		bcfg := storage.DefaultBadgerConfig(filepath.Join(cfg.DataDir, "badger"))
		if cfg.BadgerGCInterval > 0 {
			bcfg.GCInterval = cfg.BadgerGCInterval
		}
		bcfg.SyncWrites = cfg.BadgerSyncWrites
		bs, berr := storage.NewBadgerStore(bcfg, logger)
		if berr != nil {
			return nil, berr
		}
		if reg != nil {
			bs.RegisterMetrics(reg)
		}
		store = bs

	case Redis:
		client := goredis.NewClient(&goredis.Options{
			Addr:     cfg.RedisAddr,
			DB:       cfg.RedisDB,
			Password: cfg.RedisPassword,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis: ping %s: %w", cfg.RedisAddr, err)
		}
		store, err = redis.New(redis.Config{
			Client:     client,
			KeyPrefix:  cfg.RedisKeyPrefix,
			OwnsClient: true,
		})
		if err != nil {
			client.Close()
			return nil, err
		}

	case File:
		dir := cfg.FileDir
		if dir == "" {
			dir = filepath.Join(cfg.DataDir, "snapshots")
		}
		store, err = snapshot.NewFileStore(snapshot.Config{
			Dir:            dir,
			RetentionCount: cfg.FileRetentionCount,
			Logger:         logger,
		})
		if err != nil {
			return nil, err
		}

	case Memory:
		logger.Warn("using in-memory storage, rooms will not survive a restart")
		store = memory.New()

	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.Backend)
	}

	if cfg.EncryptionKey == "" {
		return store, nil
	}

	enc, err := storage.NewEncryptedStore(ctx, store, []byte(cfg.EncryptionKey))
	if err != nil {
		store.Close()
		return nil, err
	}
	logger.Info("storage encryption enabled", "cipher", enc.Cipher())
	return enc, nil
}
