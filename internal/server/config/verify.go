package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/telemetry/logger"
)

// MinEncryptionKeyLength is the shortest accepted storage.encryption_key.
const MinEncryptionKeyLength = 16

// Verify validates the configuration and creates the data directory
// for on-disk backends.
func Verify(cfg *ServerConfig) error {
	if err := verifyServer(&cfg.Server); err != nil {
		return err
	}
	if err := verifyRoom(&cfg.Room); err != nil {
		return err
	}
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if cfg.Diagnostics.QueueSize < 1 {
		return errors.New("diagnostics.queue_size must be at least 1")
	}
	if _, err := logger.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Log.Format {
	case "json", "text", "console", "":
	default:
		return fmt.Errorf("log.format: unknown format %q", cfg.Log.Format)
	}
	return nil
}

func verifyServer(cfg *ServerSection) error {
	if _, _, err := net.SplitHostPort(cfg.HTTP.Addr); err != nil {
		return fmt.Errorf("server.http.addr: %w", err)
	}
	if (cfg.HTTP.TLSCertFile == "") != (cfg.HTTP.TLSKeyFile == "") {
		return errors.New("server.http.tls_cert_file and server.http.tls_key_file must be set together")
	}
	for _, f := range []string{cfg.HTTP.TLSCertFile, cfg.HTTP.TLSKeyFile} {
		if f == "" {
			continue
		}
		if _, err := os.Stat(f); err != nil {
			return fmt.Errorf("server.http: %w", err)
		}
	}
	if cfg.HTTP.RateLimit < 0 {
		return errors.New("server.http.rate_limit must not be negative")
	}
	if cfg.HTTP.RateLimit > 0 && cfg.HTTP.RateBurst < 1 {
		return errors.New("server.http.rate_burst must be at least 1 when rate limiting is enabled")
	}

	if cfg.WS.ReadBufferSize < 0 || cfg.WS.WriteBufferSize < 0 {
		return errors.New("server.ws buffer sizes must not be negative")
	}
	if cfg.WS.PingInterval > 0 && cfg.WS.PingInterval < time.Second {
		return errors.New("server.ws.ping_interval must be at least 1s")
	}
	if cfg.WS.MaxMessageBytes < 0 {
		return errors.New("server.ws.max_message_bytes must not be negative")
	}

	if cfg.Local.Enabled && cfg.Local.Path == "" {
		return errors.New("server.local.path is required when the local socket is enabled")
	}
	return nil
}

func verifyRoom(cfg *RoomSection) error {
	if cfg.PersistInterval <= 0 {
		return errors.New("room.persist_interval must be positive")
	}
	if cfg.SessionBuffer < 1 {
		return errors.New("room.session_buffer must be at least 1")
	}
	if cfg.ShardCount < 0 {
		return errors.New("room.shard_count must not be negative")
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Backend {
	case "badger", "file":
		if cfg.DataDir == "" && (cfg.Backend == "badger" || cfg.File.Dir == "") {
			return errors.New("storage.data_dir is required")
		}
		dir := cfg.DataDir
		if cfg.Backend == "file" && cfg.File.Dir != "" {
			dir = cfg.File.Dir
		}
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("cannot create data directory: %w", err)
		}
	case "redis":
		if cfg.Redis.Addr == "" {
			return errors.New("storage.redis.addr is required")
		}
		if cfg.Redis.DB < 0 {
			return errors.New("storage.redis.db must not be negative")
		}
	case "memory":
	default:
		return fmt.Errorf("storage.backend: unknown backend %q", cfg.Backend)
	}

	if cfg.File.RetentionCount < 0 {
		return errors.New("storage.file.retention_count must not be negative")
	}
	if cfg.EncryptionKey != "" && len(cfg.EncryptionKey) < MinEncryptionKeyLength {
		return fmt.Errorf("storage.encryption_key must be at least %d bytes", MinEncryptionKeyLength)
	}
	return nil
}
