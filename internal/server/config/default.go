package config

import "time"

// Default configuration values.
const (
	DefaultHTTPAddr          = "127.0.0.1:5080"
	DefaultRateLimit         = 50
	DefaultRateBurst         = 100
	DefaultReadHeaderTimeout = 10 * time.Second
	DefaultShutdownTimeout   = 15 * time.Second
	DefaultLocalSocket       = "/var/run/canvasmesh-server/canvasmesh-server.sock"

	DefaultWSBufferSize      = 4096
	DefaultWSPingInterval    = 30 * time.Second
	DefaultWSWriteTimeout    = 10 * time.Second
	DefaultWSMaxMessageBytes = 1 << 20

	DefaultPersistInterval = 10 * time.Second
	DefaultSessionBuffer   = 256
	DefaultShardCount      = 32

	DefaultBackend          = "badger"
	DefaultDataDir          = "/var/lib/canvasmesh-server/data"
	DefaultBadgerGCInterval = 10 * time.Minute
	DefaultRedisAddr        = "127.0.0.1:6379"
	DefaultRedisKeyPrefix   = "canvasmesh:"
	DefaultFileRetention    = 3

	DefaultDiagnosticsQueueSize = 1024

	DefaultLogLevel  = "info"
	DefaultLogFormat = "json"
)

// Default returns the default server configuration.
func Default() *ServerConfig {
	return &ServerConfig{
		Server: ServerSection{
			HTTP: HTTPConfig{
				Addr:              DefaultHTTPAddr,
				RateLimit:         DefaultRateLimit,
				RateBurst:         DefaultRateBurst,
				AdminAllowList:    []string{"127.0.0.1", "::1"},
				ReadHeaderTimeout: DefaultReadHeaderTimeout,
				ShutdownTimeout:   DefaultShutdownTimeout,
			},
			WS: WebSocketConfig{
				ReadBufferSize:  DefaultWSBufferSize,
				WriteBufferSize: DefaultWSBufferSize,
				PingInterval:    DefaultWSPingInterval,
				WriteTimeout:    DefaultWSWriteTimeout,
				MaxMessageBytes: DefaultWSMaxMessageBytes,
			},
			Local: LocalConfig{
				Enabled: true,
				Path:    DefaultLocalSocket,
			},
		},
		Room: RoomSection{
			PersistInterval: DefaultPersistInterval,
			SessionBuffer:   DefaultSessionBuffer,
			ShardCount:      DefaultShardCount,
		},
		Storage: StorageSection{
			Backend: DefaultBackend,
			DataDir: DefaultDataDir,
			Badger: BadgerConfig{
				GCInterval: DefaultBadgerGCInterval,
			},
			Redis: RedisConfig{
				Addr:      DefaultRedisAddr,
				KeyPrefix: DefaultRedisKeyPrefix,
			},
			File: FileConfig{
				RetentionCount: DefaultFileRetention,
			},
		},
		Diagnostics: DiagnosticsSection{
			QueueSize: DefaultDiagnosticsQueueSize,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}
