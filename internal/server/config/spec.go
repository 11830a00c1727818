package config

import "time"

// ServerConfig is the root configuration for canvasmesh-server.
type ServerConfig struct {
	Server      ServerSection      `koanf:"server"`
	Room        RoomSection        `koanf:"room"`
	Storage     StorageSection     `koanf:"storage"`
	Diagnostics DiagnosticsSection `koanf:"diagnostics"`
	Log         LogSection         `koanf:"log"`
}

// ServerSection configures server endpoints.
type ServerSection struct {
	HTTP  HTTPConfig      `koanf:"http"`
	WS    WebSocketConfig `koanf:"ws"`
	Local LocalConfig     `koanf:"local"`
}

// HTTPConfig configures the public HTTP server.
type HTTPConfig struct {
	Addr        string `koanf:"addr"`
	TLSCertFile string `koanf:"tls_cert_file"`
	TLSKeyFile  string `koanf:"tls_key_file"`

	// RateLimit is the per-client request rate in requests per second.
	// Zero disables rate limiting.
	RateLimit float64 `koanf:"rate_limit"`
	RateBurst int     `koanf:"rate_burst"`

	// CORSAllowedOrigins lists origins allowed to call the HTTP API.
	// "*" allows any origin.
	CORSAllowedOrigins []string `koanf:"cors_allowed_origins"`

	// AdminAllowList lists the IPs or CIDRs allowed to reach /admin/v1
	// on this listener. Empty disables the admin API over HTTP; the
	// local socket always serves it.
	AdminAllowList []string `koanf:"admin_allow_list"`

	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
}

// WebSocketConfig configures the sync channel transport.
type WebSocketConfig struct {
	ReadBufferSize  int `koanf:"read_buffer_size"`
	WriteBufferSize int `koanf:"write_buffer_size"`

	// AllowedOrigins lists origins allowed to open a channel. Empty means
	// same host only; "*" allows any origin.
	AllowedOrigins []string `koanf:"allowed_origins"`

	PingInterval    time.Duration `koanf:"ping_interval"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	MaxMessageBytes int64         `koanf:"max_message_bytes"`
}

// LocalConfig configures the local management socket.
type LocalConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`
}

// RoomSection configures room coordinators.
type RoomSection struct {
	// PersistInterval is the minimum spacing between snapshot writes of
	// one room.
	PersistInterval time.Duration `koanf:"persist_interval"`

	// SessionBuffer is the outbound message queue length per session.
	SessionBuffer int `koanf:"session_buffer"`

	ShardCount int `koanf:"shard_count"`
}

// StorageSection configures the snapshot store.
type StorageSection struct {
	// Backend is one of badger, redis, file or memory.
	Backend string `koanf:"backend"`
	DataDir string `koanf:"data_dir"`

	Badger BadgerConfig `koanf:"badger"`
	Redis  RedisConfig  `koanf:"redis"`
	File   FileConfig   `koanf:"file"`

	// EncryptionKey enables encryption at rest when set.
	EncryptionKey string `koanf:"encryption_key"`
}

// BadgerConfig configures the badger backend.
type BadgerConfig struct {
	GCInterval time.Duration `koanf:"gc_interval"`
	SyncWrites bool          `koanf:"sync_writes"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr      string `koanf:"addr"`
	DB        int    `koanf:"db"`
	Password  string `koanf:"password"`
	KeyPrefix string `koanf:"key_prefix"`
}

// FileConfig configures the file backend.
type FileConfig struct {
	// Dir defaults to {data_dir}/snapshots.
	Dir            string `koanf:"dir"`
	RetentionCount int    `koanf:"retention_count"`
}

// DiagnosticsSection configures client error reporting.
type DiagnosticsSection struct {
	QueueSize int `koanf:"queue_size"`

	// Persist also writes each report to the snapshot store under reports/.
	Persist bool `koanf:"persist"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}
