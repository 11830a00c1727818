package config

import "time"

// DefaultSocket is the server's default local socket.
const DefaultSocket = "/var/run/canvasmesh-server/canvasmesh-server.sock"

// CLIConfig is the configuration for canvasmesh-cli.
type CLIConfig struct {
	// Server is an HTTP base URL. When empty the CLI uses Socket.
	Server string `yaml:"server,omitempty"`
	Socket string `yaml:"socket,omitempty"`

	Output  string        `yaml:"output"`
	Timeout time.Duration `yaml:"timeout"`

	CurrentProfile string             `yaml:"current_profile,omitempty"`
	Profiles       map[string]Profile `yaml:"profiles,omitempty"`
}

// Profile is a saved target.
type Profile struct {
	Server string `yaml:"server,omitempty"`
	Socket string `yaml:"socket,omitempty"`
}

// Default returns the default CLI configuration.
func Default() *CLIConfig {
	return &CLIConfig{
		Socket:   DefaultSocket,
		Output:   "table",
		Timeout:  30 * time.Second,
		Profiles: make(map[string]Profile),
	}
}
