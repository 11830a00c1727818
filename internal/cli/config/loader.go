package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables read by Merge.
const (
	EnvServer  = "CANVASMESH_SERVER"
	EnvSocket  = "CANVASMESH_SOCKET"
	EnvOutput  = "CANVASMESH_OUTPUT"
	EnvProfile = "CANVASMESH_PROFILE"
	EnvTimeout = "CANVASMESH_TIMEOUT"
)

// DefaultConfigPath returns ~/.canvasmesh/cli.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".canvasmesh", "cli.yaml")
}

// Load reads the configuration file over the defaults. A missing file
// yields the defaults.
func Load(path string) (*CLIConfig, error) {
	if path == "" {
		path = DefaultConfigPath()
	}
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Profiles == nil {
		cfg.Profiles = make(map[string]Profile)
	}
	return cfg, nil
}

// Save writes the configuration with mode 0600.
func Save(cfg *CLIConfig, path string) error {
	if path == "" {
		path = DefaultConfigPath()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Merge layers the selected profile, then env, then flags over cfg and
// returns the result; cfg is not modified. env and flags are keyed by
// the Env* names and the flag names (server, socket, output, profile,
// timeout). Setting a socket at a layer clears the server from lower
// layers, and the reverse.
func Merge(cfg *CLIConfig, env, flags map[string]string) (*CLIConfig, error) {
	out := *cfg
	out.Profiles = make(map[string]Profile, len(cfg.Profiles))
	for k, v := range cfg.Profiles {
		out.Profiles[k] = v
	}

	profile := firstNonEmpty(flags["profile"], env[EnvProfile], cfg.CurrentProfile)
	if profile != "" {
		p, ok := cfg.Profiles[profile]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q", profile)
		}
		out.CurrentProfile = profile
		out.applyTarget(p.Server, p.Socket)
	}

	layers := []map[string]string{
		{"server": env[EnvServer], "socket": env[EnvSocket], "output": env[EnvOutput], "timeout": env[EnvTimeout]},
		flags,
	}
	for _, l := range layers {
		out.applyTarget(l["server"], l["socket"])
		if v := l["output"]; v != "" {
			out.Output = v
		}
		if v := l["timeout"]; v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return nil, fmt.Errorf("invalid timeout %q: %w", v, err)
			}
			out.Timeout = d
		}
	}
	return &out, nil
}

func (c *CLIConfig) applyTarget(server, socket string) {
	switch {
	case server != "":
		c.Server = server
	case socket != "":
		c.Server = ""
		c.Socket = socket
	}
}

// Validate checks the merged configuration.
func (c *CLIConfig) Validate() error {
	if c.Server == "" && c.Socket == "" {
		return errors.New("no target: set server or socket")
	}
	switch c.Output {
	case "table", "json", "yaml", "":
	default:
		return fmt.Errorf("output: unknown format %q", c.Output)
	}
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	for name, p := range c.Profiles {
		if p.Server == "" && p.Socket == "" {
			return fmt.Errorf("profile %q: set server or socket", name)
		}
	}
	return nil
}

// EnvMap reads the Env* variables.
func EnvMap() map[string]string {
	m := make(map[string]string)
	for _, k := range []string{EnvServer, EnvSocket, EnvOutput, EnvProfile, EnvTimeout} {
		if v, ok := os.LookupEnv(k); ok {
			m[k] = v
		}
	}
	return m
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
