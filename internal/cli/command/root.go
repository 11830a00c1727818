package command

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/canvasmesh-go/internal/cli/config"
	"github.com/yndnr/canvasmesh-go/internal/cli/connection"
	"github.com/yndnr/canvasmesh-go/internal/cli/output"
	"github.com/yndnr/canvasmesh-go/internal/infra/buildinfo"
)

const (
	metaManager = "connMgr"
	metaConfig  = "cliConfig"
)

// App creates the CLI application.
func App() *cli.App {
	return &cli.App{
		Name:    "canvasmesh-cli",
		Usage:   "canvasmesh-server management tool",
		Version: buildinfo.String(),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			RoomsCommand(),
			SystemCommand(),
			ReportCommand(),
			SchemaCommand(),
			ConfigCommand(),
			UseCommand(),
			ShellCommand(),
		},
		Before:   setup,
		Metadata: map[string]any{},
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "Server URL (e.g. http://localhost:5080); the admin API must allow this client",
		},
		&cli.StringFlag{
			Name:  "socket",
			Usage: "Path to the server's local socket",
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "Saved profile to use",
		},
		&cli.StringFlag{
			Name:  "config",
			Usage: "CLI configuration file",
			Value: config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
	}
}

// setup loads and merges the CLI configuration and installs the
// connection manager.
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}

	flags := map[string]string{
		"server":  c.String("server"),
		"socket":  c.String("socket"),
		"profile": c.String("profile"),
		"output":  c.String("output"),
	}
	if c.IsSet("timeout") {
		flags["timeout"] = c.Duration("timeout").String()
	}
	merged, err := config.Merge(cfg, config.EnvMap(), flags)
	if err != nil {
		return err
	}
	if err := merged.Validate(); err != nil {
		return err
	}

	profiles := make(map[string]connection.Target, len(merged.Profiles))
	for name, p := range merged.Profiles {
		profiles[name] = connection.Target{Name: name, Server: p.Server, Socket: p.Socket}
	}
	current := connection.Target{Name: merged.CurrentProfile, Server: merged.Server, Socket: merged.Socket}

	c.App.Metadata[metaConfig] = merged
	c.App.Metadata[metaManager] = connection.NewManager(current, profiles, merged.Timeout)
	return nil
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata[metaManager].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

func cliConfig(c *cli.Context) *config.CLIConfig {
	if cfg, ok := c.App.Metadata[metaConfig].(*config.CLIConfig); ok {
		return cfg
	}
	return config.Default()
}

// EnsureConnected returns a client for the current target.
func EnsureConnected(c *cli.Context) (*connection.HTTPClient, error) {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil, fmt.Errorf("connection manager not initialized")
	}
	return mgr.Client(), nil
}

func requestContext(c *cli.Context) (context.Context, context.CancelFunc) {
	timeout := cliConfig(c).Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(c.Context, timeout)
}

// render prints data in the selected output format.
func render(c *cli.Context, data any) error {
	format, err := output.ParseFormat(cliConfig(c).Output)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, c.Bool("wide")).Format(c.App.Writer, data)
}

// tableOutput reports whether the human format is selected.
func tableOutput(c *cli.Context) bool {
	f, err := output.ParseFormat(cliConfig(c).Output)
	return err == nil && f == output.FormatTable
}

func printf(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(c.App.Writer, format, args...)
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return io.Discard
}

// requireArg returns the first argument or a usage error.
func requireArg(c *cli.Context, name string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", fmt.Errorf("%s required", name)
	}
	return v, nil
}
