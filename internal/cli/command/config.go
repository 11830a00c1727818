package command

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/yndnr/canvasmesh-go/internal/cli/config"
	"github.com/yndnr/canvasmesh-go/internal/infra/confloader"
	serverconfig "github.com/yndnr/canvasmesh-go/internal/server/config"
)

// ConfigCommand returns the config subcommand group.
func ConfigCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Configuration management",
		Subcommands: []*cli.Command{
			{
				Name:  "cli",
				Usage: "CLI configuration",
				Subcommands: []*cli.Command{
					{
						Name:   "show",
						Usage:  "Show the effective CLI configuration",
						Action: configCLIShow,
					},
					{
						Name:   "path",
						Usage:  "Print the CLI configuration file path",
						Action: func(c *cli.Context) error { printf(c, "%s\n", c.String("config")); return nil },
					},
				},
			},
			{
				Name:  "profile",
				Usage: "Saved profiles",
				Subcommands: []*cli.Command{
					{
						Name:   "list",
						Usage:  "List profiles",
						Action: profileList,
					},
					{
						Name:      "add",
						Usage:     "Save a profile",
						ArgsUsage: "NAME",
						Flags: []cli.Flag{
							&cli.StringFlag{Name: "url", Usage: "Server URL"},
							&cli.StringFlag{Name: "path", Usage: "Local socket path"},
							&cli.BoolFlag{Name: "default", Usage: "Make it the current profile"},
						},
						Action: profileAdd,
					},
					{
						Name:      "remove",
						Aliases:   []string{"rm"},
						Usage:     "Delete a profile",
						ArgsUsage: "NAME",
						Action:    profileRemove,
					},
				},
			},
			{
				Name:  "server",
				Usage: "canvasmesh-server configuration",
				Subcommands: []*cli.Command{
					{
						Name:      "validate",
						Usage:     "Validate a server configuration file as the server would load it",
						ArgsUsage: "FILE",
						Flags: []cli.Flag{
							&cli.BoolFlag{Name: "show", Usage: "Print the effective configuration (secrets masked)"},
						},
						Action: configServerValidate,
					},
					{
						Name:   "defaults",
						Usage:  "Print the default server configuration as YAML",
						Action: configServerDefaults,
					},
				},
			},
		},
	}
}

func configCLIShow(c *cli.Context) error {
	cfg := cliConfig(c)
	if !tableOutput(c) {
		return render(c, cfg)
	}
	return yamlOut(c, cfg)
}

func yamlOut(c *cli.Context, v any) error {
	enc := yaml.NewEncoder(c.App.Writer)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// loadFile reads the CLI file without the env and flag layers, for
// edits that are saved back.
func loadFile(c *cli.Context) (*config.CLIConfig, string, error) {
	path := c.String("config")
	cfg, err := config.Load(path)
	return cfg, path, err
}

func profileList(c *cli.Context) error {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return errors.New("connection manager not initialized")
	}
	profiles := mgr.Profiles()
	if len(profiles) == 0 && tableOutput(c) {
		printf(c, "No profiles (add one with `config profile add`)\n")
		return nil
	}
	return render(c, profiles)
}

func profileAdd(c *cli.Context) error {
	name, err := requireArg(c, "NAME")
	if err != nil {
		return err
	}
	p := config.Profile{Server: c.String("url"), Socket: c.String("path")}
	if (p.Server == "") == (p.Socket == "") {
		return errors.New("set exactly one of --url or --path")
	}

	cfg, path, err := loadFile(c)
	if err != nil {
		return err
	}
	cfg.Profiles[name] = p
	if c.Bool("default") {
		cfg.CurrentProfile = name
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	printf(c, "Profile %q saved to %s\n", name, path)
	return nil
}

func profileRemove(c *cli.Context) error {
	name, err := requireArg(c, "NAME")
	if err != nil {
		return err
	}
	cfg, path, err := loadFile(c)
	if err != nil {
		return err
	}
	if _, ok := cfg.Profiles[name]; !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	delete(cfg.Profiles, name)
	if cfg.CurrentProfile == name {
		cfg.CurrentProfile = ""
	}
	if err := config.Save(cfg, path); err != nil {
		return err
	}
	printf(c, "Profile %q removed\n", name)
	return nil
}

func configServerValidate(c *cli.Context) error {
	file, err := requireArg(c, "FILE")
	if err != nil {
		return err
	}

	cfg := serverconfig.Default()
	loader := confloader.NewLoader(
		confloader.WithConfigFile(file),
		confloader.WithKnownKeys(confloader.KeysOf(cfg)),
	)
	if err := loader.Load(cfg); err != nil {
		return err
	}
	if err := serverconfig.Verify(cfg); err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	if c.Bool("show") {
		return yamlOut(c, confloader.ToMap(serverconfig.Sanitize(cfg)))
	}
	printf(c, "%s: ok\n", file)
	return nil
}

func configServerDefaults(c *cli.Context) error {
	return yamlOut(c, confloader.ToMap(serverconfig.Default()))
}
