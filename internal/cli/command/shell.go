package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/canvasmesh-go/internal/cli/repl"
)

// ShellCommand returns the interactive shell command.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Run commands interactively",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "history", Usage: "History file", Value: repl.DefaultHistoryFile()},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return errors.New("connection manager not initialized")
	}
	completer := repl.NewCompleter(commandPaths(App().Commands, ""))

	history := repl.NewHistory(c.String("history"), repl.DefaultHistorySize)
	if err := history.Load(); err != nil {
		fmt.Fprintf(errWriter(c), "warning: history not loaded: %v\n", err)
	}

	exec := func(args []string) error {
		if len(args) > 0 && args[0] == "shell" {
			return fmt.Errorf("already in a shell")
		}
		return shellApp(c, completer).RunContext(c.Context, append([]string{c.App.Name}, args...))
	}

	prompt := func() string {
		t := mgr.Current()
		if t.Name != "" {
			return "canvasmesh(" + t.Name + ")> "
		}
		return "canvasmesh> "
	}

	printf(c, "Connected to %s. Type help for commands, exit to leave.\n", mgr.Current())
	err := repl.New(c.App.Reader, c.App.Writer, exec, repl.WithPrompt(prompt), repl.WithHistory(history)).Run()
	if saveErr := history.Save(); saveErr != nil {
		fmt.Fprintf(errWriter(c), "warning: history not saved: %v\n", saveErr)
	}
	return err
}

// shellApp builds an App for one shell line. It shares the parent's
// connection manager, so `use` persists between lines, and applies
// per-line --output and --timeout flags to a copy of the configuration.
func shellApp(parent *cli.Context, completer *repl.Completer) *cli.App {
	app := App()
	app.Writer = parent.App.Writer
	app.ErrWriter = parent.App.ErrWriter
	app.Reader = parent.App.Reader
	app.HideVersion = true
	app.Metadata = map[string]any{metaManager: parent.App.Metadata[metaManager]}
	app.Before = func(c *cli.Context) error {
		cfg := *cliConfig(parent)
		if c.IsSet("output") {
			cfg.Output = c.String("output")
		}
		if c.IsSet("timeout") {
			cfg.Timeout = c.Duration("timeout")
		}
		c.App.Metadata[metaConfig] = &cfg
		return nil
	}
	app.CommandNotFound = func(c *cli.Context, name string) {
		fmt.Fprintf(c.App.Writer, "unknown command %q\n", name)
		if s := completer.Suggest(name); len(s) > 0 {
			fmt.Fprintf(c.App.Writer, "did you mean: %s\n", strings.Join(s, ", "))
		}
	}
	app.ExitErrHandler = func(*cli.Context, error) {}
	return app
}

// commandPaths lists "group sub" paths for every leaf command.
func commandPaths(cmds []*cli.Command, prefix string) []string {
	var out []string
	for _, cmd := range cmds {
		path := strings.TrimSpace(prefix + " " + cmd.Name)
		if len(cmd.Subcommands) == 0 {
			out = append(out, path)
			continue
		}
		out = append(out, commandPaths(cmd.Subcommands, path)...)
	}
	return out
}

