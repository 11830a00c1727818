package command

import (
	"errors"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/canvasmesh-go/internal/cli/connection"
)

// UseCommand switches the target for the rest of a shell session. Used
// as a single command it only reports the target it resolves to.
func UseCommand() *cli.Command {
	return &cli.Command{
		Name:      "use",
		Usage:     "Switch to a saved profile or an address",
		ArgsUsage: "[PROFILE]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "url", Usage: "Use a server URL"},
			&cli.StringFlag{Name: "path", Usage: "Use a local socket"},
		},
		Action: useAction,
	}
}

func useAction(c *cli.Context) error {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return errors.New("connection manager not initialized")
	}

	switch name := c.Args().First(); {
	case name != "":
		if err := mgr.Use(name); err != nil {
			return err
		}
	case c.String("url") != "":
		mgr.Set(connection.Target{Server: c.String("url")})
	case c.String("path") != "":
		mgr.Set(connection.Target{Socket: c.String("path")})
	}

	t := mgr.Current()
	if t.Name != "" {
		printf(c, "Using %s (%s)\n", t.Name, t)
	} else {
		printf(c, "Using %s\n", t)
	}
	return nil
}
