package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/canvasmesh-go/internal/cli/connection"
	"github.com/yndnr/canvasmesh-go/internal/cli/output"
)

type buildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
	GoVersion string `json:"go_version"`
}

type statusSummary struct {
	Build          buildInfo `json:"build"`
	StartedAt      time.Time `json:"started_at"`
	UptimeSeconds  int64     `json:"uptime_seconds"`
	Rooms          int       `json:"rooms"`
	Sessions       int       `json:"sessions"`
	Goroutines     int       `json:"goroutines"`
	HeapBytes      uint64    `json:"heap_bytes"`
	PendingReports int       `json:"pending_reports"`
}

type probeResult struct {
	Status string `json:"status"`
}

// SystemCommand returns the system subcommand group.
func SystemCommand() *cli.Command {
	return &cli.Command{
		Name:    "system",
		Aliases: []string{"sys"},
		Usage:   "Server status and process control",
		Subcommands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show server status summary",
				Action: systemStatus,
			},
			{
				Name:   "health",
				Usage:  "Check liveness",
				Action: probe("/health"),
			},
			{
				Name:   "ready",
				Usage:  "Check readiness (storage reachable)",
				Action: probe("/ready"),
			},
			{
				Name:   "reload",
				Usage:  "Re-read the server configuration file (local socket only)",
				Action: systemReload,
			},
			{
				Name:  "shutdown",
				Usage: "Gracefully stop the server (local socket only)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "Do not ask for confirmation"},
				},
				Action: systemShutdown,
			},
		},
	}
}

func systemStatus(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/admin/v1/status/summary")
	if err != nil {
		return err
	}
	var s statusSummary
	if err := connection.ParseResponse(resp, &s); err != nil {
		return err
	}

	if !tableOutput(c) {
		return render(c, s)
	}
	uptime := (time.Duration(s.UptimeSeconds) * time.Second).String()
	printf(c, "Target:          %s\n", client.Target())
	printf(c, "Version:         %s (%s)\n", s.Build.Version, s.Build.Commit)
	printf(c, "Go:              %s\n", s.Build.GoVersion)
	printf(c, "Uptime:          %s\n", uptime)
	printf(c, "Rooms:           %d\n", s.Rooms)
	printf(c, "Sessions:        %d\n", s.Sessions)
	printf(c, "Goroutines:      %d\n", s.Goroutines)
	printf(c, "Heap:            %s\n", output.FormatBytes(int64(s.HeapBytes)))
	printf(c, "Pending reports: %d\n", s.PendingReports)
	return nil
}

func probe(path string) cli.ActionFunc {
	return func(c *cli.Context) error {
		client, err := EnsureConnected(c)
		if err != nil {
			return err
		}
		ctx, cancel := requestContext(c)
		defer cancel()

		resp, err := client.Get(ctx, path)
		if err != nil {
			return err
		}
		var res probeResult
		parseErr := connection.ParseResponse(resp, &res)

		if !tableOutput(c) && parseErr == nil {
			return render(c, res)
		}
		name := strings.TrimPrefix(path, "/")
		if parseErr != nil {
			printf(c, "FAIL %s: %v\n", name, parseErr)
			return fmt.Errorf("%s check failed", name)
		}
		printf(c, "ok   %s: %s (%s)\n", name, res.Status, client.Target())
		return nil
	}
}

func systemReload(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Post(ctx, "/local/v1/reload", nil)
	if err != nil {
		return err
	}
	var res struct {
		LogLevel string `json:"log_level"`
	}
	if err := connection.ParseResponse(resp, &res); err != nil {
		return localOnly(err)
	}
	if !tableOutput(c) {
		return render(c, res)
	}
	printf(c, "Configuration reloaded, log level %s\n", res.LogLevel)
	return nil
}

func systemShutdown(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	if !c.Bool("yes") && !confirm(c, fmt.Sprintf("Shut down the server at %s?", client.Target())) {
		return errors.New("aborted")
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	resp, err := client.Post(ctx, "/local/v1/shutdown", nil)
	if err != nil {
		return err
	}
	if err := connection.ParseResponse(resp, nil); err != nil {
		return localOnly(err)
	}
	printf(c, "Shutdown started\n")
	return nil
}

// localOnly explains a 404 from a process control route.
func localOnly(err error) error {
	var apiErr *connection.APIError
	if errors.As(err, &apiErr) && apiErr.Status == 404 {
		return fmt.Errorf("%w (process control is only available on the local socket)", err)
	}
	return err
}

func confirm(c *cli.Context, question string) bool {
	printf(c, "%s [y/N] ", question)
	var answer string
	if _, err := fmt.Fscanln(c.App.Reader, &answer); err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
