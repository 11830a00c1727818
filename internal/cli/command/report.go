package command

import (
	"errors"
	"net/url"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/canvasmesh-go/internal/cli/connection"
	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/infra/buildinfo"
)

// ReportCommand returns the report command, which sends an error report
// the way a browser client does. It is useful to check the reporting
// pipeline end to end.
func ReportCommand() *cli.Command {
	return &cli.Command{
		Name:  "report",
		Usage: "Send a client error report",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "room", Aliases: []string{"r"}, Usage: "Room id the report is about"},
			&cli.StringFlag{Name: "error", Aliases: []string{"e"}, Usage: "Error message", Required: true},
			&cli.StringFlag{Name: "stack", Usage: "Stack trace"},
			&cli.StringFlag{Name: "context", Usage: "Free-form context"},
			&cli.StringFlag{Name: "url", Usage: "Page URL"},
		},
		Action: reportAction,
	}
}

func reportAction(c *cli.Context) error {
	rep := domain.ErrorReport{
		Error:     c.String("error"),
		Stack:     c.String("stack"),
		Context:   c.String("context"),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		UserAgent: buildinfo.UserAgent("canvasmesh-cli"),
		URL:       c.String("url"),
	}
	rep.Normalize()
	if rep.Error == "" {
		return errors.New("--error must not be blank")
	}

	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	if GetConnectionManager(c).Current().Server == "" {
		return errors.New("report needs --server: the local socket does not serve /api/log-error")
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	path := "/api/log-error"
	if room := c.String("room"); room != "" {
		path += "?roomId=" + url.QueryEscape(room)
	}
	resp, err := client.Post(ctx, path, rep)
	if err != nil {
		return err
	}
	var res struct {
		ReportID string `json:"report_id"`
	}
	if err := connection.ParseResponse(resp, &res); err != nil {
		return err
	}
	if !tableOutput(c) {
		return render(c, res)
	}
	printf(c, "Report accepted: %s\n", res.ReportID)
	return nil
}
