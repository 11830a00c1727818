package command

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/canvasmesh-go/internal/cli/connection"
	"github.com/yndnr/canvasmesh-go/internal/cli/output"
)

// persistenceStatus mirrors the server's scheduler status.
type persistenceStatus struct {
	State     string    `json:"state"`
	Dirty     bool      `json:"dirty"`
	LastRunAt time.Time `json:"last_run_at"`
	LastError string    `json:"last_error,omitempty"`
	Runs      uint64    `json:"runs"`
	Failures  uint64    `json:"failures"`
}

type roomStatus struct {
	Key         string            `json:"key"`
	RoomID      string            `json:"room_id,omitempty"`
	State       string            `json:"state"`
	Sessions    int               `json:"sessions"`
	CreatedAt   time.Time         `json:"created_at"`
	Persistence persistenceStatus `json:"persistence"`
	Error       string            `json:"error,omitempty"`
}

type roomList struct {
	Rooms    []roomStatus `json:"rooms"`
	Total    int          `json:"total"`
	Sessions int          `json:"sessions"`
}

type sessionInfo struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty" table:",wide"`
	ConnectedAt time.Time `json:"connected_at"`
}

type roomDetail struct {
	roomStatus
	SessionList []sessionInfo `json:"session_list"`
}

type flushResult struct {
	Key         string            `json:"key"`
	Persistence persistenceStatus `json:"persistence"`
}

// roomRow is one line of `rooms list`.
type roomRow struct {
	RoomID    string    `table:"ROOM"`
	State     string    `table:"STATE"`
	Sessions  int       `table:"SESSIONS"`
	Persist   string    `table:"PERSISTENCE"`
	Dirty     bool      `table:"DIRTY"`
	LastFlush time.Time `table:"LAST FLUSH"`
	Failures  uint64    `table:"FAILURES,wide"`
	CreatedAt time.Time `table:"CREATED,wide"`
	Error     string    `table:"ERROR,wide"`
}

func toRow(s roomStatus) roomRow {
	id := s.RoomID
	if id == "" {
		id = s.Key
	}
	return roomRow{
		RoomID:    id,
		State:     s.State,
		Sessions:  s.Sessions,
		Persist:   s.Persistence.State,
		Dirty:     s.Persistence.Dirty,
		LastFlush: s.Persistence.LastRunAt,
		Failures:  s.Persistence.Failures,
		CreatedAt: s.CreatedAt,
		Error:     s.Error,
	}
}

// RoomsCommand returns the rooms subcommand group.
func RoomsCommand() *cli.Command {
	return &cli.Command{
		Name:    "rooms",
		Aliases: []string{"room"},
		Usage:   "Inspect live rooms",
		Subcommands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List live rooms",
				Action: roomsList,
			},
			{
				Name:      "get",
				Usage:     "Show a live room and its sessions",
				ArgsUsage: "ROOM_ID",
				Action:    roomsGet,
			},
			{
				Name:      "flush",
				Usage:     "Persist rooms now",
				ArgsUsage: "ROOM_ID...",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "all", Usage: "Flush every live room"},
				},
				Action: roomsFlush,
			},
			{
				Name:      "snapshot",
				Usage:     "Download a room's stored snapshot",
				ArgsUsage: "ROOM_ID",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "out", Aliases: []string{"f"}, Usage: "Write to file instead of stdout"},
				},
				Action: roomsSnapshot,
			},
		},
	}
}

func roomPath(id string, suffix string) string {
	return "/admin/v1/rooms/" + url.PathEscape(id) + suffix
}

func fetchRooms(c *cli.Context, client *connection.HTTPClient) (*roomList, error) {
	ctx, cancel := requestContext(c)
	defer cancel()

	resp, err := client.Get(ctx, "/admin/v1/rooms")
	if err != nil {
		return nil, err
	}
	var list roomList
	if err := connection.ParseResponse(resp, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func roomsList(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	list, err := fetchRooms(c, client)
	if err != nil {
		return err
	}

	if !tableOutput(c) {
		return render(c, list)
	}
	rows := make([]roomRow, 0, len(list.Rooms))
	for _, r := range list.Rooms {
		rows = append(rows, toRow(r))
	}
	if err := render(c, rows); err != nil {
		return err
	}
	printf(c, "\n%d rooms, %d sessions\n", list.Total, list.Sessions)
	return nil
}

func roomsGet(c *cli.Context) error {
	id, err := requireArg(c, "ROOM_ID")
	if err != nil {
		return err
	}
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	resp, err := client.Get(ctx, roomPath(id, ""))
	if err != nil {
		return err
	}
	var room roomDetail
	if err := connection.ParseResponse(resp, &room); err != nil {
		return err
	}

	if !tableOutput(c) {
		return render(c, room)
	}
	if err := render(c, toRow(room.roomStatus)); err != nil {
		return err
	}
	if len(room.SessionList) > 0 {
		printf(c, "\nSessions\n")
		return render(c, room.SessionList)
	}
	return nil
}

func roomsFlush(c *cli.Context) error {
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ids := c.Args().Slice()
	if c.Bool("all") {
		list, err := fetchRooms(c, client)
		if err != nil {
			return err
		}
		ids = ids[:0]
		for _, r := range list.Rooms {
			if r.RoomID != "" {
				ids = append(ids, r.RoomID)
			}
		}
	}
	if len(ids) == 0 {
		if c.Bool("all") {
			printf(c, "No live rooms\n")
			return nil
		}
		return errors.New("ROOM_ID required (or --all)")
	}

	var results []flushResult
	var errs []error
	for _, id := range ids {
		res, err := flushOne(c, client, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", id, err))
			continue
		}
		results = append(results, *res)
	}

	if len(results) > 0 {
		if tableOutput(c) {
			t := &output.Table{Headers: []string{"ROOM", "PERSISTENCE", "RUNS", "LAST ERROR"}}
			for _, r := range results {
				lastErr := r.Persistence.LastError
				if lastErr == "" {
					lastErr = "-"
				}
				t.AddRow(r.Key, r.Persistence.State, fmt.Sprint(r.Persistence.Runs), lastErr)
			}
			if err := render(c, t); err != nil {
				return err
			}
		} else if err := render(c, results); err != nil {
			return err
		}
	}
	return errors.Join(errs...)
}

func flushOne(c *cli.Context, client *connection.HTTPClient, id string) (*flushResult, error) {
	var spin *output.Spinner
	if tableOutput(c) {
		spin = output.NewSpinner(errWriter(c), "flushing "+id)
		spin.Start()
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	resp, err := client.Post(ctx, roomPath(id, "/flush"), nil)
	var res flushResult
	if err == nil {
		err = connection.ParseResponse(resp, &res)
	}

	if spin != nil {
		if err != nil {
			spin.Fail(id)
		} else {
			spin.Stop()
		}
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func roomsSnapshot(c *cli.Context) error {
	id, err := requireArg(c, "ROOM_ID")
	if err != nil {
		return err
	}
	client, err := EnsureConnected(c)
	if err != nil {
		return err
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	resp, err := client.Get(ctx, roomPath(id, "/snapshot"))
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return connection.ParseResponse(resp, nil)
	}
	defer resp.Body.Close()

	out := c.String("out")
	if out == "" {
		return writeSnapshot(c.App.Writer, resp.Body, tableOutput(c))
	}

	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	bar := output.NewProgressBar(errWriter(c), "snapshot "+id, resp.ContentLength)
	_, copyErr := io.Copy(f, io.TeeReader(resp.Body, bar))
	bar.Finish()
	if err := errors.Join(copyErr, f.Close()); err != nil {
		return err
	}
	printf(c, "Saved %s to %s\n", output.FormatBytes(bar.Current()), out)
	return nil
}

// writeSnapshot copies the snapshot to w, indented when pretty.
func writeSnapshot(w io.Writer, r io.Reader, pretty bool) error {
	if !pretty {
		_, err := io.Copy(w, r)
		return err
	}
	var doc json.RawMessage
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}
	return (&output.JSONFormatter{}).Format(w, doc)
}
