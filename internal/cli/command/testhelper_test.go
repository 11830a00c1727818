package command

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/urfave/cli/v2"
)

// mockServer is a test server with canned admin API responses.
type mockServer struct {
	*httptest.Server
	mux *http.ServeMux

	mu       sync.Mutex
	requests []string
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	m := &mockServer{mux: http.NewServeMux()}
	m.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		m.requests = append(m.requests, r.Method+" "+r.URL.RequestURI())
		m.mu.Unlock()
		m.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(m.Close)
	return m
}

func (m *mockServer) handle(pattern string, h http.HandlerFunc) {
	m.mux.HandleFunc(pattern, h)
}

func (m *mockServer) seen() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.requests...)
}

// okResponse writes a success envelope.
func okResponse(w http.ResponseWriter, data any) {
	jsonResponse(w, http.StatusOK, map[string]any{
		"code":       "OK",
		"message":    "Success",
		"request_id": "req-test",
		"timestamp":  time.Now().UnixMilli(),
		"data":       data,
	})
}

// errorResponse writes an error envelope.
func errorResponse(w http.ResponseWriter, status int, code, message string) {
	jsonResponse(w, status, map[string]any{
		"code":       code,
		"message":    message,
		"request_id": "req-test",
	})
}

func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// result is the outcome of one CLI run.
type result struct {
	stdout string
	stderr string
	err    error
}

// run executes the CLI with an isolated config file. Global flags go
// before args.
func run(t *testing.T, stdin string, globals []string, args ...string) result {
	t.Helper()
	for _, k := range []string{"CANVASMESH_SERVER", "CANVASMESH_SOCKET", "CANVASMESH_OUTPUT", "CANVASMESH_PROFILE", "CANVASMESH_TIMEOUT"} {
		t.Setenv(k, "")
	}

	var stdout, stderr bytes.Buffer
	app := App()
	app.Writer = &stdout
	app.ErrWriter = &stderr
	app.Reader = strings.NewReader(stdin)
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := []string{"canvasmesh-cli"}
	if !hasFlag(globals, "--config") {
		argv = append(argv, "--config", filepath.Join(t.TempDir(), "cli.yaml"))
	}
	argv = append(argv, globals...)
	argv = append(argv, args...)

	err := app.Run(argv)
	return result{stdout: stdout.String(), stderr: stderr.String(), err: err}
}

func hasFlag(args []string, name string) bool {
	for _, a := range args {
		if a == name {
			return true
		}
	}
	return false
}

func sampleRooms() map[string]any {
	return map[string]any{
		"rooms": []map[string]any{
			{
				"key": "room-a", "room_id": "room-a", "state": "warm_clean", "sessions": 2,
				"created_at": "2026-10-18T09:00:00Z",
				"persistence": map[string]any{"state": "idle", "dirty": false, "last_run_at": "2026-10-18T09:05:00Z", "runs": 4},
			},
			{
				"key": "room-b", "room_id": "room-b", "state": "hydrating", "sessions": 0,
				"created_at": "2026-10-18T09:10:00Z",
				"persistence": map[string]any{"state": "idle"},
			},
		},
		"total":    2,
		"sessions": 2,
	}
}
