package localserver

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/server/httpserver/handler"
	"github.com/yndnr/canvasmesh-go/internal/telemetry/logger"
)

// socketPath returns a short path; t.TempDir can exceed the sun_path limit.
func socketPath(t *testing.T) string {
	t.Helper()
	dir, err := os.MkdirTemp("", "cmls")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.RemoveAll(dir) })
	return filepath.Join(dir, "s.sock")
}

func unixClient(path string) *http.Client {
	return &http.Client{
		Timeout: 5 * time.Second,
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
				var d net.Dialer
				return d.DialContext(ctx, "unix", path)
			},
		},
	}
}

func startServer(t *testing.T, path string, h http.Handler) *Server {
	t.Helper()
	s := New(path, h, logger.Discard())
	if err := s.Listen(); err != nil {
		t.Fatalf("Listen() error = %v", err)
	}
	go func() { _ = s.Serve() }()
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func TestServer_ServesOverSocket(t *testing.T) {
	path := socketPath(t)
	startServer(t, path, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "pong")
	}))

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if fi.Mode().Perm() != socketMode {
		t.Errorf("socket mode = %v, want %v", fi.Mode().Perm(), os.FileMode(socketMode))
	}

	resp, err := unixClient(path).Get("http://local/health")
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if string(body) != "pong" {
		t.Errorf("body = %q", body)
	}
}

func TestServer_ShutdownRemovesSocket(t *testing.T) {
	path := socketPath(t)
	s := New(path, http.NotFoundHandler(), logger.Discard())
	if err := s.Listen(); err != nil {
		t.Fatal(err)
	}
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()

	deadline := time.Now().Add(2 * time.Second)
	for !s.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	if err := s.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := <-errCh; err != nil {
		t.Errorf("Serve() error = %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("socket file still present: %v", err)
	}
}

func TestServer_RemovesStaleSocket(t *testing.T) {
	path := socketPath(t)

	// A listener closed without unlinking leaves a dead socket file.
	ln, err := net.Listen("unix", path)
	if err != nil {
		t.Fatal(err)
	}
	ln.(*net.UnixListener).SetUnlinkOnClose(false)
	_ = ln.Close()

	startServer(t, path, http.NotFoundHandler())
}

func TestServer_RefusesLiveSocket(t *testing.T) {
	path := socketPath(t)
	startServer(t, path, http.NotFoundHandler())

	s := New(path, http.NotFoundHandler(), logger.Discard())
	err := s.Listen()
	if err == nil || !strings.Contains(err.Error(), "in use") {
		t.Errorf("Listen() error = %v, want in-use error", err)
	}
}

func TestServer_RefusesRegularFile(t *testing.T) {
	path := socketPath(t)
	if err := os.WriteFile(path, []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := New(path, http.NotFoundHandler(), logger.Discard()).Listen(); err == nil {
		t.Error("Listen() should refuse to replace a regular file")
	}
}

func TestHandler_Controls(t *testing.T) {
	shutdown := make(chan struct{}, 1)
	var (
		mu        sync.Mutex
		level     = "info"
		reloadErr error
	)
	set := func(l string, err error) {
		mu.Lock()
		level, reloadErr = l, err
		mu.Unlock()
	}

	admin := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "admin:"+r.URL.Path)
	})
	h := NewHandler(admin, Control{
		Shutdown: func() { shutdown <- struct{}{} },
		Reload: func() (string, error) {
			mu.Lock()
			defer mu.Unlock()
			return level, reloadErr
		},
	}, logger.Discard())

	path := socketPath(t)
	startServer(t, path, h)
	c := unixClient(path)

	post := func(p string) (*http.Response, handler.Response) {
		t.Helper()
		resp, err := c.Post("http://local"+p, "application/json", nil)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()
		var env handler.Response
		_ = json.NewDecoder(resp.Body).Decode(&env)
		return resp, env
	}

	set("debug", nil)
	resp, env := post("/local/v1/reload")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reload status = %d", resp.StatusCode)
	}
	if data, _ := env.Data.(map[string]any); data["log_level"] != "debug" {
		t.Errorf("reload data = %v", env.Data)
	}

	set("debug", errors.New("bad yaml"))
	resp, env = post("/local/v1/reload")
	if resp.StatusCode != http.StatusInternalServerError || env.Code != "CM-SYS-5000" {
		t.Errorf("failed reload: status %d code %s", resp.StatusCode, env.Code)
	}

	resp, _ = post("/local/v1/shutdown")
	if resp.StatusCode != http.StatusAccepted {
		t.Errorf("shutdown status = %d", resp.StatusCode)
	}
	select {
	case <-shutdown:
	case <-time.After(time.Second):
		t.Error("shutdown control not called")
	}

	get, err := c.Get("http://local/admin/v1/rooms")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(get.Body)
	get.Body.Close()
	if string(body) != "admin:/admin/v1/rooms" {
		t.Errorf("admin passthrough body = %q", body)
	}
}

func TestHandler_NilControlsNotRouted(t *testing.T) {
	h := NewHandler(http.NotFoundHandler(), Control{}, nil)
	path := socketPath(t)
	startServer(t, path, h)

	resp, err := unixClient(path).Post("http://local/local/v1/shutdown", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}
