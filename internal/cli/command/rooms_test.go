package command

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRoomsList_Table(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /admin/v1/rooms", func(w http.ResponseWriter, r *http.Request) {
		okResponse(w, sampleRooms())
	})

	res := run(t, "", []string{"--server", srv.URL}, "rooms", "list")
	if res.err != nil {
		t.Fatalf("rooms list error = %v", res.err)
	}
	for _, want := range []string{"ROOM", "STATE", "room-a", "warm_clean", "hydrating", "2 rooms, 2 sessions"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("output missing %q:\n%s", want, res.stdout)
		}
	}
	if strings.Contains(res.stdout, "FAILURES") {
		t.Error("wide column shown without --wide")
	}
}

func TestRoomsList_WideAndJSON(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /admin/v1/rooms", func(w http.ResponseWriter, r *http.Request) {
		okResponse(w, sampleRooms())
	})

	res := run(t, "", []string{"--server", srv.URL, "--wide"}, "rooms", "list")
	if res.err != nil {
		t.Fatal(res.err)
	}
	if !strings.Contains(res.stdout, "FAILURES") {
		t.Errorf("wide output missing FAILURES:\n%s", res.stdout)
	}

	res = run(t, "", []string{"--server", srv.URL, "-o", "json"}, "rooms", "list")
	if res.err != nil {
		t.Fatal(res.err)
	}
	var list roomList
	if err := json.Unmarshal([]byte(res.stdout), &list); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, res.stdout)
	}
	if list.Total != 2 || list.Rooms[0].RoomID != "room-a" || list.Rooms[0].Persistence.Runs != 4 {
		t.Errorf("list = %+v", list)
	}
}

func TestRoomsGet(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /admin/v1/rooms/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "room a" {
			errorResponse(w, http.StatusNotFound, "CM-ROOM-4040", "room not live")
			return
		}
		okResponse(w, map[string]any{
			"key": "room a", "room_id": "room a", "state": "warm_dirty", "sessions": 1,
			"persistence": map[string]any{"state": "scheduled", "dirty": true},
			"session_list": []map[string]any{
				{"id": "sess-1", "remote_addr": "10.0.0.7:5123", "connected_at": "2026-10-18T09:00:00Z"},
			},
		})
	})

	res := run(t, "", []string{"--server", srv.URL}, "rooms", "get", "room a")
	if res.err != nil {
		t.Fatalf("rooms get error = %v", res.err)
	}
	for _, want := range []string{"room a", "warm_dirty", "Sessions", "sess-1", "10.0.0.7:5123"} {
		if !strings.Contains(res.stdout, want) {
			t.Errorf("output missing %q:\n%s", want, res.stdout)
		}
	}
	if got := srv.seen(); len(got) != 1 || got[0] != "GET /admin/v1/rooms/room%20a" {
		t.Errorf("requests = %v", got)
	}

	res = run(t, "", []string{"--server", srv.URL}, "rooms", "get", "ghost")
	if res.err == nil || !strings.Contains(res.err.Error(), "CM-ROOM-4040") {
		t.Errorf("rooms get ghost error = %v", res.err)
	}

	res = run(t, "", []string{"--server", srv.URL}, "rooms", "get")
	if res.err == nil || !strings.Contains(res.err.Error(), "ROOM_ID required") {
		t.Errorf("rooms get without id error = %v", res.err)
	}
}

func TestRoomsFlush(t *testing.T) {
	srv := newMockServer(t)
	srv.handle("GET /admin/v1/rooms", func(w http.ResponseWriter, r *http.Request) {
		okResponse(w, sampleRooms())
	})
	srv.handle("POST /admin/v1/rooms/{id}/flush", func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if id == "ghost" {
			errorResponse(w, http.StatusNotFound, "CM-ROOM-4040", "room not live")
			return
		}
		okResponse(w, map[string]any{
			"key":         id,
			"persistence": map[string]any{"state": "idle", "runs": 5},
		})
	})

	t.Run("explicit ids", func(t *testing.T) {
		res := run(t, "", []string{"--server", srv.URL}, "rooms", "flush", "room-a", "ghost")
		if res.err == nil || !strings.Contains(res.err.Error(), "ghost: [CM-ROOM-4040]") {
			t.Errorf("error = %v", res.err)
		}
		if !strings.Contains(res.stdout, "room-a") || !strings.Contains(res.stdout, "5") {
			t.Errorf("output:\n%s", res.stdout)
		}
		if !strings.Contains(res.stderr, "FAIL ghost") {
			t.Errorf("stderr:\n%s", res.stderr)
		}
	})

	t.Run("all", func(t *testing.T) {
		res := run(t, "", []string{"--server", srv.URL, "-o", "json"}, "rooms", "flush", "--all")
		if res.err != nil {
			t.Fatal(res.err)
		}
		var results []flushResult
		if err := json.Unmarshal([]byte(res.stdout), &results); err != nil {
			t.Fatalf("output is not JSON: %v\n%s", err, res.stdout)
		}
		if len(results) != 2 || results[0].Key != "room-a" || results[1].Key != "room-b" {
			t.Errorf("results = %+v", results)
		}
	})

	t.Run("no ids", func(t *testing.T) {
		res := run(t, "", []string{"--server", srv.URL}, "rooms", "flush")
		if res.err == nil {
			t.Error("flush without ids should fail")
		}
	})
}

func TestRoomsSnapshot(t *testing.T) {
	const doc = `{"roomId":"room-a","clock":7,"records":[]}`
	srv := newMockServer(t)
	srv.handle("GET /admin/v1/rooms/{id}/snapshot", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") != "room-a" {
			errorResponse(w, http.StatusNotFound, "CM-STOR-4040", "snapshot not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(doc))
	})

	res := run(t, "", []string{"--server", srv.URL}, "rooms", "snapshot", "room-a")
	if res.err != nil {
		t.Fatal(res.err)
	}
	if !strings.Contains(res.stdout, "\n  \"clock\": 7") {
		t.Errorf("snapshot not indented:\n%s", res.stdout)
	}

	res = run(t, "", []string{"--server", srv.URL, "-o", "json"}, "rooms", "snapshot", "room-a")
	if res.err != nil {
		t.Fatal(res.err)
	}
	if res.stdout != doc {
		t.Errorf("raw snapshot = %q", res.stdout)
	}

	out := filepath.Join(t.TempDir(), "room-a.json")
	res = run(t, "", []string{"--server", srv.URL}, "rooms", "snapshot", "--out", out, "room-a")
	if res.err != nil {
		t.Fatal(res.err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != doc {
		t.Errorf("file = %q", data)
	}
	if !strings.Contains(res.stdout, "Saved") {
		t.Errorf("output:\n%s", res.stdout)
	}

	res = run(t, "", []string{"--server", srv.URL}, "rooms", "snapshot", "missing")
	if res.err == nil || !strings.Contains(res.err.Error(), "CM-STOR-4040") {
		t.Errorf("missing snapshot error = %v", res.err)
	}
}
