package syncengine

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
)

func rec(id string, extra string) json.RawMessage {
	if extra == "" {
		return json.RawMessage(fmt.Sprintf(`{"id":%q}`, id))
	}
	return json.RawMessage(fmt.Sprintf(`{"id":%q,%s}`, id, extra))
}

func TestRecordStore_Apply(t *testing.T) {
	s := newRecordStore()

	eff, err := s.apply(Diff{Put: map[string]json.RawMessage{
		"shape:1": rec("shape:1", `"x": 1`),
		"shape:2": rec("shape:2", `"x": 2`),
	}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(eff.Put) != 2 || s.clock != 1 {
		t.Fatalf("eff=%v clock=%d, want 2 puts at clock 1", eff, s.clock)
	}

	// Same content again changes nothing.
	eff, err = s.apply(Diff{Put: map[string]json.RawMessage{"shape:1": rec("shape:1", `"x":1`)}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if !eff.Empty() || s.clock != 1 {
		t.Fatalf("no-op put: eff=%v clock=%d", eff, s.clock)
	}

	eff, err = s.apply(Diff{Remove: []string{"shape:2", "shape:2", "missing"}})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(eff.Remove) != 1 || eff.Remove[0] != "shape:2" {
		t.Fatalf("remove eff = %v", eff.Remove)
	}
	if s.clock != 2 || s.tombstones["shape:2"] != 2 {
		t.Fatalf("clock=%d tombstones=%v", s.clock, s.tombstones)
	}

	// Re-creating a removed record clears its tombstone.
	if _, err := s.apply(Diff{Put: map[string]json.RawMessage{"shape:2": rec("shape:2", "")}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, ok := s.tombstones["shape:2"]; ok {
		t.Fatal("tombstone should be cleared on re-create")
	}
}

func TestRecordStore_ApplyRejects(t *testing.T) {
	tests := []struct {
		name string
		diff Diff
	}{
		{"not an object", Diff{Put: map[string]json.RawMessage{"a": json.RawMessage(`[1]`)}}},
		{"missing id", Diff{Put: map[string]json.RawMessage{"a": json.RawMessage(`{"x":1}`)}}},
		{"numeric id", Diff{Put: map[string]json.RawMessage{"a": json.RawMessage(`{"id":1}`)}}},
		{"id mismatch", Diff{Put: map[string]json.RawMessage{"a": rec("b", "")}}},
		{"empty remove", Diff{Remove: []string{""}}},
		{"put and remove", Diff{Put: map[string]json.RawMessage{"a": rec("a", "")}, Remove: []string{"a"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newRecordStore()
			if _, err := s.apply(tt.diff); err == nil {
				t.Fatal("expected error")
			}
			if s.clock != 0 || len(s.docs) != 0 {
				t.Fatal("rejected diff must not change state")
			}
		})
	}
}

func TestRecordStore_SnapshotRoundTrip(t *testing.T) {
	s := newRecordStore()
	_, _ = s.apply(Diff{Put: map[string]json.RawMessage{
		"b": rec("b", `"v":"two"`),
		"a": rec("a", `"v":"one"`),
		"c": rec("c", ""),
	}})
	_, _ = s.apply(Diff{Remove: []string{"c"}})

	data, err := s.snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if snap.Schema.Version != SchemaVersion || snap.Clock != 2 {
		t.Fatalf("snapshot header = %+v", snap)
	}
	if len(snap.Documents) != 2 || !strings.Contains(string(snap.Documents[0].State), `"id":"a"`) {
		t.Fatalf("documents not ordered by id: %s", data)
	}
	if snap.Tombstones["c"] != 2 {
		t.Fatalf("tombstones = %v", snap.Tombstones)
	}

	loaded, err := loadRecordStore(data)
	if err != nil {
		t.Fatalf("loadRecordStore: %v", err)
	}
	again, _ := loaded.snapshot()
	if string(again) != string(data) {
		t.Fatalf("round trip differs:\n got %s\nwant %s", again, data)
	}
}

func TestLoadRecordStore_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{{`},
		{"future schema", `{"clock":1,"documents":[],"schema":{"version":99}}`},
		{"negative clock", `{"clock":-1,"documents":[],"schema":{"version":1}}`},
		{"document without id", `{"clock":1,"documents":[{"state":{"x":1},"lastChangedClock":1}],"schema":{"version":1}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := loadRecordStore([]byte(tt.data)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRecordStore_PruneTombstones(t *testing.T) {
	s := newRecordStore()
	for i := 0; i < MaxTombstones+10; i++ {
		id := fmt.Sprintf("r%05d", i)
		_, _ = s.apply(Diff{Put: map[string]json.RawMessage{id: rec(id, "")}})
		_, _ = s.apply(Diff{Remove: []string{id}})
	}
	if len(s.tombstones) != MaxTombstones {
		t.Fatalf("len(tombstones) = %d, want %d", len(s.tombstones), MaxTombstones)
	}
	if _, ok := s.tombstones["r00000"]; ok {
		t.Fatal("oldest tombstone should be pruned first")
	}
}
