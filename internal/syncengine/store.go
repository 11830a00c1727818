package syncengine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// SchemaVersion is the version of the persisted snapshot layout.
const SchemaVersion = 1

// MaxTombstones bounds the tombstone set. When exceeded, the oldest
// tombstones are dropped.
const MaxTombstones = 3000

// Snapshot is the persisted form of a room.
type Snapshot struct {
	Clock      int64              `json:"clock" jsonschema:"description=Room clock at the time of the snapshot"`
	Documents  []DocumentSnapshot `json:"documents"`
	Tombstones map[string]int64   `json:"tombstones" jsonschema:"description=Removed record ids and the clock of their removal"`
	Schema     SchemaInfo         `json:"schema"`
}

// DocumentSnapshot is one record with its last change clock.
type DocumentSnapshot struct {
	State            json.RawMessage `json:"state" jsonschema:"description=Record body; a JSON object with a string id"`
	LastChangedClock int64           `json:"lastChangedClock"`
}

// SchemaInfo identifies the snapshot layout.
type SchemaInfo struct {
	Version int `json:"version"`
}

type document struct {
	state            json.RawMessage
	lastChangedClock int64
}

// recordStore is the last-writer-wins state of a room. Not safe for
// concurrent use; Room serializes access.
type recordStore struct {
	clock      int64
	docs       map[string]*document
	tombstones map[string]int64
}

func newRecordStore() *recordStore {
	return &recordStore{
		docs:       make(map[string]*document),
		tombstones: make(map[string]int64),
	}
}

// loadRecordStore rebuilds a store from snapshot bytes.
func loadRecordStore(data []byte) (*recordStore, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Schema.Version > SchemaVersion {
		return nil, fmt.Errorf("snapshot schema version %d is newer than supported %d", snap.Schema.Version, SchemaVersion)
	}
	if snap.Clock < 0 {
		return nil, fmt.Errorf("snapshot clock %d is negative", snap.Clock)
	}

	s := newRecordStore()
	s.clock = snap.Clock
	for i, d := range snap.Documents {
		state, id, err := canonicalRecord(d.State, "")
		if err != nil {
			return nil, fmt.Errorf("snapshot document %d: %w", i, err)
		}
		if d.LastChangedClock > s.clock {
			s.clock = d.LastChangedClock
		}
		s.docs[id] = &document{state: state, lastChangedClock: d.LastChangedClock}
	}
	for id, c := range snap.Tombstones {
		if _, live := s.docs[id]; live {
			continue
		}
		s.tombstones[id] = c
	}
	return s, nil
}

// apply validates d and applies the changes it actually makes.
// It returns the effective diff; an empty result leaves the clock alone.
func (s *recordStore) apply(d Diff) (Diff, error) {
	puts := make(map[string]json.RawMessage, len(d.Put))
	for id, raw := range d.Put {
		state, _, err := canonicalRecord(raw, id)
		if err != nil {
			return Diff{}, err
		}
		if cur, ok := s.docs[id]; ok && bytes.Equal(cur.state, state) {
			continue
		}
		puts[id] = state
	}

	var removes []string
	seen := make(map[string]bool, len(d.Remove))
	for _, id := range d.Remove {
		if id == "" {
			return Diff{}, fmt.Errorf("remove: empty record id")
		}
		if _, put := d.Put[id]; put {
			return Diff{}, fmt.Errorf("record %q is both put and removed", id)
		}
		if _, ok := s.docs[id]; ok && !seen[id] {
			removes = append(removes, id)
			seen[id] = true
		}
	}

	eff := Diff{Remove: removes}
	if len(puts) > 0 {
		eff.Put = puts
	}
	if eff.Empty() {
		return eff, nil
	}

	s.clock++
	for id, state := range puts {
		s.docs[id] = &document{state: state, lastChangedClock: s.clock}
		delete(s.tombstones, id)
	}
	for _, id := range removes {
		delete(s.docs, id)
		s.tombstones[id] = s.clock
	}
	s.pruneTombstones()
	return eff, nil
}

func (s *recordStore) pruneTombstones() {
	excess := len(s.tombstones) - MaxTombstones
	if excess <= 0 {
		return
	}
	type entry struct {
		id    string
		clock int64
	}
	entries := make([]entry, 0, len(s.tombstones))
	for id, c := range s.tombstones {
		entries = append(entries, entry{id, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].clock != entries[j].clock {
			return entries[i].clock < entries[j].clock
		}
		return entries[i].id < entries[j].id
	})
	for _, e := range entries[:excess] {
		delete(s.tombstones, e.id)
	}
}

// records returns all live records ordered by id.
func (s *recordStore) records() []json.RawMessage {
	ids := s.ids()
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.docs[id].state)
	}
	return out
}

func (s *recordStore) ids() []string {
	ids := make([]string, 0, len(s.docs))
	for id := range s.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// snapshot serializes the full state.
func (s *recordStore) snapshot() ([]byte, error) {
	snap := Snapshot{
		Clock:      s.clock,
		Documents:  make([]DocumentSnapshot, 0, len(s.docs)),
		Tombstones: make(map[string]int64, len(s.tombstones)),
		Schema:     SchemaInfo{Version: SchemaVersion},
	}
	for _, id := range s.ids() {
		d := s.docs[id]
		snap.Documents = append(snap.Documents, DocumentSnapshot{
			State:            d.state,
			LastChangedClock: d.lastChangedClock,
		})
	}
	for id, c := range s.tombstones {
		snap.Tombstones[id] = c
	}
	return json.Marshal(snap)
}
