package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateRoomID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "room-1", false},
		{"unicode", "café-board", false},
		{"uuid", "3f9d1c0e-9a51-4b8e-bb43-1a7f0e6f6c2d", false},
		{"empty", "", true},
		{"too long", strings.Repeat("a", MaxRoomIDLength+1), true},
		{"max length", strings.Repeat("a", MaxRoomIDLength), false},
		{"slash", "a/b", true},
		{"backslash", `a\b`, true},
		{"dot", ".", true},
		{"dotdot", "..", true},
		{"space", "a b", true},
		{"newline", "a\nb", true},
		{"invalid utf8", "room-\xff", true},
		{"multibyte max length", strings.Repeat("é", MaxRoomIDLength/2), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRoomID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateRoomID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidRoomID) {
				t.Errorf("error should be ErrInvalidRoomID, got %v", err)
			}
		})
	}
}

func TestRoomID_SnapshotKey(t *testing.T) {
	id := RoomID("board-42")
	if got := id.SnapshotKey(); got != "rooms/board-42" {
		t.Errorf("SnapshotKey() = %q, want %q", got, "rooms/board-42")
	}

	back, ok := RoomIDFromSnapshotKey(id.SnapshotKey())
	if !ok || back != id {
		t.Errorf("RoomIDFromSnapshotKey() = %q, %v; want %q, true", back, ok, id)
	}

	if _, ok := RoomIDFromSnapshotKey("instance/board-42/roomId"); ok {
		t.Error("keys outside rooms/ should not parse")
	}
}
