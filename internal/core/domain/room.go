package domain

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Room constraints.
const (
	MaxRoomIDLength = 128

	// SnapshotKeyPrefix prefixes every room snapshot key in the snapshot store.
	SnapshotKeyPrefix = "rooms/"

	// InstanceRoomIDKey is the instance-state key holding a coordinator's bound room id.
	InstanceRoomIDKey = "roomId"
)

// RoomID identifies a collaborative room.
type RoomID string

// String returns the room id as a plain string.
func (id RoomID) String() string {
	return string(id)
}

// SnapshotKey returns the snapshot store key for the room: rooms/{roomId}.
func (id RoomID) SnapshotKey() string {
	return SnapshotKeyPrefix + string(id)
}

// RoomIDFromSnapshotKey reverses SnapshotKey. ok is false for keys outside the rooms/ prefix.
func RoomIDFromSnapshotKey(key string) (RoomID, bool) {
	if !strings.HasPrefix(key, SnapshotKeyPrefix) {
		return "", false
	}
	return RoomID(key[len(SnapshotKeyPrefix):]), true
}

// ValidateRoomID checks that a candidate room id is usable as a storage key.
//
// Room ids come straight from URL paths, so the check rejects anything that
// could escape the rooms/ namespace or break file-backed stores.
func ValidateRoomID(id string) error {
	if id == "" {
		return ErrInvalidRoomID.WithDetails("room id is empty")
	}
	if len(id) > MaxRoomIDLength {
		return ErrInvalidRoomID.WithDetails("room id exceeds 128 characters")
	}
	if !utf8.ValidString(id) {
		return ErrInvalidRoomID.WithDetails("room id is not valid UTF-8")
	}
	if id == "." || id == ".." {
		return ErrInvalidRoomID.WithDetails("room id is a relative path element")
	}
	for _, r := range id {
		switch {
		case r == '/' || r == '\\':
			return ErrInvalidRoomID.WithDetails("room id contains a path separator")
		case unicode.IsControl(r) || unicode.IsSpace(r):
			return ErrInvalidRoomID.WithDetails("room id contains whitespace or control characters")
		}
	}
	return nil
}
