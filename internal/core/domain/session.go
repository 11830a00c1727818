package domain

import "time"

// MaxSessionIDLength bounds client supplied session ids.
const MaxSessionIDLength = 256

// Session represents one connected client of a room.
//
// A session lives exactly as long as its channel. Closing it never touches
// the room snapshot or the room identity.
type Session struct {
	// ID is the client supplied session id (the sessionId query parameter).
	ID string `json:"id"`

	// RoomID is the room the session was admitted into.
	RoomID RoomID `json:"room_id"`

	// RemoteAddr is the client address as seen by the server.
	RemoteAddr string `json:"remote_addr,omitempty"`

	// UserAgent is the client user agent at connect time.
	UserAgent string `json:"user_agent,omitempty"`

	// ConnectedAt is the admission timestamp.
	ConnectedAt time.Time `json:"connected_at"`
}

// ValidateSessionID checks a client supplied session id.
func ValidateSessionID(id string) error {
	if id == "" {
		return ErrMissingSessionID
	}
	if len(id) > MaxSessionIDLength {
		return ErrBadRequest.WithDetails("sessionId exceeds 256 characters")
	}
	return nil
}
