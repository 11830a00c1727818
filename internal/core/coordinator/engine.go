package coordinator

import (
	"log/slog"

	"github.com/yndnr/canvasmesh-go/internal/syncengine"
)

// SyncEngine is the live state of a room as seen by the coordinator.
type SyncEngine interface {
	// HandleChannelConnect attaches a session and returns immediately.
	HandleChannelConnect(sessionID string, ch syncengine.Channel)

	// Snapshot serializes the full room state.
	Snapshot() ([]byte, error)

	SessionCount() int
	Close() error
}

// EngineFactory builds an engine for roomID from a stored snapshot, or
// an empty engine when snapshot is nil. onDirty must be called after
// every accepted mutation.
type EngineFactory func(roomID string, snapshot []byte, onDirty func()) (SyncEngine, error)

// NewSyncEngineFactory returns a factory for syncengine rooms.
func NewSyncEngineFactory(sessionBuffer int, logger *slog.Logger) EngineFactory {
	return func(roomID string, snapshot []byte, onDirty func()) (SyncEngine, error) {
		room, err := syncengine.New(syncengine.Options{
			RoomID:        roomID,
			Snapshot:      snapshot,
			OnDirty:       onDirty,
			SessionBuffer: sessionBuffer,
			Logger:        logger,
		})
		if err != nil {
			return nil, err
		}
		return room, nil
	}
}
