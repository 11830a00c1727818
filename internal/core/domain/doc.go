// Package domain defines the core domain models for canvasmesh.
//
// Domain models are plain values without IO dependencies:
//
//   - RoomID: room identity and its storage key layout
//   - Session: one connected client of a room
//   - ErrorReport: client diagnostics accepted by the server
//   - Errors: coded domain errors shared by every layer
package domain
