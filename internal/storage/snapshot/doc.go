// Package snapshot provides a file-backed storage.Store.
//
// Each key maps to a directory holding its most recent generations:
//
//   {dir}/{hex sha256 of key}/{ulid}.snap
//   [magic:8 "CMSNAP01"]
//   [HeaderLen:4][HeaderJSON:HeaderLen]
//   [DataLen:4][Data:DataLen]
//   [checksum:32 SHA-256 of all bytes above]
//
// A generation is written to a temp file, synced and renamed into place,
// so readers never observe a partial write. Get returns the newest
// generation whose checksum verifies and falls back to older ones.
package snapshot
