// Package storage provides durable storage for canvasmesh rooms.
//
// Every backend implements Store, a flat key-value blob store:
//
//   - BadgerStore: embedded LSM store (default), with periodic value log GC
//   - redis.Store: shared store for several server processes
//   - snapshot.FileStore: one checksummed file per key, atomic replace
//   - memory.Store: volatile store for tests and ephemeral rooms
//
// EncryptedStore wraps any backend with authenticated encryption at rest.
// The backend package selects and assembles a Store from configuration.
package storage
