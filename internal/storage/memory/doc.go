// Package memory provides a volatile storage.Store.
//
// Values live in a sharded concurrent map and are copied on the way in
// and out. Nothing survives a restart; use it for tests and for servers
// that treat rooms as ephemeral.
package memory
