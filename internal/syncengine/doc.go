// Package syncengine implements the live state of one canvas room.
//
// A Room holds the room's records in a last-writer-wins store with a
// logical clock and tombstones for removed records. Clients attach over
// a Channel and speak a small JSON protocol:
//
//	client -> server  {"type":"push","clientClock":n,"diff":{"put":{...},"remove":[...]}}
//	                  {"type":"ping"}
//	server -> client  {"type":"connect",...}      full state on attach
//	                  {"type":"push_result",...}  commit or rejected
//	                  {"type":"patch",...}        changes made by other sessions
//	                  {"type":"pong"}
//
// Every accepted push that changes state advances the clock and invokes
// the room's dirty callback. Snapshot and Load convert the full state to
// and from its persisted JSON form.
package syncengine
