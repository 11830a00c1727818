// Package localserver serves the admin API on a Unix domain socket.
//
// The socket carries the same routes as the allowlisted admin API on the
// public listener, plus process controls that are only reachable
// locally:
//
//   - POST /local/v1/reload re-reads the configuration file and applies
//     the log level.
//   - POST /local/v1/shutdown starts a graceful shutdown.
//
// Access is controlled by file system permissions; the socket is created
// with mode 0600.
package localserver
