// Package main provides the entry point for canvasmesh-server.
//
// The server hosts collaborative canvas rooms. It provides:
//
//   - GET /api/connect/{roomId} to join a room over WebSocket
//   - POST /api/log-error for client error reports
//   - The admin API on the local Unix socket, and on the HTTP listener
//     for allowlisted addresses
//   - Prometheus metrics on /metrics
//
// Usage:
//
//	canvasmesh-server [flags]
//	canvasmesh-server -config /etc/canvasmesh/server.yaml
//
// Configuration is read from the file, then CANVASMESH_* environment
// variables, then flags. Edits to the file's log.level apply without a
// restart.
package main
