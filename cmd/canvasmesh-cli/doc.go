// Package main provides the entry point for canvasmesh-cli.
//
// The CLI talks to a running canvasmesh-server for:
//
//   - Inspecting live rooms and their sessions
//   - Forcing a flush or downloading a stored snapshot
//   - Status and probes, config reload and shutdown over the local socket
//   - Sending a test error report
//   - Printing JSON Schemas of the wire and configuration formats
//
// Usage:
//
//	canvasmesh-cli [global flags] command [flags] [args]
//	canvasmesh-cli rooms list
//	canvasmesh-cli --server http://localhost:5080 -o json rooms get ROOM_ID
//	canvasmesh-cli shell
//
// By default the CLI connects to the server's local socket.
package main
