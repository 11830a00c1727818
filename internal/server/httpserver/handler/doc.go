// Package handler provides the HTTP handlers of canvasmesh-server.
//
//   - connect.go: GET /api/connect/{roomId}, the WebSocket entry point
//   - report.go: POST /api/log-error, client diagnostics
//   - admin.go: room inspection, flush and snapshot download
//   - health.go: liveness and readiness
//
// Handlers map domain error codes to HTTP status codes and answer with
// a JSON envelope carrying the code, message and request id.
package handler
