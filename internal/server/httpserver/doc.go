// Package httpserver serves the canvasmesh HTTP API.
//
// Routes:
//
//	GET  /api/connect/{roomId}?sessionId=   WebSocket sync channel
//	POST /api/log-error                     client error report
//	GET  /health, /ready, /metrics
//	     /admin/v1/...                      admin API (allowlisted)
//
// Middleware order on /api routes: RequestID, Recover, Metrics,
// AccessLog, RateLimit.
package httpserver
