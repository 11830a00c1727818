// Package connection talks to canvasmesh-server for canvasmesh-cli.
//
// Requests go over HTTP, either to a server URL or through the local
// Unix socket. Responses use the server's envelope; ParseResponse
// unwraps data on success and returns an *APIError otherwise.
package connection
