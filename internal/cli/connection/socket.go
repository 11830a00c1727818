package connection

import (
	"context"
	"net"
	"net/http"
	"time"
)

// socketHost is the placeholder host for requests over the socket.
const socketHost = "http://canvasmesh.sock"

// NewSocketClient creates a client that sends HTTP requests over the
// server's local Unix socket.
func NewSocketClient(path string, timeout time.Duration) *HTTPClient {
	dialer := &net.Dialer{Timeout: 5 * time.Second}
	return &HTTPClient{
		baseURL: socketHost,
		target:  "unix://" + path,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dialer.DialContext(ctx, "unix", path)
				},
				MaxIdleConns:    2,
				IdleConnTimeout: 30 * time.Second,
			},
		},
	}
}
