// Package wsconn adapts gorilla/websocket connections to the sync channel
// interface: text frames in both directions, serialized writes with a
// deadline, ping/pong keepalive and close frames carrying a code and a
// reason.
package wsconn
