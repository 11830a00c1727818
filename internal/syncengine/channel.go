package syncengine

// Close codes sent to clients, matching RFC 6455.
const (
	CloseNormal          = 1000
	CloseGoingAway       = 1001
	ClosePolicyViolation = 1008
	CloseMessageTooBig   = 1009
	CloseInternalError   = 1011
	CloseTryAgainLater   = 1013
)

// Channel is a duplex message stream to one client.
//
// Read blocks until the next message arrives and returns an error once
// the channel is closed. Write may be called from one goroutine at a
// time. Close is idempotent.
type Channel interface {
	Read() ([]byte, error)
	Write(msg []byte) error
	Close(code int, reason string) error
}
