package wsconn

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// Defaults for Config fields left zero.
const (
	DefaultBufferSize      = 4096
	DefaultPingInterval    = 30 * time.Second
	DefaultWriteTimeout    = 10 * time.Second
	DefaultMaxMessageBytes = 1 << 20

	// maxCloseReason is the longest close reason a control frame can carry.
	maxCloseReason = 123
)

// ErrClosed is returned by Write after Close.
var ErrClosed = errors.New("wsconn: connection closed")

// Config configures the upgrader and the connections it produces.
type Config struct {
	ReadBufferSize  int
	WriteBufferSize int

	// AllowedOrigins lists accepted Origin hosts. Empty allows only
	// same-host requests; "*" allows any origin.
	AllowedOrigins []string

	PingInterval    time.Duration
	WriteTimeout    time.Duration
	MaxMessageBytes int64
}

func (c *Config) applyDefaults() {
	if c.ReadBufferSize <= 0 {
		c.ReadBufferSize = DefaultBufferSize
	}
	if c.WriteBufferSize <= 0 {
		c.WriteBufferSize = DefaultBufferSize
	}
	if c.PingInterval <= 0 {
		c.PingInterval = DefaultPingInterval
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = DefaultWriteTimeout
	}
	if c.MaxMessageBytes <= 0 {
		c.MaxMessageBytes = DefaultMaxMessageBytes
	}
}

// Upgrader turns HTTP requests into Conns.
type Upgrader struct {
	cfg      Config
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

// NewUpgrader creates an Upgrader.
func NewUpgrader(cfg Config, logger *slog.Logger) *Upgrader {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	u := &Upgrader{cfg: cfg, logger: logger}
	u.upgrader = websocket.Upgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     u.checkOrigin,
	}
	return u
}

func (u *Upgrader) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if len(u.cfg.AllowedOrigins) == 0 {
		return strings.EqualFold(parsed.Host, r.Host)
	}
	for _, allowed := range u.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, parsed.Host) || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	u.logger.Debug("websocket origin rejected", "origin", origin)
	return false
}

// Upgrade completes the handshake. On failure the upgrader has already
// written an HTTP error response.
func (u *Upgrader) Upgrade(w http.ResponseWriter, r *http.Request) (*Conn, error) {
	ws, err := u.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return newConn(ws, u.cfg), nil
}

// Conn is a websocket connection carrying sync protocol frames. Writes
// are serialized; Close may be called from any goroutine.
type Conn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration
	pongWait     time.Duration

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

func newConn(ws *websocket.Conn, cfg Config) *Conn {
	c := &Conn{
		ws:           ws,
		writeTimeout: cfg.WriteTimeout,
		pongWait:     cfg.PingInterval * 2,
		done:         make(chan struct{}),
	}

	ws.SetReadLimit(cfg.MaxMessageBytes)
	_ = ws.SetReadDeadline(time.Now().Add(c.pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.pongWait))
	})

	go c.pingLoop(cfg.PingInterval)
	return c
}

func (c *Conn) pingLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			deadline := time.Now().Add(c.writeTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				_ = c.Close(websocket.CloseGoingAway, "ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// Read returns the next data frame. Any frame counts as activity.
func (c *Conn) Read() ([]byte, error) {
	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		return nil, err
	}
	_ = c.ws.SetReadDeadline(time.Now().Add(c.pongWait))
	return msg, nil
}

// Write sends msg as a text frame.
func (c *Conn) Write(msg []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// Close sends a close frame with code and reason, then closes the
// connection. Only the first call has an effect.
func (c *Conn) Close(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		frame := websocket.FormatCloseMessage(code, truncateReason(reason))
		werr := c.ws.WriteControl(websocket.CloseMessage, frame, time.Now().Add(c.writeTimeout))
		if werr != nil && !errors.Is(werr, websocket.ErrCloseSent) {
			err = fmt.Errorf("write close frame: %w", werr)
		}
		if cerr := c.ws.Close(); cerr != nil && err == nil {
			err = cerr
		}
	})
	return err
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// truncateReason clips reason to fit a close frame without splitting a rune.
func truncateReason(reason string) string {
	if len(reason) <= maxCloseReason {
		return reason
	}
	cut := maxCloseReason
	for cut > 0 && !utf8.RuneStart(reason[cut]) {
		cut--
	}
	return reason[:cut]
}

// IsNormalClose reports whether err is a clean close from the peer.
func IsNormalClose(err error) bool {
	return websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
}
