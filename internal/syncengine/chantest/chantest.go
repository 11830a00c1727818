// Package chantest provides an in-memory syncengine.Channel for tests.
package chantest

import (
	"encoding/json"
	"errors"
	"sync"
	"time"
)

// ErrClosed is returned by Read and Write after Close.
var ErrClosed = errors.New("chantest: channel closed")

// Channel is an in-memory channel. Send feeds Read; Write appends to the
// sent log, which tests inspect with Next or Messages.
type Channel struct {
	in   chan []byte
	out  chan []byte
	done chan struct{}

	mu          sync.Mutex
	closed      bool
	closeCode   int
	closeReason string
	written     [][]byte
}

// New returns an open channel.
func New() *Channel {
	return &Channel{
		in:   make(chan []byte, 64),
		out:  make(chan []byte, 1024),
		done: make(chan struct{}),
	}
}

// Read returns the next message passed to Send.
func (c *Channel) Read() ([]byte, error) {
	select {
	case msg := <-c.in:
		return msg, nil
	case <-c.done:
		return nil, ErrClosed
	}
}

// Write records msg.
func (c *Channel) Write(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	cp := append([]byte(nil), msg...)
	c.written = append(c.written, cp)
	select {
	case c.out <- cp:
	default:
	}
	return nil
}

// Close records the close frame.
func (c *Channel) Close(code int, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	c.closeCode = code
	c.closeReason = reason
	close(c.done)
	return nil
}

// Send queues a client message for Read.
func (c *Channel) Send(v any) {
	var msg []byte
	switch m := v.(type) {
	case []byte:
		msg = m
	case string:
		msg = []byte(m)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			panic(err)
		}
		msg = b
	}
	select {
	case c.in <- msg:
	case <-c.done:
	}
}

// Next waits up to timeout for the next written message and decodes it
// into a generic map. It returns nil on timeout.
func (c *Channel) Next(timeout time.Duration) map[string]any {
	select {
	case msg := <-c.out:
		var m map[string]any
		if err := json.Unmarshal(msg, &m); err != nil {
			return map[string]any{"raw": string(msg)}
		}
		return m
	case <-time.After(timeout):
		return nil
	}
}

// NextOfType skips messages until one of the given type arrives.
func (c *Channel) NextOfType(typ string, timeout time.Duration) map[string]any {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil
		}
		m := c.Next(remaining)
		if m == nil {
			return nil
		}
		if m["type"] == typ {
			return m
		}
	}
}

// Messages returns a copy of everything written so far.
func (c *Channel) Messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.written))
	copy(out, c.written)
	return out
}

// Closed reports whether Close was called, with its code and reason.
func (c *Channel) Closed() (bool, int, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed, c.closeCode, c.closeReason
}

// WaitClosed waits up to timeout for Close.
func (c *Channel) WaitClosed(timeout time.Duration) bool {
	select {
	case <-c.done:
		return true
	case <-time.After(timeout):
		return false
	}
}

// Done is closed when the channel is closed.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}
