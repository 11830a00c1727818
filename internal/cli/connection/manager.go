package connection

import (
	"fmt"
	"sort"
	"time"
)

// Target is a server reachable by URL or local socket.
type Target struct {
	Name   string `json:"name,omitempty"`
	Server string `json:"server,omitempty"`
	Socket string `json:"socket,omitempty"`
}

// String returns the address the target resolves to.
func (t Target) String() string {
	if t.Server != "" {
		return t.Server
	}
	return "unix://" + t.Socket
}

// Manager holds the current target and the saved profiles. The shell
// switches between profiles with Use.
type Manager struct {
	current  Target
	profiles map[string]Target
	timeout  time.Duration
}

// NewManager creates a manager starting at current.
func NewManager(current Target, profiles map[string]Target, timeout time.Duration) *Manager {
	if profiles == nil {
		profiles = make(map[string]Target)
	}
	return &Manager{current: current, profiles: profiles, timeout: timeout}
}

// Use switches to a saved profile.
func (m *Manager) Use(name string) error {
	t, ok := m.profiles[name]
	if !ok {
		return fmt.Errorf("unknown profile %q", name)
	}
	t.Name = name
	m.current = t
	return nil
}

// Set switches to an ad hoc target.
func (m *Manager) Set(t Target) {
	m.current = t
}

// Current returns the current target.
func (m *Manager) Current() Target {
	return m.current
}

// Profiles lists the saved profiles sorted by name.
func (m *Manager) Profiles() []Target {
	out := make([]Target, 0, len(m.profiles))
	for name, t := range m.profiles {
		t.Name = name
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Client returns a client for the current target.
func (m *Manager) Client() *HTTPClient {
	if m.current.Server != "" {
		return NewHTTPClient(m.current.Server, m.timeout)
	}
	return NewSocketClient(m.current.Socket, m.timeout)
}
