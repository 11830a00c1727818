package syncengine

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProtocolVersion is announced in the connect message.
const ProtocolVersion = 1

// Message types.
const (
	TypeConnect    = "connect"
	TypePush       = "push"
	TypePushResult = "push_result"
	TypePatch      = "patch"
	TypePing       = "ping"
	TypePong       = "pong"
	TypeError      = "error"
)

// Push result actions.
const (
	ActionCommit   = "commit"
	ActionRejected = "rejected"
)

// Diff is a set of record changes.
type Diff struct {
	Put    map[string]json.RawMessage `json:"put,omitempty" jsonschema:"description=Records to create or replace, keyed by record id"`
	Remove []string                   `json:"remove,omitempty" jsonschema:"description=Ids of records to remove"`
}

// Empty reports whether d changes nothing.
func (d Diff) Empty() bool {
	return len(d.Put) == 0 && len(d.Remove) == 0
}

// ClientMessage is any message sent by a client.
type ClientMessage struct {
	Type        string `json:"type" jsonschema:"enum=push,enum=ping"`
	ClientClock int64  `json:"clientClock,omitempty"`
	Diff        *Diff  `json:"diff,omitempty"`
}

// ConnectMessage is sent once when a session attaches.
type ConnectMessage struct {
	Type            string            `json:"type"`
	SessionID       string            `json:"sessionId"`
	Clock           int64             `json:"clock"`
	Records         []json.RawMessage `json:"records"`
	ProtocolVersion int               `json:"protocolVersion"`
}

// PushResultMessage answers a push.
type PushResultMessage struct {
	Type        string `json:"type"`
	ClientClock int64  `json:"clientClock"`
	Clock       int64  `json:"clock"`
	Action      string `json:"action" jsonschema:"enum=commit,enum=rejected"`
	Reason      string `json:"reason,omitempty"`
}

// PatchMessage carries changes made by another session.
type PatchMessage struct {
	Type  string `json:"type"`
	Clock int64  `json:"clock"`
	Diff  Diff   `json:"diff"`
}

// ErrorMessage reports a protocol error. The session stays open.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

var pongMessage = []byte(`{"type":"pong"}`)

func encode(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		// All protocol types marshal; a failure here is a programming error.
		panic(fmt.Sprintf("syncengine: encode %T: %v", v, err))
	}
	return b
}

// canonicalRecord validates a record and returns its compact form.
// A record is a JSON object whose "id" is a non-empty string equal to
// wantID when wantID is set.
func canonicalRecord(raw json.RawMessage, wantID string) (json.RawMessage, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, "", fmt.Errorf("record must be a JSON object")
	}
	var head struct {
		ID *string `json:"id"`
	}
	if err := json.Unmarshal(trimmed, &head); err != nil {
		return nil, "", fmt.Errorf("record: %w", err)
	}
	if head.ID == nil || *head.ID == "" {
		return nil, "", fmt.Errorf("record is missing a string id")
	}
	if wantID != "" && *head.ID != wantID {
		return nil, "", fmt.Errorf("record id %q does not match key %q", *head.ID, wantID)
	}

	var buf bytes.Buffer
	if err := json.Compact(&buf, trimmed); err != nil {
		return nil, "", fmt.Errorf("record: %w", err)
	}
	return buf.Bytes(), *head.ID, nil
}
