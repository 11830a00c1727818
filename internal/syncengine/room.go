package syncengine

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// DefaultSessionBuffer is the default outbound queue length per session.
const DefaultSessionBuffer = 256

// ErrClosed is returned by operations on a closed room.
var ErrClosed = errors.New("syncengine: room closed")

// Options configures a Room.
type Options struct {
	// RoomID is used for logging only.
	RoomID string

	// Snapshot is the persisted state to start from; nil starts empty.
	Snapshot []byte

	// OnDirty is called after every push that changes state. It must not
	// block and is never called with the room lock held.
	OnDirty func()

	// SessionBuffer is the outbound queue length per session. A session
	// whose queue is full is closed.
	SessionBuffer int

	Logger *slog.Logger
}

// Room is the live, in-memory state of one room plus its sessions.
type Room struct {
	id      string
	roomID  string
	onDirty func()
	buffer  int
	logger  *slog.Logger

	mu       sync.Mutex
	store    *recordStore
	sessions map[string]*session
	closed   bool
}

// New creates a room, hydrating it from opts.Snapshot when set.
func New(opts Options) (*Room, error) {
	store := newRecordStore()
	if opts.Snapshot != nil {
		var err error
		store, err = loadRecordStore(opts.Snapshot)
		if err != nil {
			return nil, err
		}
	}
	if opts.SessionBuffer <= 0 {
		opts.SessionBuffer = DefaultSessionBuffer
	}
	if opts.OnDirty == nil {
		opts.OnDirty = func() {}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	id := uuid.NewString()
	return &Room{
		id:       id,
		roomID:   opts.RoomID,
		onDirty:  opts.OnDirty,
		buffer:   opts.SessionBuffer,
		logger:   opts.Logger.With("room_id", opts.RoomID, "engine_id", id),
		store:    store,
		sessions: make(map[string]*session),
	}, nil
}

// InstanceID identifies this engine instance.
func (r *Room) InstanceID() string {
	return r.id
}

// HandleChannelConnect attaches ch as sessionID and returns immediately.
// The session receives the full state, then live patches. An existing
// session with the same id is closed and replaced.
func (r *Room) HandleChannelConnect(sessionID string, ch Channel) {
	s := &session{
		id:   sessionID,
		ch:   ch,
		out:  make(chan []byte, r.buffer),
		done: make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		_ = ch.Close(CloseGoingAway, "room closed")
		return
	}
	if old, ok := r.sessions[sessionID]; ok {
		r.logger.Info("session replaced", "session_id", sessionID)
		old.close(CloseNormal, "replaced by a newer connection")
	}
	r.sessions[sessionID] = s
	// Enqueued under the lock so no patch can overtake it.
	s.enqueue(encode(ConnectMessage{
		Type:            TypeConnect,
		SessionID:       sessionID,
		Clock:           r.store.clock,
		Records:         r.store.records(),
		ProtocolVersion: ProtocolVersion,
	}))
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Debug("session attached", "session_id", sessionID, "sessions", count)

	go s.writeLoop(r.logger)
	go r.readLoop(s)
}

func (r *Room) readLoop(s *session) {
	defer r.detach(s)

	for {
		data, err := s.ch.Read()
		if err != nil {
			s.close(CloseNormal, "")
			return
		}
		select {
		case <-s.done:
			return
		default:
		}
		r.handleMessage(s, data)
	}
}

func (r *Room) handleMessage(s *session, data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.enqueue(encode(ErrorMessage{Type: TypeError, Message: "malformed message"}))
		return
	}

	switch msg.Type {
	case TypePing:
		s.enqueue(pongMessage)
	case TypePush:
		var diff Diff
		if msg.Diff != nil {
			diff = *msg.Diff
		}
		r.push(s, msg.ClientClock, diff)
	default:
		s.enqueue(encode(ErrorMessage{Type: TypeError, Message: "unknown message type " + msg.Type}))
	}
}

func (r *Room) push(s *session, clientClock int64, diff Diff) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	eff, err := r.store.apply(diff)
	if err != nil {
		clock := r.store.clock
		r.mu.Unlock()
		s.enqueue(encode(PushResultMessage{
			Type:        TypePushResult,
			ClientClock: clientClock,
			Clock:       clock,
			Action:      ActionRejected,
			Reason:      err.Error(),
		}))
		return
	}

	clock := r.store.clock
	s.enqueue(encode(PushResultMessage{
		Type:        TypePushResult,
		ClientClock: clientClock,
		Clock:       clock,
		Action:      ActionCommit,
	}))
	if !eff.Empty() {
		patch := encode(PatchMessage{Type: TypePatch, Clock: clock, Diff: eff})
		for id, other := range r.sessions {
			if id != s.id {
				other.enqueue(patch)
			}
		}
	}
	r.mu.Unlock()

	if !eff.Empty() {
		r.onDirty()
	}
}

// detach removes s unless it has already been replaced.
func (r *Room) detach(s *session) {
	r.mu.Lock()
	if cur, ok := r.sessions[s.id]; ok && cur == s {
		delete(r.sessions, s.id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	r.logger.Debug("session detached", "session_id", s.id, "sessions", count)
}

// Snapshot serializes the full room state.
func (r *Room) Snapshot() ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.snapshot()
}

// Clock returns the current room clock.
func (r *Room) Clock() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.store.clock
}

// RecordCount returns the number of live records.
func (r *Room) RecordCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.store.docs)
}

// SessionCount returns the number of attached sessions.
func (r *Room) SessionCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Close detaches every session with a going-away frame.
func (r *Room) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	sessions := r.sessions
	r.sessions = make(map[string]*session)
	r.mu.Unlock()

	for _, s := range sessions {
		s.close(CloseGoingAway, "room closed")
	}
	return nil
}

type session struct {
	id        string
	ch        Channel
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

// enqueue never blocks. A full queue closes the session.
func (s *session) enqueue(msg []byte) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.out <- msg:
	default:
		s.close(CloseTryAgainLater, "outbound queue full")
	}
}

func (s *session) writeLoop(logger *slog.Logger) {
	for {
		select {
		case msg := <-s.out:
			if err := s.ch.Write(msg); err != nil {
				logger.Debug("session write failed", "session_id", s.id, "error", err)
				s.close(CloseNormal, "")
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *session) close(code int, reason string) {
	s.closeOnce.Do(func() {
		close(s.done)
		_ = s.ch.Close(code, reason)
	})
}
