package coordinator

import (
	"context"
	"sync"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/syncengine"
)

// UpgradeFunc completes the transport handshake and returns the channel.
type UpgradeFunc func() (syncengine.Channel, error)

// AdmitRequest is one connection attempt.
type AdmitRequest struct {
	SessionID  string
	RemoteAddr string
	UserAgent  string
	Upgrade    UpgradeFunc
}

// Rejection reasons recorded in metrics.
const (
	rejectMissingIdentity  = "missing_identity"
	rejectMissingSessionID = "missing_session_id"
	rejectFailed           = "room_failed"
	rejectUpgrade          = "upgrade_failed"
)

// Admit validates a connection, upgrades it and hands it to the engine.
//
// Validation happens before the upgrade: an unbound coordinator fails
// with ErrMissingIdentity, an empty session id with ErrMissingSessionID,
// and neither upgrades nor allocates anything. On success the channel is
// returned at once; the engine receives it when hydration completes. If
// hydration fails, the channel is closed with a policy violation.
func (c *Coordinator) Admit(ctx context.Context, req AdmitRequest) (*SessionChannel, error) {
	// 1. Validate
	id, ok := c.binder.RoomID()
	if !ok {
		c.metrics.AdmissionsRejected.WithLabelValues(rejectMissingIdentity).Inc()
		return nil, domain.ErrMissingIdentity
	}
	if err := domain.ValidateSessionID(req.SessionID); err != nil {
		c.metrics.AdmissionsRejected.WithLabelValues(rejectMissingSessionID).Inc()
		return nil, err
	}
	if err := c.Failed(); err != nil {
		c.metrics.AdmissionsRejected.WithLabelValues(rejectFailed).Inc()
		return nil, err
	}

	// 2. Start (or join) hydration; never wait for it here.
	h, err := c.startHydration()
	if err != nil {
		c.metrics.AdmissionsRejected.WithLabelValues(rejectFailed).Inc()
		return nil, err
	}

	// 3. Upgrade
	ch, err := req.Upgrade()
	if err != nil {
		c.metrics.AdmissionsRejected.WithLabelValues(rejectUpgrade).Inc()
		return nil, domain.ErrUpgradeFailed.Wrap(err)
	}

	// 4. Track and hand off
	sc := c.track(id, req, ch)
	c.metrics.SessionsAdmitted.Inc()
	c.logger.Debug("session admitted", "room_id", id, "session_id", req.SessionID, "remote_addr", req.RemoteAddr)

	go c.handOff(h, sc)
	return sc, nil
}

func (c *Coordinator) handOff(h *hydration, sc *SessionChannel) {
	<-h.done
	if h.err != nil {
		_ = sc.Close(syncengine.ClosePolicyViolation, h.err.Error())
		return
	}
	h.engine.HandleChannelConnect(sc.session.ID, sc)
}

func (c *Coordinator) track(id domain.RoomID, req AdmitRequest, ch syncengine.Channel) *SessionChannel {
	seq := c.sessionSeq.Add(1)
	sess := &domain.Session{
		ID:          req.SessionID,
		RoomID:      id,
		RemoteAddr:  req.RemoteAddr,
		UserAgent:   req.UserAgent,
		ConnectedAt: time.Now(),
	}
	c.sessions.Set(seq, sess)

	return &SessionChannel{
		Channel: ch,
		session: sess,
		release: func() { c.sessions.Delete(seq) },
	}
}

// SessionChannel is an admitted channel. Closing it deregisters the
// session from its coordinator and nothing else.
type SessionChannel struct {
	syncengine.Channel

	session   *domain.Session
	release   func()
	closeOnce sync.Once
}

// Session returns the admitted session.
func (s *SessionChannel) Session() domain.Session {
	return *s.session
}

// Close closes the underlying channel and deregisters the session.
func (s *SessionChannel) Close(code int, reason string) error {
	var err error
	s.closeOnce.Do(func() {
		err = s.Channel.Close(code, reason)
		s.release()
	})
	return err
}

// Read reads from the underlying channel. A read error means the peer
// is gone, so the session is deregistered.
func (s *SessionChannel) Read() ([]byte, error) {
	msg, err := s.Channel.Read()
	if err != nil {
		s.closeOnce.Do(func() {
			_ = s.Channel.Close(syncengine.CloseNormal, "")
			s.release()
		})
	}
	return msg, err
}
