package handler

import (
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/yndnr/canvasmesh-go/internal/core/coordinator"
	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/syncengine"
)

// handleConnect handles GET /api/connect/{roomId}?sessionId={id}.
//
// The first request for a room binds its identity; the request is then
// validated and upgraded. Once upgraded, the session outlives the
// request and the engine owns the connection.
func (h *Handler) handleConnect(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	if err := domain.ValidateRoomID(roomID); err != nil {
		h.handleError(w, r, err)
		return
	}

	req := coordinator.AdmitRequest{
		SessionID:  r.URL.Query().Get("sessionId"),
		RemoteAddr: getClientIP(r),
		UserAgent:  r.UserAgent(),
		Upgrade: func() (syncengine.Channel, error) {
			conn, err := h.upgrader.Upgrade(w, r)
			if err != nil {
				return nil, err
			}
			return conn, nil
		},
	}

	sc, err := h.registry.Connect(r.Context(), roomID, req)
	if err != nil {
		// The upgrader already wrote the HTTP error.
		if errors.Is(err, domain.ErrUpgradeFailed) {
			h.logger.DebugContext(r.Context(), "upgrade failed", "room_id", roomID, "error", err)
			return
		}
		h.handleError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "channel opened",
		"room_id", sc.Session().RoomID,
		"session_id", sc.Session().ID,
	)
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
