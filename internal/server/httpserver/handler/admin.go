package handler

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/yndnr/canvasmesh-go/internal/core/coordinator"
	"github.com/yndnr/canvasmesh-go/internal/core/domain"
	"github.com/yndnr/canvasmesh-go/internal/infra/buildinfo"
	"github.com/yndnr/canvasmesh-go/internal/storage"
)

// handleStatusSummary handles GET /admin/v1/status/summary.
func (h *Handler) handleStatusSummary(w http.ResponseWriter, r *http.Request) {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	summary := StatusSummary{
		Build:         buildinfo.Get(),
		StartedAt:     h.startedAt.UTC(),
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		Rooms:         h.registry.RoomCount(),
		Sessions:      h.registry.SessionCount(),
		Goroutines:    runtime.NumGoroutine(),
		HeapBytes:     mem.HeapAlloc,
	}
	if h.reporter != nil {
		summary.PendingReports = h.reporter.Pending()
	}
	h.writeJSON(w, r, http.StatusOK, summary)
}

// handleListRooms handles GET /admin/v1/rooms.
func (h *Handler) handleListRooms(w http.ResponseWriter, r *http.Request) {
	rooms := h.registry.Rooms()
	sessions := 0
	for _, st := range rooms {
		sessions += st.Sessions
	}
	h.writeJSON(w, r, http.StatusOK, ListRoomsResponse{
		Rooms:    rooms,
		Total:    len(rooms),
		Sessions: sessions,
	})
}

// handleGetRoom handles GET /admin/v1/rooms/{roomId}.
func (h *Handler) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupRoom(w, r)
	if !ok {
		return
	}

	resp := RoomResponse{Status: c.Status(), SessionList: []SessionResponse{}}
	for _, s := range c.Sessions() {
		resp.SessionList = append(resp.SessionList, SessionResponse{
			ID:          s.ID,
			RemoteAddr:  s.RemoteAddr,
			UserAgent:   s.UserAgent,
			ConnectedAt: s.ConnectedAt,
		})
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// handleFlushRoom handles POST /admin/v1/rooms/{roomId}/flush.
func (h *Handler) handleFlushRoom(w http.ResponseWriter, r *http.Request) {
	c, ok := h.lookupRoom(w, r)
	if !ok {
		return
	}
	if err := c.Flush(r.Context()); err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, FlushResponse{
		Key:         c.Key(),
		Persistence: c.Status().Persistence,
	})
}

// handleRoomSnapshot handles GET /admin/v1/rooms/{roomId}/snapshot.
//
// The stored snapshot is returned as is. Rooms without a live
// coordinator are read straight from storage.
func (h *Handler) handleRoomSnapshot(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("roomId")
	if err := domain.ValidateRoomID(roomID); err != nil {
		h.handleError(w, r, err)
		return
	}

	if c, ok := h.registry.Lookup(roomID); ok {
		if id, bound := c.RoomID(); bound {
			roomID = id.String()
		}
	}
	data, err := h.store.Get(r.Context(), domain.RoomID(roomID).SnapshotKey())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			h.handleError(w, r, domain.ErrRoomNotFound.WithDetails(fmt.Sprintf("no snapshot stored for %q", roomID)))
			return
		}
		h.handleError(w, r, domain.ErrStorage.Wrap(err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Room-Id", roomID)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (h *Handler) lookupRoom(w http.ResponseWriter, r *http.Request) (*coordinator.Coordinator, bool) {
	key := r.PathValue("roomId")
	c, ok := h.registry.Lookup(key)
	if !ok {
		h.handleError(w, r, domain.ErrRoomNotFound.WithDetails(fmt.Sprintf("no live room %q", key)))
		return nil, false
	}
	return c, true
}
