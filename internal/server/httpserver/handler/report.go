package handler

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/yndnr/canvasmesh-go/internal/core/domain"
)

// handleLogError handles POST /api/log-error[?roomId={id}].
//
// A body that is not JSON is answered with 500; anything else is
// accepted, whether or not the report can be delivered.
func (h *Handler) handleLogError(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxReportBytes))
	if err != nil {
		h.handleError(w, r, domain.ErrMalformedReport.Wrap(err))
		return
	}

	var rep domain.ErrorReport
	if err := json.Unmarshal(body, &rep); err != nil {
		h.handleError(w, r, domain.ErrMalformedReport.Wrap(err))
		return
	}

	roomID := h.resolveRoom(r.URL.Query().Get("roomId"))
	id := h.reporter.Report(r.Context(), roomID, getClientIP(r), rep)
	h.writeJSON(w, r, http.StatusOK, LogErrorResponse{ReportID: id})
}

// resolveRoom returns the bound identity of the live room registered
// under requested. For rooms with no live coordinator the requested id
// is kept when it is a valid room id.
func (h *Handler) resolveRoom(requested string) string {
	if requested == "" {
		return ""
	}
	if c, ok := h.registry.Lookup(requested); ok {
		if id, ok := c.RoomID(); ok {
			return id.String()
		}
	}
	if domain.ValidateRoomID(requested) != nil {
		return ""
	}
	return requested
}
