package handler

import (
	"time"

	"github.com/yndnr/canvasmesh-go/internal/core/coordinator"
	"github.com/yndnr/canvasmesh-go/internal/infra/buildinfo"
)

// Response is the API response envelope. /metrics, the snapshot
// download and WebSocket upgrades do not use it.
type Response struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp int64  `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// NewResponse creates a success response.
func NewResponse(requestID string, data any) *Response {
	return &Response{
		Code:      "OK",
		Message:   "Success",
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Data:      data,
	}
}

// NewErrorResponse creates an error response.
func NewErrorResponse(requestID, code, message string, details any) *Response {
	return &Response{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		Timestamp: time.Now().UnixMilli(),
		Details:   details,
	}
}

// LogErrorResponse is the data of a POST /api/log-error response.
type LogErrorResponse struct {
	ReportID string `json:"report_id"`
}

// ListRoomsResponse is the data of GET /admin/v1/rooms.
type ListRoomsResponse struct {
	Rooms    []coordinator.Status `json:"rooms"`
	Total    int                  `json:"total"`
	Sessions int                  `json:"sessions"`
}

// RoomResponse is the data of GET /admin/v1/rooms/{roomId}.
type RoomResponse struct {
	coordinator.Status
	SessionList []SessionResponse `json:"session_list"`
}

// SessionResponse describes one admitted session.
type SessionResponse struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
}

// FlushResponse is the data of POST /admin/v1/rooms/{roomId}/flush.
type FlushResponse struct {
	Key         string                      `json:"key"`
	Persistence coordinator.SchedulerStatus `json:"persistence"`
}

// StatusSummary is the data of GET /admin/v1/status/summary.
type StatusSummary struct {
	Build          buildinfo.Info `json:"build"`
	StartedAt      time.Time      `json:"started_at"`
	UptimeSeconds  int64          `json:"uptime_seconds"`
	Rooms          int            `json:"rooms"`
	Sessions       int            `json:"sessions"`
	Goroutines     int            `json:"goroutines"`
	HeapBytes      uint64         `json:"heap_bytes"`
	PendingReports int            `json:"pending_reports"`
}
