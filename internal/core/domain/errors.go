// Package domain defines the core domain models for canvasmesh.
package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain error with a structured error code.
// Codes have the form CM-<AREA>-<NNNN>; the numeric suffix carries the
// HTTP status family it maps to.
type DomainError struct {
	Code    string // Error code (e.g., "CM-ROOM-4001")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s] %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// Wrap wraps an error with this domain error as the cause.
// The cause's message is kept as details so it survives serialization.
func (e *DomainError) Wrap(cause error) *DomainError {
	if cause == nil {
		return e
	}
	out := e.WithCause(cause)
	if out.Details == "" {
		out.Details = cause.Error()
	}
	return out
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Room Errors (ROOM)
// ============================================================================

var (
	// ErrMissingIdentity indicates no room identity is bound and none was supplied.
	ErrMissingIdentity = NewDomainError("CM-ROOM-4001", "room identity not bound")

	// ErrInvalidRoomID indicates the room identifier failed validation.
	ErrInvalidRoomID = NewDomainError("CM-ROOM-4002", "invalid room id")

	// ErrRoomNotFound indicates no live coordinator exists for the room.
	ErrRoomNotFound = NewDomainError("CM-ROOM-4040", "room not found")

	// ErrHydrationFailure indicates the room state could not be loaded.
	// The coordinator that produced it is unusable and must be recreated.
	ErrHydrationFailure = NewDomainError("CM-ROOM-5001", "room hydration failed")
)

// ============================================================================
// Session Errors (SESS)
// ============================================================================

var (
	// ErrMissingSessionID indicates a connect request without a session id.
	ErrMissingSessionID = NewDomainError("CM-SESS-4001", "missing sessionId")

	// ErrUpgradeFailed indicates the transport refused the protocol upgrade.
	ErrUpgradeFailed = NewDomainError("CM-SESS-4002", "connection upgrade failed")
)

// ============================================================================
// Storage Errors (STOR)
// ============================================================================

var (
	// ErrStorage indicates a storage layer error surfaced to a caller.
	ErrStorage = NewDomainError("CM-STOR-5000", "storage error")

	// ErrPersistenceWrite indicates a snapshot write-back failed.
	// It is logged and counted, never returned to clients.
	ErrPersistenceWrite = NewDomainError("CM-STOR-5001", "snapshot write failed")
)

// ============================================================================
// Diagnostics Errors (DIAG)
// ============================================================================

var (
	// ErrMalformedReport indicates an error report body that is not valid JSON.
	ErrMalformedReport = NewDomainError("CM-DIAG-5000", "malformed error report")

	// ErrReportingFailure indicates the diagnostics sink itself failed.
	ErrReportingFailure = NewDomainError("CM-DIAG-5001", "error reporting failed")
)

// ============================================================================
// System Errors (SYS)
// ============================================================================

var (
	// ErrInternalServer indicates an internal server error.
	ErrInternalServer = NewDomainError("CM-SYS-5000", "internal server error")

	// ErrServiceUnavailable indicates the service is temporarily unavailable.
	ErrServiceUnavailable = NewDomainError("CM-SYS-5030", "service unavailable")

	// ErrBadRequest indicates a malformed request.
	ErrBadRequest = NewDomainError("CM-SYS-4000", "bad request")

	// ErrForbidden indicates a client outside the admin allowlist.
	ErrForbidden = NewDomainError("CM-SYS-4030", "forbidden")

	// ErrRateLimited indicates too many requests.
	ErrRateLimited = NewDomainError("CM-SYS-4290", "too many requests")
)
