package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name:     "error without details",
			err:      NewDomainError("CM-TEST-1000", "test message"),
			expected: "[CM-TEST-1000] test message",
		},
		{
			name:     "error with details",
			err:      NewDomainError("CM-TEST-1001", "test message").WithDetails("extra info"),
			expected: "[CM-TEST-1001] test message: extra info",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.expected {
				t.Errorf("Error() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	err1 := NewDomainError("CM-TEST-1000", "message 1")
	err2 := NewDomainError("CM-TEST-1000", "message 2") // Same code, different message
	err3 := NewDomainError("CM-TEST-1001", "message 1") // Different code

	if !errors.Is(err1, err2) {
		t.Error("errors.Is should return true for same error code")
	}

	if errors.Is(err1, err3) {
		t.Error("errors.Is should return false for different error code")
	}

	if errors.Is(err1, fmt.Errorf("some error")) {
		t.Error("errors.Is should return false for non-DomainError")
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("underlying cause")
	err := NewDomainError("CM-TEST-1000", "wrapper").WithCause(cause)

	if unwrapped := errors.Unwrap(err); unwrapped != cause {
		t.Errorf("Unwrap() = %v, want %v", unwrapped, cause)
	}

	errNoCause := NewDomainError("CM-TEST-1000", "no cause")
	if errors.Unwrap(errNoCause) != nil {
		t.Error("Unwrap() should return nil when no cause")
	}
}

func TestDomainError_WithDetails(t *testing.T) {
	original := NewDomainError("CM-TEST-1000", "original message")
	withDetails := original.WithDetails("additional details")

	if original.Details != "" {
		t.Error("WithDetails should not modify original error")
	}
	if withDetails.Details != "additional details" {
		t.Errorf("Details = %q, want %q", withDetails.Details, "additional details")
	}
	if withDetails.Code != original.Code {
		t.Errorf("Code = %q, want %q", withDetails.Code, original.Code)
	}
}

func TestDomainError_Wrap(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	wrapped := ErrHydrationFailure.Wrap(cause)

	if wrapped.Cause != cause {
		t.Errorf("Wrap() should set cause, got %v", wrapped.Cause)
	}
	if wrapped.Details != "disk on fire" {
		t.Errorf("Wrap() details = %q, want cause message", wrapped.Details)
	}
	if !errors.Is(wrapped, ErrHydrationFailure) {
		t.Error("wrapped error should match its sentinel by code")
	}
	if ErrHydrationFailure.Cause != nil {
		t.Error("Wrap must not mutate the sentinel")
	}

	if got := ErrHydrationFailure.Wrap(nil); got != ErrHydrationFailure {
		t.Error("Wrap(nil) should return the receiver")
	}
}

func TestIsDomainError(t *testing.T) {
	if !IsDomainError(ErrMissingSessionID, "CM-SESS-4001") {
		t.Error("IsDomainError should return true for matching code")
	}
	if IsDomainError(ErrMissingSessionID, "CM-SESS-9999") {
		t.Error("IsDomainError should return false for non-matching code")
	}
	if IsDomainError(fmt.Errorf("regular error"), "CM-SESS-4001") {
		t.Error("IsDomainError should return false for non-DomainError")
	}

	wrapped := fmt.Errorf("wrapped: %w", ErrMissingIdentity)
	if !IsDomainError(wrapped, "CM-ROOM-4001") {
		t.Error("IsDomainError should work with wrapped errors")
	}
	if !IsDomainError(wrapped, "") {
		t.Error("IsDomainError with empty code should match any DomainError")
	}
}

func TestGetErrorCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"domain error", ErrRoomNotFound, "CM-ROOM-4040"},
		{"wrapped domain error", fmt.Errorf("wrapped: %w", ErrPersistenceWrite), "CM-STOR-5001"},
		{"regular error", fmt.Errorf("regular error"), ""},
		{"nil error", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := GetErrorCode(tt.err); got != tt.expected {
				t.Errorf("GetErrorCode() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestPredefinedErrors(t *testing.T) {
	tests := []struct {
		err  *DomainError
		code string
	}{
		{ErrMissingIdentity, "CM-ROOM-4001"},
		{ErrInvalidRoomID, "CM-ROOM-4002"},
		{ErrRoomNotFound, "CM-ROOM-4040"},
		{ErrHydrationFailure, "CM-ROOM-5001"},
		{ErrMissingSessionID, "CM-SESS-4001"},
		{ErrUpgradeFailed, "CM-SESS-4002"},
		{ErrStorage, "CM-STOR-5000"},
		{ErrPersistenceWrite, "CM-STOR-5001"},
		{ErrMalformedReport, "CM-DIAG-5000"},
		{ErrReportingFailure, "CM-DIAG-5001"},
		{ErrInternalServer, "CM-SYS-5000"},
		{ErrServiceUnavailable, "CM-SYS-5030"},
		{ErrBadRequest, "CM-SYS-4000"},
		{ErrRateLimited, "CM-SYS-4290"},
		{ErrForbidden, "CM-SYS-4030"},
	}

	for _, tt := range tests {
		if tt.err.Code != tt.code {
			t.Errorf("%s: code = %q, want %q", tt.err.Message, tt.err.Code, tt.code)
		}
	}
}
