package domain

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Error report field limits. Longer values are truncated, not rejected.
const (
	MaxReportErrorLength   = 4096
	MaxReportStackLength   = 16384
	MaxReportContextLength = 4096
	MaxReportFieldLength   = 1024

	// ReportIDPrefix is the prefix for error report ids.
	ReportIDPrefix = "cmer-"
)

// ErrorReport is a client side diagnostic submitted to POST /api/log-error.
type ErrorReport struct {
	Error     string `json:"error" jsonschema:"description=Error message"`
	Stack     string `json:"stack" jsonschema:"description=Stack trace as reported by the client"`
	Context   string `json:"context" jsonschema:"description=Free-form context supplied by the client"`
	Timestamp string `json:"timestamp" jsonschema:"description=Client timestamp (ISO 8601)"`
	UserAgent string `json:"userAgent" jsonschema:"description=Client user agent"`
	URL       string `json:"url" jsonschema:"description=Page URL at the time of the error"`
}

// Normalize trims whitespace and clips oversized fields in place.
func (r *ErrorReport) Normalize() {
	r.Error = clip(strings.TrimSpace(r.Error), MaxReportErrorLength)
	r.Stack = clip(r.Stack, MaxReportStackLength)
	r.Context = clip(r.Context, MaxReportContextLength)
	r.Timestamp = clip(strings.TrimSpace(r.Timestamp), MaxReportFieldLength)
	r.UserAgent = clip(r.UserAgent, MaxReportFieldLength)
	r.URL = clip(strings.TrimSpace(r.URL), MaxReportFieldLength)
}

// NewReportID generates an error report id.
// Format: cmer-{ulid_lowercase}.
func NewReportID() string {
	id := ulid.MustNew(ulid.Timestamp(time.Now()), rand.Reader)
	return ReportIDPrefix + strings.ToLower(id.String())
}

func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
