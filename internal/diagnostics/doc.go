// Package diagnostics accepts client error reports (POST /api/log-error).
//
// A Reporter never blocks or fails its caller. Reports are normalized,
// assigned a cmer- id, tagged with the bound room id when known and
// queued for a single worker that hands them to a Sink. Queue overflow,
// sink errors and panics are counted in canvasmesh_error_reports_total
// and logged locally.
package diagnostics
