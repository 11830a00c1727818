// Package metric provides Prometheus metrics for canvasmesh.
//
//   - prometheus.go: registry, application metrics and the /metrics handler
//   - collector.go: scrape-time gauges for live rooms and sessions
//
// Every Registry owns its own prometheus.Registry, so tests can create
// as many as they like without colliding on the global default.
package metric
