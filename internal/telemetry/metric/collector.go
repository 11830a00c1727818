package metric

import "github.com/prometheus/client_golang/prometheus"

// Source reports live counts at scrape time.
type Source interface {
	RoomCount() int
	SessionCount() int
}

// Collector exposes live room and session counts from a Source.
type Collector struct {
	source   Source
	rooms    *prometheus.Desc
	sessions *prometheus.Desc
}

// NewCollector creates a collector reading from source.
func NewCollector(source Source) *Collector {
	return &Collector{
		source: source,
		rooms: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "rooms_active"),
			"Live room coordinators", nil, nil),
		sessions: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "sessions_active"),
			"Admitted sessions with an open channel", nil, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.rooms
	ch <- c.sessions
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.rooms, prometheus.GaugeValue, float64(c.source.RoomCount()))
	ch <- prometheus.MustNewConstMetric(c.sessions, prometheus.GaugeValue, float64(c.source.SessionCount()))
}

// RegisterSource registers a Collector for source.
func (r *Registry) RegisterSource(source Source) error {
	return r.reg.Register(NewCollector(source))
}
