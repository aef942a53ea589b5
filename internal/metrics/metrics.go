// Package metrics exposes realtime gateway metrics in Prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Event outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected"
	OutcomeFailed   = "failed"
	OutcomeTimeout  = "timeout"
)

// Notification results.
const (
	ResultQueued  = "queued"
	ResultOffline = "offline"
	ResultDropped = "dropped"
)

// LiveCounter reports the current number of online users.
type LiveCounter interface {
	Count() int
}

// Metrics owns a private registry so tests can create as many as they like.
// A nil *Metrics records nothing.
type Metrics struct {
	registry      *prometheus.Registry
	events        *prometheus.CounterVec
	eventDuration *prometheus.HistogramVec
	notifications *prometheus.CounterVec
	sessions      prometheus.Counter
}

func New(namespace string, live LiveCounter) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Inbound realtime events by name and outcome.",
		}, []string{"event", "outcome"}),
		eventDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_duration_seconds",
			Help:      "Time spent handling inbound realtime events.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Outbound pushes by event and result.",
		}, []string{"event", "result"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of realtime connections since start.",
		}),
	}

	m.registry.MustRegister(m.events, m.eventDuration, m.notifications, m.sessions)
	if live != nil {
		m.registry.MustRegister(newLiveCollector(namespace, live))
	}
	return m
}

// ObserveEvent records one handled inbound event.
func (m *Metrics) ObserveEvent(event, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(event, outcome).Inc()
	m.eventDuration.WithLabelValues(event).Observe(elapsed.Seconds())
}

// CountNotification records one outbound push attempt.
func (m *Metrics) CountNotification(event, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(event, result).Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Gatherer exposes the underlying registry.
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

// liveCollector reads the online count at scrape time.
type liveCollector struct {
	desc   *prometheus.Desc
	source LiveCounter
}

func newLiveCollector(namespace string, source LiveCounter) *liveCollector {
	return &liveCollector{
		desc: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "", "users_online"),
			"Number of users with a live connection.",
			nil,
			nil,
		),
		source: source,
	}
}

func (c *liveCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.desc
}

func (c *liveCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(c.desc, prometheus.GaugeValue, float64(c.source.Count()))
}
