// Package metrics exposes the engine's Prometheus instrumentation. Every
// method is safe on a nil *Metrics so components can run uninstrumented.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons used as the "reason" label.
const (
	DROP_UNKNOWN_CAMERA = "unknown_camera"
	DROP_STALE          = "stale"
	DROP_INVALID        = "invalid"
	DROP_DECODE         = "decode"
)

type Metrics struct {
	registry           *prometheus.Registry
	detectionsIngested prometheus.Counter
	detectionsDropped  *prometheus.CounterVec
	sessionsOpened     prometheus.Counter
	sessionsClosed     prometheus.Counter
	openSessions       *prometheus.GaugeVec
	sessionDwell       prometheus.Histogram
	bucketsSaturated   prometheus.Counter
	sinkErrors         *prometheus.CounterVec
}

// NewMetrics builds the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		detectionsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wink_detections_ingested_total",
			Help: "Detections accepted by the occupancy tracker.",
		}),
		detectionsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wink_detections_dropped_total",
			Help: "Detections dropped by reason.",
		}, []string{"reason"}),
		sessionsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wink_dwell_sessions_opened_total",
			Help: "Dwell sessions opened (absent to present transitions).",
		}),
		sessionsClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wink_dwell_sessions_closed_total",
			Help: "Dwell sessions sealed and handed to sinks.",
		}),
		openSessions: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "wink_open_dwell_sessions",
			Help: "Currently open dwell sessions per camera.",
		}, []string{"camera"}),
		sessionDwell: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "wink_dwell_session_seconds",
			Help:    "Duration of sealed dwell sessions.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		bucketsSaturated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wink_insight_buckets_saturated_total",
			Help: "Bucket counters that hit their maximum value.",
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wink_session_sink_errors_total",
			Help: "Errors returned by session sinks.",
		}, []string{"sink"}),
	}

	m.registry.MustRegister(
		m.detectionsIngested,
		m.detectionsDropped,
		m.sessionsOpened,
		m.sessionsClosed,
		m.openSessions,
		m.sessionDwell,
		m.bucketsSaturated,
		m.sinkErrors,
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) DetectionIngested() {
	if m != nil {
		m.detectionsIngested.Inc()
	}
}

func (m *Metrics) DetectionDropped(reason string) {
	if m != nil {
		m.detectionsDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) SessionOpened(cameraID string) {
	if m != nil {
		m.sessionsOpened.Inc()
		m.openSessions.WithLabelValues(cameraID).Inc()
	}
}

func (m *Metrics) SessionClosed(cameraID string, seconds float64) {
	if m != nil {
		m.sessionsClosed.Inc()
		m.openSessions.WithLabelValues(cameraID).Dec()
		m.sessionDwell.Observe(seconds)
	}
}

func (m *Metrics) BucketSaturated() {
	if m != nil {
		m.bucketsSaturated.Inc()
	}
}

func (m *Metrics) SinkError(sink string) {
	if m != nil {
		m.sinkErrors.WithLabelValues(sink).Inc()
	}
}
