// Prometheus collectors describing what Dropzone's real-time plumbing is doing.

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups every collector exported on /metrics.
// A nil *Metrics is valid and records nothing, handy in tests.
type Metrics struct {
	subscribers     prometheus.Gauge
	eventsBroadcast *prometheus.CounterVec
	sweeps          prometheus.Counter
	sweepErrors     prometheus.Counter
	filesExpired    prometheus.Counter
	uploads         prometheus.Counter
}

// New registers the collectors into reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		subscribers: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "dropzone",
			Name:      "subscribers",
			Help:      "Number of currently connected event subscribers.",
		}),
		eventsBroadcast: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dropzone",
			Name:      "events_broadcast_total",
			Help:      "Number of events broadcasted, by kind.",
		}, []string{"kind"}),
		sweeps: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dropzone",
			Name:      "sweeps_total",
			Help:      "Number of completed expiry sweeps.",
		}),
		sweepErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dropzone",
			Name:      "sweep_errors_total",
			Help:      "Number of expiry sweeps that hit at least one error.",
		}),
		filesExpired: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dropzone",
			Name:      "files_expired_total",
			Help:      "Number of file records removed by the expiry sweeper.",
		}),
		uploads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "dropzone",
			Name:      "uploads_total",
			Help:      "Number of files uploaded.",
		}),
	}
}

func (m *Metrics) SubscriberAdded() {
	if m != nil {
		m.subscribers.Inc()
	}
}

func (m *Metrics) SubscriberRemoved() {
	if m != nil {
		m.subscribers.Dec()
	}
}

func (m *Metrics) EventBroadcast(kind string) {
	if m != nil {
		m.eventsBroadcast.WithLabelValues(kind).Inc()
	}
}

// SweepCompleted records one sweep that removed `removed` records.
func (m *Metrics) SweepCompleted(removed int, failed bool) {
	if m == nil {
		return
	}
	m.sweeps.Inc()
	m.filesExpired.Add(float64(removed))
	if failed {
		m.sweepErrors.Inc()
	}
}

func (m *Metrics) FileUploaded() {
	if m != nil {
		m.uploads.Inc()
	}
}
