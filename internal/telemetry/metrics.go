package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "clothsim"

// Metrics are the solver counters exported per engine.
type Metrics struct {
	Frames        prometheus.Counter
	Substeps      prometheus.Counter
	Collisions    prometheus.Counter
	Rejected      *prometheus.CounterVec
	FrameDuration prometheus.Histogram
	Particles     prometheus.Gauge
	Sessions      prometheus.Gauge
}

// NewMetrics registers the collectors on reg. A nil reg leaves them
// unregistered, which is what tests and one-shot CLI runs want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_total",
			Help:      "Frames stepped across all sessions",
		}),
		Substeps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "substeps_total",
			Help:      "Force/integrate/collide substeps executed",
		}),
		Collisions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collisions_total",
			Help:      "Particle penetrations resolved against the sphere",
		}),
		Rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_total",
			Help:      "Calls rejected by validation",
		}, []string{"reason"}),
		FrameDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "frame_duration_seconds",
			Help:      "Wall time spent stepping one frame",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
		}),
		Particles: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "particles",
			Help:      "Particles held by open sessions",
		}),
		Sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions",
			Help:      "Open simulation sessions",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.Frames, m.Substeps, m.Collisions, m.Rejected, m.FrameDuration, m.Particles, m.Sessions)
	}
	return m
}

// ObserveFrame records one completed frame.
func (m *Metrics) ObserveFrame(substeps, collisions int, elapsed time.Duration) {
	m.Frames.Inc()
	m.Substeps.Add(float64(substeps))
	m.Collisions.Add(float64(collisions))
	m.FrameDuration.Observe(elapsed.Seconds())
}

// Handler serves the given gatherer in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
