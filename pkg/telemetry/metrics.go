package telemetry

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds process counters exported to Prometheus.
type Metrics struct {
	// Frame pipeline counters
	FramesProcessed atomic.Uint64
	FacesDetected   atomic.Uint64
	FramesPresented atomic.Uint64

	// Error counters
	DetectionErrors atomic.Uint64

	// Notification counters
	EventsSent    atomic.Uint64
	EventsDropped atomic.Uint64

	// Rate and state
	FPSMilli  atomic.Uint64 // current FPS * 1000
	LoopState atomic.Uint64 // numeric loop state

	// Prometheus collectors
	registry *prometheus.Registry
}

// NewMetrics creates a Metrics instance with Prometheus collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}
	m.registerPrometheusMetrics()
	return m
}

// registerPrometheusMetrics registers all metrics with Prometheus.
func (m *Metrics) registerPrometheusMetrics() {
	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vzen_frames_processed_total",
			Help: "Total frames pulled through the tracking loop",
		},
		func() float64 { return float64(m.FramesProcessed.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vzen_faces_detected_total",
			Help: "Total face detections across all frames",
		},
		func() float64 { return float64(m.FacesDetected.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vzen_frames_presented_total",
			Help: "Total rendered frames handed to the output sink",
		},
		func() float64 { return float64(m.FramesPresented.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vzen_detection_errors_total",
			Help: "Total frames skipped because the backend failed",
		},
		func() float64 { return float64(m.DetectionErrors.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vzen_events_sent_total",
			Help: "Total notification events delivered to sinks",
		},
		func() float64 { return float64(m.EventsSent.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vzen_events_dropped_total",
			Help: "Total notification events dropped on a full queue",
		},
		func() float64 { return float64(m.EventsDropped.Load()) },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vzen_fps",
			Help: "Current processing rate in frames per second",
		},
		func() float64 { return float64(m.FPSMilli.Load()) / 1000.0 },
	))

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "vzen_loop_state",
			Help: "Tracking loop state (0=starting 1=running 2=stopping 3=stopped)",
		},
		func() float64 { return float64(m.LoopState.Load()) },
	))
}

// ObserveSnapshot folds a tracker snapshot into the exported gauges.
func (m *Metrics) ObserveSnapshot(s Snapshot) {
	m.FramesProcessed.Store(s.Frames)
	if s.FPSValid {
		m.FPSMilli.Store(uint64(s.FPS * 1000))
	} else {
		m.FPSMilli.Store(0)
	}
}

// Handler returns the Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
