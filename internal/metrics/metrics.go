// Package metrics provides Prometheus collectors for the image server.
//
// A Metrics value owns its own registry, so tests and multiple servers in one
// process never collide. All methods are safe on a nil *Metrics, which lets
// callers leave metrics disabled without guarding every call site.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "yail"

// Metrics groups every collector the server updates.
type Metrics struct {
	registry *prometheus.Registry

	connectionsActive   prometheus.Gauge
	connectionsTotal    prometheus.Counter
	connectionsRejected prometheus.Counter
	commandsTotal       *prometheus.CounterVec
	commandDuration     *prometheus.HistogramVec
	encodeDuration      *prometheus.HistogramVec
	bytesSent           prometheus.Counter
	panicsTotal         prometheus.Counter
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		connectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_active",
			Help:      "Number of currently connected clients",
		}),
		connectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_total",
			Help:      "Total number of accepted client connections",
		}),
		connectionsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_rejected_total",
			Help:      "Total number of connections refused because the server was full",
		}),
		commandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "commands_total",
				Help:      "Total number of client commands by outcome",
			},
			[]string{"command", "code"}, // code: "ok" or an error code
		),
		commandDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "command_duration_seconds",
				Help:      "Time spent handling a client command",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"command"},
		),
		encodeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "encode_duration_seconds",
				Help:      "Time spent converting an image to a client display format",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"mode"},
		),
		bytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "image_bytes_sent_total",
			Help:      "Total bytes of framed image packets written to clients",
		}),
		panicsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_panics_total",
			Help:      "Total number of recovered connection handler panics",
		}),
	}

	m.registry.MustRegister(
		m.connectionsActive,
		m.connectionsTotal,
		m.connectionsRejected,
		m.commandsTotal,
		m.commandDuration,
		m.encodeDuration,
		m.bytesSent,
		m.panicsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connectionsTotal.Inc()
	m.connectionsActive.Inc()
}

// ConnectionClosed records a finished connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connectionsActive.Dec()
}

// ConnectionRejected records a connection refused at capacity.
func (m *Metrics) ConnectionRejected() {
	if m == nil {
		return
	}
	m.connectionsRejected.Inc()
}

// ObserveCommand records one handled command. code is "ok" on success.
func (m *Metrics) ObserveCommand(command, code string, d time.Duration) {
	if m == nil {
		return
	}
	m.commandsTotal.WithLabelValues(command, code).Inc()
	m.commandDuration.WithLabelValues(command).Observe(d.Seconds())
}

// ObserveEncode records one encode and the size of the packet it produced.
func (m *Metrics) ObserveEncode(mode string, d time.Duration, bytes int) {
	if m == nil {
		return
	}
	m.encodeDuration.WithLabelValues(mode).Observe(d.Seconds())
	m.bytesSent.Add(float64(bytes))
}

// Panic records a recovered handler panic.
func (m *Metrics) Panic() {
	if m == nil {
		return
	}
	m.panicsTotal.Inc()
}
