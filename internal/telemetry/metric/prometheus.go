package metric

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "minikv"

// Connection error kinds used as label values.
const (
	ErrKindProtocol    = "protocol"
	ErrKindReset       = "reset"
	ErrKindUnsupported = "unsupported"
	ErrKindIO          = "io"
	ErrKindPanic       = "panic"
)

// Registry holds all application metrics.
type Registry struct {
	registry *prometheus.Registry

	ConnectionsAccepted prometheus.Counter
	ConnectionsRejected prometheus.Counter
	ConnectionsActive   prometheus.Gauge
	ConnectionErrors    *prometheus.CounterVec

	CommandsTotal   *prometheus.CounterVec
	CommandDuration *prometheus.HistogramVec
}

// NewRegistry creates a registry holding the Go runtime and process
// collectors plus the minikv metrics.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Registry{
		registry: reg,

		ConnectionsAccepted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_accepted_total",
			Help:      "Total number of accepted client connections",
		}),
		ConnectionsRejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connections_rejected_total",
			Help:      "Connections closed on accept because the server was at its limit",
		}),
		ConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "connections_active",
			Help:      "Number of client connections currently being served",
		}),
		ConnectionErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "connection_errors_total",
			Help:      "Connections terminated by an error, by kind",
		}, []string{"kind"}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "commands_total",
			Help:      "Total number of executed commands",
		}, []string{"command"}),
		CommandDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "command_duration_seconds",
			Help:      "Time spent applying a command and writing its reply",
			Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
		}, []string{"command"}),
	}
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	if r == nil {
		return
	}
	r.registry.MustRegister(cs...)
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler returns an HTTP handler serving the registry in the Prometheus
// text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ConnOpened records an accepted connection.
func (r *Registry) ConnOpened() {
	if r == nil {
		return
	}
	r.ConnectionsAccepted.Inc()
	r.ConnectionsActive.Inc()
}

// ConnClosed records the end of a served connection.
func (r *Registry) ConnClosed() {
	if r == nil {
		return
	}
	r.ConnectionsActive.Dec()
}

// ConnRejected records a connection refused at the connection limit.
func (r *Registry) ConnRejected() {
	if r == nil {
		return
	}
	r.ConnectionsRejected.Inc()
}

// ConnError records a connection terminated by an error of the given kind.
func (r *Registry) ConnError(kind string) {
	if r == nil {
		return
	}
	r.ConnectionErrors.WithLabelValues(kind).Inc()
}

// ObserveCommand records one executed command.
func (r *Registry) ObserveCommand(name string, d time.Duration) {
	if r == nil {
		return
	}
	r.CommandsTotal.WithLabelValues(name).Inc()
	r.CommandDuration.WithLabelValues(name).Observe(d.Seconds())
}
