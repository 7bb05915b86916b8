// Package metric defines the Prometheus instrumentation shared by the
// middleware: per-topic publish/receive counters, service call
// counters, and discovery graph gauges.
package metric

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds every collector the middleware updates.
type Metrics struct {
	MessagesPublished *prometheus.CounterVec
	MessagesReceived  *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec

	ServiceCalls     *prometheus.CounterVec
	ServiceDuration  *prometheus.HistogramVec
	ServiceResponses *prometheus.CounterVec

	GraphEntities  prometheus.Gauge
	ActiveNodes    prometheus.Gauge
	SelectorPolls  prometheus.Counter
	TimerFirings   prometheus.Counter
	TransportState prometheus.Gauge
}

// NewMetrics creates the collector set.
func NewMetrics() *Metrics {
	return &Metrics{
		MessagesPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "oxidros",
				Subsystem: "messages",
				Name:      "published_total",
				Help:      "Total number of samples published",
			},
			[]string{"topic"},
		),
		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "oxidros",
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Total number of samples received",
			},
			[]string{"topic"},
		),
		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "oxidros",
				Subsystem: "messages",
				Name:      "dropped_total",
				Help:      "Total number of samples dropped by full delivery queues",
			},
			[]string{"topic"},
		),
		ServiceCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "oxidros",
				Subsystem: "services",
				Name:      "calls_total",
				Help:      "Total number of service calls issued",
			},
			[]string{"service", "status"},
		),
		ServiceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "oxidros",
				Subsystem: "services",
				Name:      "call_duration_seconds",
				Help:      "Service call round-trip duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"service"},
		),
		ServiceResponses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "oxidros",
				Subsystem: "services",
				Name:      "responses_total",
				Help:      "Total number of responses sent by servers",
			},
			[]string{"service"},
		),
		GraphEntities: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "oxidros",
				Subsystem: "graph",
				Name:      "entities",
				Help:      "Number of live entities in the discovery graph",
			},
		),
		ActiveNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "oxidros",
				Subsystem: "graph",
				Name:      "local_nodes",
				Help:      "Number of nodes created from the local context",
			},
		),
		SelectorPolls: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "oxidros",
				Subsystem: "selector",
				Name:      "polls_total",
				Help:      "Total number of selector wait passes",
			},
		),
		TimerFirings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "oxidros",
				Subsystem: "selector",
				Name:      "timer_firings_total",
				Help:      "Total number of timer firings",
			},
		),
		TransportState: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "oxidros",
				Subsystem: "transport",
				Name:      "connected",
				Help:      "Transport connection state (0=down, 1=up)",
			},
		),
	}
}

// Registry couples the collector set with a dedicated Prometheus
// registry so multiple Contexts in one process do not collide.
type Registry struct {
	prometheusRegistry *prometheus.Registry
	Metrics            *Metrics
}

// NewRegistry creates a registry with all middleware metrics plus Go
// runtime collectors registered.
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		Metrics:            NewMetrics(),
	}
	r.prometheusRegistry.MustRegister(
		r.Metrics.MessagesPublished,
		r.Metrics.MessagesReceived,
		r.Metrics.MessagesDropped,
		r.Metrics.ServiceCalls,
		r.Metrics.ServiceDuration,
		r.Metrics.ServiceResponses,
		r.Metrics.GraphEntities,
		r.Metrics.ActiveNodes,
		r.Metrics.SelectorPolls,
		r.Metrics.TimerFirings,
		r.Metrics.TransportState,
	)
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry exposes the underlying registry for scraping.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}
