// Package metrics provides Prometheus metrics collection for Planora.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for the engine.
type Collector struct {
	// Request metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Engine metrics
	ValidationFailures *prometheus.CounterVec
	VersionConflicts   *prometheus.CounterVec
	AuthFailures       *prometheus.CounterVec
	StoreErrors        *prometheus.CounterVec
}

// New creates a new metrics collector with all metrics registered on
// the default registry.
func New() *Collector {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith creates a collector registered on the given registerer.
// Tests pass a private registry so parallel tests don't collide.
func NewWith(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "planora",
				Name:      "requests_total",
				Help:      "Total number of entity requests processed",
			},
			[]string{"entity", "verb", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "planora",
				Name:      "request_duration_seconds",
				Help:      "Entity request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"entity", "verb"},
		),
		ValidationFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "planora",
				Name:      "validation_failures_total",
				Help:      "Total number of requests rejected by schema validation",
			},
			[]string{"entity"},
		),
		VersionConflicts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "planora",
				Name:      "version_conflicts_total",
				Help:      "Total number of optimistic concurrency conflicts",
			},
			[]string{"entity"},
		),
		AuthFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "planora",
				Name:      "auth_failures_total",
				Help:      "Total number of authentication and authorization failures",
			},
			[]string{"reason"},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "planora",
				Name:      "store_errors_total",
				Help:      "Total number of unexpected store failures",
			},
			[]string{"entity"},
		),
	}
}
