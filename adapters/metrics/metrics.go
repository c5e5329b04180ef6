// Package metrics provides Prometheus metrics collection for typemap.
//
// Collector satisfies the observer interfaces of the type maps, models and
// job queue, so wiring it in is a matter of passing it as an option.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector holds all Prometheus metrics for typemap.
type Collector struct {
	// Type map metrics
	Lookups *prometheus.CounterVec

	// Schema cache metrics
	SchemaRecomputes *prometheus.CounterVec
	Declarations     *prometheus.CounterVec
	ModelsLoaded     prometheus.Gauge

	// Job metrics
	JobsEnqueued  *prometheus.CounterVec
	JobsProcessed *prometheus.CounterVec

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Config metrics
	ConfigReloads      prometheus.Counter
	ConfigReloadErrors prometheus.Counter
	ConfigLastReload   prometheus.Gauge
}

// New creates a collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a collector with a custom registry.
// Useful for testing to avoid global state.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		Lookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "typemap",
				Name:      "lookups_total",
				Help:      "Total number of type map lookups",
			},
			[]string{"strategy", "result"},
		),
		SchemaRecomputes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "typemap",
				Name:      "schema_recomputes_total",
				Help:      "Total number of column view rebuilds",
			},
			[]string{"model"},
		),
		Declarations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "typemap",
				Name:      "declarations_total",
				Help:      "Total number of attribute declarations",
			},
			[]string{"model"},
		),
		ModelsLoaded: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "typemap",
				Name:      "models_loaded",
				Help:      "Number of registered models",
			},
		),
		JobsEnqueued: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "typemap",
				Name:      "jobs_enqueued_total",
				Help:      "Total number of jobs enqueued",
			},
			[]string{"job", "mode"},
		),
		JobsProcessed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "typemap",
				Name:      "jobs_processed_total",
				Help:      "Total number of jobs processed by outcome",
			},
			[]string{"job", "status"},
		),
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "typemap",
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "typemap",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"method", "route"},
		),
		ConfigReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "typemap",
				Name:      "config_reloads_total",
				Help:      "Total number of successful config reloads",
			},
		),
		ConfigReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: "typemap",
				Name:      "config_reload_errors_total",
				Help:      "Total number of config reload errors",
			},
		),
		ConfigLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "typemap",
				Name:      "config_last_reload_timestamp",
				Help:      "Unix timestamp of last successful config reload",
			},
		),
	}
}

// ObserveLookup counts a type map lookup.
func (c *Collector) ObserveLookup(strategy string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	c.Lookups.WithLabelValues(strategy, result).Inc()
}

// ObserveRecompute counts a column view rebuild.
func (c *Collector) ObserveRecompute(model string) {
	c.SchemaRecomputes.WithLabelValues(model).Inc()
}

// ObserveDeclare counts an attribute declaration.
func (c *Collector) ObserveDeclare(model string) {
	c.Declarations.WithLabelValues(model).Inc()
}

// ObserveEnqueue counts an enqueued job. mode is now, at or in.
func (c *Collector) ObserveEnqueue(job, mode string) {
	c.JobsEnqueued.WithLabelValues(job, mode).Inc()
}

// ObserveJob counts a processed job.
func (c *Collector) ObserveJob(job, status string) {
	c.JobsProcessed.WithLabelValues(job, status).Inc()
}

// ObserveReload records the outcome of a config reload.
func (c *Collector) ObserveReload(err error) {
	if err != nil {
		c.ConfigReloadErrors.Inc()
		return
	}
	c.ConfigReloads.Inc()
	c.ConfigLastReload.Set(float64(time.Now().Unix()))
}
