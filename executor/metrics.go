package executor

import "github.com/prometheus/client_golang/prometheus"

// Collector records caching-query-executor outcomes. It is a narrow,
// synchronous interface threaded through the constructor, with a
// production Prometheus-backed implementation and a Noop implementation
// for tests that don't care about metrics.
type Collector interface {
	CacheHit()
	CacheMiss()
	CacheError()
	DownstreamSuccess()
	DownstreamError()
	Populate()
	Cancelled()
}

// NoopCollector discards every observation. Used wherever a concrete
// metrics backend isn't wired up.
type NoopCollector struct{}

func (NoopCollector) CacheHit()          {}
func (NoopCollector) CacheMiss()         {}
func (NoopCollector) CacheError()        {}
func (NoopCollector) DownstreamSuccess() {}
func (NoopCollector) DownstreamError()   {}
func (NoopCollector) Populate()          {}
func (NoopCollector) Cancelled()         {}

// PrometheusCollector is the production Collector, exposing one counter
// vector keyed by outcome label.
type PrometheusCollector struct {
	outcomes *prometheus.CounterVec
}

// NewPrometheusCollector registers the executor's metrics with reg, with
// executorID as the value of a constant executor_id label, and returns a
// Collector. Callers
// typically register one Collector per Executor instance.
func NewPrometheusCollector(reg prometheus.Registerer, executorID string) (*PrometheusCollector, error) {
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace:   "caching_query_executor",
		Name:        "outcomes_total",
		Help:        "Count of caching query executor outcomes by kind.",
		ConstLabels: prometheus.Labels{"executor_id": executorID},
	}, []string{"outcome"})

	if err := reg.Register(outcomes); err != nil {
		return nil, err
	}

	return &PrometheusCollector{outcomes: outcomes}, nil
}

func (c *PrometheusCollector) CacheHit()          { c.outcomes.WithLabelValues("cache_hit").Inc() }
func (c *PrometheusCollector) CacheMiss()         { c.outcomes.WithLabelValues("cache_miss").Inc() }
func (c *PrometheusCollector) CacheError()        { c.outcomes.WithLabelValues("cache_error").Inc() }
func (c *PrometheusCollector) DownstreamSuccess() { c.outcomes.WithLabelValues("downstream_success").Inc() }
func (c *PrometheusCollector) DownstreamError()   { c.outcomes.WithLabelValues("downstream_error").Inc() }
func (c *PrometheusCollector) Populate()          { c.outcomes.WithLabelValues("populate").Inc() }
func (c *PrometheusCollector) Cancelled()         { c.outcomes.WithLabelValues("cancelled").Inc() }
