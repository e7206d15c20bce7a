package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/conneroisu/wikilight/internal/errors"
	"github.com/conneroisu/wikilight/internal/highlight"
)

const metricsNamespace = "wikilight"

// Metrics are the server's Prometheus collectors. They live on their own
// registry so several servers can run in one process.
type Metrics struct {
	registry *prometheus.Registry

	passes       prometheus.Counter
	duration     prometheus.Histogram
	ruleFailures *prometheus.CounterVec
	edits        prometheus.Counter
	renders      prometheus.Counter
	sessions     prometheus.Gauge
	reloads      prometheus.Counter
}

// NewMetrics registers every collector on a fresh registry. cacheLen, when
// non-nil, is exported as the number of cached highlight results.
func NewMetrics(cacheLen func() int) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry: reg,
		passes: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "highlight",
			Name:      "passes_total",
			Help:      "Highlight passes run.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: "highlight",
			Name:      "duration_seconds",
			Help:      "Time spent producing a highlighted document.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 9),
		}),
		ruleFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "highlight",
			Name:      "rule_failures_total",
			Help:      "Rules skipped because they panicked or timed out.",
		}, []string{"rule"}),
		edits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "editor",
			Name:      "edits_total",
			Help:      "Text edits received, each one triggering the render debouncer.",
		}),
		renders: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "editor",
			Name:      "renders_total",
			Help:      "Overlay renders published to editors.",
		}),
		sessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "editor",
			Name:      "sessions",
			Help:      "Connected editor sessions.",
		}),
		reloads: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "editor",
			Name:      "reloads_total",
			Help:      "Reloads pushed after the served file changed on disk.",
		}),
	}

	if cacheLen != nil {
		factory.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "highlight",
			Name:      "cache_entries",
			Help:      "Highlighted documents held in the result cache.",
		}, func() float64 { return float64(cacheLen()) })
	}

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeHighlight(res highlight.Result, elapsed time.Duration) {
	m.passes.Inc()
	m.duration.Observe(elapsed.Seconds())
	for _, err := range res.Failures {
		rule := "unknown"
		var herr *errors.Error
		if errors.As(err, &herr) && herr.Rule != "" {
			rule = herr.Rule
		}
		m.ruleFailures.WithLabelValues(rule).Inc()
	}
}
