package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "carbonfi"

// Collector holds every metric the core emits. A nil *Collector is valid and
// records nothing, so library code never has to check.
type Collector struct {
	registry *prometheus.Registry

	refreshTotal       *prometheus.CounterVec
	refreshDuration    prometheus.Histogram
	refreshFieldErrors *prometheus.CounterVec
	connectorStates    *prometheus.CounterVec
	resolverCache      *prometheus.CounterVec
	txWaits            *prometheus.CounterVec
}

// New creates a collector on its own registry.
func New() *Collector {
	c := &Collector{registry: prometheus.NewRegistry()}

	c.refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_refresh_total",
			Help:      "Balance refreshes by outcome (ok, partial, unreachable, stale, coalesced).",
		},
		[]string{"outcome"},
	)
	c.refreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "balance_refresh_duration_seconds",
		Help:      "Wall time of one balance refresh batch.",
		Buckets:   prometheus.DefBuckets,
	})
	c.refreshFieldErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "balance_field_errors_total",
			Help:      "Balance fields that fell back to their default value.",
		},
		[]string{"field"},
	)
	c.connectorStates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_state_transitions_total",
			Help:      "Wallet connection state transitions by target state.",
		},
		[]string{"state"},
	)
	c.resolverCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "contract_resolve_total",
			Help:      "Contract handle resolutions by cache result.",
		},
		[]string{"result"},
	)
	c.txWaits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_wait_total",
			Help:      "Transaction confirmation waits by final status.",
		},
		[]string{"status"},
	)

	c.registry.MustRegister(
		c.refreshTotal,
		c.refreshDuration,
		c.refreshFieldErrors,
		c.connectorStates,
		c.resolverCache,
		c.txWaits,
		collectors.NewGoCollector(),
	)
	return c
}

// Registry exposes the underlying registry (tests gather from it).
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// RefreshFinished counts one refresh by outcome. took is observed when positive.
func (c *Collector) RefreshFinished(outcome string, took time.Duration) {
	if c == nil {
		return
	}
	c.refreshTotal.WithLabelValues(outcome).Inc()
	if took > 0 {
		c.refreshDuration.Observe(took.Seconds())
	}
}

// FieldDegraded counts a snapshot field that fell back to its default.
func (c *Collector) FieldDegraded(field string) {
	if c == nil {
		return
	}
	c.refreshFieldErrors.WithLabelValues(field).Inc()
}

// StateChanged counts a connector transition into state.
func (c *Collector) StateChanged(state string) {
	if c == nil {
		return
	}
	c.connectorStates.WithLabelValues(state).Inc()
}

func (c *Collector) Resolved(cacheHit bool) {
	if c == nil {
		return
	}
	result := "miss"
	if cacheHit {
		result = "hit"
	}
	c.resolverCache.WithLabelValues(result).Inc()
}

// TxWaited counts a finished wait by final status.
func (c *Collector) TxWaited(status string) {
	if c == nil {
		return
	}
	c.txWaits.WithLabelValues(status).Inc()
}
