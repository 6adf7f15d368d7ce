package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// SaleMetrics aggregates the engine-facing collectors.
type SaleMetrics struct {
	Purchases   *prometheus.CounterVec
	Claims      *prometheus.CounterVec
	Distributed prometheus.Counter
	TokensSold  prometheus.Gauge
	RPCRequests *prometheus.CounterVec
	RPCLatency  *prometheus.HistogramVec
}

var (
	saleMetricsOnce sync.Once
	saleRegistry    *SaleMetrics
)

// Metrics returns the lazily-initialised collector set, registered on the
// default prometheus registry.
func Metrics() *SaleMetrics {
	saleMetricsOnce.Do(func() {
		saleRegistry = &SaleMetrics{
			Purchases: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "solstice",
				Subsystem: "sale",
				Name:      "purchases_total",
				Help:      "Total purchase attempts segmented by outcome.",
			}, []string{"outcome"}),
			Claims: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "solstice",
				Subsystem: "sale",
				Name:      "claims_total",
				Help:      "Total reward claim attempts segmented by outcome.",
			}, []string{"outcome"}),
			Distributed: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "solstice",
				Subsystem: "sale",
				Name:      "distributed_units_total",
				Help:      "Running total of distributed base units (lossy float view for dashboards; the distribution log is authoritative).",
			}),
			TokensSold: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "solstice",
				Subsystem: "sale",
				Name:      "tokens_sold",
				Help:      "Tokens sold against the allocation cap.",
			}),
			RPCRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "solstice",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "Total JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			RPCLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "solstice",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(
			saleRegistry.Purchases,
			saleRegistry.Claims,
			saleRegistry.Distributed,
			saleRegistry.TokensSold,
			saleRegistry.RPCRequests,
			saleRegistry.RPCLatency,
		)
	})
	return saleRegistry
}
