package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "insightstox"

// Metrics registers on a private registry rather than the global default.
type Metrics struct {
	registry *prometheus.Registry

	QuoteCache      *prometheus.CounterVec
	QuoteFetch      prometheus.Histogram
	Transactions    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RateRefreshes   *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		QuoteCache: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_requests_total",
			Help:      "Price cache lookups by result",
		}, []string{"result"}),
		QuoteFetch: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_fetch_duration_seconds",
			Help:      "Duration of remote quote fetches",
			Buckets:   prometheus.DefBuckets,
		}),
		Transactions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_posted_total",
			Help:      "Posted transactions by side and outcome",
		}, []string{"side", "outcome"}),
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
		RateRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_refreshes_total",
			Help:      "Exchange rate refresh runs by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
