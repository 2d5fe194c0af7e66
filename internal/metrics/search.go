package metrics

import "github.com/prometheus/client_golang/prometheus"

// Retrieval and authorization Prometheus metrics.
var (
	SearchRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsearch",
			Name:      "search_requests_total",
			Help:      "Total number of search requests by mode",
		},
		[]string{"mode"}, // "hybrid" / "vector"
	)

	FGADecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsearch",
			Name:      "fga_decisions_total",
			Help:      "Total FGA authorization decisions",
		},
		[]string{"decision"}, // "allow" / "deny"
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers retrieval metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchRequestsTotal)
	prometheus.MustRegister(FGADecisionsTotal)
	searchMetricsRegistered = true
}
