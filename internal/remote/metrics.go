package remote

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analytics_remote_fetch_total",
		Help: "Remote page fetch attempts by outcome",
	}, []string{"outcome"})

	fetchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analytics_remote_fetch_duration_seconds",
		Help:    "Latency of single remote page fetch attempts",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	})

	fetchRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_remote_fetch_retries_total",
		Help: "Retries scheduled after transient fetch failures",
	})

	fetchRetriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_remote_fetch_retries_exhausted_total",
		Help: "Fetches that failed after the retry budget was spent",
	})

	pagesFetched = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analytics_remote_pages_fetched_total",
		Help: "Pages successfully folded by sequential scans",
	})
)

func observeFetch(start time.Time, err error) {
	fetchDuration.Observe(time.Since(start).Seconds())
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if se := StatusCode(err); se != 0 {
			outcome = statusClass(se)
		}
	}
	fetchTotal.WithLabelValues(outcome).Inc()
}

func statusClass(code int) string {
	switch {
	case code == 429:
		return "rate_limited"
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	}
	return "other"
}
