package metrics

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	FetchResultOK          = "ok"
	FetchResultEmpty       = "empty"
	FetchResultUnavailable = "unavailable"
	FetchResultQueryFailed = "query_failed"
)

var (
	fetchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepdash",
		Subsystem: "dashboard",
		Name:      "fetches_total",
		Help:      "Dashboard loads grouped by outcome.",
	}, []string{"result"})

	fetchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stepdash",
		Subsystem: "dashboard",
		Name:      "fetch_duration_seconds",
		Help:      "Time spent loading and aggregating step documents.",
		Buckets:   prometheus.DefBuckets,
	})

	documentsPerFetch = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stepdash",
		Subsystem: "dashboard",
		Name:      "documents_per_fetch",
		Help:      "Number of step documents returned by a successful fetch.",
		Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
	})

	timestampFallbackCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stepdash",
		Subsystem: "steps",
		Name:      "timestamp_fallbacks_total",
		Help:      "Step documents whose timestamp could not be interpreted.",
	})

	authCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepdash",
		Subsystem: "auth",
		Name:      "attempts_total",
		Help:      "Authentication attempts grouped by action and outcome.",
	}, []string{"action", "outcome"})
)

func init() {
	prometheus.MustRegister(fetchCounter, fetchDuration, documentsPerFetch, timestampFallbackCounter, authCounter)
}

// ObserveFetch records one dashboard load. documents is ignored unless the
// fetch reached the store successfully.
func ObserveFetch(result string, elapsed time.Duration, documents int) {
	fetchCounter.WithLabelValues(result).Inc()
	fetchDuration.Observe(elapsed.Seconds())
	if result == FetchResultOK || result == FetchResultEmpty {
		documentsPerFetch.Observe(float64(documents))
	}
}

func TimestampFallback() {
	timestampFallbackCounter.Inc()
}

func AuthAttempt(action string, outcome string) {
	authCounter.WithLabelValues(action, outcome).Inc()
}

func Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
