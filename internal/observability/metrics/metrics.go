package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "trainsync_"

	resultSuccess = "success"
	resultError   = "error"

	cacheHit  = "hit"
	cacheMiss = "miss"
)

var (
	registerOnce sync.Once

	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	upstreamCache    *prometheus.CounterVec
	rateLimitWait    *prometheus.HistogramVec

	storeWrites *prometheus.CounterVec

	tripOutcomes  *prometheus.CounterVec
	cyclesTotal   *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	lastSuccess   prometheus.Gauge
)

// Init registers sync metrics. When db is set, cache table gauges are registered too.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		upstreamRequests = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "upstream_requests_total",
				Help: "Total outbound requests by service and result",
			},
			[]string{"service", "result"},
		)
		upstreamLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "upstream_latency_seconds",
				Help:    "Outbound request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"service"},
		)
		upstreamCache = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "upstream_cache_total",
				Help: "Response cache lookups by service and result",
			},
			[]string{"service", "result"},
		)
		rateLimitWait = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ratelimit_wait_seconds",
				Help:    "Time spent waiting for rate limiter capacity",
				Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"service"},
		)

		storeWrites = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "store_writes_total",
				Help: "Backing store writes by entity, action and result",
			},
			[]string{"entity", "action", "result"},
		)

		tripOutcomes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_trips_total",
				Help: "Processed trips by outcome",
			},
			[]string{"status"},
		)
		cyclesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sync_cycles_total",
				Help: "Sync cycles by result",
			},
			[]string{"result"},
		)
		cycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    metricPrefix + "sync_cycle_duration_seconds",
			Help:    "Sync cycle duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		})
		lastSuccess = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "sync_last_success_timestamp_seconds",
			Help: "Unix time of the last completed sync cycle",
		})

		prometheus.MustRegister(
			upstreamRequests,
			upstreamLatency,
			upstreamCache,
			rateLimitWait,
			storeWrites,
			tripOutcomes,
			cyclesTotal,
			cycleDuration,
			lastSuccess,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveUpstream records an outbound request.
func ObserveUpstream(service string, err error, duration time.Duration) {
	if service == "" {
		service = "unknown"
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if upstreamRequests != nil {
		upstreamRequests.WithLabelValues(service, result).Inc()
	}
	if upstreamLatency != nil {
		upstreamLatency.WithLabelValues(service).Observe(duration.Seconds())
	}
}

// ObserveCache records a cache lookup.
func ObserveCache(service string, hit bool) {
	if service == "" {
		service = "unknown"
	}
	result := cacheMiss
	if hit {
		result = cacheHit
	}
	if upstreamCache != nil {
		upstreamCache.WithLabelValues(service, result).Inc()
	}
}

// ObserveRateLimitWait records how long a caller was blocked by the limiter.
func ObserveRateLimitWait(service string, waited time.Duration) {
	if service == "" {
		service = "unknown"
	}
	if rateLimitWait != nil {
		rateLimitWait.WithLabelValues(service).Observe(waited.Seconds())
	}
}

// IncStoreWrite increments the backing store write counter.
func IncStoreWrite(entity, action string, err error) {
	if entity == "" {
		entity = "unknown"
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	if storeWrites != nil {
		storeWrites.WithLabelValues(entity, action, result).Inc()
	}
}

// IncTripOutcome increments the trip outcome counter.
func IncTripOutcome(status string) {
	if status == "" {
		status = "unknown"
	}
	if tripOutcomes != nil {
		tripOutcomes.WithLabelValues(status).Inc()
	}
}

// ObserveCycle records a finished or aborted cycle.
func ObserveCycle(err error, duration time.Duration, finishedAt time.Time) {
	if err != nil {
		if cyclesTotal != nil {
			cyclesTotal.WithLabelValues(resultError).Inc()
		}
		return
	}
	if cyclesTotal != nil {
		cyclesTotal.WithLabelValues(resultSuccess).Inc()
	}
	if cycleDuration != nil {
		cycleDuration.Observe(duration.Seconds())
	}
	if lastSuccess != nil {
		lastSuccess.Set(float64(finishedAt.Unix()))
	}
}

// Store write actions.
const (
	ActionCreate = "create"
	ActionUpdate = "update"
)
