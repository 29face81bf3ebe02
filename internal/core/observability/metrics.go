package observability

import (
	"errors"
	"strconv"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
)

type collectors struct {
	catalogRequests *prometheus.CounterVec
	catalogDuration *prometheus.HistogramVec
	catalogRetries  *prometheus.CounterVec
	entityCache     *prometheus.CounterVec
	cacheOps        *prometheus.CounterVec
	redisDuration   *prometheus.HistogramVec
	sceneEvents     *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

var current atomic.Pointer[collectors]

func init() {
	current.Store(newCollectors(prometheus.DefaultRegisterer))
}

// Init rebinds every collector to reg. When disabled, samples go to a private
// registry that is never scraped.
func Init(reg prometheus.Registerer, enabled bool) {
	if !enabled || reg == nil {
		reg = prometheus.NewRegistry()
	}
	current.Store(newCollectors(reg))
}

func newCollectors(reg prometheus.Registerer) *collectors {
	return &collectors{
		catalogRequests: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_requests_total",
				Help: "Catalog API requests by endpoint and outcome.",
			},
			[]string{"endpoint", "outcome"},
		)),
		catalogDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "catalog_request_duration_seconds",
				Help:    "Latency of catalog API requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"endpoint"},
		)),
		catalogRetries: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "catalog_retries_total",
				Help: "Catalog requests retried after a rate limit response.",
			},
			[]string{"endpoint"},
		)),
		entityCache: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "entity_cache_results_total",
				Help: "Entity ID cache lookups by tier and outcome.",
			},
			[]string{"tier", "outcome"},
		)),
		cacheOps: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_op_total",
				Help: "Redis operations by op and result.",
			},
			[]string{"op", "result"},
		)),
		redisDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "redis_operation_duration_seconds",
				Help:    "Latency of Redis operations in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
			},
			[]string{"op"},
		)),
		sceneEvents: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scene_events_total",
				Help: "Scene events published to or consumed from Kafka, by outcome.",
			},
			[]string{"outcome"},
		)),
		httpRequests: register(reg, prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "route", "status"},
		)),
		httpDuration: register(reg, prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds.",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~20s
			},
			[]string{"method", "route", "status"},
		)),
	}
}

// register returns the already registered collector when reg has an equal one.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) T {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

const (
	OutcomeOK             = "ok"
	OutcomeAuthError      = "auth_error"
	OutcomeRateLimited    = "rate_limited"
	OutcomeCatalogError   = "catalog_error"
	OutcomeHTTPError      = "http_error"
	OutcomeTransportError = "transport_error"
)

func ObserveCatalogRequest(endpoint, outcome string, durationSeconds float64) {
	c := current.Load()
	c.catalogRequests.WithLabelValues(endpoint, outcome).Inc()
	c.catalogDuration.WithLabelValues(endpoint).Observe(durationSeconds)
}

func IncCatalogRetry(endpoint string) {
	current.Load().catalogRetries.WithLabelValues(endpoint).Inc()
}

// ObserveEntityCache counts n lookups for tier (lru|redis) with outcome (hit|miss).
func ObserveEntityCache(tier, outcome string, n int) {
	if n <= 0 {
		return
	}
	current.Load().entityCache.WithLabelValues(tier, outcome).Add(float64(n))
}

func ObserveCacheOp(op string, err error, durationSeconds float64) {
	c := current.Load()
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.cacheOps.WithLabelValues(op, result).Inc()
	c.redisDuration.WithLabelValues(op).Observe(durationSeconds)
}

func ObserveSceneEvent(outcome string) {
	current.Load().sceneEvents.WithLabelValues(outcome).Inc()
}

func ObserveHTTP(method, route string, status int, durationSeconds float64) {
	c := current.Load()
	st := strconv.Itoa(status)
	c.httpRequests.WithLabelValues(method, route, st).Inc()
	c.httpDuration.WithLabelValues(method, route, st).Observe(durationSeconds)
}
