package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appErrors "github.com/noah-isme/exam-allocation-api/pkg/errors"
)

// Engine operations reported through MetricsService.RecordEngineOutcome.
const (
	OperationAvailability     = "availability"
	OperationAllocationDraft  = "allocation_preview"
	OperationScheduleSave     = "schedule_save"
	OperationBulkReschedule   = "bulk_reschedule"
	OperationUpdateReschedule = "update_reschedule"
	OperationUndoReschedule   = "undo_reschedule"
)

// MetricsService encapsulates Prometheus instrumentation for HTTP, cache and engine outcomes.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	engineOutcomes  *prometheus.CounterVec
	seatsMoved      *prometheus.CounterVec
}

// NewMetricsService registers the collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "availability_cache_latency_seconds",
		Help:    "Latency for availability cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "availability_cache_write_seconds",
		Help:    "Latency for availability cache writes",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_hits_total",
		Help: "Total availability cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "availability_cache_misses_total",
		Help: "Total availability cache misses",
	})

	engineOutcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_engine_operations_total",
		Help: "Scheduling engine operations by outcome code",
	}, []string{"operation", "outcome"})

	seatsMoved := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "exam_reschedule_students_total",
		Help: "Students moved to or restored from reschedule companions",
	}, []string{"operation"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		engineOutcomes, seatsMoved, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheHits:       cacheHits,
		cacheMisses:     cacheMisses,
		engineOutcomes:  engineOutcomes,
		seatsMoved:      seatsMoved,
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records cache hit/miss metrics.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordEngineOutcome counts an engine operation by the error code it ended with, "OK" on success.
func (m *MetricsService) RecordEngineOutcome(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "OK"
	if err != nil {
		outcome = appErrors.FromError(err).Code
	}
	m.engineOutcomes.WithLabelValues(operation, outcome).Inc()
}

// AddStudentsMoved counts students affected by a reschedule operation.
func (m *MetricsService) AddStudentsMoved(operation string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.seatsMoved.WithLabelValues(operation).Add(float64(n))
}
