package service

import (
	"fmt"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP
// surface, the cache and the governance/treasury lifecycle.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHitRatio   prometheus.Gauge
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter
	dbQueryDuration *prometheus.HistogramVec

	proposalsCreated    prometheus.Counter
	proposalVotes       prometheus.Counter
	proposalsExecuted   *prometheus.CounterVec
	enrollmentApplied   prometheus.Counter
	enrollmentDecided   *prometheus.CounterVec
	enrollmentConfirmed prometheus.Counter
	coursesCompleted    prometheus.Counter
	payoutTotal         *prometheus.CounterVec
	payoutAmount        *prometheus.CounterVec
	ledgerCallDuration  *prometheus.HistogramVec
	eventPublishFailed  prometheus.Counter

	cacheHitCount  uint64
	cacheMissCount uint64
}

// NewMetricsService registers core Prometheus collectors.
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
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHitRatio := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cache_hit_ratio",
		Help: "Ratio of cache hits to total cache lookups",
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	dbQueryDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "db_query_duration_seconds",
		Help:    "Duration of database queries",
		Buckets: prometheus.DefBuckets,
	}, []string{"query"})

	proposalsCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proposals_created_total",
		Help: "Total admission proposals created",
	})

	proposalVotes := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "proposal_votes_total",
		Help: "Total votes cast on admission proposals",
	})

	proposalsExecuted := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "proposals_executed_total",
		Help: "Total executed proposals by outcome",
	}, []string{"outcome"})

	enrollmentApplied := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollment_applications_total",
		Help: "Total enrollment applications submitted",
	})

	enrollmentDecided := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "enrollment_decisions_total",
		Help: "Total enrollment committee decisions by outcome",
	}, []string{"outcome"})

	enrollmentConfirmed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "enrollments_confirmed_total",
		Help: "Total paid enrollment confirmations",
	})

	coursesCompleted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "course_completions_total",
		Help: "Total per-student course completions",
	})

	payoutTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_payouts_total",
		Help: "Total outbound treasury transfers by kind",
	}, []string{"kind"})

	payoutAmount := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_payout_amount_total",
		Help: "Summed outbound treasury amount by kind, in smallest units",
	}, []string{"kind"})

	ledgerCallDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_call_duration_seconds",
		Help:    "Duration of settlement ledger calls",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "outcome"})

	eventPublishFailed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "event_publish_failures_total",
		Help: "Total event stream publish failures",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHitRatio,
		cacheHits, cacheMisses, dbQueryDuration, proposalsCreated, proposalVotes, proposalsExecuted,
		enrollmentApplied, enrollmentDecided, enrollmentConfirmed, coursesCompleted,
		payoutTotal, payoutAmount, ledgerCallDuration, eventPublishFailed, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:            registry,
		handler:             handler,
		requestDuration:     requestDuration,
		requestTotal:        requestTotal,
		cacheLatency:        cacheLatency,
		cacheWrite:          cacheWrite,
		cacheHitRatio:       cacheHitRatio,
		cacheHits:           cacheHits,
		cacheMisses:         cacheMisses,
		dbQueryDuration:     dbQueryDuration,
		proposalsCreated:    proposalsCreated,
		proposalVotes:       proposalVotes,
		proposalsExecuted:   proposalsExecuted,
		enrollmentApplied:   enrollmentApplied,
		enrollmentDecided:   enrollmentDecided,
		enrollmentConfirmed: enrollmentConfirmed,
		coursesCompleted:    coursesCompleted,
		payoutTotal:         payoutTotal,
		payoutAmount:        payoutAmount,
		ledgerCallDuration:  ledgerCallDuration,
		eventPublishFailed:  eventPublishFailed,
	}
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

// RecordCacheOperation records cache hit/miss metrics and updates hit ratio.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	if m.cacheLatency != nil {
		m.cacheLatency.Observe(duration.Seconds())
	}
	if hit {
		m.cacheHits.Inc()
		atomic.AddUint64(&m.cacheHitCount, 1)
	} else {
		m.cacheMisses.Inc()
		atomic.AddUint64(&m.cacheMissCount, 1)
	}
	hits := atomic.LoadUint64(&m.cacheHitCount)
	misses := atomic.LoadUint64(&m.cacheMissCount)
	total := hits + misses
	if total > 0 {
		m.cacheHitRatio.Set(float64(hits) / float64(total))
	}
}

// ObserveCacheWrite tracks the duration for cache set operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil || m.cacheWrite == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// ObserveDBQuery records database query timing.
func (m *MetricsService) ObserveDBQuery(label string, duration time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(label).Observe(duration.Seconds())
}

// RecordProposalCreated counts a new admission proposal.
func (m *MetricsService) RecordProposalCreated() {
	if m == nil {
		return
	}
	m.proposalsCreated.Inc()
}

// RecordProposalVote counts a cast proposal vote.
func (m *MetricsService) RecordProposalVote() {
	if m == nil {
		return
	}
	m.proposalVotes.Inc()
}

// RecordProposalExecuted counts an execution by outcome.
func (m *MetricsService) RecordProposalExecuted(passed bool) {
	if m == nil {
		return
	}
	m.proposalsExecuted.WithLabelValues(outcomeLabel(passed)).Inc()
}

// RecordEnrollmentApplied counts a submitted application.
func (m *MetricsService) RecordEnrollmentApplied() {
	if m == nil {
		return
	}
	m.enrollmentApplied.Inc()
}

// RecordEnrollmentDecided counts a committee decision by outcome.
func (m *MetricsService) RecordEnrollmentDecided(accepted bool) {
	if m == nil {
		return
	}
	if accepted {
		m.enrollmentDecided.WithLabelValues("accepted").Inc()
	} else {
		m.enrollmentDecided.WithLabelValues("rejected").Inc()
	}
}

// RecordEnrollmentConfirmed counts a paid confirmation.
func (m *MetricsService) RecordEnrollmentConfirmed() {
	if m == nil {
		return
	}
	m.enrollmentConfirmed.Inc()
}

// RecordCourseCompleted counts a per-student completion.
func (m *MetricsService) RecordCourseCompleted() {
	if m == nil {
		return
	}
	m.coursesCompleted.Inc()
}

// RecordPayout counts one outbound treasury transfer and its amount.
func (m *MetricsService) RecordPayout(kind string, amount int64) {
	if m == nil {
		return
	}
	m.payoutTotal.WithLabelValues(kind).Inc()
	m.payoutAmount.WithLabelValues(kind).Add(float64(amount))
}

// ObserveLedgerCall records one settlement ledger round trip.
func (m *MetricsService) ObserveLedgerCall(op string, err error, duration time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ledgerCallDuration.WithLabelValues(op, outcome).Observe(duration.Seconds())
}

// RecordEventPublishFailure counts a failed stream publish.
func (m *MetricsService) RecordEventPublishFailure() {
	if m == nil {
		return
	}
	m.eventPublishFailed.Inc()
}

func outcomeLabel(passed bool) string {
	if passed {
		return "passed"
	}
	return "rejected"
}
