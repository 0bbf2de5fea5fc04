package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Conversion metrics
	ConversionsTotal   *prometheus.CounterVec
	ConversionDuration prometheus.Histogram
	ConversionPages    prometheus.Histogram

	// Credit metrics
	CreditDebitsTotal   *prometheus.CounterVec
	CreditRefundsTotal  *prometheus.CounterVec
	RefundFailuresTotal prometheus.Counter

	// Rate limit metrics
	RateLimitRejectionsTotal *prometheus.CounterVec

	// Fetch metrics
	FetchesTotal  *prometheus.CounterVec
	FetchDuration prometheus.Histogram

	// Database metrics
	DBConnectionsActive prometheus.Gauge
	DBConnectionsIdle   prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docuprocess_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docuprocess_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		ConversionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docuprocess_conversions_total",
				Help: "Total number of PDF to Markdown conversions",
			},
			[]string{"source", "status"},
		),
		ConversionDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docuprocess_conversion_duration_seconds",
				Help:    "Conversion duration in seconds, including the remote fetch",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		ConversionPages: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docuprocess_conversion_pages",
				Help:    "Page count of converted documents",
				Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
			},
		),

		CreditDebitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docuprocess_credit_debits_total",
				Help: "Total number of credit debit attempts",
			},
			[]string{"status"},
		),
		CreditRefundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docuprocess_credit_refunds_total",
				Help: "Total number of credit refund attempts",
			},
			[]string{"status"},
		),
		RefundFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "docuprocess_refund_failures_total",
				Help: "Refunds that failed after a successful debit, a real monetary inconsistency",
			},
		),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docuprocess_ratelimit_rejections_total",
				Help: "Total number of requests rejected by the rate limiter",
			},
			[]string{"tier"},
		),

		FetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docuprocess_fetches_total",
				Help: "Total number of remote document fetches",
			},
			[]string{"status"},
		),
		FetchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docuprocess_fetch_duration_seconds",
				Help:    "Remote document fetch duration in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
		),

		DBConnectionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docuprocess_db_connections_active",
				Help: "Number of active database connections",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "docuprocess_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ConversionsTotal,
		m.ConversionDuration,
		m.ConversionPages,
		m.CreditDebitsTotal,
		m.CreditRefundsTotal,
		m.RefundFailuresTotal,
		m.RateLimitRejectionsTotal,
		m.FetchesTotal,
		m.FetchDuration,
		m.DBConnectionsActive,
		m.DBConnectionsIdle,
	)

	return m
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(rw.statusCode)

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(duration)
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(mux *http.ServeMux, registry *prometheus.Registry) {
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
