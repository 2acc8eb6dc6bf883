package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metric collectors for the console.
type Metrics struct {
	registry *prometheus.Registry

	// Console HTTP metrics.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Backend API metrics, fed by the instrumented round tripper.
	BackendRequestsTotal   *prometheus.CounterVec
	BackendRequestDuration *prometheus.HistogramVec
	BackendInFlight        prometheus.Gauge

	// Session lifecycle.
	SessionRestorationsTotal *prometheus.CounterVec
	LoginsTotal              *prometheus.CounterVec
	LogoutsTotal             *prometheus.CounterVec

	RateLimitRejectionsTotal *prometheus.CounterVec

	ServerStartTime prometheus.Gauge
}

// New creates and registers all Prometheus metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,

		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dktadmin_http_requests_total",
			Help: "Total number of console HTTP requests.",
		}, []string{"method", "route", "status_code"}),

		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dktadmin_http_request_duration_seconds",
			Help:    "Console HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),

		BackendRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dktadmin_backend_requests_total",
			Help: "Total number of requests sent to the backend API.",
		}, []string{"code", "method"}),

		BackendRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dktadmin_backend_request_duration_seconds",
			Help:    "Backend API round-trip duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method"}),

		BackendInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dktadmin_backend_in_flight_requests",
			Help: "Number of backend API requests currently in flight.",
		}),

		SessionRestorationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dktadmin_session_restorations_total",
			Help: "Total number of session restorations by outcome.",
		}, []string{"outcome"}),

		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dktadmin_logins_total",
			Help: "Total number of sign-in attempts by result and role.",
		}, []string{"result", "role"}),

		LogoutsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dktadmin_logouts_total",
			Help: "Total number of logouts by backend revocation result.",
		}, []string{"backend"}),

		RateLimitRejectionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dktadmin_ratelimit_rejections_total",
			Help: "Total number of rate limit rejections.",
		}, []string{"limiter"}),

		ServerStartTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "dktadmin_server_start_time_seconds",
			Help: "Unix timestamp when the server started.",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.BackendRequestsTotal,
		m.BackendRequestDuration,
		m.BackendInFlight,
		m.SessionRestorationsTotal,
		m.LoginsTotal,
		m.LogoutsTotal,
		m.RateLimitRejectionsTotal,
		m.ServerStartTime,
	)

	m.ServerStartTime.Set(float64(time.Now().Unix()))

	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return m
}

// Registry returns the private Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// InstrumentTransport wraps next so every backend round trip is counted and
// timed. A nil next means http.DefaultTransport.
func (m *Metrics) InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return promhttp.InstrumentRoundTripperInFlight(m.BackendInFlight,
		promhttp.InstrumentRoundTripperCounter(m.BackendRequestsTotal,
			promhttp.InstrumentRoundTripperDuration(m.BackendRequestDuration, next),
		),
	)
}

// ObserveHTTP records one console request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncRateLimitRejection increments the rate limit rejection counter.
func (m *Metrics) IncRateLimitRejection(limiter string) {
	m.RateLimitRejectionsTotal.WithLabelValues(limiter).Inc()
}

// SessionRestored counts a restoration outcome.
func (m *Metrics) SessionRestored(outcome string) {
	m.SessionRestorationsTotal.WithLabelValues(outcome).Inc()
}

// LoginSucceeded counts a successful sign-in.
func (m *Metrics) LoginSucceeded(role string) {
	m.LoginsTotal.WithLabelValues("success", role).Inc()
}

// LoginFailed counts a rejected sign-in.
func (m *Metrics) LoginFailed() {
	m.LoginsTotal.WithLabelValues("failure", "").Inc()
}

// LoggedOut counts a logout.
func (m *Metrics) LoggedOut(backendOK bool) {
	result := "ok"
	if !backendOK {
		result = "error"
	}
	m.LogoutsTotal.WithLabelValues(result).Inc()
}
