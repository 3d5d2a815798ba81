package otherus

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "otherus_login_attempts_total",
		Help: "Login attempts by method (password or provider name) and outcome.",
	}, []string{"method", "outcome"})

	registrations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otherus_registrations_total",
		Help: "Successful account registrations.",
	})

	accountDeletions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "otherus_account_deletions_total",
		Help: "Self-service account deletions.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "otherus_http_request_duration_seconds",
		Help:    "HTTP request latency by method and status code.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "code"})
)

// statusRecorder captures the response code for instrumentation.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware observes request latency and status codes.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		requestDuration.WithLabelValues(r.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

func recordLogin(method string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	loginAttempts.WithLabelValues(method, outcome).Inc()
}
