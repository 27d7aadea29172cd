package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})
	LoginAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "usermgmt_login_attempts_total",
		Help: "Total number of login attempts by outcome",
	}, []string{"outcome"})
	ResetRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "usermgmt_password_reset_requests_total",
		Help: "Total number of password reset dispatch requests",
	})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		LoginAttemptsTotal,
		ResetRequestsTotal,
	)
}
