package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/iudanet/usermgmt/internal/metrics"
)

// MetricsMiddleware собирает базовые метрики запросов для Prometheus.
// Путь нормализуется (id пользователя заменяется плейсхолдером),
// иначе кардинальность меток растет с каждым пользователем.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			labels := prometheus.Labels{
				"method": r.Method,
				"path":   sanitizePath(r.URL.Path),
				"status": strconv.Itoa(wrapped.statusCode),
			}
			metrics.HTTPRequestsTotal.With(labels).Inc()
			metrics.HTTPRequestDuration.With(labels).Observe(time.Since(start).Seconds())
		})
	}
}
