// metrics.go — Prometheus HTTP метрики Access Module.
// Регистрирует метрики: acm_http_requests_total, acm_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "acm_http_requests_total",
			Help: "Общее количество HTTP-запросов к Access Module",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "acm_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Access Module в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (идентификаторы заменяются на плейсхолдеры для
			// предотвращения роста кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Суффиксы после идентификатора объекта, сохраняемые в лейбле пути.
var knownSuffixes = map[string]struct{}{
	"password":    {},
	"permissions": {},
	"tree":        {},
}

// normalizePath заменяет сегменты с идентификаторами на плейсхолдеры.
// /api/v1/data/postgres/users/alice/permissions →
// /api/v1/data/{source}/users/{id}/permissions
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics", "/api/v1/tokens":
		return path
	}

	if strings.HasPrefix(path, "/api/v1/tokens/") {
		return "/api/v1/tokens/{token}"
	}

	const dataPrefix = "/api/v1/data/"
	if !strings.HasPrefix(path, dataPrefix) {
		return path
	}

	// Сегменты: source / collection [/ id [/ suffix]]
	segments := strings.Split(strings.Trim(path[len(dataPrefix):], "/"), "/")
	if len(segments) < 2 {
		return path
	}

	normalized := dataPrefix + "{source}/" + segments[1]
	if len(segments) >= 3 {
		normalized += "/{id}"
	}
	if len(segments) >= 4 {
		if _, ok := knownSuffixes[segments[3]]; ok {
			normalized += "/" + segments[3]
		}
	}
	return normalized
}
