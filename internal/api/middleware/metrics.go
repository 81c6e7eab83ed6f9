package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/nacos-mini/nacos-go/internal/metrics"
)

// MetricsMiddleware instruments every request against the process's HTTP
// metrics category: request count by method/route/status and request
// duration.
func MetricsMiddleware(reg *metrics.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			reg.HTTP().RecordRequest(r.Method, normalizeEndpoint(r.URL.Path), strconv.Itoa(rw.statusCode), time.Since(start))
		})
	}
}

// metricsResponseWriter wraps http.ResponseWriter to capture the status
// code for the metrics middleware.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// normalizeEndpoint returns the request path unchanged as the route label;
// identifiers in the path are not collapsed.
func normalizeEndpoint(path string) string {
	return path
}
