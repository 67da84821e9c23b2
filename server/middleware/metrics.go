package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/teilomillet/sous/server/metrics"
)

// PrometheusMetrics records request count, duration and in-flight requests.
// Requests are labelled by their chi route pattern so unknown paths do not
// create unbounded label values.
func PrometheusMetrics(m *metrics.Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			m.ActiveRequests.WithLabelValues("in_flight").Inc()
			defer m.ActiveRequests.WithLabelValues("in_flight").Dec()

			rw := NewResponseWriter(w)
			next.ServeHTTP(rw, r)

			endpoint := routePattern(r)
			status := rw.Status()
			m.RequestsTotal.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
			m.RequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())

			if status >= 500 {
				m.ErrorsTotal.WithLabelValues("server_error").Inc()
			} else if status >= 400 {
				m.ErrorsTotal.WithLabelValues("client_error").Inc()
			}
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
