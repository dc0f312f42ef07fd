package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/catchlog/internal/metrics"
)

// Metrics records request count, latency and in-flight requests. Requests are
// labelled by chi route pattern ("/catches/{id}") rather than raw path so
// label cardinality stays bounded.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)
			m.RequestStarted()

			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				if pattern := rctx.RoutePattern(); pattern != "" {
					route = pattern
				}
			}
			m.RequestFinished(r.Method, route, wrapped.statusCode, time.Since(start))
		})
	}
}
