package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/medicore/hospital-portal/app/metrics"
)

// Metrics times every portal request and feeds the Prometheus counters.
// Requests are labelled by chi route pattern ("/api/v1/appointments/{id}"),
// never by raw path, so record IDs do not blow up label cardinality.
func Metrics() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && len(rctx.RoutePatterns) > 0 {
				route = rctx.RoutePatterns[len(rctx.RoutePatterns)-1]
			}

			requestSize := r.ContentLength
			if requestSize < 0 {
				requestSize = 0
			}

			metrics.RecordHTTPRequest(
				r.Method,
				route,
				ww.Status(),
				time.Since(start),
				requestSize,
				int64(ww.BytesWritten()),
			)
		})
	}
}
