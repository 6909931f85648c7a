package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	applogger "github.com/medicore/hospital-portal/app/logger"
	"github.com/rs/zerolog"
)

// RequestIDTracing binds the request ID to a request-scoped logger and
// stores it in the context, so every log line for a portal request can be
// correlated across the API, the records client, and the event publisher.
// The ID is also echoed back in X-Request-ID for the frontend's bug reports.
func RequestIDTracing() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// chi's middleware.RequestID runs earlier in the chain; mint one
			// ourselves only if it did not.
			requestID := middleware.GetReqID(r.Context())
			if requestID == "" {
				requestID = strconv.FormatUint(middleware.NextRequestID(), 10)
			}

			w.Header().Set("X-Request-ID", requestID)

			reqLogger := applogger.WithRequestID(requestID)
			ctx := reqLogger.WithContext(r.Context())
			ctx = applogger.ContextWithRequestID(ctx, requestID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetRequestIDFromContext returns the request ID stored by RequestIDTracing.
func GetRequestIDFromContext(ctx context.Context) string {
	return applogger.RequestIDFromContext(ctx)
}

// GetLoggerFromContext returns the request-scoped logger, or the global one
// outside a request.
func GetLoggerFromContext(ctx context.Context) zerolog.Logger {
	return applogger.FromContext(ctx)
}
