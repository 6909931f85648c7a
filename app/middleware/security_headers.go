package middleware

import (
	"net/http"
	"os"
)

// SecurityHeaders sets the standard browser hardening headers. HSTS is only
// emitted when ENVIRONMENT=production since it assumes HTTPS.
func SecurityHeaders() func(http.Handler) http.Handler {
	enabled := isSecurityHeadersEnabled()
	isProduction := os.Getenv("ENVIRONMENT") == "production"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("X-XSS-Protection", "1; mode=block")
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Permissions-Policy",
				"geolocation=(), microphone=(), camera=(), payment=(), usb=(), magnetometer=(), gyroscope=(), speaker=()")

			csp := "default-src 'self'; script-src 'self'; style-src 'self' 'unsafe-inline'; img-src 'self' data: https:; font-src 'self' data:; connect-src 'self'; frame-ancestors 'none'; base-uri 'self'; form-action 'self'"
			w.Header().Set("Content-Security-Policy", csp)

			if isProduction {
				w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isSecurityHeadersEnabled() bool {
	enabledStr := os.Getenv("SECURITY_HEADERS_ENABLED")
	if enabledStr == "" {
		return true
	}
	return enabledStr == "true" || enabledStr == "1"
}
