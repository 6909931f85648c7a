package middleware

import (
	"net"
	"net/http"
	"os"
	"strings"

	"github.com/medicore/hospital-portal/app/models"
)

// MetricsAuth guards /metrics. The portal's scrape endpoint sits on the same
// listener as the public API, so unprotected it would leak traffic shape and
// queue depths. Exactly one guard applies, picked from the environment:
//
//	METRICS_ALLOWED_IPS  - comma-separated addresses or CIDR ranges
//	METRICS_API_KEY      - shared key in X-Metrics-API-Key or ?api_key=
//	METRICS_REQUIRE_AUTH - "true" to require an admin session
//
// With none of them set the endpoint is open, which is only acceptable in
// local development.
func MetricsAuth() func(http.Handler) http.Handler {
	allowed := parseAllowedScrapers(os.Getenv("METRICS_ALLOWED_IPS"))
	apiKey := os.Getenv("METRICS_API_KEY")
	requireAuth := os.Getenv("METRICS_REQUIRE_AUTH") == "true"

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case !allowed.empty():
				if !allowed.contains(scraperIP(r)) {
					http.Error(w, "Forbidden", http.StatusForbidden)
					return
				}
			case apiKey != "":
				provided := r.Header.Get("X-Metrics-API-Key")
				if provided == "" {
					provided = r.URL.Query().Get("api_key")
				}
				if provided != apiKey {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
			case requireAuth:
				role, ok := RoleFromContext(r.Context())
				if !ok || role != models.RoleAdmin {
					http.Error(w, "Forbidden: admin access required", http.StatusForbidden)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// allowedScrapers holds the parsed METRICS_ALLOWED_IPS entries: plain
// addresses, CIDR ranges, and the "*" wildcard.
type allowedScrapers struct {
	ips      []string
	nets     []*net.IPNet
	wildcard bool
}

func parseAllowedScrapers(env string) allowedScrapers {
	var out allowedScrapers
	for _, entry := range strings.Split(env, ",") {
		entry = strings.TrimSpace(entry)
		switch {
		case entry == "":
		case entry == "*":
			out.wildcard = true
		case strings.Contains(entry, "/"):
			if _, ipNet, err := net.ParseCIDR(entry); err == nil {
				out.nets = append(out.nets, ipNet)
			}
		default:
			out.ips = append(out.ips, entry)
		}
	}
	return out
}

func (a allowedScrapers) empty() bool {
	return !a.wildcard && len(a.ips) == 0 && len(a.nets) == 0
}

func (a allowedScrapers) contains(ip string) bool {
	if a.wildcard {
		return true
	}
	for _, allowed := range a.ips {
		if allowed == ip {
			return true
		}
	}
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, n := range a.nets {
		if n.Contains(parsed) {
			return true
		}
	}
	return false
}

// scraperIP resolves the caller's address, trusting proxy headers first.
func scraperIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
