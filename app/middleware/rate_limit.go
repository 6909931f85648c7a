package middleware

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RouteLimit names a route and the token-bucket budget it gets. Every auth
// endpoint carries its own limit; see mount() for the portal's table.
type RouteLimit struct {
	Name     string        // logical route name, becomes part of the Redis key
	Capacity int           // bucket size
	Window   time.Duration // time to refill the whole bucket
}

// PrincipalFunc decides who a request is counted against.
type PrincipalFunc func(*http.Request) string

// PrincipalIP counts by client address. The portal sits behind a reverse
// proxy in deployment, so X-Forwarded-For wins over RemoteAddr when present.
func PrincipalIP() PrincipalFunc {
	return func(r *http.Request) string {
		if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
			first, _, _ := strings.Cut(fwd, ",")
			return "ip:" + strings.TrimSpace(first)
		}
		if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
			return "ip:" + host
		}
		return "ip:unknown"
	}
}

// PrincipalUserOrIP counts authenticated traffic per account and everything
// else per address. Used on the protected API surface so a shared NAT does
// not burn one patient's budget on another's requests.
func PrincipalUserOrIP() PrincipalFunc {
	return func(r *http.Request) string {
		if uid, ok := UserIDFromContext(r.Context()); ok {
			return fmt.Sprintf("user:%d", uid)
		}
		return PrincipalIP()(r)
	}
}

// RateLimit enforces a token bucket in Redis. Take-and-refill runs as one Lua
// script so concurrent requests cannot double-spend a token.
func RateLimit(rdb *redis.Client, limit RouteLimit, principal PrincipalFunc) func(http.Handler) http.Handler {
	if principal == nil {
		principal = PrincipalIP()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("ratelimit:%s:%s", limit.Name, principal(r))

			allowed, remaining, retryAfter := reserveToken(r.Context(), rdb, key, limit)
			if !allowed {
				if retryAfter > 0 {
					w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
				}
				http.Error(w, "too many requests", http.StatusTooManyRequests)
				return
			}

			w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%.0f", remaining))
			next.ServeHTTP(w, r)
		})
	}
}

var tokenBucketScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local window = tonumber(ARGV[3]) -- ms

local state = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(state[1])
local ts = tonumber(state[2])

if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local elapsed = now - ts
if elapsed < 0 then elapsed = 0 end

tokens = math.min(capacity, tokens + (elapsed * capacity) / window)
ts = now

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "ts", ts)
redis.call("PEXPIRE", key, window)

local waitMs = 0
if allowed == 0 then
  local deficit = 1 - tokens
  if deficit < 0 then deficit = 0 end
  waitMs = math.ceil(deficit * window / capacity)
end

return {allowed, tokens, waitMs}
`)

// reserveToken takes one token from the bucket. A Redis failure lets the
// request through; a limiter outage must not lock patients out of the portal.
func reserveToken(ctx context.Context, rdb *redis.Client, key string, limit RouteLimit) (allowed bool, remaining float64, retryAfterSec int64) {
	now := time.Now().UnixMilli()
	res, err := tokenBucketScript.Run(ctx, rdb, []string{key}, now, limit.Capacity, limit.Window.Milliseconds()).Result()
	if err != nil {
		return true, float64(limit.Capacity), 0
	}
	arr, ok := res.([]interface{})
	if !ok || len(arr) != 3 {
		return true, float64(limit.Capacity), 0
	}
	allowed = arr[0].(int64) == 1
	remaining, _ = asFloat(arr[1])
	waitMs, _ := asFloat(arr[2])
	if waitMs > 0 {
		retryAfterSec = int64((waitMs + 999) / 1000)
	}
	return
}

func asFloat(v interface{}) (float64, bool) {
	switch t := v.(type) {
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
