package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/medicore/hospital-portal/app/metrics"
)

// HealthResponse is the envelope for GET /health. The portal frontend polls
// it to decide whether to show its maintenance banner, so the body names each
// dependency instead of collapsing everything into the status code.
type HealthResponse struct {
	Status    string                 `json:"status"` // "healthy" or "unhealthy"
	Timestamp string                 `json:"timestamp"`
	Version   string                 `json:"version,omitempty"`
	Checks    map[string]CheckResult `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

// CheckResult reports one dependency probe.
type CheckResult struct {
	Status       string `json:"status"` // "up" or "down"
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

var portalStart = time.Now()

// healthCheckHandler probes Postgres, Redis, and RabbitMQ. Any dependency
// down makes the whole portal unhealthy: accounts live in Postgres, sessions
// and OTPs in Redis, and OTP emails cannot leave without the broker.
func (app *application) healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]CheckResult{
		"database": app.checkDatabase(ctx),
		"redis":    app.checkRedis(ctx),
		"rabbitmq": app.checkRabbitMQ(),
	}

	status := "healthy"
	for name, check := range checks {
		metrics.SetDependencyHealth(name, check.Status == "up")
		if check.Status != "up" {
			status = "unhealthy"
		}
	}

	code := http.StatusOK
	if status != "healthy" {
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
		Uptime:    time.Since(portalStart).String(),
	})
}

func (app *application) checkDatabase(ctx context.Context) CheckResult {
	start := time.Now()
	if app.db == nil {
		return CheckResult{Status: "down", Error: "database connection not initialized"}
	}
	if err := app.db.PingContext(ctx); err != nil {
		return CheckResult{Status: "down", ResponseTime: time.Since(start).String(), Error: err.Error()}
	}
	return CheckResult{Status: "up", ResponseTime: time.Since(start).String()}
}

func (app *application) checkRedis(ctx context.Context) CheckResult {
	start := time.Now()
	if app.redisClient == nil {
		return CheckResult{Status: "down", Error: "redis client not initialized"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := app.redisClient.Ping(pingCtx).Err(); err != nil {
		return CheckResult{Status: "down", ResponseTime: time.Since(start).String(), Error: err.Error()}
	}
	return CheckResult{Status: "up", ResponseTime: time.Since(start).String()}
}

// checkRabbitMQ only inspects connection state; publishing a probe message
// from the request path would put health-check noise on the portal exchange.
func (app *application) checkRabbitMQ() CheckResult {
	start := time.Now()
	if app.rabbitConn == nil || app.rabbitCh == nil {
		return CheckResult{Status: "down", Error: "rabbitmq connection not initialized"}
	}
	if app.rabbitConn.IsClosed() {
		return CheckResult{Status: "down", ResponseTime: time.Since(start).String(), Error: "rabbitmq connection is closed"}
	}
	if app.rabbitCh.IsClosed() {
		return CheckResult{Status: "down", ResponseTime: time.Since(start).String(), Error: "rabbitmq channel is closed"}
	}
	return CheckResult{Status: "up", ResponseTime: time.Since(start).String()}
}
