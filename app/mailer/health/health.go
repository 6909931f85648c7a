package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/medicore/hospital-portal/app/metrics"
)

// HealthResponse is the envelope for the mailer sidecar's GET /health.
type HealthResponse struct {
	Status    string                 `json:"status"` // "healthy" or "unhealthy"
	Timestamp string                 `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks"`
	Uptime    string                 `json:"uptime,omitempty"`
}

// CheckResult reports one dependency probe.
type CheckResult struct {
	Status       string `json:"status"` // "up" or "down"
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

var workerStart = time.Now()

// EmailSenderChecker reports email provider health.
type EmailSenderChecker interface {
	CheckHealth(ctx context.Context) error
}

// Handler serves the mailer's health endpoints on the sidecar listener. The
// worker itself exposes no HTTP surface, so orchestration probes land here.
type Handler struct {
	rabbitMQConn *amqp.Connection
	rabbitMQCh   *amqp.Channel
	redisClient  *redis.Client
	emailSender  EmailSenderChecker
}

func NewHandler(
	rabbitMQConn *amqp.Connection,
	rabbitMQCh *amqp.Channel,
	redisClient *redis.Client,
	emailSender EmailSenderChecker,
) *Handler {
	return &Handler{
		rabbitMQConn: rabbitMQConn,
		rabbitMQCh:   rabbitMQCh,
		redisClient:  redisClient,
		emailSender:  emailSender,
	}
}

// HealthCheck aggregates the dependency probes. The broker and Redis are
// fatal: without them the worker can neither receive OTP messages nor
// deduplicate them. A failing email provider is only reported; queued
// messages retry once it recovers.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]CheckResult{
		"rabbitmq": h.checkRabbitMQ(ctx),
		"redis":    h.checkRedis(ctx),
	}

	status := "healthy"
	for name, check := range checks {
		metrics.SetDependencyHealth(name, check.Status == "up")
		if check.Status != "up" {
			status = "unhealthy"
		}
	}

	if h.emailSender != nil {
		emailCheck := h.checkEmailProvider(ctx)
		checks["email"] = emailCheck
		metrics.SetDependencyHealth("email_provider", emailCheck.Status == "up")
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
		Uptime:    time.Since(workerStart).String(),
	})
}

// HealthCheckRabbitMQ probes only the broker.
func (h *Handler) HealthCheckRabbitMQ(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	writeCheck(w, h.checkRabbitMQ(ctx))
}

// HealthCheckRedis probes only the idempotency/rate-limit store.
func (h *Handler) HealthCheckRedis(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	writeCheck(w, h.checkRedis(ctx))
}

// HealthCheckEmail probes only the email provider.
func (h *Handler) HealthCheckEmail(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	writeCheck(w, h.checkEmailProvider(ctx))
}

func writeCheck(w http.ResponseWriter, check CheckResult) {
	code := http.StatusOK
	if check.Status != "up" {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(check)
}

// checkRabbitMQ declares and deletes a throwaway queue so the probe exercises
// the channel end to end, not just the TCP connection state.
func (h *Handler) checkRabbitMQ(ctx context.Context) CheckResult {
	start := time.Now()

	if h.rabbitMQConn == nil || h.rabbitMQConn.IsClosed() {
		return CheckResult{Status: "down", Error: "rabbitmq connection not initialized or closed"}
	}
	if h.rabbitMQCh == nil || h.rabbitMQCh.IsClosed() {
		return CheckResult{Status: "down", Error: "rabbitmq channel not initialized or closed"}
	}

	const probeQueue = "mailer.health.probe"
	_, err := h.rabbitMQCh.QueueDeclare(
		probeQueue,
		false, // not durable
		true,  // delete when unused
		true,  // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return CheckResult{Status: "down", ResponseTime: time.Since(start).String(), Error: err.Error()}
	}
	_, _ = h.rabbitMQCh.QueueDelete(probeQueue, false, false, false)

	return CheckResult{Status: "up", ResponseTime: time.Since(start).String()}
}

func (h *Handler) checkRedis(ctx context.Context) CheckResult {
	start := time.Now()

	if h.redisClient == nil {
		return CheckResult{Status: "down", Error: "redis client not initialized"}
	}

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := h.redisClient.Ping(pingCtx).Err(); err != nil {
		return CheckResult{Status: "down", ResponseTime: time.Since(start).String(), Error: err.Error()}
	}

	return CheckResult{Status: "up", ResponseTime: time.Since(start).String()}
}

func (h *Handler) checkEmailProvider(ctx context.Context) CheckResult {
	start := time.Now()

	if h.emailSender == nil {
		return CheckResult{Status: "down", Error: "email sender not initialized"}
	}
	if err := h.emailSender.CheckHealth(ctx); err != nil {
		return CheckResult{Status: "down", ResponseTime: time.Since(start).String(), Error: err.Error()}
	}

	return CheckResult{Status: "up", ResponseTime: time.Since(start).String()}
}
