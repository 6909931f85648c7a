package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_size_bytes",
			Help:    "HTTP request size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "endpoint"},
	)

	httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_size_bytes",
			Help:    "HTTP response size in bytes",
			Buckets: prometheus.ExponentialBuckets(100, 10, 7),
		},
		[]string{"method", "endpoint"},
	)

	// Business logic metrics
	portalLoginsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_logins_total",
			Help: "Total number of successful logins",
		},
	)

	portalLoginsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_logins_failed_total",
			Help: "Total number of failed login attempts",
		},
	)

	portalRegistrationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_registrations_total",
			Help: "Total number of completed registrations",
		},
	)

	portalOTPIssuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_otp_issued_total",
			Help: "Total number of OTP codes issued by flow",
		},
		[]string{"flow"},
	)

	portalOTPVerifiedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_otp_verified_total",
			Help: "Total number of OTP codes successfully verified by flow",
		},
		[]string{"flow"},
	)

	portalPasswordResetsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_password_resets_total",
			Help: "Total number of completed password resets",
		},
	)

	portalTokenRefreshesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_token_refreshes_total",
			Help: "Total number of token refreshes",
		},
	)

	portalSessionRevocationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "portal_session_revocations_total",
			Help: "Total number of sessions revoked after upstream 401s",
		},
	)

	// Mailer metrics
	mailerEmailsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_emails_sent_total",
			Help: "Total number of emails sent by type and provider",
		},
		[]string{"type", "provider"},
	)

	mailerEmailsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_emails_failed_total",
			Help: "Total number of failed email sends by type, provider and error",
		},
		[]string{"type", "provider", "error"},
	)

	mailerEmailSendDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailer_email_send_duration_seconds",
			Help:    "Email send duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"type"},
	)

	mailerMessagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_messages_consumed_total",
			Help: "Total number of broker messages consumed by queue and type",
		},
		[]string{"queue", "type"},
	)

	mailerMessageProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mailer_message_processing_duration_seconds",
			Help:    "End-to-end message processing duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"type"},
	)

	mailerIdempotencyHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailer_idempotency_hits_total",
			Help: "Total number of duplicate messages skipped",
		},
	)

	mailerIdempotencyMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mailer_idempotency_misses_total",
			Help: "Total number of first-seen messages",
		},
	)

	mailerRetryAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_retry_attempts_total",
			Help: "Total number of processing retries by message type",
		},
		[]string{"type"},
	)

	mailerDLQMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mailer_dlq_messages_total",
			Help: "Total number of messages dead-lettered by type and reason",
		},
		[]string{"type", "reason"},
	)

	// Dependency health metrics
	dependencyHealth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dependency_health",
			Help: "Health status of dependencies (1 = healthy, 0 = unhealthy)",
		},
		[]string{"dependency"},
	)
)

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	status := strconv.Itoa(statusCode)
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
	httpRequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	httpResponseSize.WithLabelValues(method, endpoint).Observe(float64(responseSize))
}

// RecordLogin increments the successful login counter
func RecordLogin() {
	portalLoginsTotal.Inc()
}

// RecordLoginFailed increments the failed login counter
func RecordLoginFailed() {
	portalLoginsFailed.Inc()
}

// RecordRegistration increments the completed registration counter
func RecordRegistration() {
	portalRegistrationsTotal.Inc()
}

// RecordOTPIssued increments the OTP issued counter for a flow
func RecordOTPIssued(flow string) {
	portalOTPIssuedTotal.WithLabelValues(flow).Inc()
}

// RecordOTPVerified increments the OTP verified counter for a flow
func RecordOTPVerified(flow string) {
	portalOTPVerifiedTotal.WithLabelValues(flow).Inc()
}

// RecordPasswordReset increments the completed password reset counter
func RecordPasswordReset() {
	portalPasswordResetsTotal.Inc()
}

// RecordTokenRefresh increments the token refresh counter
func RecordTokenRefresh() {
	portalTokenRefreshesTotal.Inc()
}

// RecordSessionRevocation increments the upstream-401 revocation counter
func RecordSessionRevocation() {
	portalSessionRevocationsTotal.Inc()
}

// RecordEmailSent records a successful email send
func RecordEmailSent(emailType, provider string, duration time.Duration) {
	mailerEmailsSentTotal.WithLabelValues(emailType, provider).Inc()
	mailerEmailSendDuration.WithLabelValues(emailType).Observe(duration.Seconds())
}

// RecordEmailFailed records a failed email send
func RecordEmailFailed(emailType, provider, errorType string) {
	mailerEmailsFailedTotal.WithLabelValues(emailType, provider, errorType).Inc()
}

// RecordMessageConsumed records a message pulled off a queue
func RecordMessageConsumed(queue, messageType string) {
	mailerMessagesConsumedTotal.WithLabelValues(queue, messageType).Inc()
}

// RecordMessageProcessing records end-to-end processing time for a message
func RecordMessageProcessing(messageType string, duration time.Duration) {
	mailerMessageProcessingDuration.WithLabelValues(messageType).Observe(duration.Seconds())
}

// RecordIdempotencyHit increments the duplicate-message counter
func RecordIdempotencyHit() {
	mailerIdempotencyHitsTotal.Inc()
}

// RecordIdempotencyMiss increments the first-seen-message counter
func RecordIdempotencyMiss() {
	mailerIdempotencyMissesTotal.Inc()
}

// RecordRetryAttempt increments the retry counter for a message type
func RecordRetryAttempt(messageType string) {
	mailerRetryAttemptsTotal.WithLabelValues(messageType).Inc()
}

// RecordDLQMessage increments the dead-letter counter
func RecordDLQMessage(messageType, reason string) {
	mailerDLQMessagesTotal.WithLabelValues(messageType, reason).Inc()
}

// SetDependencyHealth sets the health status of a dependency
func SetDependencyHealth(dependency string, healthy bool) {
	value := 0.0
	if healthy {
		value = 1.0
	}
	dependencyHealth.WithLabelValues(dependency).Set(value)
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
