package downstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/medicore/hospital-portal/app/logger"
	"github.com/medicore/hospital-portal/app/middleware"
)

var (
	ErrTimeout      = errors.New("downstream_timeout")
	ErrUnavailable  = errors.New("downstream_unavailable")
	ErrNotFound     = errors.New("resource_not_found")
	ErrUnauthorized = errors.New("unauthorized")
)

// StatusError carries a non-2xx response from the records backend.
type StatusError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("downstream error [%d] %s: %s", e.StatusCode, e.Code, e.Message)
}

func decodeError(resp *http.Response) error {
	var body struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		msg := body.Message
		if msg == "" {
			msg = body.Error
		}
		if msg != "" {
			code := body.Code
			if code == "" {
				code = "downstream_error"
			}
			return &StatusError{StatusCode: resp.StatusCode, Code: code, Message: msg}
		}
	}
	return &StatusError{
		StatusCode: resp.StatusCode,
		Code:       "downstream_error",
		Message:    fmt.Sprintf("unexpected status: %d", resp.StatusCode),
	}
}

// ClientConfig holds timeouts for the HTTP client wrapper.
type ClientConfig struct {
	// ReadTimeout is used for GET requests
	ReadTimeout time.Duration
	// WriteTimeout is used for POST, PUT, PATCH, DELETE requests
	WriteTimeout time.Duration
}

// DefaultClientConfig returns sensible defaults
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
}

// Client is a centralized HTTP client wrapper that:
// 1. Injects X-Request-ID from context
// 2. Enforces timeouts based on HTTP method (read vs write)
// 3. Provides unified error mapping
// 4. Logs requests with correlation ID
type Client struct {
	baseClient *http.Client
	config     ClientConfig
}

// NewClient creates a new HTTP client wrapper
func NewClient(config ClientConfig) *Client {
	return &Client{
		baseClient: &http.Client{
			// No global timeout - per-request timeouts below
			Timeout: 0,
		},
		config: config,
	}
}

// Do executes an HTTP request with request-ID injection, method-based timeout
// enforcement, and unified error mapping.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if reqID := middleware.GetRequestIDFromContext(ctx); reqID != "" {
		req.Header.Set("X-Request-ID", reqID)
	}

	timeout := c.config.ReadTimeout
	if isWriteMethod(req.Method) {
		timeout = c.config.WriteTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	req = req.WithContext(ctx)

	log := logger.Logger.With().
		Str("method", req.Method).
		Str("url", req.URL.String()).
		Str("request_id", middleware.GetRequestIDFromContext(ctx)).
		Logger()

	start := time.Now()

	resp, err := c.baseClient.Do(req)

	duration := time.Since(start)
	if err != nil {
		log.Warn().
			Err(err).
			Dur("duration", duration).
			Msg("downstream_request_failed")
		return nil, c.mapError(err)
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("duration", duration).
		Msg("downstream_request_completed")

	return resp, nil
}

// mapError converts low-level errors to domain errors
func (c *Client) mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}
	// Connection refused, DNS errors, etc.
	return ErrUnavailable
}

// isWriteMethod returns true for HTTP methods that modify state
func isWriteMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// DoWithBody is a convenience method for requests with a body
func (c *Client) DoWithBody(ctx context.Context, method, url string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return c.Do(ctx, req)
}

// Get is a convenience method for GET requests
func (c *Client) Get(ctx context.Context, url string, headers map[string]string) (*http.Response, error) {
	return c.DoWithBody(ctx, http.MethodGet, url, nil, headers)
}
