package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/medicore/hospital-portal/app/logger"
	"github.com/redis/go-redis/v9"
)

// Severity levels for portal notifications.
const (
	SeveritySuccess = "success"
	SeverityError   = "error"
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// DefaultAutoCloseMS is how long clients should display a notification
// before dismissing it.
const DefaultAutoCloseMS = 3000

// Notification is a user-facing message fanned out to the user's connected
// clients over Redis pub/sub.
type Notification struct {
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	AutoCloseMS int    `json:"auto_close_ms"`
}

// Bus publishes notifications to per-user channels and hands out
// subscriptions for SSE streaming. It is injected into handlers; nothing
// reaches it through package-level state.
type Bus struct {
	rdb *redis.Client
}

func NewBus(rdb *redis.Client) *Bus {
	return &Bus{rdb: rdb}
}

func channelFor(userID int64) string {
	return fmt.Sprintf("notify:user:%d", userID)
}

// PublishOption adjusts a single notification before it is sent.
type PublishOption func(*Notification)

// WithAutoClose overrides how long clients display the notification.
// Non-positive values keep the default.
func WithAutoClose(ms int) PublishOption {
	return func(n *Notification) {
		if ms > 0 {
			n.AutoCloseMS = ms
		}
	}
}

// Publish sends a notification to all of the user's connected clients. When
// nobody is listening the notification is dropped, and the drop is logged
// with its full payload so it stays diagnosable.
func (b *Bus) Publish(ctx context.Context, userID int64, severity, message string, opts ...PublishOption) error {
	n := Notification{
		Severity:    severity,
		Message:     message,
		AutoCloseMS: DefaultAutoCloseMS,
	}
	for _, opt := range opts {
		opt(&n)
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	receivers, err := b.rdb.Publish(ctx, channelFor(userID), payload).Result()
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	if receivers == 0 {
		logger.Logger.Warn().
			Int64("user_id", userID).
			Str("severity", severity).
			Str("message", message).
			Msg("notification dropped: no connected clients")
	}
	return nil
}

// Subscription is a live per-user notification stream.
type Subscription struct {
	C      <-chan Notification
	cancel func()
}

// Close tears down the subscription and its pump goroutine.
func (s *Subscription) Close() {
	s.cancel()
}

// Subscribe opens a stream of the user's notifications. The stream ends when
// Close is called or ctx is cancelled; malformed payloads are skipped with a
// log line rather than killing the stream.
func (b *Bus) Subscribe(ctx context.Context, userID int64) (*Subscription, error) {
	pubsub := b.rdb.Subscribe(ctx, channelFor(userID))
	// Force the subscription onto the wire before we report success.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe notifications: %w", err)
	}

	out := make(chan Notification)
	subCtx, cancel := context.WithCancel(ctx)

	go func() {
		defer close(out)
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var n Notification
				if err := json.Unmarshal([]byte(msg.Payload), &n); err != nil {
					logger.Logger.Warn().Err(err).Int64("user_id", userID).Msg("skipping malformed notification payload")
					continue
				}
				select {
				case out <- n:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		C: out,
		cancel: func() {
			cancel()
			_ = pubsub.Close()
		},
	}, nil
}
