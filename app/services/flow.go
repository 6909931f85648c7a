package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// FlowRegistration and FlowReset name the two OTP-gated flows. An email
	// can have at most one pending flow at a time; starting one clears the
	// other.
	FlowRegistration = "registration"
	FlowReset        = "reset"

	// StageOTPSent means a code was issued but not yet verified.
	// StageVerified means the code was accepted and the final step
	// (completing registration, or setting a new password) is unlocked.
	StageOTPSent  = "otp_sent"
	StageVerified = "verified"

	pendingTTL = 30 * time.Minute
)

// PendingFlow is the server-side record of a half-finished registration or
// password reset. It replaces any client-held flow state: clients only hold
// the email they typed.
type PendingFlow struct {
	Email     string `json:"email"`
	Flow      string `json:"flow"`
	Stage     string `json:"stage"`
	CreatedAt int64  `json:"created_at"`
}

func pendingKey(flow, email string) string {
	return fmt.Sprintf("pending:%s:%s", flow, strings.ToLower(email))
}

func counterpartFlow(flow string) string {
	if flow == FlowRegistration {
		return FlowReset
	}
	return FlowRegistration
}

// startPendingFlow records the otp_sent stage for (flow, email) and clears
// any pending record for the counterpart flow, so one email never has both a
// registration and a reset in flight.
func startPendingFlow(ctx context.Context, rdb *redis.Client, flow, email string) error {
	if err := rdb.Del(ctx, pendingKey(counterpartFlow(flow), email)).Err(); err != nil {
		return fmt.Errorf("clear counterpart flow: %w", err)
	}

	rec := PendingFlow{
		Email:     strings.ToLower(email),
		Flow:      flow,
		Stage:     StageOTPSent,
		CreatedAt: time.Now().Unix(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal pending flow: %w", err)
	}
	if err := rdb.Set(ctx, pendingKey(flow, email), payload, pendingTTL).Err(); err != nil {
		return fmt.Errorf("store pending flow: %w", err)
	}
	return nil
}

// getPendingFlow loads the pending record for (flow, email), or redis.Nil via
// errFlowNotFound when none exists.
func getPendingFlow(ctx context.Context, rdb *redis.Client, flow, email string) (*PendingFlow, error) {
	val, err := rdb.Get(ctx, pendingKey(flow, email)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errFlowNotFound
		}
		return nil, fmt.Errorf("pending flow lookup: %w", err)
	}
	var rec PendingFlow
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("pending flow decode: %w", err)
	}
	return &rec, nil
}

// markPendingVerified advances (flow, email) from otp_sent to verified,
// refreshing the TTL so the user has the full window for the final step.
func markPendingVerified(ctx context.Context, rdb *redis.Client, flow, email string) error {
	rec, err := getPendingFlow(ctx, rdb, flow, email)
	if err != nil {
		return err
	}
	rec.Stage = StageVerified
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal pending flow: %w", err)
	}
	if err := rdb.Set(ctx, pendingKey(flow, email), payload, pendingTTL).Err(); err != nil {
		return fmt.Errorf("store pending flow: %w", err)
	}
	return nil
}

// clearPendingFlow removes the record for (flow, email). Safe to call when no
// record exists.
func clearPendingFlow(ctx context.Context, rdb *redis.Client, flow, email string) error {
	return rdb.Del(ctx, pendingKey(flow, email)).Err()
}

var errFlowNotFound = fmt.Errorf("no pending flow")
