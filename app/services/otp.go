package services

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpLength      = 6
	otpTTL         = 10 * time.Minute
	otpResendAfter = 60 * time.Second
	otpMaxAttempts = 5
)

// otpRecord is what we keep in Redis under the purpose-scoped key. The code
// itself is stored hashed; only the hash ever touches the store.
type otpRecord struct {
	CodeHash  string `json:"code_hash"`
	Attempts  int    `json:"attempts"`
	IssuedAt  int64  `json:"issued_at"`
	ExpiresAt int64  `json:"expires_at"`
}

func otpKey(purpose, email string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, strings.ToLower(email))
}

func otpCooldownKey(purpose, email string) string {
	return fmt.Sprintf("otp_cooldown:%s:%s", purpose, strings.ToLower(email))
}

// generateOTPCode returns a uniformly random 6-digit numeric code.
func generateOTPCode() (string, error) {
	max := big.NewInt(1)
	for i := 0; i < otpLength; i++ {
		max.Mul(max, big.NewInt(10))
	}
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", otpLength, n), nil
}

// NormalizeOTP strips whitespace so codes pasted from email clients verify.
func NormalizeOTP(code string) string {
	return strings.TrimSpace(code)
}

func compareOTP(hash, code string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(hashToken(code))) == 1
}

// issueOTP generates a fresh code for (purpose, email), stores its hash with
// TTL, and arms the resend cooldown. A new issue replaces any outstanding code
// for the same purpose, so only the latest code verifies.
func issueOTP(ctx context.Context, rdb *redis.Client, purpose, email string) (string, error) {
	code, err := generateOTPCode()
	if err != nil {
		return "", err
	}

	now := time.Now()
	rec := otpRecord{
		CodeHash:  hashToken(code),
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(otpTTL).Unix(),
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("marshal otp record: %w", err)
	}

	if err := rdb.Set(ctx, otpKey(purpose, email), payload, otpTTL).Err(); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	if err := armResendCooldown(ctx, rdb, purpose, email); err != nil {
		return "", err
	}
	return code, nil
}

// armResendCooldown starts the resend window for (purpose, email) without
// issuing a code. ForgotPassword uses this for addresses that have no account,
// so the cooldown behaves the same whether or not the email is registered.
func armResendCooldown(ctx context.Context, rdb *redis.Client, purpose, email string) error {
	if err := rdb.Set(ctx, otpCooldownKey(purpose, email), "1", otpResendAfter).Err(); err != nil {
		return fmt.Errorf("store otp cooldown: %w", err)
	}
	return nil
}

// otpResendRemaining reports how many whole seconds of the resend cooldown are
// left for (purpose, email). 0 means a resend is allowed now.
func otpResendRemaining(ctx context.Context, rdb *redis.Client, purpose, email string) (int, error) {
	ttl, err := rdb.TTL(ctx, otpCooldownKey(purpose, email)).Result()
	if err != nil {
		return 0, fmt.Errorf("otp cooldown lookup: %w", err)
	}
	if ttl <= 0 {
		return 0, nil
	}
	return int(ttl.Round(time.Second).Seconds()), nil
}

var (
	errOTPNotFound    = fmt.Errorf("otp not found or expired")
	errOTPMismatch    = fmt.Errorf("otp does not match")
	errOTPMaxAttempts = fmt.Errorf("otp attempt limit reached")
)

// verifyOTP checks a submitted code against the stored hash. Each wrong guess
// increments the attempt counter; once the limit is hit the code is burned and
// a new one must be requested. A successful verify consumes the code.
func verifyOTP(ctx context.Context, rdb *redis.Client, purpose, email, code string) error {
	key := otpKey(purpose, email)

	val, err := rdb.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return errOTPNotFound
		}
		return fmt.Errorf("otp lookup: %w", err)
	}

	var rec otpRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return fmt.Errorf("otp decode: %w", err)
	}

	if time.Now().Unix() > rec.ExpiresAt {
		_ = rdb.Del(ctx, key).Err()
		return errOTPNotFound
	}

	if rec.Attempts >= otpMaxAttempts {
		_ = rdb.Del(ctx, key).Err()
		return errOTPMaxAttempts
	}

	if !compareOTP(rec.CodeHash, NormalizeOTP(code)) {
		rec.Attempts++
		if rec.Attempts >= otpMaxAttempts {
			_ = rdb.Del(ctx, key).Err()
			return errOTPMaxAttempts
		}
		payload, mErr := json.Marshal(rec)
		if mErr == nil {
			remaining := time.Until(time.Unix(rec.ExpiresAt, 0))
			if remaining > 0 {
				_ = rdb.Set(ctx, key, payload, remaining).Err()
			}
		}
		return errOTPMismatch
	}

	// One-time use: delete after successful verification.
	if err := rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("otp cleanup: %w", err)
	}
	return nil
}
