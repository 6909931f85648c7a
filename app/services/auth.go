package services

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/medicore/hospital-portal/app/circuitbreaker"
	"github.com/medicore/hospital-portal/app/dto"
	appErrors "github.com/medicore/hospital-portal/app/errors"
	"github.com/medicore/hospital-portal/app/logger"
	"github.com/medicore/hospital-portal/app/models"
	"github.com/medicore/hospital-portal/app/store"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// AuthService owns the three credential flows: login, OTP-gated
// registration, and OTP-gated password reset. All transient flow state lives
// in Redis; the client never carries more than the email it typed.
type AuthService struct {
	store         store.Storage
	redisClient   *redis.Client
	publisher     EventPublisher
	rabbitBreaker *circuitbreaker.CircuitBreaker
}

// NewAuthService creates a new AuthService
func NewAuthService(store store.Storage, redisClient *redis.Client, publisher EventPublisher) *AuthService {
	// 5 failures before opening, 30s reset timeout, 3 calls in half-open
	return &AuthService{
		store:         store,
		redisClient:   redisClient,
		publisher:     publisher,
		rabbitBreaker: circuitbreaker.New(5, 30*time.Second, 3),
	}
}

// getLoggerFromContext retrieves logger from context or returns global logger
func getLoggerFromContext(ctx context.Context) zerolog.Logger {
	if log := zerolog.Ctx(ctx); log.GetLevel() != zerolog.Disabled {
		return *log
	}
	// Fallback to global logger
	return logger.Logger
}

// Login verifies credentials and opens a session. The failure message is the
// same whether the email is unknown or the password is wrong.
// Note: Input validation (format, length, etc.) is already done in the handler layer
func (s *AuthService) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, *appErrors.AppError) {
	user, err := s.store.Users.GetByEmail(ctx, strings.ToLower(req.Email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewUnauthorized("invalid email or password")
		}
		return nil, appErrors.NewInternal("error getting user by email")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, appErrors.NewUnauthorized("invalid email or password")
		}
		return nil, appErrors.NewInternal("error verifying password")
	}

	refreshToken, err := generateRefreshToken(ctx, s.redisClient, user.ID, user.Role, user.Name)
	if err != nil {
		return nil, appErrors.NewInternal("error generating refresh token")
	}
	accessToken, err := GenerateAccessToken(user.ID, user.Role, user.Name)
	if err != nil {
		return nil, appErrors.NewInternal("error generating access token")
	}

	return &dto.AuthResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		User: dto.UserResponse{
			ID:        user.ID,
			Name:      user.Name,
			Email:     user.Email,
			Role:      user.Role,
			CreatedAt: user.CreatedAt.Format(time.RFC3339),
		},
		RedirectTo: models.DashboardPath(user.Role),
	}, nil
}

// RequestRegistrationOTP starts the registration flow: reject emails that
// already have an account, then issue a code and dispatch it by email.
func (s *AuthService) RequestRegistrationOTP(ctx context.Context, req dto.RequestRegistrationOTPRequest) (*dto.OTPIssuedResponse, *appErrors.AppError) {
	email := strings.ToLower(req.Email)

	existingUser, err := s.store.Users.GetByEmail(ctx, email)
	if err == nil && existingUser != nil {
		return nil, appErrors.NewConflict("email already registered")
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewInternal("database error while checking email")
	}

	if appErr := s.checkResendCooldown(ctx, FlowRegistration, email); appErr != nil {
		return nil, appErr
	}

	if err := startPendingFlow(ctx, s.redisClient, FlowRegistration, email); err != nil {
		return nil, appErrors.NewInternal("failed to start registration")
	}

	return s.dispatchOTP(ctx, FlowRegistration, email)
}

// VerifyRegistrationOTP checks the submitted code and unlocks the final
// registration step.
func (s *AuthService) VerifyRegistrationOTP(ctx context.Context, req dto.VerifyRegistrationOTPRequest) (*dto.MessageResponse, *appErrors.AppError) {
	email := strings.ToLower(req.Email)

	flow, err := getPendingFlow(ctx, s.redisClient, FlowRegistration, email)
	if err != nil {
		if errors.Is(err, errFlowNotFound) {
			return nil, appErrors.NewUnauthorized("no registration in progress for this email")
		}
		return nil, appErrors.NewInternal("failed to load registration state")
	}
	if flow.Stage == StageVerified {
		return &dto.MessageResponse{Message: "Email already verified"}, nil
	}

	if appErr := s.consumeOTP(ctx, FlowRegistration, email, req.OTP); appErr != nil {
		return nil, appErr
	}

	if err := markPendingVerified(ctx, s.redisClient, FlowRegistration, email); err != nil {
		return nil, appErrors.NewInternal("failed to update registration state")
	}
	return &dto.MessageResponse{Message: "Email verified successfully"}, nil
}

// ResendRegistrationOTP reissues the registration code after the cooldown.
func (s *AuthService) ResendRegistrationOTP(ctx context.Context, req dto.ResendRegistrationOTPRequest) (*dto.OTPIssuedResponse, *appErrors.AppError) {
	email := strings.ToLower(req.Email)

	if _, err := getPendingFlow(ctx, s.redisClient, FlowRegistration, email); err != nil {
		if errors.Is(err, errFlowNotFound) {
			return nil, appErrors.NewUnauthorized("no registration in progress for this email")
		}
		return nil, appErrors.NewInternal("failed to load registration state")
	}

	if appErr := s.checkResendCooldown(ctx, FlowRegistration, email); appErr != nil {
		return nil, appErr
	}
	return s.dispatchOTP(ctx, FlowRegistration, email)
}

// CompleteRegistration creates the account once the email has been verified.
// The email must match the one that received the code.
func (s *AuthService) CompleteRegistration(ctx context.Context, req dto.CompleteRegistrationRequest) (*dto.MessageResponse, *appErrors.AppError) {
	email := strings.ToLower(req.Email)

	flow, err := getPendingFlow(ctx, s.redisClient, FlowRegistration, email)
	if err != nil {
		if errors.Is(err, errFlowNotFound) {
			return nil, appErrors.NewUnauthorized("email verification required before registration")
		}
		return nil, appErrors.NewInternal("failed to load registration state")
	}
	if flow.Stage != StageVerified {
		return nil, appErrors.NewUnauthorized("email verification required before registration")
	}
	if flow.Email != email {
		return nil, appErrors.NewInvalidInput("email does not match the verified email")
	}

	// The flow guards against most duplicates, but an account could have
	// been created through another channel while this one was pending.
	existingUser, err := s.store.Users.GetByEmail(ctx, email)
	if err == nil && existingUser != nil {
		return nil, appErrors.NewConflict("email already registered")
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.NewInternal("database error while checking email")
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.NewInternal("error hashing password")
	}

	user := &models.User{
		Name:         req.Name,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         models.RolePatient,
	}
	if err := s.store.Users.Create(ctx, user); err != nil {
		if errors.Is(err, store.ErrDuplicateEmail) {
			return nil, appErrors.NewConflict("email already registered")
		}
		return nil, appErrors.NewInternal("error creating user")
	}

	if err := clearPendingFlow(ctx, s.redisClient, FlowRegistration, email); err != nil {
		log := getLoggerFromContext(ctx)
		log.Warn().Err(err).Str("email", email).Msg("failed to clear completed registration flow")
	}

	return &dto.MessageResponse{Message: "Registration successful. Please login."}, nil
}

// ForgotPassword starts the reset flow. The response is identical whether or
// not the email has an account, so the endpoint cannot be used to enumerate
// users; a code is only actually dispatched for real accounts. The cooldown is
// checked and armed before the account lookup for the same reason: a repeat
// request inside the window answers 429 for every address, and dispatch
// failures collapse into the canned success so only real accounts with a
// working pipeline ever observe anything different.
func (s *AuthService) ForgotPassword(ctx context.Context, req dto.ForgotPasswordRequest) (*dto.OTPIssuedResponse, *appErrors.AppError) {
	email := strings.ToLower(req.Email)

	issued := &dto.OTPIssuedResponse{
		Message:            "If the email is registered, a reset code has been sent",
		ResendAfterSeconds: int(otpResendAfter.Seconds()),
	}

	if appErr := s.checkResendCooldown(ctx, FlowReset, email); appErr != nil {
		return nil, appErr
	}

	user, err := s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		log := getLoggerFromContext(ctx)
		if !errors.Is(err, sql.ErrNoRows) {
			log.Error().Err(err).Str("email", email).Msg("database error while looking up user for password reset")
		}
		if cdErr := armResendCooldown(ctx, s.redisClient, FlowReset, email); cdErr != nil {
			log.Warn().Err(cdErr).Str("email", email).Msg("failed to arm reset cooldown for unknown email")
		}
		return issued, nil
	}

	if err := startPendingFlow(ctx, s.redisClient, FlowReset, email); err != nil {
		log := getLoggerFromContext(ctx)
		log.Error().Err(err).Str("email", email).Msg("failed to start password reset flow")
		return issued, nil
	}

	if _, appErr := s.dispatchOTP(ctx, FlowReset, user.Email); appErr != nil {
		log := getLoggerFromContext(ctx)
		log.Error().Err(appErr).Str("email", email).Msg("failed to dispatch password reset code")
		return issued, nil
	}
	return issued, nil
}

// VerifyResetOTP checks the submitted reset code and unlocks the new-password
// step.
func (s *AuthService) VerifyResetOTP(ctx context.Context, req dto.VerifyResetOTPRequest) (*dto.MessageResponse, *appErrors.AppError) {
	email := strings.ToLower(req.Email)

	if _, err := getPendingFlow(ctx, s.redisClient, FlowReset, email); err != nil {
		if errors.Is(err, errFlowNotFound) {
			return nil, appErrors.NewUnauthorized("invalid or expired code")
		}
		return nil, appErrors.NewInternal("failed to load reset state")
	}

	if appErr := s.consumeOTP(ctx, FlowReset, email, req.OTP); appErr != nil {
		return nil, appErr
	}

	if err := markPendingVerified(ctx, s.redisClient, FlowReset, email); err != nil {
		return nil, appErrors.NewInternal("failed to update reset state")
	}
	return &dto.MessageResponse{Message: "Code verified. You can now set a new password."}, nil
}

// ResendResetOTP reissues the reset code after the cooldown.
func (s *AuthService) ResendResetOTP(ctx context.Context, req dto.ResendResetOTPRequest) (*dto.OTPIssuedResponse, *appErrors.AppError) {
	email := strings.ToLower(req.Email)

	if _, err := getPendingFlow(ctx, s.redisClient, FlowReset, email); err != nil {
		if errors.Is(err, errFlowNotFound) {
			return nil, appErrors.NewUnauthorized("no password reset in progress for this email")
		}
		return nil, appErrors.NewInternal("failed to load reset state")
	}

	if appErr := s.checkResendCooldown(ctx, FlowReset, email); appErr != nil {
		return nil, appErr
	}
	return s.dispatchOTP(ctx, FlowReset, email)
}

// ResetPassword sets the new password after the code was verified, then tears
// down the pending flow so the verified state cannot be replayed.
func (s *AuthService) ResetPassword(ctx context.Context, req dto.ResetPasswordRequest) (*dto.MessageResponse, *appErrors.AppError) {
	email := strings.ToLower(req.Email)

	flow, err := getPendingFlow(ctx, s.redisClient, FlowReset, email)
	if err != nil {
		if errors.Is(err, errFlowNotFound) {
			return nil, appErrors.NewUnauthorized("code verification required before resetting password")
		}
		return nil, appErrors.NewInternal("failed to load reset state")
	}
	if flow.Stage != StageVerified {
		return nil, appErrors.NewUnauthorized("code verification required before resetting password")
	}

	user, err := s.store.Users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.NewNotFound("user")
		}
		return nil, appErrors.NewInternal("failed to load user")
	}

	newPasswordHash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.NewInternal("failed to hash new password")
	}

	user.PasswordHash = string(newPasswordHash)
	if err := s.store.Users.Update(ctx, user); err != nil {
		return nil, appErrors.NewInternal("failed to update password")
	}

	if err := clearPendingFlow(ctx, s.redisClient, FlowReset, email); err != nil {
		log := getLoggerFromContext(ctx)
		log.Warn().Err(err).Str("email", email).Msg("failed to clear completed reset flow")
	}

	return &dto.MessageResponse{Message: "Password reset successful. Please login."}, nil
}

// Logout invalidates the access token (blacklist) and deletes the refresh token if provided.
func (s *AuthService) Logout(ctx context.Context, accessToken string, refreshToken string) *appErrors.AppError {
	if accessToken == "" {
		return appErrors.NewUnauthorized("missing access token")
	}

	// Validate first to ensure signature/exp are OK; then blacklist.
	if _, err := ValidateAccessToken(ctx, s.redisClient, accessToken); err != nil {
		return appErrors.NewUnauthorized("invalid or expired token")
	}
	if err := BlacklistAccessToken(ctx, s.redisClient, accessToken); err != nil {
		return appErrors.NewInternal("failed to blacklist token")
	}

	if refreshToken != "" {
		_ = deleteRefreshToken(ctx, s.redisClient, refreshToken)
	}
	return nil
}

// Refresh rotates a refresh token and issues a new access token (and new refresh).
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*dto.AuthResponse, *appErrors.AppError) {
	if refreshToken == "" {
		return nil, appErrors.NewUnauthorized("missing refresh token")
	}

	newRefresh, data, err := rotateRefreshToken(ctx, s.redisClient, refreshToken)
	if err != nil {
		return nil, appErrors.NewUnauthorized("invalid or expired refresh token")
	}

	access, err := GenerateAccessToken(data.UserID, data.Role, data.Name)
	if err != nil {
		return nil, appErrors.NewInternal("error generating access token")
	}

	return &dto.AuthResponse{
		AccessToken:  access,
		RefreshToken: newRefresh,
		User: dto.UserResponse{
			ID:   data.UserID,
			Name: data.Name,
			Role: data.Role,
		},
		RedirectTo: models.DashboardPath(data.Role),
	}, nil
}

// ValidateToken validates an access token and returns its claims.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (*AccessClaims, *appErrors.AppError) {
	claims, err := ValidateAccessToken(ctx, s.redisClient, token)
	if err != nil {
		return nil, appErrors.NewUnauthorized("invalid or expired token")
	}
	return claims, nil
}

// ValidateRefreshToken validates an opaque refresh token against Redis.
func (s *AuthService) ValidateRefreshToken(ctx context.Context, token string) (*RefreshTokenData, *appErrors.AppError) {
	data, err := ParseRefreshToken(ctx, s.redisClient, token)
	if err != nil {
		return nil, appErrors.NewUnauthorized("invalid or expired refresh token")
	}
	return data, nil
}

// checkResendCooldown maps a live cooldown to a 429 carrying the remaining
// seconds, which the client renders as its countdown.
func (s *AuthService) checkResendCooldown(ctx context.Context, flow, email string) *appErrors.AppError {
	remaining, err := otpResendRemaining(ctx, s.redisClient, flow, email)
	if err != nil {
		return appErrors.NewInternal("failed to check resend cooldown")
	}
	if remaining > 0 {
		return appErrors.NewTooManyRequests("please wait before requesting another code", remaining)
	}
	return nil
}

// dispatchOTP issues a fresh code and publishes the matching email event. The
// publish goes through the breaker so a dead broker fails fast.
func (s *AuthService) dispatchOTP(ctx context.Context, flow, email string) (*dto.OTPIssuedResponse, *appErrors.AppError) {
	code, err := issueOTP(ctx, s.redisClient, flow, email)
	if err != nil {
		return nil, appErrors.NewInternal("failed to issue verification code")
	}

	if s.publisher != nil {
		err = s.rabbitBreaker.Call(ctx, func() error {
			if flow == FlowReset {
				return s.publisher.PublishPasswordResetOTP(ctx, email, code)
			}
			return s.publisher.PublishRegistrationOTP(ctx, email, code)
		})
		if err != nil {
			log := getLoggerFromContext(ctx)
			log.Error().Err(err).Str("email", email).Str("flow", flow).Msg("failed to publish otp email event")
			return nil, appErrors.NewUnavailable("could not send verification email, please try again")
		}
	}

	return &dto.OTPIssuedResponse{
		Message:            "Verification code sent",
		ResendAfterSeconds: int(otpResendAfter.Seconds()),
	}, nil
}

// consumeOTP maps OTP verification failures onto the API error taxonomy.
func (s *AuthService) consumeOTP(ctx context.Context, flow, email, code string) *appErrors.AppError {
	err := verifyOTP(ctx, s.redisClient, flow, email, code)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, errOTPNotFound):
		return appErrors.NewUnauthorized("invalid or expired code")
	case errors.Is(err, errOTPMismatch):
		return appErrors.NewUnauthorized("incorrect code")
	case errors.Is(err, errOTPMaxAttempts):
		return appErrors.NewTooManyRequests("too many incorrect attempts, request a new code", 0)
	default:
		return appErrors.NewInternal("failed to verify code")
	}
}
