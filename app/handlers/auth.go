package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/medicore/hospital-portal/app/downstream"
	"github.com/medicore/hospital-portal/app/dto"
	"github.com/medicore/hospital-portal/app/errors"
	"github.com/medicore/hospital-portal/app/logger"
	"github.com/medicore/hospital-portal/app/metrics"
	authmw "github.com/medicore/hospital-portal/app/middleware"
	"github.com/medicore/hospital-portal/app/models"
	"github.com/medicore/hospital-portal/app/notify"
	"github.com/medicore/hospital-portal/app/services"
	"github.com/medicore/hospital-portal/app/store"
	"github.com/redis/go-redis/v9"
)

type application struct {
	config        config
	store         store.Storage
	authService   *services.AuthService
	recordsClient *downstream.RecordsClient
	notifyBus     *notify.Bus
	redisClient   *redis.Client
	db            interface {
		PingContext(ctx context.Context) error
		Close() error
	}
	rabbitConn interface {
		IsClosed() bool
		Close() error
	}
	rabbitCh interface {
		IsClosed() bool
		Close() error
	}
}

type config struct {
	addr           string
	recordsBaseURL string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(authmw.RequestIDTracing()) // Propagate request ID to logger and context
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)

	// Metrics middleware - record HTTP metrics
	r.Use(authmw.Metrics())

	// Security headers - must be early to protect all responses
	r.Use(authmw.SecurityHeaders())

	// CORS middleware - must be early in the chain to handle preflight requests
	r.Use(authmw.CORS())

	// Request body size limit - prevent DoS attacks
	r.Use(authmw.BodyLimitFromEnv())

	//Set a timeout value on the request context (ctx), that will signal
	//through ctx.Done() that the request has time out and further
	//processing should be stopped.
	r.Use(middleware.Timeout(60 * time.Second))

	loginLimit := authmw.RouteLimit{Name: "login", Capacity: 5, Window: time.Minute}
	otpRequestLimit := authmw.RouteLimit{Name: "otpRequest", Capacity: 5, Window: 5 * time.Minute}
	otpVerifyLimit := authmw.RouteLimit{Name: "otpVerify", Capacity: 10, Window: 5 * time.Minute}
	registerLimit := authmw.RouteLimit{Name: "register", Capacity: 10, Window: 5 * time.Minute}
	refreshLimit := authmw.RouteLimit{Name: "refresh", Capacity: 30, Window: 5 * time.Minute}
	logoutLimit := authmw.RouteLimit{Name: "logout", Capacity: 30, Window: 5 * time.Minute}
	forgotPasswordLimit := authmw.RouteLimit{Name: "forgotPassword", Capacity: 3, Window: time.Hour}
	resetPasswordLimit := authmw.RouteLimit{Name: "resetPassword", Capacity: 5, Window: time.Minute}
	protectedLimit := authmw.RouteLimit{Name: "protected", Capacity: 120, Window: time.Minute}
	healthCheckLimit := authmw.RouteLimit{Name: "healthCheck", Capacity: 20, Window: time.Minute}

	r.Route("/auth/v1", func(r chi.Router) {
		r.With(authmw.RateLimit(app.redisClient, healthCheckLimit, authmw.PrincipalIP())).Get("/health", http.HandlerFunc(app.healthCheckHandler))

		// Prometheus metrics endpoint - PROTECTED (IP whitelist, API key, or admin auth)
		r.With(authmw.MetricsAuth()).Get("/metrics", metrics.MetricsHandler().ServeHTTP)

		// Login / session endpoints
		r.With(authmw.RateLimit(app.redisClient, loginLimit, authmw.PrincipalIP())).Post("/login", http.HandlerFunc(app.loginHandler))
		r.With(authmw.RateLimit(app.redisClient, refreshLimit, authmw.PrincipalIP())).Post("/refresh", http.HandlerFunc(app.refreshHandler))
		r.With(authmw.RateLimit(app.redisClient, logoutLimit, authmw.PrincipalIP())).Post("/logout", http.HandlerFunc(app.logoutHandler))

		// Registration flow: request code, verify code, then create the account
		r.Route("/register", func(r chi.Router) {
			r.With(authmw.RateLimit(app.redisClient, otpRequestLimit, authmw.PrincipalIP())).Post("/request-otp", http.HandlerFunc(app.requestRegistrationOTPHandler))
			r.With(authmw.RateLimit(app.redisClient, otpVerifyLimit, authmw.PrincipalIP())).Post("/verify-otp", http.HandlerFunc(app.verifyRegistrationOTPHandler))
			r.With(authmw.RateLimit(app.redisClient, otpRequestLimit, authmw.PrincipalIP())).Post("/resend-otp", http.HandlerFunc(app.resendRegistrationOTPHandler))
			r.With(authmw.RateLimit(app.redisClient, registerLimit, authmw.PrincipalIP())).Post("/complete", http.HandlerFunc(app.completeRegistrationHandler))
		})

		// Password reset flow mirrors registration: request, verify, set
		r.With(authmw.RateLimit(app.redisClient, forgotPasswordLimit, authmw.PrincipalIP())).Post("/forgot-password", http.HandlerFunc(app.forgotPasswordHandler))
		r.Route("/reset", func(r chi.Router) {
			r.With(authmw.RateLimit(app.redisClient, otpVerifyLimit, authmw.PrincipalIP())).Post("/verify-otp", http.HandlerFunc(app.verifyResetOTPHandler))
			r.With(authmw.RateLimit(app.redisClient, otpRequestLimit, authmw.PrincipalIP())).Post("/resend-otp", http.HandlerFunc(app.resendResetOTPHandler))
		})
		r.With(authmw.RateLimit(app.redisClient, resetPasswordLimit, authmw.PrincipalIP())).Post("/reset-password", http.HandlerFunc(app.resetPasswordHandler))

		// Protected endpoints
		r.Group(func(pr chi.Router) {
			pr.Use(authmw.JWTAuth(app.redisClient))
			pr.Use(authmw.RateLimit(app.redisClient, protectedLimit, authmw.PrincipalUserOrIP()))
			pr.Get("/me", http.HandlerFunc(app.meHandler))
		})
	})

	// Role-scoped portal surfaces. A token carrying the wrong role is treated
	// the same as no token, so the client lands back on the login page.
	r.Route("/admin/v1", func(ar chi.Router) {
		ar.Use(authmw.JWTAuth(app.redisClient))
		ar.Use(authmw.RequireRoles(models.RoleAdmin))
		ar.Use(authmw.RateLimit(app.redisClient, protectedLimit, authmw.PrincipalUserOrIP()))
		ar.Get("/dashboard", http.HandlerFunc(app.dashboardHandler))
		ar.Get("/doctors", http.HandlerFunc(app.listDoctorsHandler))
		ar.Post("/doctors", http.HandlerFunc(app.createDoctorHandler))
		ar.Put("/doctors/{id}", http.HandlerFunc(app.updateDoctorHandler))
		ar.Delete("/doctors/{id}", http.HandlerFunc(app.deleteDoctorHandler))
		ar.Get("/patients", http.HandlerFunc(app.listPatientsHandler))
		ar.Delete("/patients/{id}", http.HandlerFunc(app.deletePatientHandler))
		ar.Get("/appointments", http.HandlerFunc(app.listAppointmentsHandler))
		ar.Get("/billing", http.HandlerFunc(app.listBillingHandler))
		ar.Get("/prescriptions", http.HandlerFunc(app.listPrescriptionsHandler))
		ar.Get("/reports", http.HandlerFunc(app.listReportsHandler))
	})

	r.Route("/doctor/v1", func(dr chi.Router) {
		dr.Use(authmw.JWTAuth(app.redisClient))
		dr.Use(authmw.RequireRoles(models.RoleDoctor))
		dr.Use(authmw.RateLimit(app.redisClient, protectedLimit, authmw.PrincipalUserOrIP()))
		dr.Get("/dashboard", http.HandlerFunc(app.dashboardHandler))
		dr.Get("/appointments", http.HandlerFunc(app.listAppointmentsHandler))
		dr.Get("/patients", http.HandlerFunc(app.listPatientsHandler))
		dr.Get("/prescriptions", http.HandlerFunc(app.listPrescriptionsHandler))
	})

	r.Route("/patient/v1", func(pr chi.Router) {
		pr.Use(authmw.JWTAuth(app.redisClient))
		pr.Use(authmw.RequireRoles(models.RolePatient))
		pr.Use(authmw.RateLimit(app.redisClient, protectedLimit, authmw.PrincipalUserOrIP()))
		pr.Get("/dashboard", http.HandlerFunc(app.dashboardHandler))
		pr.Get("/appointments", http.HandlerFunc(app.listAppointmentsHandler))
		pr.Get("/prescriptions", http.HandlerFunc(app.listPrescriptionsHandler))
		pr.Get("/billing", http.HandlerFunc(app.listBillingHandler))
	})

	// Live notification stream for any authenticated user
	r.Route("/notifications/v1", func(nr chi.Router) {
		nr.Use(authmw.JWTAuth(app.redisClient))
		nr.Get("/stream", http.HandlerFunc(app.notificationsStreamHandler))
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	srv := http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  time.Minute,
	}
	logger.Logger.Info().Str("addr", app.config.addr).Msg("Starting server")
	return srv.ListenAndServe()
}

// runWithGracefulShutdown starts the server with graceful shutdown support.
// It handles SIGTERM and SIGINT signals, allowing in-flight requests to complete
// before shutting down connections.
func (app *application) runWithGracefulShutdown(
	mux http.Handler,
	db interface{ Close() error },
	redisClient interface{ Close() error },
	rabbitConn interface{ Close() error },
	rabbitCh interface{ Close() error },
) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: 30 * time.Second,
		ReadTimeout:  10 * time.Second,
		IdleTimeout:  time.Minute,
	}

	// Channel to listen for interrupt signals
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Logger.Info().Str("addr", app.config.addr).Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- err
		}
	}()

	// Wait for interrupt signal or server error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-quit:
		logger.Logger.Info().Str("signal", sig.String()).Msg("Received signal, starting graceful shutdown")
	}

	// Graceful shutdown with timeout
	shutdownTimeout := 30 * time.Second
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Shutdown server (stops accepting new connections, waits for in-flight requests)
	if err := srv.Shutdown(ctx); err != nil {
		logger.Logger.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	logger.Logger.Info().Msg("Server gracefully stopped")

	// Close connections in order
	logger.Logger.Info().Msg("Closing database connection")
	if err := db.Close(); err != nil {
		logger.Logger.Error().Err(err).Msg("Error closing database")
	}

	logger.Logger.Info().Msg("Closing Redis connection")
	if err := redisClient.Close(); err != nil {
		logger.Logger.Error().Err(err).Msg("Error closing Redis")
	}

	logger.Logger.Info().Msg("Closing RabbitMQ channel")
	if err := rabbitCh.Close(); err != nil {
		logger.Logger.Error().Err(err).Msg("Error closing RabbitMQ channel")
	}

	logger.Logger.Info().Msg("Closing RabbitMQ connection")
	if err := rabbitConn.Close(); err != nil {
		logger.Logger.Error().Err(err).Msg("Error closing RabbitMQ connection")
	}

	logger.Logger.Info().Msg("Graceful shutdown completed")
	return nil
}

// setRefreshCookie installs the rotated refresh token for browser clients
// (HttpOnly to protect from XSS, SameSite=Strict against CSRF). Secure is on
// in production where the portal is served over HTTPS.
func setRefreshCookie(w http.ResponseWriter, token string) {
	secureCookie := os.Getenv("ENVIRONMENT") == "production" || os.Getenv("COOKIE_SECURE") == "true"
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    token,
		Path:     "/auth/v1",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secureCookie,
		MaxAge:   int((7 * 24 * time.Hour).Seconds()),
	})
}

func clearRefreshCookie(w http.ResponseWriter) {
	secureCookie := os.Getenv("ENVIRONMENT") == "production" || os.Getenv("COOKIE_SECURE") == "true"
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    "",
		Path:     "/auth/v1",
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
		Secure:   secureCookie,
		MaxAge:   -1,
	})
}

// loginHandler handles user login
func (app *application) loginHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest

	// 1. Parse request body
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	// 2. Sanitize inputs (before validation)
	req.Email = sanitizeEmail(req.Email, 255)
	// Password should NOT be sanitized (preserve special characters)
	// Only trim and limit length
	req.Password = sanitizeInput(req.Password, 128, true)

	// 3. Validate DTO
	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	// 4. Call service layer (already validated and sanitized)
	resp, appErr := app.authService.Login(r.Context(), req)
	if appErr != nil {
		if appErr.Code == errors.ErrCodeUnauthorized {
			metrics.RecordLoginFailed()
		}
		writeErrorResponse(w, appErr)
		return
	}

	metrics.RecordLogin()
	setRefreshCookie(w, resp.RefreshToken)

	// Expose access token in Authorization header for convenience.
	w.Header().Set("Authorization", "Bearer "+resp.AccessToken)

	// Do not return refresh token in body for browser clients.
	resp.RefreshToken = ""

	writeJSON(w, http.StatusOK, resp)
}

// refreshHandler issues a new access token and rotates the refresh token (cookie-based).
func (app *application) refreshHandler(w http.ResponseWriter, r *http.Request) {
	c, err := r.Cookie("refresh_token")
	if err != nil || c.Value == "" {
		writeErrorResponse(w, errors.NewUnauthorized("missing refresh token"))
		return
	}

	resp, appErr := app.authService.Refresh(r.Context(), c.Value)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	metrics.RecordTokenRefresh()
	setRefreshCookie(w, resp.RefreshToken)
	// Expose new access token in header
	w.Header().Set("Authorization", "Bearer "+resp.AccessToken)
	resp.RefreshToken = ""

	writeJSON(w, http.StatusOK, resp)
}

// logoutHandler handles user logout
func (app *application) logoutHandler(w http.ResponseWriter, r *http.Request) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		writeErrorResponse(w, errors.NewUnauthorized("missing or invalid authorization header"))
		return
	}
	accessToken := strings.TrimPrefix(authHeader, "Bearer ")

	var refreshToken string
	if c, err := r.Cookie("refresh_token"); err == nil {
		refreshToken = c.Value
	}

	if err := app.authService.Logout(r.Context(), accessToken, refreshToken); err != nil {
		writeErrorResponse(w, err)
		return
	}

	metrics.RecordSessionRevocation()
	clearRefreshCookie(w)

	w.WriteHeader(http.StatusNoContent)
}

// meHandler returns the authenticated user's profile.
func (app *application) meHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := authmw.UserIDFromContext(r.Context())
	if !ok {
		writeErrorResponse(w, errors.NewUnauthorized("user not found in context"))
		return
	}

	user, err := app.store.Users.GetByID(r.Context(), userID)
	if err != nil {
		writeErrorResponse(w, errors.NewNotFound("user"))
		return
	}

	writeJSON(w, http.StatusOK, dto.UserResponse{
		ID:        user.ID,
		Name:      user.Name,
		Email:     user.Email,
		Role:      user.Role,
		CreatedAt: user.CreatedAt.Format(time.RFC3339),
	})
}

// requestRegistrationOTPHandler starts registration by emailing a 6-digit code.
func (app *application) requestRegistrationOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.RequestRegistrationOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	req.Email = sanitizeEmail(req.Email, 255)

	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	resp, appErr := app.authService.RequestRegistrationOTP(r.Context(), req)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	metrics.RecordOTPIssued(services.FlowRegistration)
	writeJSON(w, http.StatusOK, resp)
}

// verifyRegistrationOTPHandler confirms the emailed code.
func (app *application) verifyRegistrationOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyRegistrationOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	req.Email = sanitizeEmail(req.Email, 255)
	req.OTP = services.NormalizeOTP(req.OTP)

	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	resp, appErr := app.authService.VerifyRegistrationOTP(r.Context(), req)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	metrics.RecordOTPVerified(services.FlowRegistration)
	writeJSON(w, http.StatusOK, resp)
}

// resendRegistrationOTPHandler reissues the registration code after the cooldown.
func (app *application) resendRegistrationOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.ResendRegistrationOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	req.Email = sanitizeEmail(req.Email, 255)

	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	resp, appErr := app.authService.ResendRegistrationOTP(r.Context(), req)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	metrics.RecordOTPIssued(services.FlowRegistration)
	writeJSON(w, http.StatusOK, resp)
}

// completeRegistrationHandler creates the account after email verification.
func (app *application) completeRegistrationHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.CompleteRegistrationRequest

	// 1. Parse JSON
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	// 2. Sanitize inputs (before validation)
	req.Name = sanitizeName(req.Name, 100)
	req.Email = sanitizeEmail(req.Email, 255)
	// Password should NOT be sanitized (preserve special characters)
	// Only trim and limit length
	req.Password = sanitizeInput(req.Password, 128, true)
	req.ConfirmPassword = sanitizeInput(req.ConfirmPassword, 128, true)

	// 3. Validate DTO
	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}
	if !req.AcceptTerms {
		writeErrorResponse(w, errors.NewInvalidInput("terms and conditions must be accepted"))
		return
	}

	// 4. Call service (already validated and sanitized)
	resp, appErr := app.authService.CompleteRegistration(r.Context(), req)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	metrics.RecordRegistration()
	writeJSON(w, http.StatusCreated, resp)
}

// forgotPasswordHandler starts the reset flow. The success response is the
// same whether or not the email has an account.
func (app *application) forgotPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	req.Email = sanitizeEmail(req.Email, 255)

	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	resp, appErr := app.authService.ForgotPassword(r.Context(), req)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

// verifyResetOTPHandler confirms the emailed reset code.
func (app *application) verifyResetOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyResetOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	req.Email = sanitizeEmail(req.Email, 255)
	req.OTP = services.NormalizeOTP(req.OTP)

	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	resp, appErr := app.authService.VerifyResetOTP(r.Context(), req)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	metrics.RecordOTPVerified(services.FlowReset)
	writeJSON(w, http.StatusOK, resp)
}

// resendResetOTPHandler reissues the reset code after the cooldown.
func (app *application) resendResetOTPHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.ResendResetOTPRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	req.Email = sanitizeEmail(req.Email, 255)

	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	resp, appErr := app.authService.ResendResetOTP(r.Context(), req)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	metrics.RecordOTPIssued(services.FlowReset)
	writeJSON(w, http.StatusOK, resp)
}

// resetPasswordHandler sets the new password once the code has been verified.
func (app *application) resetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrorResponse(w, errors.NewInvalidInput("invalid request body"))
		return
	}

	req.Email = sanitizeEmail(req.Email, 255)
	// Sanitize passwords (preserve special characters)
	req.NewPassword = sanitizeInput(req.NewPassword, 128, true)
	req.ConfirmPassword = sanitizeInput(req.ConfirmPassword, 128, true)

	if err := validateRequest(&req); err != nil {
		writeErrorResponse(w, err)
		return
	}

	resp, appErr := app.authService.ResetPassword(r.Context(), req)
	if appErr != nil {
		writeErrorResponse(w, appErr)
		return
	}

	metrics.RecordPasswordReset()
	writeJSON(w, http.StatusOK, resp)
}
