package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/medicore/hospital-portal/app/config"
	"github.com/medicore/hospital-portal/app/logger"
	"github.com/medicore/hospital-portal/app/mailer/consumer"
	"github.com/medicore/hospital-portal/app/mailer/email"
	"github.com/medicore/hospital-portal/app/mailer/health"
	"github.com/medicore/hospital-portal/app/mailer/idempotency"
	"github.com/medicore/hospital-portal/app/mailer/ratelimit"
	"github.com/medicore/hospital-portal/app/mailer/retry"
	"github.com/medicore/hospital-portal/app/metrics"
)

func main() {
	logger.Init()
	log := logger.Logger

	config.Load()

	conn, ch, err := config.NewRabbitMQConnection()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer conn.Close()
	defer ch.Close()

	redisClient, err := config.NewRedisClient()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	defer redisClient.Close()

	emailConfig := config.LoadEmailConfig()
	emailSender, err := email.NewSender(emailConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize email sender")
	}

	idempotencyStore := idempotency.NewStore(redisClient)
	idempotencyChecker := idempotency.NewChecker(idempotencyStore)

	retryConfig := retry.LoadConfig()

	dlqName := config.GetString("RABBITMQ_QUEUE_DLQ", "email.dlq")
	dlqHandler, err := retry.NewDLQHandler(ch, dlqName)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize DLQ handler")
	}

	rateLimiter := ratelimit.NewRateLimiter(redisClient)

	msgHandler := consumer.NewHandler(emailSender, rateLimiter)

	msgConsumer := consumer.NewConsumer(
		conn,
		ch,
		msgHandler,
		idempotencyChecker,
		retryConfig,
		dlqHandler,
	)

	healthHandler := health.NewHandler(conn, ch, redisClient, emailSender)

	healthPort := config.GetString("HEALTH_CHECK_PORT", "8081")
	mux := http.NewServeMux()
	mux.HandleFunc("/health", healthHandler.HealthCheck)
	mux.HandleFunc("/health/rabbitmq", healthHandler.HealthCheckRabbitMQ)
	mux.HandleFunc("/health/redis", healthHandler.HealthCheckRedis)
	mux.HandleFunc("/health/email", healthHandler.HealthCheckEmail)
	mux.Handle("/metrics", metrics.MetricsHandler())

	healthServer := &http.Server{
		Addr:    ":" + healthPort,
		Handler: mux,
	}

	go func() {
		log.Info().Str("port", healthPort).Msg("starting health check server")
		if err := healthServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("health check server failed")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	log.Info().Str("provider", emailSender.ProviderName()).Msg("starting mailer worker...")
	go func() {
		if err := msgConsumer.Start(ctx); err != nil {
			log.Error().Err(err).Msg("consumer failed")
		}
	}()

	<-ctx.Done()

	log.Info().Msg("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := healthServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("error shutting down health check server")
	}

	msgConsumer.Close()

	log.Info().Msg("shutdown complete")
}
