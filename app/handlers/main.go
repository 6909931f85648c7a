package main

import (
	"fmt"
	"os"

	cfgPkg "github.com/medicore/hospital-portal/app/config"
	"github.com/medicore/hospital-portal/app/downstream"
	"github.com/medicore/hospital-portal/app/logger"
	"github.com/medicore/hospital-portal/app/notify"
	"github.com/medicore/hospital-portal/app/services"
	"github.com/medicore/hospital-portal/app/store"
)

func main() {
	// Initialize structured logging
	logger.Init()

	// Load .env file (if it exists)
	cfgPkg.Load()

	if err := validateRequiredEnv(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("required environment variables missing")
	}

	cfg := config{
		addr:           cfgPkg.GetString("ADDR", ":8080"),
		recordsBaseURL: cfgPkg.GetString("RECORDS_BASE_URL", ""),
	}

	logger.Logger.Info().Msg("connecting to postgres")

	db, err := cfgPkg.NewPostgres()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to postgres")
	}
	defer db.Close()

	logger.Logger.Info().Msg("postgres connection pool established")

	storage := store.NewStorage(db)

	redisAddr := cfgPkg.GetString("REDIS_ADDR", "localhost:6379")
	redisDB := cfgPkg.GetInt("REDIS_DB", 0)

	logger.Logger.Info().
		Str("addr", redisAddr).
		Int("db", redisDB).
		Msg("connecting to redis")

	redisClient, err := cfgPkg.NewRedisClient()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer redisClient.Close()

	logger.Logger.Info().
		Str("addr", redisAddr).
		Int("db", redisDB).
		Msg("redis connection established")

	// RabbitMQ connection (for publishing OTP email events to the mailer)
	logger.Logger.Info().Msg("connecting to RabbitMQ")

	rabbitConn, rabbitCh, err := cfgPkg.NewRabbitMQConnection()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rabbitConn.Close()
	defer rabbitCh.Close()

	logger.Logger.Info().Msg("RabbitMQ connection established")

	publisher := services.NewRabbitMQPublisher(rabbitCh)

	authService := services.NewAuthService(storage, redisClient, publisher)
	recordsClient := downstream.NewRecordsClient(cfg.recordsBaseURL, nil)
	notifyBus := notify.NewBus(redisClient)

	app := &application{
		config:        cfg,
		store:         storage,
		authService:   authService,
		recordsClient: recordsClient,
		notifyBus:     notifyBus,
		redisClient:   redisClient,
		db:            db,
		rabbitConn:    rabbitConn,
		rabbitCh:      rabbitCh,
	}
	mux := app.mount()

	// Start server with graceful shutdown
	if err := app.runWithGracefulShutdown(mux, db, redisClient, rabbitConn, rabbitCh); err != nil {
		logger.Logger.Fatal().Err(err).Msg("server error")
	}
}

func validateRequiredEnv() error {
	if os.Getenv("JWT_SECRET") == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if os.Getenv("RECORDS_BASE_URL") == "" {
		return fmt.Errorf("RECORDS_BASE_URL is required")
	}
	return nil
}
