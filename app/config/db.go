package config

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// NewPostgres opens a Postgres connection pool from the POSTGRES_* environment
// variables and verifies it with a ping.
func NewPostgres() (*sql.DB, error) {
	user := GetString("POSTGRES_USER", "postgres")
	password := GetString("POSTGRES_PASSWORD", "postgres")
	host := GetString("POSTGRES_HOST", "localhost")
	port := GetString("POSTGRES_PORT", "5432")
	name := GetString("POSTGRES_DB", "hospital_portal")
	sslMode := GetString("POSTGRES_SSLMODE", "disable")

	addr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		user, password, host, port, name, sslMode)

	db, err := sql.Open("pgx", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(GetInt("DB_MAX_OPEN_CONNS", 30))
	db.SetMaxIdleConns(GetInt("DB_MAX_IDLE_CONNS", 30))
	if d, err := time.ParseDuration(GetString("DB_MAX_IDLE_TIME", "15m")); err == nil {
		db.SetConnMaxIdleTime(d)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	return db, nil
}
