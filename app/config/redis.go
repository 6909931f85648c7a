package config

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis backs every piece of short-lived portal state: refresh sessions and
// the token blacklist, OTP codes and pending auth flows, rate-limit counters,
// and the notification pub/sub channels. It is required infrastructure, so
// the constructor pings before handing the client out.
func NewRedisClient() (*redis.Client, error) {
	opts := &redis.Options{
		Addr:         GetString("REDIS_ADDR", "localhost:6379"),
		Password:     GetString("REDIS_PASSWORD", ""),
		DB:           GetInt("REDIS_DB", 0),
		PoolSize:     GetInt("REDIS_POOL_SIZE", 10),
		MinIdleConns: GetInt("REDIS_MIN_IDLE_CONNS", 2),
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}
	return client, nil
}
