// Package redis stores key-value state in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// KV implements ratelimit.KV on Redis. Keys are namespaced by prefix.
type KV struct {
	client *goredis.Client
	prefix string
}

// Connect dials addr and verifies the connection with a ping.
func Connect(ctx context.Context, addr, password string, db int, logger *slog.Logger) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}
	logger.Info("connected to redis", "addr", addr, "db", db)
	return client, nil
}

// NewKV wraps client.
func NewKV(client *goredis.Client, prefix string) *KV {
	return &KV{client: client, prefix: prefix}
}

// Get returns the value stored under key.
func (k *KV) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := k.client.Get(ctx, k.prefix+key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key without expiry.
func (k *KV) Set(ctx context.Context, key, value string) error {
	if err := k.client.Set(ctx, k.prefix+key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Ping checks the connection.
func (k *KV) Ping(ctx context.Context) error {
	return k.client.Ping(ctx).Err()
}

// Close closes the client.
func (k *KV) Close() error {
	return k.client.Close()
}
