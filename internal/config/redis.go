// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package config

import (
	"context"
	"log"
	"net/url"
	"os"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a Redis client from REDIS_URL (default
// redis://127.0.0.1:6379/0) and REDIS_CONNECTIONS (default 2, per §5's
// queue pool sizing).
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	rawURL := os.Getenv("REDIS_URL")
	if rawURL == "" {
		rawURL = "redis://127.0.0.1:6379/0"
	}

	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		log.Printf("NewRedisClient: invalid REDIS_URL %q: %v", rawURL, err)
		return nil, err
	}
	opts.PoolSize = envInt("REDIS_CONNECTIONS", 2)

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("NewRedisClient: failed to ping Redis: %v", err)
		return nil, err
	}

	log.Printf("NewRedisClient: connected addr=%s poolSize=%d", opts.Addr, opts.PoolSize)
	return client, nil
}

// redactedURL returns rawURL with any userinfo password stripped, for
// logging.
func redactedURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "(unparseable)"
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
