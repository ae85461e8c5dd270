// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package queue

import (
	"context"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue over Redis lists. reserve is a blocking
// right-pop + left-push onto the in-flight list (BRPOPLPUSH); ack is
// LREM; reinject and dead-letter compose ack with an append.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue wraps an already-connected Redis client.
func NewRedisQueue(client *redis.Client) (*RedisQueue, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Printf("NewRedisQueue: failed to ping Redis: %v", err)
		return nil, err
	}
	return &RedisQueue{client: client}, nil
}

// Enqueue pushes raw onto the head of list via LPUSH; Reserve pops from
// the tail, so the oldest message is reserved first.
func (q *RedisQueue) Enqueue(ctx context.Context, list string, raw []byte) error {
	if err := q.client.LPush(ctx, list, raw).Err(); err != nil {
		log.Printf("Enqueue: list=%s failed: %v", list, err)
		return err
	}
	return nil
}

// Reserve pops the oldest message from readyList and pushes it onto
// inFlightList atomically via BRPOPLPUSH, blocking up to timeout.
func (q *RedisQueue) Reserve(ctx context.Context, readyList, inFlightList string, timeout time.Duration) ([]byte, error) {
	val, err := q.client.BRPopLPush(ctx, readyList, inFlightList, timeout).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrTimeout
		}
		return nil, err
	}
	return []byte(val), nil
}

// Ack removes one copy of raw from inFlightList via LREM with count=1.
func (q *RedisQueue) Ack(ctx context.Context, inFlightList string, raw []byte) error {
	if err := q.client.LRem(ctx, inFlightList, 1, raw).Err(); err != nil {
		log.Printf("Ack: list=%s failed: %v", inFlightList, err)
		return err
	}
	return nil
}

// Reinject acks the old form and enqueues the transformed form onto
// readyList, used to bump attempt_number on retry.
func (q *RedisQueue) Reinject(ctx context.Context, readyList, inFlightList string, old, transformed []byte) error {
	if err := q.Ack(ctx, inFlightList, old); err != nil {
		return err
	}
	return q.Enqueue(ctx, readyList, transformed)
}

// DeadLetter acks the old form from inFlightList and appends it to
// deadList after the attempt cap is reached.
func (q *RedisQueue) DeadLetter(ctx context.Context, deadList, inFlightList string, old []byte) error {
	if err := q.Ack(ctx, inFlightList, old); err != nil {
		return err
	}
	return q.Enqueue(ctx, deadList, old)
}
