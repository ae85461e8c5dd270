// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package queue

import (
	"context"
	"testing"
	"time"

	"github.com/northbound-system/hive-ingest/internal/config"
)

func TestRedisQueue_ReserveAck(t *testing.T) {
	ctx := context.Background()
	client, err := config.NewRedisClient(ctx)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	ready := "test:ingestion:" + time.Now().Format("20060102150405")
	inFlight := "test:processing:" + time.Now().Format("20060102150405")
	defer func() {
		client.Del(ctx, ready, inFlight)
	}()

	q, err := NewRedisQueue(client)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}

	msg := []byte(`{"kind":"bulk_upload"}`)
	if err := q.Enqueue(ctx, ready, msg); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}

	got, err := q.Reserve(ctx, ready, inFlight, 5*time.Second)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if string(got) != string(msg) {
		t.Errorf("Reserve returned %s, want %s", got, msg)
	}

	n, err := client.LLen(ctx, inFlight).Result()
	if err != nil {
		t.Fatalf("LLen failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 message in-flight, got %d", n)
	}

	if err := q.Ack(ctx, inFlight, got); err != nil {
		t.Fatalf("Ack failed: %v", err)
	}

	n, err = client.LLen(ctx, inFlight).Result()
	if err != nil {
		t.Fatalf("LLen failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 messages in-flight after ack, got %d", n)
	}
}

func TestRedisQueue_ReserveTimeout(t *testing.T) {
	ctx := context.Background()
	client, err := config.NewRedisClient(ctx)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	ready := "test:empty:" + time.Now().Format("20060102150405")
	inFlight := "test:empty:processing:" + time.Now().Format("20060102150405")
	defer client.Del(ctx, ready, inFlight)

	q, err := NewRedisQueue(client)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}

	_, err = q.Reserve(ctx, ready, inFlight, 1*time.Second)
	if err != ErrTimeout {
		t.Errorf("expected ErrTimeout, got %v", err)
	}
}

func TestRedisQueue_Reinject(t *testing.T) {
	ctx := context.Background()
	client, err := config.NewRedisClient(ctx)
	if err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	ready := "test:reinject:" + time.Now().Format("20060102150405")
	inFlight := "test:reinject:processing:" + time.Now().Format("20060102150405")
	defer client.Del(ctx, ready, inFlight)

	q, err := NewRedisQueue(client)
	if err != nil {
		t.Fatalf("NewRedisQueue failed: %v", err)
	}

	old := []byte(`{"attempt_number":0}`)
	if err := q.Enqueue(ctx, ready, old); err != nil {
		t.Fatalf("Enqueue failed: %v", err)
	}
	reserved, err := q.Reserve(ctx, ready, inFlight, 5*time.Second)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	transformed := []byte(`{"attempt_number":1}`)
	if err := q.Reinject(ctx, ready, inFlight, reserved, transformed); err != nil {
		t.Fatalf("Reinject failed: %v", err)
	}

	n, err := client.LLen(ctx, inFlight).Result()
	if err != nil {
		t.Fatalf("LLen failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected in-flight list drained after reinject, got %d", n)
	}

	got, err := q.Reserve(ctx, ready, inFlight, 5*time.Second)
	if err != nil {
		t.Fatalf("Reserve after reinject failed: %v", err)
	}
	if string(got) != string(transformed) {
		t.Errorf("expected transformed message %s, got %s", transformed, got)
	}
}

func TestBackoff_DoublesAndCaps(t *testing.T) {
	b := NewBackoff(10*time.Second, 300*time.Second)
	want := []time.Duration{10, 20, 40, 80, 160, 300, 300}
	for i, w := range want {
		got := b.Next()
		if got != w*time.Second {
			t.Errorf("step %d: got %v, want %v", i, got, w*time.Second)
		}
	}
	b.Reset()
	if got := b.Next(); got != 10*time.Second {
		t.Errorf("after reset: got %v, want 10s", got)
	}
}
