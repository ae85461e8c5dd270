// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/queue"
)

// fakeQueue is an in-memory queue.Queue for exercising the dispatch loop
// without a live Redis instance.
type fakeQueue struct {
	mu       sync.Mutex
	lists    map[string][][]byte
	reserveC chan struct{}
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{lists: make(map[string][][]byte), reserveC: make(chan struct{}, 16)}
}

func (f *fakeQueue) Enqueue(ctx context.Context, list string, raw []byte) error {
	f.mu.Lock()
	f.lists[list] = append(f.lists[list], raw)
	f.mu.Unlock()
	select {
	case f.reserveC <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeQueue) Reserve(ctx context.Context, readyList, inFlightList string, timeout time.Duration) ([]byte, error) {
	deadline := time.After(timeout)
	for {
		f.mu.Lock()
		if len(f.lists[readyList]) > 0 {
			raw := f.lists[readyList][0]
			f.lists[readyList] = f.lists[readyList][1:]
			f.lists[inFlightList] = append(f.lists[inFlightList], raw)
			f.mu.Unlock()
			return raw, nil
		}
		f.mu.Unlock()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, queue.ErrTimeout
		case <-f.reserveC:
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (f *fakeQueue) Ack(ctx context.Context, inFlightList string, raw []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removeOneLocked(inFlightList, raw)
	return nil
}

func (f *fakeQueue) Reinject(ctx context.Context, readyList, inFlightList string, old, transformed []byte) error {
	f.mu.Lock()
	f.removeOneLocked(inFlightList, old)
	f.lists[readyList] = append(f.lists[readyList], transformed)
	f.mu.Unlock()
	select {
	case f.reserveC <- struct{}{}:
	default:
	}
	return nil
}

func (f *fakeQueue) DeadLetter(ctx context.Context, deadList, inFlightList string, old []byte) error {
	f.mu.Lock()
	f.removeOneLocked(inFlightList, old)
	f.lists[deadList] = append(f.lists[deadList], old)
	f.mu.Unlock()
	return nil
}

func (f *fakeQueue) removeOneLocked(list string, raw []byte) {
	items := f.lists[list]
	for i, item := range items {
		if string(item) == string(raw) {
			f.lists[list] = append(items[:i], items[i+1:]...)
			return
		}
	}
}

func (f *fakeQueue) snapshot(list string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lists[list])
}

// countingHandler treats the raw payload's first byte as its attempt
// number. outcome controls what Handle returns for a given attempt.
type countingHandler struct {
	outcome func(attempt int) error
}

func (h countingHandler) Handle(ctx context.Context, raw []byte) error {
	return h.outcome(int(raw[0]))
}

func (h countingHandler) Attempt(raw []byte) (int, error) {
	return int(raw[0]), nil
}

func (h countingHandler) Reinject(raw []byte) ([]byte, error) {
	next := make([]byte, len(raw))
	copy(next, raw)
	next[0] = raw[0] + 1
	return next, nil
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestStartWorkers_AcksOnSuccess(t *testing.T) {
	q := newFakeQueue()
	ctx, cancel := context.WithCancel(context.Background())

	handler := countingHandler{outcome: func(int) error { return nil }}
	cfg := Config{
		ReadyList:      "ready",
		ProcessingList: "processing",
		DeadLetterList: "dead",
		AttemptCap:     queue.AttemptCapFile,
		ReserveTimeout: 50 * time.Millisecond,
		Handler:        handler,
	}

	q.Enqueue(ctx, "ready", []byte{0})

	done := make(chan struct{})
	go func() {
		StartWorkers(ctx, q, cfg, 1)
		close(done)
	}()

	waitFor(t, func() bool { return q.snapshot("ready") == 0 && q.snapshot("processing") == 0 })
	cancel()
	<-done
}

func TestStartWorkers_DeadLettersAtAttemptCap(t *testing.T) {
	q := newFakeQueue()
	ctx, cancel := context.WithCancel(context.Background())

	handler := countingHandler{outcome: func(int) error { return errors.New("transient failure") }}
	cfg := Config{
		ReadyList:      "ready",
		ProcessingList: "processing",
		DeadLetterList: "dead",
		AttemptCap:     2,
		ReserveTimeout: 50 * time.Millisecond,
		Handler:        handler,
	}

	q.Enqueue(ctx, "ready", []byte{0})

	done := make(chan struct{})
	go func() {
		StartWorkers(ctx, q, cfg, 1)
		close(done)
	}()

	waitFor(t, func() bool { return q.snapshot("dead") == 1 })
	cancel()
	<-done
}

func TestStartWorkers_DropsUserErrorsWithoutRetry(t *testing.T) {
	q := newFakeQueue()
	ctx, cancel := context.WithCancel(context.Background())

	handler := countingHandler{outcome: func(int) error { return ingesterr.User("bad input") }}
	cfg := Config{
		ReadyList:      "ready",
		ProcessingList: "processing",
		DeadLetterList: "dead",
		AttemptCap:     queue.AttemptCapBulk,
		ReserveTimeout: 50 * time.Millisecond,
		Handler:        handler,
	}

	q.Enqueue(ctx, "ready", []byte{0})

	done := make(chan struct{})
	go func() {
		StartWorkers(ctx, q, cfg, 1)
		close(done)
	}()

	waitFor(t, func() bool { return q.snapshot("processing") == 0 })
	cancel()
	<-done

	if n := q.snapshot("dead"); n != 0 {
		t.Errorf("user error should never reach the dead letter list, got %d entries", n)
	}
}
