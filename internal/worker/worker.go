// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package worker runs the dispatch loop shared by the ingestion worker and
// the file worker: reserve a message, hand it to a Handler, and ack,
// reinject, or dead-letter it depending on the outcome (§4.1, §7).
package worker

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/northbound-system/hive-ingest/internal/events"
	"github.com/northbound-system/hive-ingest/internal/ingesterr"
	"github.com/northbound-system/hive-ingest/internal/queue"
)

// Handler processes one raw queue message. Attempt and Reinject let the
// dispatch loop retry without knowing the message's wire shape.
type Handler interface {
	// Handle processes the message. A nil error acks it. A
	// *ingesterr.Error with KindUser, or a *ingesterr.DuplicateTrackingID,
	// also acks it (§7: logged and dropped, never retried). Any other
	// error is treated as transient and retried up to Config.AttemptCap.
	Handle(ctx context.Context, raw []byte) error

	// Attempt reports the message's current attempt number.
	Attempt(raw []byte) (int, error)

	// Reinject returns raw with its attempt counter incremented by one.
	Reinject(raw []byte) ([]byte, error)
}

// EventDescriber is an optional extension a Handler can implement to give
// the dead-letter path a structured event (dataset id, affected chunk or
// file ids) instead of just a log line (§7: "emits a structured event
// naming the dataset and the affected chunk ids").
type EventDescriber interface {
	DeadLetterEvent(raw []byte, cause string) events.DeadLetterEvent
}

// Config names the Redis lists a worker pool operates against and bounds
// retries before a message is dead-lettered.
type Config struct {
	ReadyList      string
	ProcessingList string
	DeadLetterList string
	AttemptCap     int
	ReserveTimeout time.Duration
	Handler        Handler

	// Events receives a DeadLetterEvent whenever a message is
	// dead-lettered, if Handler implements EventDescriber. Nil is fine:
	// (*events.Bus)(nil).Publish is a no-op.
	Events *events.Bus
}

// StartWorkers runs workerCount goroutines pulling from cfg.ReadyList until
// ctx is cancelled, then waits for all in-flight handlers to return.
func StartWorkers(ctx context.Context, q queue.Queue, cfg Config, workerCount int) error {
	log.Printf("worker: starting %d workers on %s", workerCount, cfg.ReadyList)

	var wg sync.WaitGroup
	wg.Add(workerCount)
	for i := 0; i < workerCount; i++ {
		id := i + 1
		go func() {
			defer wg.Done()
			workerLoop(ctx, q, cfg, id)
		}()
	}
	wg.Wait()
	log.Printf("worker: all workers on %s stopped", cfg.ReadyList)
	return nil
}

func workerLoop(ctx context.Context, q queue.Queue, cfg Config, workerID int) {
	backoff := queue.ReserveBackoff()
	timeout := cfg.ReserveTimeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	for {
		select {
		case <-ctx.Done():
			log.Printf("worker[%d]: context cancelled on %s, stopping", workerID, cfg.ReadyList)
			return
		default:
		}

		raw, err := q.Reserve(ctx, cfg.ReadyList, cfg.ProcessingList, timeout)
		if err != nil {
			if err == context.Canceled || err == context.DeadlineExceeded {
				return
			}
			if err == queue.ErrTimeout {
				backoff.Reset()
				continue
			}
			log.Printf("worker[%d]: reserve error on %s: %v, backing off", workerID, cfg.ReadyList, err)
			sleep(ctx, backoff.Next())
			continue
		}
		backoff.Reset()

		handleOne(ctx, q, cfg, workerID, raw)
	}
}

func handleOne(ctx context.Context, q queue.Queue, cfg Config, workerID int, raw []byte) {
	err := cfg.Handler.Handle(ctx, raw)
	if err == nil {
		if ackErr := q.Ack(ctx, cfg.ProcessingList, raw); ackErr != nil {
			log.Printf("worker[%d]: ack failed on %s: %v", workerID, cfg.ProcessingList, ackErr)
		}
		return
	}

	if ingesterr.IsUser(err) || ingesterr.IsDuplicateTrackingID(err) {
		log.Printf("worker[%d]: dropping message on %s: %v", workerID, cfg.ReadyList, err)
		if ackErr := q.Ack(ctx, cfg.ProcessingList, raw); ackErr != nil {
			log.Printf("worker[%d]: ack failed on %s: %v", workerID, cfg.ProcessingList, ackErr)
		}
		return
	}

	log.Printf("worker[%d]: transient error on %s: %v", workerID, cfg.ReadyList, err)

	attempt, attErr := cfg.Handler.Attempt(raw)
	if attErr != nil {
		log.Printf("worker[%d]: cannot read attempt number, dead-lettering: %v", workerID, attErr)
		deadLetter(ctx, q, cfg, workerID, raw, attErr.Error())
		return
	}

	if attempt+1 >= cfg.AttemptCap {
		log.Printf("worker[%d]: attempt cap %d reached on %s, dead-lettering", workerID, cfg.AttemptCap, cfg.ReadyList)
		deadLetter(ctx, q, cfg, workerID, raw, err.Error())
		return
	}

	next, reErr := cfg.Handler.Reinject(raw)
	if reErr != nil {
		log.Printf("worker[%d]: cannot build reinject payload, dead-lettering: %v", workerID, reErr)
		deadLetter(ctx, q, cfg, workerID, raw, reErr.Error())
		return
	}

	if err := q.Reinject(ctx, cfg.ReadyList, cfg.ProcessingList, raw, next); err != nil {
		log.Printf("worker[%d]: reinject failed on %s: %v", workerID, cfg.ReadyList, err)
	}
}

func deadLetter(ctx context.Context, q queue.Queue, cfg Config, workerID int, raw []byte, cause string) {
	if describer, ok := cfg.Handler.(EventDescriber); ok {
		ev := describer.DeadLetterEvent(raw, cause)
		ev.Queue = cfg.ReadyList
		cfg.Events.Publish(ev)
	}
	if err := q.DeadLetter(ctx, cfg.DeadLetterList, cfg.ProcessingList, raw); err != nil {
		log.Printf("worker[%d]: dead-letter failed on %s: %v", workerID, cfg.DeadLetterList, err)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
