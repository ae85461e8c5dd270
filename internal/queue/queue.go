// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package queue

import (
	"context"
	"time"
)

// Named lists the pipeline moves messages through. ListBulkPG is retained
// only as a constant for recognizability with the legacy path described in
// the design notes; nothing in this module writes to it.
const (
	ListIngestion      = "ingestion"
	ListProcessing     = "processing"
	ListFileIngestion  = "file_ingestion"
	ListFileProcessing = "file_processing"
	ListDeadLetters    = "dead_letters"
	ListDeadLettersFile = "dead_letters_file"
	ListBulkPG         = "bulk_pg_queue"
)

// AttemptCapBulk is the retry cap for chunk ingestion messages (§3.2).
const AttemptCapBulk = 10

// AttemptCapFile is the retry cap for file messages (§3.2).
const AttemptCapFile = 3

// Queue is the contract §4.1 names: atomic enqueue, reserve (pop-and-move),
// ack (remove from in-flight), reinject (ack + re-enqueue a transformed
// form), and dead-letter.
type Queue interface {
	// Enqueue atomically appends raw to list.
	Enqueue(ctx context.Context, list string, raw []byte) error

	// Reserve atomically moves the oldest ready message from readyList to
	// inFlightList and returns it. It blocks up to timeout and returns
	// ErrTimeout if nothing became available.
	Reserve(ctx context.Context, readyList, inFlightList string, timeout time.Duration) ([]byte, error)

	// Ack removes one copy of raw from inFlightList.
	Ack(ctx context.Context, inFlightList string, raw []byte) error

	// Reinject acks old from inFlightList and enqueues transformed onto
	// readyList, used to bump attempt_number on retry.
	Reinject(ctx context.Context, readyList, inFlightList string, old, transformed []byte) error

	// DeadLetter acks old from inFlightList and appends it to deadList.
	DeadLetter(ctx context.Context, deadList, inFlightList string, old []byte) error
}

// ErrTimeout is returned by Reserve when no message became available
// before the deadline. It is not a failure of the broker connection and
// never triggers the I/O backoff policy.
var ErrTimeout = timeoutError{}

type timeoutError struct{}

func (timeoutError) Error() string { return "queue: reserve timed out" }
