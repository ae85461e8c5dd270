// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch

// Package events is the dead-letter/failure event sink named in the
// design notes: at dead-letter time the worker emits a structured event
// naming the dataset and the affected chunk ids (or file id), with the
// terminal error description. The Bus is adapted from
// internal/logger.Logger's broadcast/subscriber mechanism (the teacher
// used it to stream log lines to websocket clients); here it streams
// typed DeadLetterEvent values instead of strings, to whatever consumer
// subscribes (a metrics sink, an admin stream, a test).
package events

import (
	"sync"

	"github.com/google/uuid"
)

// DeadLetterEvent describes one message that exhausted its retry budget.
type DeadLetterEvent struct {
	Queue     string
	DatasetID uuid.UUID
	ChunkIDs  []uuid.UUID
	FileID    *uuid.UUID
	Cause     string
}

// Bus broadcasts DeadLetterEvents to any number of subscribers. A nil
// *Bus is safe to call Publish on: it simply drops the event, so wiring
// an event sink is optional for callers that don't need one.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan DeadLetterEvent]bool
}

// NewBus builds an empty event bus.
func NewBus() *Bus {
	return &Bus{subscribers: make(map[chan DeadLetterEvent]bool)}
}

// Subscribe returns a channel that receives every event published after
// this call. The channel is buffered; a slow subscriber drops events
// rather than blocking the publisher.
func (b *Bus) Subscribe() chan DeadLetterEvent {
	ch := make(chan DeadLetterEvent, 16)
	b.mu.Lock()
	b.subscribers[ch] = true
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *Bus) Unsubscribe(ch chan DeadLetterEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subscribers[ch] {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Publish fans ev out to every current subscriber without blocking.
func (b *Bus) Publish(ev DeadLetterEvent) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}
