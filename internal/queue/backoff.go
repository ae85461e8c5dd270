// Copyright (c) 2025 Northbound System
// Author: Nicholas Skitch
package queue

import "time"

// Backoff is a doubling sleep with a floor and a cap. It resets to the
// floor on Reset, which callers invoke after a successful operation.
type Backoff struct {
	floor   time.Duration
	cap     time.Duration
	current time.Duration
}

// NewBackoff returns a Backoff starting at floor and doubling up to cap.
func NewBackoff(floor, cap time.Duration) *Backoff {
	return &Backoff{floor: floor, cap: cap, current: floor}
}

// ReserveBackoff is the I/O-error backoff for a failed reserve call: 10s
// doubling to a 300s cap (§4.1).
func ReserveBackoff() *Backoff { return NewBackoff(10*time.Second, 300*time.Second) }

// ConnectBackoff is a 1s backoff doubling to a 300s cap. The worker
// binaries do not use it: they make one initial Redis connection attempt
// and exit if it fails.
func ConnectBackoff() *Backoff { return NewBackoff(1*time.Second, 300*time.Second) }

// Next returns the current delay and doubles it for the following call,
// capped.
func (b *Backoff) Next() time.Duration {
	d := b.current
	b.current *= 2
	if b.current > b.cap {
		b.current = b.cap
	}
	return d
}

// Reset returns the backoff to its floor.
func (b *Backoff) Reset() {
	b.current = b.floor
}
