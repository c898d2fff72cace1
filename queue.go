// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package daq

import (
	"context"
	"math"
	"time"
)

// minQueueRate is the rate used to size the queue for devices that declare
// a low or no sample rate.
const minQueueRate = 100

// QueueCapacity returns the queue size for a session: one second beyond the
// initial wait, at the device's sample rate.
func QueueCapacity(initialWait time.Duration, sampleRate float64) int {
	seconds := int(math.Ceil(initialWait.Seconds()))
	rate := max(int(math.Ceil(sampleRate)), minQueueRate)
	return (max(seconds, 0) + 1) * rate
}

// BoundedQueue is the FIFO hand-off between the acquisition and process
// workers. Put blocks while the queue is full; records are never dropped.
type BoundedQueue struct {
	ch chan Record
}

// NewBoundedQueue returns a queue holding at most capacity records.
func NewBoundedQueue(capacity int) *BoundedQueue {
	return &BoundedQueue{ch: make(chan Record, max(capacity, 1))}
}

// Put enqueues rec, blocking until there is room. It fails only if ctx is
// done first, in which case rec was not enqueued.
func (q *BoundedQueue) Put(ctx context.Context, rec Record) error {
	select {
	case q.ch <- rec:
		return nil
	default:
	}

	select {
	case q.ch <- rec:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Get dequeues the oldest record, waiting up to timeout. It returns
// ErrQueueTimeout if nothing arrives, or the context error if ctx is done
// first.
func (q *BoundedQueue) Get(ctx context.Context, timeout time.Duration) (Record, error) {
	select {
	case rec := <-q.ch:
		return rec, nil
	default:
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case rec := <-q.ch:
		return rec, nil
	case <-timer.C:
		return Record{}, ErrQueueTimeout
	case <-ctx.Done():
		return Record{}, ctx.Err()
	}
}

// Len returns the number of queued records.
func (q *BoundedQueue) Len() int { return len(q.ch) }

// Cap returns the queue's capacity.
func (q *BoundedQueue) Cap() int { return cap(q.ch) }
