// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package clock provides the session time source used to timestamp
// acquisition. A Clock measures elapsed seconds since its epoch, which is
// established by Reset at the start of each acquisition session.
//
// Production code uses New, which reads Go's monotonic clock and is
// therefore immune to wall clock adjustments. Tests use Manual, which only
// moves when told to.
package clock

import (
	"math"
	"sync"
	"time"
)

// Clock is a resettable elapsed-time source.
type Clock interface {
	// Reset establishes a new epoch.
	Reset()
	// Now returns the number of seconds elapsed since the last Reset.
	Now() float64
}

// Monotonic is a Clock backed by the runtime's monotonic time reading.
// It is safe for concurrent use.
type Monotonic struct {
	mu      sync.RWMutex
	resetAt time.Time
}

// New returns a Monotonic clock whose epoch is the moment of the call.
func New() *Monotonic {
	c := &Monotonic{}
	c.Reset()
	return c
}

// Reset sets the epoch to the current instant.
func (c *Monotonic) Reset() {
	c.mu.Lock()
	c.resetAt = time.Now()
	c.mu.Unlock()
}

// Now returns the seconds elapsed since the epoch.
func (c *Monotonic) Now() float64 {
	c.mu.RLock()
	resetAt := c.resetAt
	c.mu.RUnlock()
	return time.Since(resetAt).Seconds()
}

// Manual is a deterministic Clock for tests. Time stands still until Set or
// Advance is called. It is safe for concurrent use.
type Manual struct {
	mu      sync.Mutex
	elapsed float64
	resets  int
}

// Reset returns the elapsed time to zero.
func (c *Manual) Reset() {
	c.mu.Lock()
	c.elapsed = 0
	c.resets++
	c.mu.Unlock()
}

// Now returns the current elapsed time.
func (c *Manual) Now() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

// Set moves the clock to the given elapsed time.
func (c *Manual) Set(seconds float64) {
	c.mu.Lock()
	c.elapsed = seconds
	c.mu.Unlock()
}

// Advance moves the clock forward by d.
func (c *Manual) Advance(d time.Duration) {
	c.mu.Lock()
	c.elapsed += d.Seconds()
	c.mu.Unlock()
}

// Resets reports how many times Reset has been called.
func (c *Manual) Resets() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resets
}

// Duration converts a Clock reading in seconds to a time.Duration.
func Duration(seconds float64) time.Duration {
	if math.IsInf(seconds, 0) || math.IsNaN(seconds) {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}
