// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package clock_test

import (
	"math"
	"testing"
	"time"

	"github.com/OpenPSG/daq/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMonotonic(t *testing.T) {
	c := clock.New()

	time.Sleep(20 * time.Millisecond)
	elapsed := c.Now()
	require.GreaterOrEqual(t, elapsed, 0.02)

	c.Reset()
	assert.Less(t, c.Now(), elapsed)
}

func TestManual(t *testing.T) {
	var c clock.Manual

	assert.Zero(t, c.Now())

	c.Advance(1500 * time.Millisecond)
	assert.InDelta(t, 1.5, c.Now(), 1e-9)

	c.Set(10)
	assert.InDelta(t, 10.0, c.Now(), 1e-9)

	c.Reset()
	assert.Zero(t, c.Now())
	assert.Equal(t, 1, c.Resets())
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 250*time.Millisecond, clock.Duration(0.25))
	assert.Equal(t, time.Duration(0), clock.Duration(math.Inf(1)))
	assert.Equal(t, time.Duration(0), clock.Duration(math.NaN()))
}
