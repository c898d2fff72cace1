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
	"github.com/OpenPSG/daq/archive"
	"github.com/OpenPSG/daq/clock"
	"github.com/OpenPSG/daq/edf"
)

// Record is a numbered sample vector.
type Record = archive.Record

// Device is a source of sample vectors. The Client owns a device's
// lifecycle for one session. Disconnect may be called while ReadData is
// blocked in another goroutine.
type Device interface {
	Name() string
	// SampleRate returns samples per second, or zero when the device does
	// not declare a rate. It may change during Connect.
	SampleRate() float64
	// Channels returns the channel labels in sample vector order. The
	// last channel is the calibration trigger.
	Channels() []string

	Connect() error
	Disconnect() error
	AcquisitionInit(c clock.Clock) error

	// ReadData returns the next sample vector. io.EOF (or an empty vector)
	// marks the end of the stream; any other error is a failed read.
	ReadData() ([]float64, error)
}

var _ Device = (*edf.Player)(nil)
