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
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/OpenPSG/daq/archive"
	"github.com/OpenPSG/daq/clock"
	"github.com/joeycumines/logiface"
)

// acquisition is the producer: it turns the device's read stream into
// numbered records on the queue.
type acquisition struct {
	device      Device
	clock       clock.Clock
	initialWait time.Duration
	logger      *logiface.Logger[logiface.Event]

	// ready is closed once the device is connected and initialized, or has
	// failed to be. Device parameters are final from then on, and queue,
	// sized from the final sample rate, is set.
	ready chan struct{}
	queue *BoundedQueue

	// produced is only read after the worker has been joined.
	produced int64
}

func newAcquisition(device Device, c clock.Clock, initialWait time.Duration, logger *logiface.Logger[logiface.Event]) *acquisition {
	return &acquisition{
		device:      device,
		clock:       c,
		initialWait: initialWait,
		logger:      logger,
		ready:       make(chan struct{}),
	}
}

func (a *acquisition) run(w *Worker) error {
	if err := a.start(); err != nil {
		a.logger.Err().Err(err).Log("acquisition aborted")
		return err
	}

	a.logger.Debug().
		Float64("sample_rate", a.device.SampleRate()).
		Int("channels", len(a.device.Channels())).
		Log("acquisition started")

	for w.Running() {
		sample, err := a.device.ReadData()
		if err != nil || len(sample) == 0 {
			a.endOfStream(err)
			return nil
		}

		if err := a.queue.Put(w.Context(), archive.NewRecord(sample, a.produced)); err != nil {
			a.logger.Warning().
				Int64("sequence", a.produced).
				Log("acquisition cancelled while queue full")
			return nil
		}
		a.produced++
	}

	a.logger.Debug().Int64("records", a.produced).Log("acquisition stopped")
	return nil
}

// start connects the device and sizes the queue from its final sample rate.
// ready is closed on every path, including a panicking device.
func (a *acquisition) start() error {
	defer func() {
		if a.queue == nil {
			a.queue = NewBoundedQueue(QueueCapacity(a.initialWait, 0))
		}
		close(a.ready)
	}()

	err := a.init()
	a.queue = NewBoundedQueue(QueueCapacity(a.initialWait, a.device.SampleRate()))
	return err
}

func (a *acquisition) init() error {
	if err := a.device.Connect(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrDeviceConnect, a.device.Name(), err)
	}
	if err := a.device.AcquisitionInit(a.clock); err != nil {
		return fmt.Errorf("%w: %s: init: %w", ErrDeviceConnect, a.device.Name(), err)
	}
	return nil
}

// endOfStream logs why the read stream ended. Neither case is an error of
// the session.
func (a *acquisition) endOfStream(err error) {
	if err == nil || errors.Is(err, io.EOF) {
		a.logger.Info().Int64("records", a.produced).Log("device end of stream")
		return
	}
	a.logger.Info().
		Err(fmt.Errorf("%w: %w", ErrDeviceRead, err)).
		Int64("records", a.produced).
		Log("device read ended acquisition")
}
