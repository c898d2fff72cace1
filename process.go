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
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/logiface"
)

// processLoop is the consumer: it detects calibration and writes every
// dequeued record to the Buffer and then the Processor.
type processLoop struct {
	queue       *BoundedQueue
	buffer      Buffer
	processor   Processor
	sampleRate  float64
	initialWait time.Duration
	steadyWait  time.Duration
	state       *sessionState
	logger      *logiface.Logger[logiface.Event]

	// processed is only read after the worker has been joined.
	processed int64
}

func (p *processLoop) run(w *Worker) (err error) {
	// Stop only ends the loop; a record already taken off the queue is
	// still processed in full.
	processCtx := context.WithoutCancel(w.Context())

	if err := p.processor.Open(); err != nil {
		return fmt.Errorf("%w: open: %w", ErrProcessor, err)
	}
	defer func() {
		if cerr := p.processor.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("%w: close: %w", ErrProcessor, cerr))
		}
		p.logger.Debug().Int64("records", p.processed).Log("processing stopped")
	}()

	wait := p.initialWait
	for w.Running() {
		rec, err := p.queue.Get(w.Context(), wait)
		if errors.Is(err, ErrQueueTimeout) {
			p.logger.Debug().Dur("wait", wait).Log("no data within wait, ending processing")
			return nil
		}
		if err != nil {
			return nil
		}
		wait = p.steadyWait

		p.calibrate(rec)

		if err := p.buffer.Append(rec); err != nil {
			return fmt.Errorf("error appending record %d: %w", rec.Sequence, err)
		}
		if err := p.processor.Process(processCtx, rec.Data, rec.Timestamp); err != nil {
			return fmt.Errorf("%w: record %d: %w", ErrProcessor, rec.Sequence, err)
		}
		p.processed++
	}

	return nil
}

// calibrate marks the session calibrated at the first record whose trigger
// channel is positive. There is no debouncing: a single spurious positive
// sample calibrates the session.
func (p *processLoop) calibrate(rec Record) {
	if p.state.isCalibrated() {
		return
	}
	trigger, ok := rec.Trigger()
	if !ok || trigger <= 0 {
		return
	}

	var offset float64
	if p.sampleRate > 0 {
		offset = rec.Timestamp / p.sampleRate
	} else {
		p.logger.Warning().
			Int64("sequence", rec.Sequence).
			Log("calibration trigger without a sample rate, offset left at zero")
	}
	p.state.calibrate(offset)

	p.logger.Info().
		Int64("sequence", rec.Sequence).
		Float64("offset", offset).
		Log("calibration trigger detected")
}
