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
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/joeycumines/logiface"
)

// Window selects records with Start <= Timestamp < End. Use math.Inf(1) as
// End for an open range.
type Window struct {
	Start float64
	End   float64
}

// Since returns the open window starting at start.
func Since(start float64) *Window {
	return &Window{Start: start, End: math.Inf(1)}
}

// sessionState is written by the process worker and read from any
// goroutine.
type sessionState struct {
	calibrated atomic.Bool
	offset     atomic.Uint64 // math.Float64bits
}

func (s *sessionState) reset() {
	s.calibrated.Store(false)
	s.offset.Store(0)
}

// calibrate publishes the offset before the flag, so a reader that sees
// the session calibrated also sees its offset.
func (s *sessionState) calibrate(offset float64) {
	s.offset.Store(math.Float64bits(offset))
	s.calibrated.Store(true)
}

func (s *sessionState) isCalibrated() bool { return s.calibrated.Load() }

func (s *sessionState) getOffset() float64 { return math.Float64frombits(s.offset.Load()) }

// Client orchestrates acquisition sessions for one device. Its methods are
// safe for concurrent use.
type Client struct {
	device Device
	cfg    Config
	state  sessionState

	// mu serializes Start, Stop and Cleanup.
	mu          sync.Mutex
	queue       *BoundedQueue
	acquisition *acquisition
	acqWorker   *Worker
	procWorker  *Worker
	logger      *logiface.Logger[logiface.Event]

	bufMu  sync.RWMutex
	buffer Buffer

	streaming atomic.Bool
	session   atomic.Pointer[uuid.UUID]
}

// NewClient returns an idle client for device. Zero fields of cfg take
// their defaults.
func NewClient(device Device, cfg Config) *Client {
	return &Client{
		device: device,
		cfg:    cfg.withDefaults(),
	}
}

// Start begins a session. It is a no-op while streaming.
//
// A device that fails to connect does not fail Start: the session runs
// without data and the failure is returned by Stop. Start fails only if
// the sinks cannot be built.
func (c *Client) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.streaming.Load() {
		return nil
	}

	id := uuid.New()
	logger := c.cfg.Logger.Clone().
		Str("session", id.String()).
		Str("device", c.device.Name()).
		Logger()

	c.streaming.Store(true)
	c.state.reset()
	c.session.Store(&id)

	c.cfg.Clock.Reset()

	acq := newAcquisition(c.device, c.cfg.Clock, c.cfg.InitialWait, logger)
	acqWorker := Go("acquisition", acq.run)

	// Device parameters may change while connecting, so the queue and the
	// sinks are only sized once the producer is ready.
	<-acq.ready
	queue := acq.queue

	buffer, processor, err := c.newSinks(id.String(), logger)
	if err != nil {
		acqWorker.Stop()
		err = errors.Join(err, c.device.Disconnect(), acqWorker.Join())
		c.streaming.Store(false)
		logger.Err().Err(err).Log("session failed to start")
		return err
	}

	proc := &processLoop{
		queue:       queue,
		buffer:      buffer,
		processor:   processor,
		sampleRate:  c.device.SampleRate(),
		initialWait: c.cfg.InitialWait,
		steadyWait:  c.cfg.SteadyWait,
		state:       &c.state,
		logger:      logger,
	}

	c.bufMu.Lock()
	c.buffer = buffer
	c.bufMu.Unlock()

	c.queue = queue
	c.acquisition = acq
	c.acqWorker = acqWorker
	c.procWorker = Go("process", proc.run)
	c.logger = logger

	logger.Info().
		Float64("sample_rate", c.device.SampleRate()).
		Int("queue_capacity", queue.Cap()).
		Log("session started")

	return nil
}

func (c *Client) newSinks(sessionID string, logger *logiface.Logger[logiface.Event]) (Buffer, Processor, error) {
	channels := c.device.Channels()

	buffer, err := c.cfg.NewBuffer(BufferParams{
		Name:     c.cfg.BufferName,
		Channels: channels,
		Logger:   logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error creating buffer: %w", err)
	}

	processor, err := c.cfg.NewProcessor(ProcessorParams{
		OutputName: c.cfg.OutputName,
		DeviceName: c.device.Name(),
		SampleRate: c.device.SampleRate(),
		Channels:   channels,
		SessionID:  sessionID,
		Logger:     logger,
	})
	if err != nil {
		return nil, nil, errors.Join(fmt.Errorf("error creating processor: %w", err), buffer.Close())
	}

	return buffer, processor, nil
}

// Stop ends the session. The device is disconnected and the acquisition
// worker joined; the process worker is then given the drain budget to
// persist what is already queued before it is stopped and the Buffer is
// closed. Stop returns the errors the session produced. It is a no-op on
// an idle client.
func (c *Client) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.acqWorker == nil {
		return nil
	}

	logger := c.logger
	logger.Debug().Int("queued", c.queue.Len()).Log("stopping session")

	c.streaming.Store(false)

	var errs []error
	if err := c.device.Disconnect(); err != nil {
		errs = append(errs, fmt.Errorf("error disconnecting device: %w", err))
	}

	c.acqWorker.Stop()
	if err := c.acqWorker.Join(); err != nil {
		errs = append(errs, err)
	}

	if remaining := c.drain(); remaining > 0 {
		logger.Warning().Int("remaining", remaining).Log("drain budget exhausted")
	}

	c.procWorker.Stop()
	if err := c.procWorker.JoinTimeout(c.cfg.JoinTimeout); err != nil {
		errs = append(errs, err)
	}

	c.bufMu.RLock()
	if err := c.buffer.Close(); err != nil {
		errs = append(errs, fmt.Errorf("error closing buffer: %w", err))
	}
	c.bufMu.RUnlock()

	err := errors.Join(errs...)

	logger.Info().
		Int64("produced", c.acquisition.produced).
		Bool("calibrated", c.state.isCalibrated()).
		Float64("offset", c.state.getOffset()).
		Err(err).
		Log("session stopped")

	c.queue = nil
	c.acquisition = nil
	c.acqWorker = nil
	c.procWorker = nil

	return err
}

// drain waits for the process worker to empty the queue, polling every
// DrainTick for at most the configured number of ticks. It returns the
// number of records left.
func (c *Client) drain() int {
	ticker := time.NewTicker(c.cfg.DrainTick)
	defer ticker.Stop()

	for ticks := 0; c.queue.Len() > 0 && ticks < c.cfg.drainTicks(); ticks++ {
		select {
		case <-ticker.C:
		case <-c.procWorker.Done():
			return c.queue.Len()
		}
	}
	return c.queue.Len()
}

// Run starts a session, calls fn, and stops the session even if fn fails
// or panics.
func (c *Client) Run(fn func(c *Client) error) (err error) {
	if err := c.Start(); err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, c.Stop())
	}()
	return fn(c)
}

// GetData returns the buffered records within w, or all records if w is
// nil. Without a Buffer it returns no records.
func (c *Client) GetData(w *Window) ([]Record, error) {
	c.bufMu.RLock()
	defer c.bufMu.RUnlock()

	if c.buffer == nil {
		return []Record{}, nil
	}
	if w == nil {
		return c.buffer.All()
	}
	return c.buffer.Query(w.Start, w.End)
}

// GetDataLen returns the number of buffered records, or 0 without a
// Buffer.
func (c *Client) GetDataLen() int {
	c.bufMu.RLock()
	defer c.bufMu.RUnlock()

	if c.buffer == nil {
		return 0
	}
	return c.buffer.Len()
}

// Cleanup deletes the Buffer's archive. It returns ErrStreaming during a
// session. Afterwards GetData returns no records.
func (c *Client) Cleanup() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.acqWorker != nil {
		return ErrStreaming
	}

	c.bufMu.Lock()
	defer c.bufMu.Unlock()

	if c.buffer == nil {
		return nil
	}
	err := c.buffer.Cleanup()
	c.buffer = nil
	return err
}

// QueueCap returns the capacity of the running session's queue, or 0 when
// idle.
func (c *Client) QueueCap() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue == nil {
		return 0
	}
	return c.queue.Cap()
}

// IsStreaming reports whether a session is running.
func (c *Client) IsStreaming() bool { return c.streaming.Load() }

// IsCalibrated reports whether the current or last session saw its
// calibration trigger.
func (c *Client) IsCalibrated() bool { return c.state.isCalibrated() }

// Offset returns the seconds from the start of acquisition to the
// calibration trigger, or 0 if none was seen.
func (c *Client) Offset() float64 { return c.state.getOffset() }

// SessionID returns the identifier of the current or last session, or the
// empty string before the first Start.
func (c *Client) SessionID() string {
	if id := c.session.Load(); id != nil {
		return id.String()
	}
	return ""
}
