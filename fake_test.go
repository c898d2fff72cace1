// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package daq_test

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OpenPSG/daq"
	"github.com/OpenPSG/daq/clock"
)

// fakeDevice emits a fixed list of samples. With hold set it then blocks
// until disconnected, like a live device with nothing more to send. A
// non-zero connectRate replaces the sample rate on Connect.
type fakeDevice struct {
	name        string
	channels    []string
	samples     [][]float64
	hold        bool
	connectErr  error
	connectRate float64

	mu          sync.Mutex
	rate        float64
	connected   bool
	release     chan struct{}
	next        int
	connects    int
	disconnects int
	clock       clock.Clock
}

func (d *fakeDevice) Name() string       { return d.name }
func (d *fakeDevice) Channels() []string { return d.channels }

func (d *fakeDevice) SampleRate() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate
}

func (d *fakeDevice) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.connects++
	if d.connectErr != nil {
		return d.connectErr
	}
	if d.connectRate != 0 {
		d.rate = d.connectRate
	}
	d.connected = true
	d.release = make(chan struct{})
	d.next = 0
	return nil
}

func (d *fakeDevice) Disconnect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.disconnects++
	if d.connected {
		d.connected = false
		close(d.release)
	}
	return nil
}

func (d *fakeDevice) AcquisitionInit(c clock.Clock) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.clock = c
	return nil
}

func (d *fakeDevice) ReadData() ([]float64, error) {
	d.mu.Lock()
	if !d.connected {
		d.mu.Unlock()
		return nil, io.EOF
	}
	if d.next < len(d.samples) {
		sample := d.samples[d.next]
		d.next++
		d.mu.Unlock()
		return sample, nil
	}
	release := d.release
	d.mu.Unlock()

	if d.hold {
		<-release
	}
	return nil, io.EOF
}

func (d *fakeDevice) reads() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.next
}

func (d *fakeDevice) counts() (connects, disconnects int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.connects, d.disconnects
}

// ramp returns n two-channel samples: the index, then the trigger value.
func ramp(n int, trigger func(i int) float64) [][]float64 {
	samples := make([][]float64, n)
	for i := range samples {
		var t float64
		if trigger != nil {
			t = trigger(i)
		}
		samples[i] = []float64{float64(i), t}
	}
	return samples
}

func newDevice(rate float64, samples [][]float64) *fakeDevice {
	return &fakeDevice{
		name:     "fake",
		rate:     rate,
		channels: []string{"ch0", "trigger"},
		samples:  samples,
	}
}

// fakeProcessor records what it is given. With ctxWait set, each record
// takes that long unless ctx is done first, in which case the record fails
// with the context error.
type fakeProcessor struct {
	delay     time.Duration
	ctxWait   time.Duration
	block     chan struct{}
	failAt    float64
	onProcess func(timestamp float64)

	calls      atomic.Int32
	mu         sync.Mutex
	opens      int
	closes     int
	data       [][]float64
	timestamps []float64
}

func newProcessor() *fakeProcessor {
	return &fakeProcessor{failAt: -1}
}

func (p *fakeProcessor) Open() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opens++
	return nil
}

func (p *fakeProcessor) Process(ctx context.Context, data []float64, timestamp float64) error {
	p.calls.Add(1)
	if p.ctxWait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.ctxWait):
		}
	}
	if p.block != nil {
		<-p.block
	}
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.onProcess != nil {
		p.onProcess(timestamp)
	}
	if timestamp == p.failAt {
		return io.ErrShortWrite
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = append(p.data, data)
	p.timestamps = append(p.timestamps, timestamp)
	return nil
}

func (p *fakeProcessor) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closes++
	return nil
}

func (p *fakeProcessor) processed() ([][]float64, []float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]float64(nil), p.data...), append([]float64(nil), p.timestamps...)
}

func (p *fakeProcessor) lifecycle() (opens, closes int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opens, p.closes
}

// testConfig returns a fast configuration writing into a temporary
// directory, with proc as the Processor.
func testConfig(t *testing.T, proc *fakeProcessor) daq.Config {
	t.Helper()

	dir := t.TempDir()
	cfg := daq.DefaultConfig()
	cfg.BufferName = filepath.Join(dir, "buffer.db")
	cfg.OutputName = filepath.Join(dir, "rawdata.edf")
	cfg.InitialWait = 200 * time.Millisecond
	cfg.SteadyWait = 200 * time.Millisecond
	cfg.DrainTick = 10 * time.Millisecond
	cfg.JoinTimeout = 2 * time.Second
	cfg.Archive.ChunkSize = 16
	cfg.Clock = &clock.Manual{}
	cfg.LogLevel = "disabled"
	if proc != nil {
		cfg.NewProcessor = func(daq.ProcessorParams) (daq.Processor, error) {
			return proc, nil
		}
	}
	return cfg
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of the
// workers' loggers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
