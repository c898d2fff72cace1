// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/OpenPSG/daq/clock"
)

// ErrDisconnected is returned by ReadData after Disconnect.
var ErrDisconnected = errors.New("player disconnected")

// Player replays an EDF file as an acquisition device. Every signal must
// share the same samples per record; each read returns one value per
// signal.
//
// Disconnect may be called concurrently with ReadData.
type Player struct {
	path     string
	realtime bool

	mu       sync.Mutex
	file     *os.File
	reader   *Reader
	clock    clock.Clock
	rate     float64
	channels []string
	record   [][]float64
	next     int // next data record to load
	sample   int // next sample within record
	produced int64
}

// PlayerOption configures a Player.
type PlayerOption func(*Player)

// WithRealtime paces reads to the file's sample rate, measured against the
// clock passed to AcquisitionInit.
func WithRealtime() PlayerOption {
	return func(p *Player) {
		p.realtime = true
	}
}

// NewPlayer returns a Player for the EDF file at path. The file is not
// opened until Connect.
func NewPlayer(path string, opts ...PlayerOption) *Player {
	p := &Player{path: path}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the device by file name.
func (p *Player) Name() string {
	return "edf:" + filepath.Base(p.path)
}

// SampleRate returns the file's sample rate, known after Connect.
func (p *Player) SampleRate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// Channels returns the signal labels, known after Connect.
func (p *Player) Channels() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.channels...)
}

// Connect opens the file and reads its header.
func (p *Player) Connect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file != nil {
		return nil
	}

	f, err := os.Open(p.path)
	if err != nil {
		return fmt.Errorf("error opening %s: %w", p.path, err)
	}

	r, err := Open(f)
	if err != nil {
		_ = f.Close()
		return err
	}

	hdr := r.Header()
	if len(hdr.Signals) == 0 {
		_ = f.Close()
		return fmt.Errorf("%s has no signals", p.path)
	}

	channels := make([]string, len(hdr.Signals))
	for i, s := range hdr.Signals {
		if s.SamplesPerRecord != hdr.Signals[0].SamplesPerRecord {
			_ = f.Close()
			return fmt.Errorf("signal %q: mixed sample rates are not supported", s.Label)
		}
		channels[i] = s.Label
	}

	p.file = f
	p.reader = r
	p.rate = hdr.Signals[0].SampleRate(hdr.DataRecordDuration)
	p.channels = channels
	p.record = nil
	p.next = 0
	p.sample = 0
	p.produced = 0

	return nil
}

// AcquisitionInit records the session clock used for real-time pacing.
func (p *Player) AcquisitionInit(c clock.Clock) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return ErrDisconnected
	}
	p.clock = c
	return nil
}

// ReadData returns the next sample vector. Once the file is exhausted it
// returns io.EOF.
func (p *Player) ReadData() ([]float64, error) {
	p.mu.Lock()

	if p.file == nil {
		p.mu.Unlock()
		return nil, ErrDisconnected
	}

	if p.record == nil || p.sample >= len(p.record[0]) {
		record, err := p.reader.DataRecord(p.next)
		if err != nil {
			p.mu.Unlock()
			return nil, err
		}
		p.record = record
		p.next++
		p.sample = 0
	}

	sample := make([]float64, len(p.record))
	for i := range p.record {
		sample[i] = p.record[i][p.sample]
	}
	p.sample++

	var wait time.Duration
	if p.realtime && p.clock != nil && p.rate > 0 {
		due := float64(p.produced) / p.rate
		wait = clock.Duration(due - p.clock.Now())
	}
	p.produced++
	p.mu.Unlock()

	if wait > 0 {
		time.Sleep(wait)
	}

	return sample, nil
}

// Disconnect closes the file. Subsequent reads fail with ErrDisconnected.
func (p *Player) Disconnect() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == nil {
		return nil
	}

	err := p.file.Close()
	p.file = nil
	p.reader = nil
	if err != nil {
		return fmt.Errorf("error closing %s: %w", p.path, err)
	}
	return nil
}
