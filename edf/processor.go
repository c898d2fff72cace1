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
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/joeycumines/logiface"
)

// ProcessorConfig describes the EDF file a Processor produces.
type ProcessorConfig struct {
	Path        string   // Output file, created or truncated by Open
	DeviceName  string   // Recorded in the header's recording identification
	SampleRate  float64  // Samples per second, zero if the device did not declare one
	Channels    []string // Signal labels, in sample vector order
	RecordingID string   // Session identifier
	PatientID   string

	PhysicalDimension string
	PhysicalMin       float64
	PhysicalMax       float64
	DigitalMin        int
	DigitalMax        int

	Logger *logiface.Logger[logiface.Event]
}

// Processor streams sample vectors into an EDF file. Samples are grouped
// into one-second data records; a trailing partial record is zero padded
// on Close.
//
// A Processor is used by a single goroutine.
type Processor struct {
	cfg      ProcessorConfig
	file     *os.File
	writer   *Writer
	record   [][]float64
	filled   int
	expected float64
}

// NewProcessor returns an unopened Processor. Zero physical and digital
// ranges default to the full int16 range, which stores integral physical
// values losslessly.
func NewProcessor(cfg ProcessorConfig) *Processor {
	if cfg.PhysicalMin == 0 && cfg.PhysicalMax == 0 {
		cfg.PhysicalMin, cfg.PhysicalMax = math.MinInt16, math.MaxInt16
	}
	if cfg.DigitalMin == 0 && cfg.DigitalMax == 0 {
		cfg.DigitalMin, cfg.DigitalMax = math.MinInt16, math.MaxInt16
	}
	return &Processor{cfg: cfg}
}

// SamplesPerRecord returns the number of samples per signal in each data
// record: the sample rate rounded to the nearest integer, at least one.
func (p *Processor) SamplesPerRecord() int {
	return max(int(math.Round(p.cfg.SampleRate)), 1)
}

// Open creates the output file and writes the provisional header.
func (p *Processor) Open() error {
	if p.file != nil {
		return fmt.Errorf("processor already open")
	}
	if len(p.cfg.Channels) == 0 {
		return fmt.Errorf("processor requires at least one channel")
	}

	spr := p.SamplesPerRecord()
	signals := make([]Signal, len(p.cfg.Channels))
	for i, label := range p.cfg.Channels {
		signals[i] = Signal{
			Label:             label,
			TransducerType:    p.cfg.DeviceName,
			PhysicalDimension: p.cfg.PhysicalDimension,
			PhysicalMin:       p.cfg.PhysicalMin,
			PhysicalMax:       p.cfg.PhysicalMax,
			DigitalMin:        p.cfg.DigitalMin,
			DigitalMax:        p.cfg.DigitalMax,
			SamplesPerRecord:  spr,
		}
	}

	f, err := os.OpenFile(p.cfg.Path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("error creating output: %w", err)
	}

	w, err := Create(f, Header{
		Version:            Version0,
		PatientID:          p.cfg.PatientID,
		RecordingID:        fmt.Sprintf("%s %s", p.cfg.RecordingID, p.cfg.DeviceName),
		StartTime:          time.Now(),
		DataRecordDuration: time.Second,
		Signals:            signals,
	})
	if err != nil {
		_ = f.Close()
		return err
	}

	p.file = f
	p.writer = w
	p.record = make([][]float64, len(signals))
	for i := range p.record {
		p.record[i] = make([]float64, spr)
	}
	p.filled = 0
	p.expected = 0

	p.cfg.Logger.Debug().
		Str("path", p.cfg.Path).
		Int("signals", len(signals)).
		Int("samples_per_record", spr).
		Log("edf output opened")

	return nil
}

// Process appends one sample vector. The context is accepted for
// cancellation of blocking sinks; writes to a local file are not
// interrupted.
func (p *Processor) Process(_ context.Context, data []float64, timestamp float64) error {
	if p.writer == nil {
		return fmt.Errorf("processor not open")
	}
	if len(data) != len(p.record) {
		return fmt.Errorf("expected %d channels, got %d", len(p.record), len(data))
	}

	if timestamp != p.expected {
		p.cfg.Logger.Warning().
			Float64("expected", p.expected).
			Float64("timestamp", timestamp).
			Log("edf output discontinuity")
	}
	p.expected = timestamp + 1

	for i, v := range data {
		p.record[i][p.filled] = v
	}
	p.filled++

	if p.filled == len(p.record[0]) {
		return p.flush()
	}
	return nil
}

// Close writes any partial record, finalizes the header, and closes the
// file. It is a no-op on a Processor that is not open.
func (p *Processor) Close() error {
	if p.file == nil {
		return nil
	}

	var errs []error
	if p.filled > 0 {
		for i := range p.record {
			clear(p.record[i][p.filled:])
		}
		errs = append(errs, p.flush())
	}
	errs = append(errs, p.writer.Close(), p.file.Close())

	p.cfg.Logger.Debug().
		Str("path", p.cfg.Path).
		Int("data_records", p.writer.DataRecords()).
		Log("edf output closed")

	p.file = nil
	p.writer = nil

	return errors.Join(errs...)
}

func (p *Processor) flush() error {
	p.filled = 0
	if err := p.writer.WriteRecord(p.record); err != nil {
		return fmt.Errorf("error writing edf record: %w", err)
	}
	return nil
}
