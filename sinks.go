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

	"github.com/OpenPSG/daq/archive"
	"github.com/OpenPSG/daq/edf"
	"github.com/joeycumines/logiface"
)

// Buffer is a queryable, time-indexed archive of records. Only the process
// worker appends; reads may come from any goroutine.
type Buffer interface {
	Append(rec Record) error
	All() ([]Record, error)
	// Query returns records with start <= Timestamp < end. An end of +Inf
	// leaves the range open.
	Query(start, end float64) ([]Record, error)
	Len() int
	Close() error
	// Cleanup deletes the archive. Its data is unavailable afterwards.
	Cleanup() error
}

// Processor is the downstream sink. It is opened when the process worker
// starts and closed on every exit path.
type Processor interface {
	Open() error
	Process(ctx context.Context, data []float64, timestamp float64) error
	Close() error
}

// ProcessorParams carries the finalized device parameters of a session.
type ProcessorParams struct {
	OutputName string
	DeviceName string
	SampleRate float64
	Channels   []string
	SessionID  string
	Logger     *logiface.Logger[logiface.Event]
}

// BufferParams describes the Buffer of a session.
type BufferParams struct {
	Name     string
	Channels []string
	Logger   *logiface.Logger[logiface.Event]
}

// BufferFactory builds the Buffer for a session.
type BufferFactory func(params BufferParams) (Buffer, error)

// ProcessorFactory builds the Processor for a session.
type ProcessorFactory func(params ProcessorParams) (Processor, error)

var (
	_ Buffer    = (*archive.Archive)(nil)
	_ Processor = (*edf.Processor)(nil)
)

// ArchiveBuffer returns a BufferFactory producing SQLite archives.
func ArchiveBuffer(cfg ArchiveConfig) BufferFactory {
	return func(params BufferParams) (Buffer, error) {
		a, err := archive.Open(params.Channels, params.Name,
			archive.WithChunkSize(cfg.ChunkSize),
			archive.WithPoolSize(cfg.PoolSize),
			archive.WithLogger(params.Logger))
		if err != nil {
			return nil, err
		}
		return a, nil
	}
}

// EDFProcessor returns a ProcessorFactory writing EDF files.
func EDFProcessor(cfg EDFConfig) ProcessorFactory {
	return func(params ProcessorParams) (Processor, error) {
		return edf.NewProcessor(edf.ProcessorConfig{
			Path:              params.OutputName,
			DeviceName:        params.DeviceName,
			SampleRate:        params.SampleRate,
			Channels:          params.Channels,
			RecordingID:       params.SessionID,
			PatientID:         cfg.PatientID,
			PhysicalDimension: cfg.PhysicalDimension,
			PhysicalMin:       cfg.PhysicalMin,
			PhysicalMax:       cfg.PhysicalMax,
			DigitalMin:        cfg.DigitalMin,
			DigitalMax:        cfg.DigitalMax,
			Logger:            params.Logger,
		}), nil
	}
}
