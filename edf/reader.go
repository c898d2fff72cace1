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
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
)

// Reader reads EDF/EDF+ files.
type Reader struct {
	r   io.ReadSeeker
	hdr *Header
}

// Open opens an EDF/EDF+ file for reading.
func Open(r io.ReadSeeker) (*Reader, error) {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to header: %w", err)
	}

	hdr, err := decodeHeader(bufio.NewReader(r))
	if err != nil {
		return nil, err
	}

	return &Reader{r: r, hdr: hdr}, nil
}

// Header returns the parsed file header.
func (er *Reader) Header() Header {
	hdr := *er.hdr
	hdr.Signals = append([]Signal(nil), er.hdr.Signals...)
	return hdr
}

// DataRecord reads the physical values of the n-th data record, one slice
// per signal. It returns io.EOF past the last record.
func (er *Reader) DataRecord(n int) ([][]float64, error) {
	if n < 0 || n >= er.hdr.DataRecords {
		return nil, io.EOF
	}

	buf := make([]byte, er.hdr.RecordSize())
	pos := int64(er.hdr.HeaderBytes) + int64(n)*int64(len(buf))
	if _, err := er.r.Seek(pos, io.SeekStart); err != nil {
		return nil, fmt.Errorf("error seeking to record %d: %w", n, err)
	}
	if _, err := io.ReadFull(er.r, buf); err != nil {
		return nil, fmt.Errorf("error reading record %d: %w", n, err)
	}

	signals := make([][]float64, len(er.hdr.Signals))
	offset := 0
	for i := range er.hdr.Signals {
		signal := &er.hdr.Signals[i]
		signals[i] = make([]float64, signal.SamplesPerRecord)
		for j := range signals[i] {
			digital := int16(binary.LittleEndian.Uint16(buf[offset:]))
			signals[i][j] = signal.toPhysical(digital)
			offset += 2
		}
	}

	return signals, nil
}

// SignalReader reads continuous signal data from an EDF/EDF+ file.
type SignalReader struct {
	r                io.ReadSeeker
	hdr              *Header
	signalIndex      int // Index of the signal to read
	currentRecord    int // Current record being processed
	currentSample    int // Current sample in the record
	recordSize       int // Total size of one data record
	signalOffset     int // Byte offset of the signal in a record
	samplesPerRecord int // Number of samples per record for the signal
}

// Signal creates a new SignalReader for a specified signal index.
func (er *Reader) Signal(signalIndex int) (*SignalReader, error) {
	if signalIndex < 0 || signalIndex >= len(er.hdr.Signals) {
		return nil, fmt.Errorf("signal index out of range")
	}

	signalOffset := 0
	for _, sig := range er.hdr.Signals[:signalIndex] {
		signalOffset += sig.SamplesPerRecord * 2
	}

	return &SignalReader{
		r:                er.r,
		hdr:              er.hdr,
		signalIndex:      signalIndex,
		recordSize:       er.hdr.RecordSize(),
		signalOffset:     signalOffset,
		samplesPerRecord: er.hdr.Signals[signalIndex].SamplesPerRecord,
	}, nil
}

// Read fills the provided float64 slice with the physical values from the
// signal. The remaining samples of the current data record are fetched
// with a single read.
func (sr *SignalReader) Read(data []float64) (int, error) {
	signal := &sr.hdr.Signals[sr.signalIndex]

	n := 0
	for n < len(data) {
		if sr.currentRecord >= sr.hdr.DataRecords || sr.samplesPerRecord == 0 {
			return n, io.EOF // End of data records
		}

		count := min(sr.samplesPerRecord-sr.currentSample, len(data)-n)

		pos := int64(sr.hdr.HeaderBytes) + int64(sr.currentRecord)*int64(sr.recordSize) + int64(sr.signalOffset) + int64(sr.currentSample*2)
		if _, err := sr.r.Seek(pos, io.SeekStart); err != nil {
			return n, fmt.Errorf("error seeking to position: %w", err)
		}

		buf := make([]byte, count*2)
		if _, err := io.ReadFull(sr.r, buf); err != nil {
			return n, fmt.Errorf("error reading sample data: %w", err)
		}
		for i := 0; i < count; i++ {
			data[n+i] = signal.toPhysical(int16(binary.LittleEndian.Uint16(buf[i*2:])))
		}

		n += count
		sr.currentSample += count
		if sr.currentSample >= sr.samplesPerRecord {
			sr.currentSample = 0
			sr.currentRecord++
		}
	}

	return n, nil
}
