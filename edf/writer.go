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
	"encoding/binary"
	"fmt"
	"io"
)

// Writer writes EDF files.
type Writer struct {
	w           io.WriteSeeker
	hdr         *Header
	buf         []byte
	dataRecords int // Number of data records written so far.
}

// Create creates a new EDF writer that writes to the given writer.
func Create(w io.WriteSeeker, hdr Header) (*Writer, error) {
	hdr.DataRecords = -1 // Unknown number of data records (at this time).
	hdr.Signals = append([]Signal(nil), hdr.Signals...)

	if size := hdr.RecordSize(); size > MaxRecordBytes {
		return nil, fmt.Errorf("data record too large: %d bytes, max is %d bytes", size, MaxRecordBytes)
	}

	ew := &Writer{w: w, hdr: &hdr, buf: make([]byte, hdr.RecordSize())}

	// Write the initial header
	if err := ew.writeHeader(); err != nil {
		return nil, fmt.Errorf("error writing header: %w", err)
	}

	return ew, nil
}

// Header returns a copy of the header as it will be finalized.
func (ew *Writer) Header() Header {
	hdr := *ew.hdr
	hdr.Signals = append([]Signal(nil), ew.hdr.Signals...)
	return hdr
}

// DataRecords returns the number of data records written so far.
func (ew *Writer) DataRecords() int { return ew.dataRecords }

// Close finalizes the EDF file by updating the header with the total number of data records.
func (ew *Writer) Close() error {
	ew.hdr.DataRecords = ew.dataRecords
	if err := ew.writeHeader(); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}

	// Leave the writer positioned after the last record.
	if _, err := ew.w.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("error seeking to end: %w", err)
	}

	return nil
}

// WriteRecord writes a single data record to the EDF file. signals holds
// one slice of physical values per signal, each of the signal's
// SamplesPerRecord length.
func (ew *Writer) WriteRecord(signals [][]float64) error {
	if len(signals) != len(ew.hdr.Signals) {
		return fmt.Errorf("expected %d signals, got %d", len(ew.hdr.Signals), len(signals))
	}

	offset := 0
	for i := range ew.hdr.Signals {
		signal := &ew.hdr.Signals[i]
		if len(signals[i]) != signal.SamplesPerRecord {
			return fmt.Errorf("signal %d: expected %d samples, got %d", i, signal.SamplesPerRecord, len(signals[i]))
		}
		for _, sample := range signals[i] {
			binary.LittleEndian.PutUint16(ew.buf[offset:], uint16(signal.toDigital(sample)))
			offset += 2
		}
	}

	if _, err := ew.w.Write(ew.buf); err != nil {
		return fmt.Errorf("error writing data record: %w", err)
	}

	ew.dataRecords++
	return nil
}

func (ew *Writer) writeHeader() error {
	if _, err := ew.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	_, err := ew.w.Write(encodeHeader(ew.hdr))
	return err
}
