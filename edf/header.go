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
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"
)

const (
	fixedHeaderBytes  = 256
	signalHeaderBytes = 256
)

// signalField describes one fixed-width ASCII field of the signal header
// block. Each field is stored for all signals before the next field begins.
type signalField struct {
	name   string
	width  int
	format func(s *Signal) string
	parse  func(s *Signal, v string) error
}

var signalFields = []signalField{
	{"label", 16,
		func(s *Signal) string { return s.Label },
		func(s *Signal, v string) error { s.Label = v; return nil }},
	{"transducer type", 80,
		func(s *Signal) string { return s.TransducerType },
		func(s *Signal, v string) error { s.TransducerType = v; return nil }},
	{"physical dimension", 8,
		func(s *Signal) string { return s.PhysicalDimension },
		func(s *Signal, v string) error { s.PhysicalDimension = v; return nil }},
	{"physical minimum", 8,
		func(s *Signal) string { return formatPhysicalValue(s.PhysicalMin) },
		func(s *Signal, v string) (err error) { s.PhysicalMin, err = parseFloat(v); return }},
	{"physical maximum", 8,
		func(s *Signal) string { return formatPhysicalValue(s.PhysicalMax) },
		func(s *Signal, v string) (err error) { s.PhysicalMax, err = parseFloat(v); return }},
	{"digital minimum", 8,
		func(s *Signal) string { return strconv.Itoa(s.DigitalMin) },
		func(s *Signal, v string) (err error) { s.DigitalMin, err = parseInt(v); return }},
	{"digital maximum", 8,
		func(s *Signal) string { return strconv.Itoa(s.DigitalMax) },
		func(s *Signal, v string) (err error) { s.DigitalMax, err = parseInt(v); return }},
	{"prefiltering", 80,
		func(s *Signal) string { return s.Prefiltering },
		func(s *Signal, v string) error { s.Prefiltering = v; return nil }},
	{"samples per record", 8,
		func(s *Signal) string { return strconv.Itoa(s.SamplesPerRecord) },
		func(s *Signal, v string) (err error) { s.SamplesPerRecord, err = parseInt(v); return }},
	{"reserved", 32,
		func(s *Signal) string { return s.Reserved },
		func(s *Signal, v string) error { s.Reserved = v; return nil }},
}

// encodeHeader renders the complete header. HeaderBytes and SignalCount are
// derived from the signal list.
func encodeHeader(hdr *Header) []byte {
	hdr.SignalCount = len(hdr.Signals)
	hdr.HeaderBytes = fixedHeaderBytes + hdr.SignalCount*signalHeaderBytes

	var buf bytes.Buffer
	buf.Grow(hdr.HeaderBytes)

	put := func(v string, width int) {
		buf.WriteString(pad(v, width))
	}

	put(string(hdr.Version), 8)
	put(hdr.PatientID, 80)
	put(hdr.RecordingID, 80)
	put(hdr.StartTime.Format("02.01.06"), 8)
	put(hdr.StartTime.Format("15.04.05"), 8)
	put(strconv.Itoa(hdr.HeaderBytes), 8)
	put("", 44)
	put(strconv.Itoa(hdr.DataRecords), 8)
	put(strconv.FormatFloat(hdr.DataRecordDuration.Seconds(), 'f', -1, 64), 8)
	put(strconv.Itoa(hdr.SignalCount), 4)

	for _, field := range signalFields {
		for i := range hdr.Signals {
			put(field.format(&hdr.Signals[i]), field.width)
		}
	}

	return buf.Bytes()
}

// decodeHeader parses a header from r, leaving r positioned at the first
// data record.
func decodeHeader(r io.Reader) (*Header, error) {
	b := make([]byte, fixedHeaderBytes)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, fmt.Errorf("error reading header: %w", err)
	}

	text := func(from, to int) string {
		return strings.TrimSpace(string(b[from:to]))
	}

	hdr := &Header{
		Version:     Version(text(0, 8)),
		PatientID:   text(8, 88),
		RecordingID: text(88, 168),
	}

	startDate, err := time.Parse("02.01.06", text(168, 176))
	if err != nil {
		return nil, fmt.Errorf("error parsing start date: %w", err)
	}
	startTime, err := time.Parse("15.04.05", text(176, 184))
	if err != nil {
		return nil, fmt.Errorf("error parsing start time: %w", err)
	}
	hdr.StartTime = time.Date(startDate.Year(), startDate.Month(), startDate.Day(),
		startTime.Hour(), startTime.Minute(), startTime.Second(), 0, time.UTC)

	if hdr.HeaderBytes, err = parseInt(text(184, 192)); err != nil {
		return nil, fmt.Errorf("error parsing header bytes: %w", err)
	}
	if hdr.DataRecords, err = parseInt(text(236, 244)); err != nil {
		return nil, fmt.Errorf("error parsing number of data records: %w", err)
	}
	if hdr.DataRecordDuration, err = time.ParseDuration(text(244, 252) + "s"); err != nil {
		return nil, fmt.Errorf("error parsing data record duration: %w", err)
	}
	if hdr.SignalCount, err = parseInt(text(252, 256)); err != nil {
		return nil, fmt.Errorf("error parsing signal count: %w", err)
	}
	if hdr.SignalCount < 0 {
		return nil, fmt.Errorf("invalid signal count: %d", hdr.SignalCount)
	}

	hdr.Signals = make([]Signal, hdr.SignalCount)

	for _, field := range signalFields {
		fb := make([]byte, field.width)
		for i := range hdr.Signals {
			if _, err := io.ReadFull(r, fb); err != nil {
				return nil, fmt.Errorf("error reading signal %s: %w", field.name, err)
			}
			if err := field.parse(&hdr.Signals[i], strings.TrimSpace(string(fb))); err != nil {
				return nil, fmt.Errorf("error parsing signal %d %s: %w", i, field.name, err)
			}
		}
	}

	return hdr, nil
}

// pad left-aligns v in a field of the given width, truncating if needed.
func pad(v string, width int) string {
	if len(v) > width {
		return v[:width]
	}
	return v + strings.Repeat(" ", width-len(v))
}

func formatPhysicalValue(val float64) string {
	// Try with 2 decimal places
	s := strconv.FormatFloat(val, 'f', 2, 64)
	if len(s) > 8 {
		// Fall back to no decimal
		s = strconv.FormatFloat(val, 'f', 0, 64)
	}
	return s
}

// parseFloat and parseInt treat an empty field as zero.
func parseFloat(v string) (float64, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.ParseFloat(v, 64)
}

func parseInt(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
