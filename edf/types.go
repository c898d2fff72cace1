// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package edf reads and writes European Data Format (EDF/EDF+) files, and
// adapts them to the acquisition pipeline: Processor streams acquired
// samples into an EDF file, Player replays an EDF file as a device.
package edf

import (
	"math"
	"time"
)

type Version string

const (
	// Version0 represents the version of the EDF/EDF+ standard.
	Version0 Version = "0"
)

// MaxRecordBytes is the largest data record recommended by the standard.
const MaxRecordBytes = 61440

// Header represents the EDF/EDF+ file header.
type Header struct {
	Version            Version       // Version of the EDF/EDF+ standard (usually "0")
	PatientID          string        // Identification of the patient
	RecordingID        string        // Identification of the recording session
	StartTime          time.Time     // Start date of the recording
	HeaderBytes        int           // Number of bytes in the header
	DataRecordDuration time.Duration // Duration of a single data record
	DataRecords        int           // Number of data records, -1 if unknown
	SignalCount        int           // Number of signals in each data record
	Signals            []Signal      // Details of each signal
}

// RecordSize returns the size in bytes of one data record.
func (h *Header) RecordSize() int {
	var n int
	for _, s := range h.Signals {
		n += s.SamplesPerRecord * 2
	}
	return n
}

// Signal represents the characteristics of each signal in the EDF/EDF+ file.
type Signal struct {
	Label             string  // Label of the signal (e.g., EEG Fpz-Cz)
	TransducerType    string  // Type of transducer used
	PhysicalDimension string  // Physical dimension (e.g., uV, mV)
	PhysicalMin       float64 // Minimum physical value
	PhysicalMax       float64 // Maximum physical value
	DigitalMin        int     // Minimum digital value
	DigitalMax        int     // Maximum digital value
	Prefiltering      string  // Pre-filtering information
	SamplesPerRecord  int     // Number of samples in each data record for this signal
	Reserved          string  // Reserved for future use
}

// SampleRate returns the signal's samples per second given the data record
// duration, or zero if the duration is unknown.
func (s *Signal) SampleRate(recordDuration time.Duration) float64 {
	if recordDuration <= 0 {
		return 0
	}
	return float64(s.SamplesPerRecord) / recordDuration.Seconds()
}

// toDigital converts a physical value to its stored digital value, clamped
// to the signal's digital range.
func (s *Signal) toDigital(physical float64) int16 {
	if s.PhysicalMax == s.PhysicalMin {
		return 0
	}
	digital := (physical-s.PhysicalMin)*float64(s.DigitalMax-s.DigitalMin)/(s.PhysicalMax-s.PhysicalMin) + float64(s.DigitalMin)
	switch {
	case digital < float64(s.DigitalMin):
		digital = float64(s.DigitalMin)
	case digital > float64(s.DigitalMax):
		digital = float64(s.DigitalMax)
	}
	return int16(math.Round(digital))
}

// toPhysical converts a stored digital value back to its physical value.
func (s *Signal) toPhysical(digital int16) float64 {
	if s.DigitalMax == s.DigitalMin {
		return 0
	}
	return s.PhysicalMin + (float64(digital)-float64(s.DigitalMin))*(s.PhysicalMax-s.PhysicalMin)/float64(s.DigitalMax-s.DigitalMin)
}
