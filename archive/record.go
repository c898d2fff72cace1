// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package archive

// Record is a single acquired sample vector. Records are immutable once
// constructed; consumers must not modify Data.
type Record struct {
	Data      []float64 // One value per channel, the trigger channel last.
	Sequence  int64     // Zero-based position in the acquisition stream.
	Timestamp float64   // Sample-index time base, equal to Sequence.
}

// NewRecord creates a record for the sample at the given sequence position.
// The sample is copied so the device may reuse its read buffer.
func NewRecord(sample []float64, sequence int64) Record {
	data := make([]float64, len(sample))
	copy(data, sample)

	return Record{
		Data:      data,
		Sequence:  sequence,
		Timestamp: float64(sequence),
	}
}

// Trigger returns the trailing channel value, conventionally the
// calibration trigger. The second result is false for an empty record.
func (r Record) Trigger() (float64, bool) {
	if len(r.Data) == 0 {
		return 0, false
	}
	return r.Data[len(r.Data)-1], true
}
