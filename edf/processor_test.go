// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package edf_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OpenPSG/daq/edf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newProcessor(t *testing.T, sampleRate float64) (*edf.Processor, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "rawdata.edf")
	return edf.NewProcessor(edf.ProcessorConfig{
		Path:        path,
		DeviceName:  "fake",
		SampleRate:  sampleRate,
		Channels:    []string{"ch0", "trigger"},
		RecordingID: "session-1",
		PatientID:   "X",
	}), path
}

func openEDF(t *testing.T, path string) *edf.Reader {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = f.Close()
	})

	er, err := edf.Open(f)
	require.NoError(t, err)
	return er
}

func TestProcessor(t *testing.T) {
	p, path := newProcessor(t, 4)
	require.Equal(t, 4, p.SamplesPerRecord())

	require.NoError(t, p.Open())
	for i := range 10 {
		require.NoError(t, p.Process(context.Background(), []float64{float64(i), float64(-i)}, float64(i)))
	}
	require.NoError(t, p.Close())

	er := openEDF(t, path)
	hdr := er.Header()
	assert.Equal(t, 3, hdr.DataRecords)
	assert.Equal(t, time.Second, hdr.DataRecordDuration)
	assert.Equal(t, "session-1 fake", hdr.RecordingID)
	require.Len(t, hdr.Signals, 2)
	assert.Equal(t, "ch0", hdr.Signals[0].Label)
	assert.Equal(t, "trigger", hdr.Signals[1].Label)
	assert.Equal(t, "fake", hdr.Signals[0].TransducerType)

	ch0, err := er.Signal(0)
	require.NoError(t, err)
	samples := make([]float64, 12)
	n, err := ch0.Read(samples)
	require.NoError(t, err)
	require.Equal(t, 12, n)

	// Integral values round trip exactly; the last record is zero padded.
	assert.Equal(t, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 0, 0}, samples)

	trigger, err := er.DataRecord(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{-8, -9, 0, 0}, trigger[1])
}

func TestProcessorUnsetSampleRate(t *testing.T) {
	p, path := newProcessor(t, 0)
	require.Equal(t, 1, p.SamplesPerRecord())

	require.NoError(t, p.Open())
	require.NoError(t, p.Process(context.Background(), []float64{1, 0}, 0))
	require.NoError(t, p.Process(context.Background(), []float64{2, 1}, 1))
	require.NoError(t, p.Close())

	assert.Equal(t, 2, openEDF(t, path).Header().DataRecords)
}

func TestProcessorChannelMismatch(t *testing.T) {
	p, _ := newProcessor(t, 4)
	require.NoError(t, p.Open())
	t.Cleanup(func() {
		_ = p.Close()
	})

	require.Error(t, p.Process(context.Background(), []float64{1}, 0))
}

func TestProcessorLifecycle(t *testing.T) {
	p, path := newProcessor(t, 4)

	require.Error(t, p.Process(context.Background(), []float64{1, 0}, 0))
	require.NoError(t, p.Close())

	require.NoError(t, p.Open())
	require.Error(t, p.Open())
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())

	assert.Equal(t, 0, openEDF(t, path).Header().DataRecords)
}

func TestProcessorRequiresChannels(t *testing.T) {
	p := edf.NewProcessor(edf.ProcessorConfig{
		Path:       filepath.Join(t.TempDir(), "rawdata.edf"),
		SampleRate: 4,
	})
	require.Error(t, p.Open())
}
