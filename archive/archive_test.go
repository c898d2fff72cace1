// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package archive_test

import (
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/OpenPSG/daq/archive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openArchive(t *testing.T, opts ...archive.Option) *archive.Archive {
	t.Helper()

	a, err := archive.Open([]string{"Fp1", "Fp2", "TRG"}, filepath.Join(t.TempDir(), "buffer.db"), opts...)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = a.Close()
	})

	return a
}

func appendRecords(t *testing.T, a *archive.Archive, n int) {
	t.Helper()

	for i := 0; i < n; i++ {
		require.NoError(t, a.Append(archive.NewRecord([]float64{float64(i), -float64(i), 0}, int64(i))))
	}
}

func TestNewRecord(t *testing.T) {
	sample := []float64{1.5, 2.5, 1}
	rec := archive.NewRecord(sample, 7)

	sample[0] = 99 // the record must not alias the device buffer

	assert.Equal(t, []float64{1.5, 2.5, 1}, rec.Data)
	assert.Equal(t, int64(7), rec.Sequence)
	assert.Equal(t, 7.0, rec.Timestamp)

	trigger, ok := rec.Trigger()
	assert.True(t, ok)
	assert.Equal(t, 1.0, trigger)

	_, ok = archive.Record{}.Trigger()
	assert.False(t, ok)
}

func TestArchiveAppendAndAll(t *testing.T) {
	a := openArchive(t, archive.WithChunkSize(4))

	appendRecords(t, a, 10)
	assert.Equal(t, 10, a.Len())

	records, err := a.All()
	require.NoError(t, err)
	require.Len(t, records, 10)

	for i, rec := range records {
		assert.Equal(t, int64(i), rec.Sequence)
		assert.Equal(t, float64(i), rec.Timestamp)
		assert.Equal(t, []float64{float64(i), -float64(i), 0}, rec.Data)
	}
}

func TestArchiveQuery(t *testing.T) {
	a := openArchive(t)

	appendRecords(t, a, 20)

	records, err := a.Query(5, 8)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, int64(5), records[0].Sequence)
	assert.Equal(t, int64(7), records[2].Sequence)

	records, err = a.Query(15, math.Inf(1))
	require.NoError(t, err)
	assert.Len(t, records, 5)

	records, err = a.Query(100, 200)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestArchiveReadableAfterClose(t *testing.T) {
	a := openArchive(t)

	appendRecords(t, a, 3)
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	assert.ErrorIs(t, a.Append(archive.NewRecord([]float64{0}, 3)), archive.ErrClosed)

	records, err := a.All()
	require.NoError(t, err)
	assert.Len(t, records, 3)
	assert.Equal(t, 3, a.Len())
}

func TestArchiveCleanup(t *testing.T) {
	a := openArchive(t)

	appendRecords(t, a, 3)
	require.NoError(t, a.Cleanup())

	_, err := os.Stat(a.Path())
	assert.True(t, os.IsNotExist(err))

	_, err = a.All()
	assert.ErrorIs(t, err, archive.ErrRemoved)
}

func TestArchiveReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "buffer.db")

	first, err := archive.Open([]string{"A"}, path)
	require.NoError(t, err)
	require.NoError(t, first.Append(archive.NewRecord([]float64{1}, 0)))
	require.NoError(t, first.Close())

	second, err := archive.Open([]string{"A"}, path)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = second.Close()
	})

	records, err := second.All()
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, []string{"A"}, second.Channels())
}

func TestArchiveConcurrentReadWrite(t *testing.T) {
	a := openArchive(t, archive.WithChunkSize(8))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			assert.NoError(t, a.Append(archive.NewRecord([]float64{float64(i)}, int64(i))))
		}
	}()

	for i := 0; i < 20; i++ {
		_, err := a.All()
		require.NoError(t, err)
	}
	wg.Wait()

	records, err := a.All()
	require.NoError(t, err)
	assert.Len(t, records, 200)
}
