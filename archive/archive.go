// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package archive implements a queryable, time-indexed archive of
// acquisition records backed by SQLite.
//
// Appends are buffered in memory and written in chunks, one transaction per
// chunk. Reads always observe every appended record: pending records are
// flushed before a query runs.
package archive

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"sync"

	"github.com/joeycumines/logiface"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

var (
	// ErrClosed is returned when appending to a closed archive.
	ErrClosed = errors.New("archive closed")
	// ErrRemoved is returned by reads after Cleanup.
	ErrRemoved = errors.New("archive removed")
)

const schema = `
CREATE TABLE IF NOT EXISTS channels (
	position INTEGER PRIMARY KEY,
	name     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	sequence  INTEGER PRIMARY KEY,
	timestamp REAL NOT NULL,
	data      BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS records_timestamp ON records (timestamp);
`

type options struct {
	chunkSize int
	poolSize  int
	logger    *logiface.Logger[logiface.Event]
}

// Option configures an Archive.
type Option func(*options)

// WithChunkSize sets how many appended records are held in memory before
// being written. Defaults to 1000.
func WithChunkSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.chunkSize = n
		}
	}
}

// WithPoolSize sets the number of SQLite connections. Defaults to 2, one
// writer and one concurrent reader.
func WithPoolSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.poolSize = n
		}
	}
}

// WithLogger sets the logger for operational messages.
func WithLogger(logger *logiface.Logger[logiface.Event]) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Archive is a SQLite-backed record store. It is safe for concurrent use.
type Archive struct {
	path     string
	channels []string
	opts     options

	mu      sync.Mutex
	pool    *sqlitex.Pool // nil once closed
	pending []Record
	count   int
	closed  bool
	removed bool
}

// Open creates a fresh archive at path for records with the given channels.
// Any existing archive at the same path is replaced.
func Open(channels []string, path string, opts ...Option) (*Archive, error) {
	if path == "" {
		return nil, fmt.Errorf("archive path is required")
	}

	cfg := options{
		chunkSize: 1000,
		poolSize:  2,
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	if err := removeFiles(path); err != nil {
		return nil, fmt.Errorf("error replacing archive: %w", err)
	}

	pool, err := openPool(path, cfg.poolSize)
	if err != nil {
		return nil, err
	}

	a := &Archive{
		path:     path,
		channels: append([]string(nil), channels...),
		opts:     cfg,
		pool:     pool,
		pending:  make([]Record, 0, cfg.chunkSize),
	}

	if err := a.writeChannels(); err != nil {
		_ = pool.Close()
		return nil, err
	}

	cfg.logger.Debug().
		Str("path", path).
		Int("channels", len(channels)).
		Int("chunk_size", cfg.chunkSize).
		Log("archive opened")

	return a, nil
}

// Path returns the archive's database path.
func (a *Archive) Path() string { return a.path }

// Channels returns the channel labels the archive was created with.
func (a *Archive) Channels() []string {
	return append([]string(nil), a.channels...)
}

// Append adds a record to the archive.
func (a *Archive) Append(rec Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return ErrClosed
	}

	a.pending = append(a.pending, rec)
	a.count++

	if len(a.pending) >= a.opts.chunkSize {
		return a.flushLocked()
	}
	return nil
}

// Len returns the number of records appended, including pending ones.
func (a *Archive) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// All returns every record in sequence order.
func (a *Archive) All() ([]Record, error) {
	return a.query(`SELECT sequence, timestamp, data FROM records ORDER BY sequence`)
}

// Query returns the records with start <= timestamp < end, in sequence
// order. An end of +Inf leaves the range open.
func (a *Archive) Query(start, end float64) ([]Record, error) {
	if math.IsInf(end, 1) {
		return a.query(`SELECT sequence, timestamp, data FROM records
			WHERE timestamp >= ? ORDER BY sequence`, start)
	}
	return a.query(`SELECT sequence, timestamp, data FROM records
		WHERE timestamp >= ? AND timestamp < ? ORDER BY sequence`, start, end)
}

// Close writes any pending records and releases the connection pool.
// Records remain readable until Cleanup.
func (a *Archive) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}

	flushErr := a.flushLocked()
	a.closed = true

	closeErr := a.pool.Close()
	a.pool = nil
	if closeErr != nil {
		closeErr = fmt.Errorf("error closing archive: %w", closeErr)
	}

	a.opts.logger.Debug().
		Str("path", a.path).
		Int("records", a.count).
		Log("archive closed")

	return errors.Join(flushErr, closeErr)
}

// Cleanup closes the archive and deletes its files. The data is no longer
// available afterwards.
func (a *Archive) Cleanup() error {
	closeErr := a.Close()

	a.mu.Lock()
	defer a.mu.Unlock()

	a.removed = true
	if err := removeFiles(a.path); err != nil {
		return errors.Join(closeErr, fmt.Errorf("error removing archive: %w", err))
	}

	a.opts.logger.Info().
		Str("path", a.path).
		Log("archive removed")

	return closeErr
}

func (a *Archive) writeChannels() (err error) {
	conn, err := a.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("error taking connection: %w", err)
	}
	defer a.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer endTransaction(&err)

	for i, name := range a.channels {
		err = sqlitex.Execute(conn, `INSERT INTO channels (position, name) VALUES (?, ?)`,
			&sqlitex.ExecOptions{Args: []any{i, name}})
		if err != nil {
			return fmt.Errorf("error writing channel %q: %w", name, err)
		}
	}

	return nil
}

func (a *Archive) flushLocked() (err error) {
	if len(a.pending) == 0 {
		return nil
	}

	conn, err := a.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("error taking connection: %w", err)
	}
	defer a.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer endTransaction(&err)

	for _, rec := range a.pending {
		var blob []byte
		blob, err = encodeSample(rec.Data)
		if err != nil {
			return err
		}

		err = sqlitex.Execute(conn, `INSERT INTO records (sequence, timestamp, data) VALUES (?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{rec.Sequence, rec.Timestamp, blob}})
		if err != nil {
			return fmt.Errorf("error writing record %d: %w", rec.Sequence, err)
		}
	}

	a.opts.logger.Trace().
		Int("records", len(a.pending)).
		Log("archive chunk written")

	a.pending = a.pending[:0]
	return nil
}

func (a *Archive) query(query string, args ...any) ([]Record, error) {
	conn, release, err := a.readConn()
	if err != nil {
		return nil, err
	}
	defer release()

	records := []Record{}
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			blob := make([]byte, stmt.ColumnLen(2))
			stmt.ColumnBytes(2, blob)

			data, err := decodeSample(blob)
			if err != nil {
				return err
			}

			records = append(records, Record{
				Data:      data,
				Sequence:  stmt.ColumnInt64(0),
				Timestamp: stmt.ColumnFloat(1),
			})
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("error querying archive: %w", err)
	}

	return records, nil
}

// readConn flushes pending records and returns a connection for reading.
// While open, it borrows from the pool; once closed, it opens a dedicated
// connection to the existing file.
func (a *Archive) readConn() (*sqlite.Conn, func(), error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.removed {
		return nil, nil, ErrRemoved
	}

	if !a.closed {
		if err := a.flushLocked(); err != nil {
			return nil, nil, err
		}

		pool := a.pool
		conn, err := pool.Take(context.Background())
		if err != nil {
			return nil, nil, fmt.Errorf("error taking connection: %w", err)
		}
		return conn, func() { pool.Put(conn) }, nil
	}

	if _, err := os.Stat(a.path); errors.Is(err, fs.ErrNotExist) {
		return nil, nil, ErrRemoved
	}

	conn, err := sqlite.OpenConn(a.path, sqlite.OpenReadWrite)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening archive: %w", err)
	}
	return conn, func() { _ = conn.Close() }, nil
}

func removeFiles(path string) error {
	var errs []error
	for _, name := range []string{path, path + "-wal", path + "-shm"} {
		if err := os.Remove(name); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
