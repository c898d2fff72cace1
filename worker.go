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
	"fmt"
	"time"
)

// Worker runs a function in its own goroutine with cooperative
// cancellation. The function polls Running, or selects on Context().Done(),
// and returns when asked to stop.
type Worker struct {
	name   string
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	err    error
}

// Go starts fn in a new goroutine. A panic in fn is recovered and reported
// by Join as an error wrapping ErrWorkerPanic.
func Go(name string, fn func(w *Worker) error) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		name:   name,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(w.done)
		defer func() {
			if r := recover(); r != nil {
				w.err = fmt.Errorf("%w: %s: %v", ErrWorkerPanic, w.name, r)
			}
		}()
		w.err = fn(w)
	}()

	return w
}

// Name returns the worker's name.
func (w *Worker) Name() string { return w.name }

// Stop asks the worker to exit. It does not wait.
func (w *Worker) Stop() { w.cancel() }

// Running reports whether Stop has not been called.
func (w *Worker) Running() bool { return w.ctx.Err() == nil }

// Context is cancelled by Stop.
func (w *Worker) Context() context.Context { return w.ctx }

// Done is closed once the worker's function has returned.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Join waits for the worker's function to return and returns its error.
func (w *Worker) Join() error {
	<-w.done
	return w.err
}

// JoinTimeout is Join bounded by d. If the worker is still running after d
// it returns an error wrapping ErrShutdownTimeout and leaves the worker to
// finish on its own.
func (w *Worker) JoinTimeout(d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-w.done:
		return w.err
	case <-timer.C:
		return fmt.Errorf("%w: %s worker still running after %s", ErrShutdownTimeout, w.name, d)
	}
}
