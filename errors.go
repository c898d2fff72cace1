// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package daq

import "errors"

var (
	// ErrDeviceConnect is returned when a device cannot be connected or
	// initialized. The session degrades to one without data.
	ErrDeviceConnect = errors.New("device connect failed")
	// ErrDeviceRead marks a failed read. It ends acquisition like end of
	// stream and is logged rather than returned.
	ErrDeviceRead = errors.New("device read failed")
	// ErrQueueTimeout is returned by BoundedQueue.Get when nothing arrives
	// in time.
	ErrQueueTimeout = errors.New("queue get timed out")
	// ErrProcessor wraps failures of the Processor sink.
	ErrProcessor = errors.New("processor failed")
	// ErrShutdownTimeout is returned when a worker does not exit within its
	// join budget.
	ErrShutdownTimeout = errors.New("shutdown timed out")
	// ErrWorkerPanic wraps a panic recovered from a worker.
	ErrWorkerPanic = errors.New("worker panicked")
	// ErrStreaming is returned by operations that require a stopped client.
	ErrStreaming = errors.New("client is streaming")
)
