// SPDX-License-Identifier: MPL-2.0
/*
 * Copyright (C) 2024 Damian Peckett <damian@pecke.tt>.
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

// Package daq acquires biosignal samples from a device and routes them
// through a bounded, lossless pipeline.
//
// A Client runs two workers per session. The acquisition worker reads
// sample vectors from a Device, numbers them, and puts them on a
// BoundedQueue; when the queue is full it blocks rather than drop a sample.
// The process worker takes records off the queue, watches the trailing
// trigger channel for the calibration event, appends each record to a
// queryable Buffer and forwards it to a Processor.
//
// Stop disconnects the device, lets the process worker drain what is
// already queued within a bounded budget, and then closes the sinks:
//
//	c := daq.NewClient(edf.NewPlayer("night.edf"), daq.DefaultConfig())
//	err := c.Run(func(c *daq.Client) error {
//		time.Sleep(time.Minute)
//		return nil
//	})
package daq
