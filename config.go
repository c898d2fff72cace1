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
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"time"

	"github.com/OpenPSG/daq/clock"
	"github.com/joeycumines/logiface"
	"gopkg.in/yaml.v3"
)

// Config configures a Client. Load it from a single YAML file with
// LoadConfig; fields absent from the file keep their DefaultConfig values.
type Config struct {
	// BufferName is the path of the session archive.
	// Default: buffer.db
	BufferName string `yaml:"buffer_name"`

	// OutputName is the path of the Processor output.
	// Default: rawdata.edf
	OutputName string `yaml:"output_name"`

	// InitialWait is how long the process worker waits for the first
	// record, covering device warm-up. It also sizes the queue and the
	// shutdown drain budget.
	// Default: 2s
	InitialWait time.Duration `yaml:"initial_wait"`

	// SteadyWait is how long the process worker waits for each later
	// record before treating the stream as ended.
	// Default: 2s
	SteadyWait time.Duration `yaml:"steady_wait"`

	// DrainTick is the polling interval while Stop waits for the queue to
	// empty.
	// Default: 100ms
	DrainTick time.Duration `yaml:"drain_tick"`

	// DrainTicks caps the number of drain polls. Zero means the whole
	// seconds of InitialWait times 100.
	DrainTicks int `yaml:"drain_ticks"`

	// JoinTimeout bounds how long Stop waits for the process worker once
	// it has been told to stop.
	// Default: 5s
	JoinTimeout time.Duration `yaml:"join_timeout"`

	// LogLevel is the level of the logger built when Logger is unset, see
	// ParseLevel. "disabled" turns logging off.
	// Default: info
	LogLevel string `yaml:"log_level"`

	Archive ArchiveConfig `yaml:"archive"`
	EDF     EDFConfig     `yaml:"edf"`

	// Clock timestamps the session. It is reset at every Start.
	Clock clock.Clock `yaml:"-"`

	// Logger receives the client's structured logs. When nil, NewClient
	// builds one writing JSON to LogWriter at LogLevel.
	Logger *logiface.Logger[logiface.Event] `yaml:"-"`

	// LogWriter is the output of the built logger.
	// Default: os.Stderr
	LogWriter io.Writer `yaml:"-"`

	// NewBuffer and NewProcessor build the session sinks. They default to
	// ArchiveBuffer and EDFProcessor.
	NewBuffer    BufferFactory    `yaml:"-"`
	NewProcessor ProcessorFactory `yaml:"-"`
}

// ArchiveConfig configures the default Buffer.
type ArchiveConfig struct {
	// ChunkSize is the number of records written per transaction.
	// Default: 1000
	ChunkSize int `yaml:"chunk_size"`

	// PoolSize is the number of SQLite connections.
	// Default: 2
	PoolSize int `yaml:"pool_size"`
}

// EDFConfig configures the default Processor. Zero ranges store integral
// values in the full 16-bit range.
type EDFConfig struct {
	PatientID         string  `yaml:"patient_id"`
	PhysicalDimension string  `yaml:"physical_dimension"`
	PhysicalMin       float64 `yaml:"physical_min"`
	PhysicalMax       float64 `yaml:"physical_max"`
	DigitalMin        int     `yaml:"digital_min"`
	DigitalMax        int     `yaml:"digital_max"`
}

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		BufferName:  "buffer.db",
		OutputName:  "rawdata.edf",
		InitialWait: 2 * time.Second,
		SteadyWait:  2 * time.Second,
		DrainTick:   100 * time.Millisecond,
		JoinTimeout: 5 * time.Second,
		LogLevel:    "info",
		Archive: ArchiveConfig{
			ChunkSize: 1000,
			PoolSize:  2,
		},
		EDF: EDFConfig{
			PatientID: "X",
		},
	}
}

// LoadConfig reads the YAML configuration file at path.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("error reading config %s: %w", path, err)
	}

	cfg, err := ParseConfig(data)
	if err != nil {
		return Config{}, fmt.Errorf("error loading config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes a YAML configuration over DefaultConfig and
// validates the result.
func ParseConfig(data []byte) (Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("error parsing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports invalid settings.
func (c Config) Validate() error {
	var errs []error
	if c.BufferName == "" {
		errs = append(errs, errors.New("buffer_name is required"))
	}
	if c.OutputName == "" {
		errs = append(errs, errors.New("output_name is required"))
	}
	for name, d := range map[string]time.Duration{
		"initial_wait": c.InitialWait,
		"steady_wait":  c.SteadyWait,
		"drain_tick":   c.DrainTick,
		"join_timeout": c.JoinTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, d))
		}
	}
	if c.DrainTicks < 0 {
		errs = append(errs, fmt.Errorf("drain_ticks must not be negative, got %d", c.DrainTicks))
	}
	if c.Archive.ChunkSize < 0 || c.Archive.PoolSize < 0 {
		errs = append(errs, errors.New("archive sizes must not be negative"))
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// NewLogger builds a JSON logger writing to w at LogLevel.
func (c Config) NewLogger(w io.Writer) (*logiface.Logger[logiface.Event], error) {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return nil, err
	}
	return NewLogger(w, level), nil
}

// drainTicks returns the effective number of drain polls.
func (c Config) drainTicks() int {
	if c.DrainTicks > 0 {
		return c.DrainTicks
	}
	return int(math.Ceil(c.InitialWait.Seconds())) * 100
}

// withDefaults fills zero values, including the runtime collaborators.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.BufferName == "" {
		c.BufferName = def.BufferName
	}
	if c.OutputName == "" {
		c.OutputName = def.OutputName
	}
	if c.InitialWait <= 0 {
		c.InitialWait = def.InitialWait
	}
	if c.SteadyWait <= 0 {
		c.SteadyWait = def.SteadyWait
	}
	if c.DrainTick <= 0 {
		c.DrainTick = def.DrainTick
	}
	if c.JoinTimeout <= 0 {
		c.JoinTimeout = def.JoinTimeout
	}
	if c.Clock == nil {
		c.Clock = clock.New()
	}
	if c.LogWriter == nil {
		c.LogWriter = os.Stderr
	}
	if c.Logger == nil {
		logger, err := c.NewLogger(c.LogWriter)
		if err != nil {
			logger = NewLogger(c.LogWriter, logiface.LevelInformational)
			logger.Warning().Err(err).Log("invalid log level, using info")
		}
		c.Logger = logger
	}
	if c.NewBuffer == nil {
		c.NewBuffer = ArchiveBuffer(c.Archive)
	}
	if c.NewProcessor == nil {
		c.NewProcessor = EDFProcessor(c.EDF)
	}
	return c
}
