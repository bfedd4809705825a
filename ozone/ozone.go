// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package ozone holds the acquisition and calibration loop of the
// Dasibi 1008 RS ozone logger.
//
// Each iteration of the loop:
//   - computes the requested calibration mode from the wall clock and drives
//     the span and zero outputs accordingly,
//   - reads one line from the analyzer, with a bounded wait,
//   - decodes it and, when it holds a sample (or when the analyzer has been
//     silent for too long), writes a tab-separated record to the current
//     log file and to the console,
//   - checks the predicted record timestamp against the wall clock and
//     rotates the log file on clock jumps, day boundaries or external
//     requests.
package ozone // import "github.com/go-lpc/o3log/ozone"

import (
	"math"
	"time"
)

// Instrument is the analyzer serial line.
type Instrument interface {
	// ReadLine reads one line. The wait is bounded by timeout plus the
	// per-read timeout of the underlying line.
	ReadLine(timeout time.Duration) ([]byte, error)
	// RequestDiagnostic asks the analyzer to (re)enter diagnostic mode.
	RequestDiagnostic() error
}

// Output is a digital output driving a calibration solenoid.
type Output interface {
	Set(on bool) error
	IsOn() bool
}

// Analog is an analog voltage input.
type Analog interface {
	Read() (float64, error)
}

// Alerter notifies operators of abnormal conditions.
type Alerter interface {
	Alert(kind, msg string)
}

// Alert kinds.
const (
	AlertClock  = "clock"
	AlertSilent = "silent"
)

type offOutput struct{}

func (offOutput) Set(bool) error { return nil }
func (offOutput) IsOn() bool     { return false }

type nanAnalog struct{}

func (nanAnalog) Read() (float64, error) { return math.NaN(), nil }

type nopAlerter struct{}

func (nopAlerter) Alert(kind, msg string) {}
