// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ozone

import (
	"fmt"
	"strconv"
	"time"
)

// CalMode is the calibration state of the analyzer.
// Bit 0 is set when zero air is applied, bit 1 when span gas is applied.
type CalMode uint8

const (
	CalNone        CalMode = 0
	CalZero        CalMode = 1
	CalSpan        CalMode = 2
	CalSpanAndZero CalMode = 3
)

func (m CalMode) String() string {
	switch m {
	case CalNone:
		return "none"
	case CalZero:
		return "zero"
	case CalSpan:
		return "span"
	case CalSpanAndZero:
		return "span+zero"
	default:
		return "CalMode(" + strconv.Itoa(int(m)) + ")"
	}
}

func (m CalMode) zero() bool { return m&CalZero != 0 }
func (m CalMode) span() bool { return m&CalSpan != 0 }

// Schedule describes the daily calibration sequence:
// span gas from Hour:00 for Span, then zero air for Zero.
//
// The whole sequence must end before midnight.
type Schedule struct {
	Hour int           // hour of day the calibration starts at
	Span time.Duration // duration of the span phase
	Zero time.Duration // duration of the zero phase, after span
}

// Validate checks the schedule fits within a day.
func (s Schedule) Validate() error {
	switch {
	case s.Hour < 0 || s.Hour > 23:
		return fmt.Errorf("ozone: invalid calibration hour %d", s.Hour)
	case s.Span < 0 || s.Zero < 0:
		return fmt.Errorf("ozone: invalid calibration durations (span=%v, zero=%v)", s.Span, s.Zero)
	}
	end := time.Duration(s.Hour)*time.Hour + s.Span + s.Zero
	if end > 24*time.Hour {
		return fmt.Errorf(
			"ozone: calibration crosses midnight (start=%02d:00, span=%v, zero=%v)",
			s.Hour, s.Span, s.Zero,
		)
	}
	return nil
}

// Request returns the calibration mode requested at t.
func (s Schedule) Request(t time.Time) CalMode {
	var (
		y, m, d = t.Date()
		beg     = time.Date(y, m, d, s.Hour, 0, 0, 0, t.Location())
		zero    = beg.Add(s.Span)
		end     = zero.Add(s.Zero)
	)
	switch {
	case !t.Before(beg) && t.Before(zero):
		return CalSpan
	case !t.Before(zero) && t.Before(end):
		return CalZero
	default:
		return CalNone
	}
}

// Apply drives both outputs to the state requested by mode.
// Both outputs are always set, whatever their current state.
func (s Schedule) Apply(mode CalMode, span, zero Output) error {
	errSpan := span.Set(mode.span())
	errZero := zero.Set(mode.zero())
	switch {
	case errSpan != nil:
		return fmt.Errorf("ozone: could not apply calibration mode %v: %w", mode, errSpan)
	case errZero != nil:
		return fmt.Errorf("ozone: could not apply calibration mode %v: %w", mode, errZero)
	}
	return nil
}

// Actual reads back the calibration mode from the outputs.
func Actual(span, zero Output) CalMode {
	var m CalMode
	if span.IsOn() {
		m |= CalSpan
	}
	if zero.IsOn() {
		m |= CalZero
	}
	return m
}
