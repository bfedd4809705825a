// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ozone

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/sys/unix"
)

// TimeFormat is the layout of record timestamps.
const TimeFormat = "2006-01-02 15:04:05"

// Clock gives access to the wall clock and to a monotonic clock.
type Clock interface {
	// Now returns the wall clock time. Its value may jump.
	Now() time.Time
	// Mono returns the monotonic clock reading.
	Mono() time.Duration
}

// SystemClock is the host clock.
var SystemClock Clock = sysClock{}

var boot = time.Now()

type sysClock struct{}

// Now returns the wall clock time, stripped of Go's monotonic reading so
// that differences between two readings expose wall clock steps.
func (sysClock) Now() time.Time { return time.Now().Round(0) }

func (sysClock) Mono() time.Duration {
	var ts unix.Timespec
	err := unix.ClockGettime(unix.CLOCK_MONOTONIC, &ts)
	if err != nil {
		return time.Since(boot)
	}
	return time.Duration(ts.Nano())
}

// ClockDiscontinuity is returned when the predicted time of a record and
// the wall clock disagree by more than the configured threshold.
type ClockDiscontinuity struct {
	Now       time.Time     // wall clock time
	Predicted time.Time     // predicted time
	Shift     time.Duration // Now - Predicted
}

func (e *ClockDiscontinuity) Error() string {
	return fmt.Sprintf(
		"Time shift exception -- computer time is: %s predicted time was: %s seconds time shifted = %s",
		e.Now.Format(TimeFormat), e.Predicted.Format(TimeFormat),
		strconv.FormatFloat(e.Shift.Seconds(), 'f', -1, 64),
	)
}

// Confirmation is the outcome of a timestamp check.
type Confirmation struct {
	Prev      time.Time // previously confirmed wall time
	Now       time.Time // newly confirmed wall time
	Predicted time.Time
}

// Rollover reports whether the calendar date changed between the
// previous and the new confirmation.
func (c Confirmation) Rollover() bool {
	return day(c.Prev).Before(day(c.Now.In(c.Prev.Location())))
}

func day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Reconciler predicts record timestamps from the monotonic clock and
// detects wall clock steps.
type Reconciler struct {
	clock Clock
	max   time.Duration

	wall time.Time     // last confirmed wall time
	mark time.Duration // monotonic reading at last confirmation
}

// NewReconciler returns a reconciler based on the current clock readings.
func NewReconciler(clock Clock, threshold time.Duration) *Reconciler {
	r := &Reconciler{clock: clock, max: threshold}
	r.Reset()
	return r
}

// Reset rebases the reconciler on the current clock readings.
func (r *Reconciler) Reset() {
	r.wall = r.clock.Now()
	r.mark = r.clock.Mono()
}

// Last returns the last confirmed wall time.
func (r *Reconciler) Last() time.Time { return r.wall }

// Predict returns the last confirmed wall time plus the monotonic time
// elapsed since that confirmation.
func (r *Reconciler) Predict() time.Time {
	return r.wall.Add(r.clock.Mono() - r.mark)
}

// Confirm compares pred with the wall clock and rebases the reconciler on
// the current clock readings. A *ClockDiscontinuity is returned when the
// two differ by more than the threshold.
func (r *Reconciler) Confirm(pred time.Time) (Confirmation, error) {
	conf := Confirmation{
		Prev:      r.wall,
		Predicted: pred,
	}
	r.Reset()
	conf.Now = r.wall

	shift := conf.Now.Sub(pred)
	if shift > r.max || -shift > r.max {
		return conf, &ClockDiscontinuity{
			Now:       conf.Now,
			Predicted: pred,
			Shift:     shift,
		}
	}
	return conf, nil
}
