// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ozone

import (
	"io"
	"os"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/o3log/dasibi"
)

// Deployment defaults.
const (
	DefaultCalHour       = 12
	DefaultCalSpan       = 300 * time.Second
	DefaultCalZero       = 300 * time.Second
	DefaultWriteInterval = 50 * time.Second
	DefaultFlushInterval = 60 * time.Second
	DefaultClockShift    = 100 * time.Second
	DefaultSentinel      = "rotate"
)

type config struct {
	dir      string
	sentinel string

	cal     Schedule
	write   time.Duration // max interval between two records
	flush   time.Duration // max interval between two disk syncs
	shift   time.Duration // max tolerated clock shift
	timeout time.Duration // analyzer read timeout
	policy  dasibi.Policy

	clock  Clock
	span   Output
	zero   Output
	analog Analog
	alert  Alerter
	stdout io.Writer
	msg    log.MsgStream
	sleep  func(time.Duration)
}

func newConfig() config {
	return config{
		dir:      ".",
		sentinel: DefaultSentinel,
		cal: Schedule{
			Hour: DefaultCalHour,
			Span: DefaultCalSpan,
			Zero: DefaultCalZero,
		},
		write:   DefaultWriteInterval,
		flush:   DefaultFlushInterval,
		shift:   DefaultClockShift,
		timeout: dasibi.ReadTimeout,
		policy:  dasibi.Tolerant,
		clock:   SystemClock,
		span:    offOutput{},
		zero:    offOutput{},
		analog:  nanAnalog{},
		alert:   nopAlerter{},
		stdout:  os.Stdout,
		msg:     log.NewMsgStream("o3log", log.LvlInfo, os.Stderr),
		sleep:   time.Sleep,
	}
}

// Option configures a Logger.
type Option func(*config)

// WithDir sets the output directory of log files.
func WithDir(dir string) Option {
	return func(cfg *config) {
		cfg.dir = dir
	}
}

// WithSentinel sets the path of the file requesting a log file rotation.
// Relative paths are resolved against the output directory.
// An empty path disables external rotation requests.
func WithSentinel(fname string) Option {
	return func(cfg *config) {
		cfg.sentinel = fname
	}
}

// WithCalibration sets the daily calibration schedule.
func WithCalibration(hour int, span, zero time.Duration) Option {
	return func(cfg *config) {
		cfg.cal = Schedule{Hour: hour, Span: span, Zero: zero}
	}
}

// WithWriteInterval sets the longest time without a record, after which a
// NaN record is written.
func WithWriteInterval(d time.Duration) Option {
	return func(cfg *config) {
		cfg.write = d
	}
}

// WithFlushInterval sets how often log files are committed to disk.
func WithFlushInterval(d time.Duration) Option {
	return func(cfg *config) {
		cfg.flush = d
	}
}

// WithClockThreshold sets the tolerated difference between predicted and
// wall clock times.
func WithClockThreshold(d time.Duration) Option {
	return func(cfg *config) {
		cfg.shift = d
	}
}

// WithReadTimeout sets the bounded wait for one analyzer line.
func WithReadTimeout(d time.Duration) Option {
	return func(cfg *config) {
		cfg.timeout = d
	}
}

// WithPolicy sets the frame acceptance policy.
func WithPolicy(p dasibi.Policy) Option {
	return func(cfg *config) {
		cfg.policy = p
	}
}

// WithClock sets the clock used by the logger.
func WithClock(c Clock) Option {
	return func(cfg *config) {
		cfg.clock = c
	}
}

// WithOutputs sets the span and zero calibration outputs.
func WithOutputs(span, zero Output) Option {
	return func(cfg *config) {
		cfg.span = span
		cfg.zero = zero
	}
}

// WithAnalog sets the analog input read along each record.
func WithAnalog(a Analog) Option {
	return func(cfg *config) {
		cfg.analog = a
	}
}

// WithAlerter sets the notifier of clock and analyzer problems.
func WithAlerter(a Alerter) Option {
	return func(cfg *config) {
		cfg.alert = a
	}
}

// WithConsole sets where records are echoed.
func WithConsole(w io.Writer) Option {
	return func(cfg *config) {
		cfg.stdout = w
	}
}

// WithMsgStream sets the stream for diagnostic messages.
func WithMsgStream(msg log.MsgStream) Option {
	return func(cfg *config) {
		cfg.msg = msg
	}
}
