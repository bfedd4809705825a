// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ozone

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/o3log/dasibi"
)

// Logger is the acquisition loop of the ozone logger.
// A Logger is not safe for concurrent use.
type Logger struct {
	msg log.MsgStream
	cfg config
	dev Instrument

	rec   *Reconciler
	files *Rotator
	last  time.Duration // monotonic reading of the last record
	rerr  string        // last reported read error
}

// New creates a logger reading from the analyzer dev.
func New(dev Instrument, opts ...Option) (*Logger, error) {
	cfg := newConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	err := cfg.cal.Validate()
	if err != nil {
		return nil, err
	}

	if cfg.sentinel != "" && !filepath.IsAbs(cfg.sentinel) {
		cfg.sentinel = filepath.Join(cfg.dir, cfg.sentinel)
	}

	lg := &Logger{
		msg:   cfg.msg,
		cfg:   cfg,
		dev:   dev,
		rec:   NewReconciler(cfg.clock, cfg.shift),
		files: NewRotator(cfg.msg, cfg.clock, cfg.dir, cfg.sentinel, cfg.flush),
		last:  cfg.clock.Mono(),
	}
	return lg, nil
}

// File returns the name of the current log file, if any.
func (lg *Logger) File() string { return lg.files.Name() }

// Close flushes and closes the current log file.
func (lg *Logger) Close() error {
	return lg.files.Close(Shutdown)
}

// Run runs the acquisition loop until ctx is canceled.
// Errors of individual iterations are reported and the loop carries on.
func (lg *Logger) Run(ctx context.Context) error {
	lg.msg.Infof(
		"starting acquisition (calibration at %02d:00, span=%v, zero=%v, policy=%v)",
		lg.cfg.cal.Hour, lg.cfg.cal.Span, lg.cfg.cal.Zero, lg.cfg.policy,
	)
	for {
		select {
		case <-ctx.Done():
			lg.msg.Infof("stopping acquisition...")
			return lg.Close()
		default:
		}

		err := lg.Step()
		if err != nil {
			lg.msg.Errorf("%+v", err)
			err = lg.files.Close(WriteFailure)
			if err != nil {
				lg.msg.Errorf("%+v", err)
			}
		}
	}
}

// Step runs one iteration of the acquisition loop.
func (lg *Logger) Step() error {
	var (
		now = lg.cfg.clock.Now()
		req = lg.cfg.cal.Request(now)
	)
	err := lg.cfg.cal.Apply(req, lg.cfg.span, lg.cfg.zero)
	if err != nil {
		lg.msg.Warnf("%+v", err)
	}

	raw, err := lg.read()
	if err != nil {
		lg.msg.Warnf("%+v", err)
	}

	var (
		frame  = dasibi.Parse(raw)
		sample = frame.Sample(lg.cfg.policy)
		silent = lg.cfg.clock.Mono()-lg.last > lg.cfg.write
	)
	if !sample && !silent {
		return nil
	}

	return lg.write(frame, sample)
}

// read reads one analyzer line.
// A failing line is retried no faster than once per read timeout, and
// an error is returned only when it differs from the previous one.
func (lg *Logger) read() ([]byte, error) {
	beg := lg.cfg.clock.Mono()
	raw, err := lg.dev.ReadLine(lg.cfg.timeout)
	if err == nil || errors.Is(err, dasibi.ErrTimeout) {
		lg.rerr = ""
		return raw, nil
	}

	if d := lg.cfg.timeout - (lg.cfg.clock.Mono() - beg); d > 0 {
		lg.cfg.sleep(d)
	}

	if err.Error() == lg.rerr {
		return raw, nil
	}
	lg.rerr = err.Error()
	return raw, err
}

func (lg *Logger) write(frame dasibi.Frame, sample bool) error {
	rotate, err := lg.files.Requested()
	if err != nil {
		lg.msg.Warnf("%+v", err)
	}
	if rotate {
		err = lg.files.Close(ExternalRequest)
		if err != nil {
			return err
		}
	}

	if !lg.files.IsOpen() {
		err = lg.files.Open(lg.cfg.clock.Now(), Header())
		if err != nil {
			return err
		}
		lg.rec.Reset()
	}

	var (
		pred  = lg.rec.Predict()
		mode  = Actual(lg.cfg.span, lg.cfg.zero)
		volts = lg.volts()
		rec   Record
	)
	switch {
	case sample:
		rec = NewRecord(pred, mode, volts, frame)
	default:
		rec = NaNRecord(pred, mode, volts)
		lg.msg.Warnf("no valid analyzer data for more than %v", lg.cfg.write)
		lg.cfg.alert.Alert(AlertSilent, fmt.Sprintf(
			"no valid data from the analyzer since %v", lg.cfg.write,
		))
		err = lg.dev.RequestDiagnostic()
		if err != nil {
			lg.msg.Warnf("%+v", err)
		}
	}

	line := rec.String()
	err = lg.files.Write(line)
	if err != nil {
		return err
	}
	fmt.Fprintln(lg.cfg.stdout, line)

	conf, err := lg.rec.Confirm(pred)
	lg.last = lg.cfg.clock.Mono()

	var shift *ClockDiscontinuity
	switch {
	case errors.As(err, &shift):
		lg.msg.Warnf("%v", shift)
		lg.cfg.alert.Alert(AlertClock, shift.Error())
		err = lg.files.Write(shift.Error())
		if err != nil {
			return err
		}
		return lg.files.Close(ClockException)
	case conf.Rollover():
		return lg.files.Close(DateRollover)
	default:
		return lg.files.FlushIfDue()
	}
}

func (lg *Logger) volts() float64 {
	v, err := lg.cfg.analog.Read()
	if err != nil {
		lg.msg.Warnf("%+v", err)
		return math.NaN()
	}
	return v
}
