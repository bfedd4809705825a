// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ozone

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-daq/tdaq/log"
)

// Trigger is the reason a log file was closed.
type Trigger int

const (
	ClockException Trigger = iota + 1
	DateRollover
	ExternalRequest
	WriteFailure
	Shutdown
)

func (t Trigger) String() string {
	switch t {
	case ClockException:
		return "clock-exception"
	case DateRollover:
		return "date-rollover"
	case ExternalRequest:
		return "external-request"
	case WriteFailure:
		return "write-failure"
	case Shutdown:
		return "shutdown"
	default:
		return "Trigger(" + strconv.Itoa(int(t)) + ")"
	}
}

const (
	filePrefix = "ozone-log-"
	fileStamp  = "20060102T150405"
	fileExt    = ".txt"

	maxDups = 100 // max number of files sharing the same timestamp
)

// FileName returns the name of a log file opened at t.
func FileName(t time.Time) string {
	return filePrefix + t.Format(fileStamp) + fileExt
}

// Rotator manages the lifecycle of the log files.
// At most one log file is open at any time.
type Rotator struct {
	msg      log.MsgStream
	clock    Clock
	dir      string
	sentinel string
	every    time.Duration // flush interval
	stuck    bool          // sentinel seen but not removable

	f     *os.File
	w     *bufio.Writer
	name  string
	flush time.Duration // monotonic reading of the last flush
}

// NewRotator returns a closed rotator writing files under dir.
// The presence of the sentinel file requests a rotation.
func NewRotator(msg log.MsgStream, clock Clock, dir, sentinel string, flush time.Duration) *Rotator {
	return &Rotator{
		msg:      msg,
		clock:    clock,
		dir:      dir,
		sentinel: sentinel,
		every:    flush,
	}
}

// IsOpen reports whether a log file is currently open.
func (r *Rotator) IsOpen() bool { return r.f != nil }

// Name returns the path of the current log file, if any.
func (r *Rotator) Name() string { return r.name }

// Open creates a new log file named after t and writes its header.
// Open is a no-op if a file is already open.
func (r *Rotator) Open(t time.Time, header []string) error {
	if r.IsOpen() {
		return nil
	}

	f, err := r.create(FileName(t))
	if err != nil {
		return fmt.Errorf("ozone: could not create log file: %w", err)
	}

	r.f = f
	r.w = bufio.NewWriter(f)
	r.name = f.Name()
	r.flush = r.clock.Mono()

	_, err = r.w.WriteString(strings.Join(header, "\t") + "\n")
	if err != nil {
		_ = r.release()
		return fmt.Errorf("ozone: could not write header to %q: %w", f.Name(), err)
	}

	r.msg.Infof("opened log file %q", r.name)
	return nil
}

func (r *Rotator) create(name string) (*os.File, error) {
	var (
		ext  = filepath.Ext(name)
		base = strings.TrimSuffix(name, ext)
	)
	for i := 0; i < maxDups; i++ {
		fname := name
		if i > 0 {
			fname = base + "-" + strconv.Itoa(i) + ext
		}
		f, err := os.OpenFile(
			filepath.Join(r.dir, fname),
			os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644,
		)
		switch {
		case err == nil:
			return f, nil
		case errors.Is(err, fs.ErrExist):
			continue
		default:
			return nil, err
		}
	}
	return nil, fmt.Errorf("too many log files named %q: %w", name, fs.ErrExist)
}

// Write appends one line to the current log file.
func (r *Rotator) Write(line string) error {
	if !r.IsOpen() {
		return fmt.Errorf("ozone: no open log file: %w", fs.ErrClosed)
	}
	_, err := r.w.WriteString(line + "\n")
	if err != nil {
		return fmt.Errorf("ozone: could not write to %q: %w", r.name, err)
	}
	return nil
}

// FlushIfDue flushes the log file to disk when the flush interval elapsed.
func (r *Rotator) FlushIfDue() error {
	if !r.IsOpen() {
		return nil
	}
	if r.clock.Mono()-r.flush <= r.every {
		return nil
	}
	return r.Flush()
}

// Flush writes buffered data to the log file and commits it to disk.
func (r *Rotator) Flush() error {
	if !r.IsOpen() {
		return nil
	}
	r.flush = r.clock.Mono()

	err := r.w.Flush()
	if err != nil {
		return fmt.Errorf("ozone: could not flush %q: %w", r.name, err)
	}
	err = r.f.Sync()
	if err != nil {
		return fmt.Errorf("ozone: could not sync %q: %w", r.name, err)
	}
	return nil
}

// Close flushes and closes the current log file.
func (r *Rotator) Close(why Trigger) error {
	if !r.IsOpen() {
		return nil
	}
	name := r.name
	r.msg.Infof("closing log file %q (%v)", name, why)

	err := r.Flush()
	if err != nil {
		_ = r.release()
		return err
	}

	err = r.release()
	if err != nil {
		return fmt.Errorf("ozone: could not close %q: %w", name, err)
	}
	return nil
}

func (r *Rotator) release() error {
	f := r.f
	r.f = nil
	r.w = nil
	r.name = ""
	return f.Close()
}

// Requested reports whether an external rotation was requested.
// The request is consumed: the sentinel file is removed. A sentinel that
// cannot be removed is reported once, until it disappears.
func (r *Rotator) Requested() (bool, error) {
	if r.sentinel == "" {
		return false, nil
	}
	_, err := os.Stat(r.sentinel)
	switch {
	case err == nil:
		// ok.
	case errors.Is(err, fs.ErrNotExist):
		r.stuck = false
		return false, nil
	default:
		return false, fmt.Errorf("ozone: could not stat rotation sentinel: %w", err)
	}

	// a sentinel that could not be removed only requests one rotation.
	if r.stuck {
		return false, nil
	}

	err = os.Remove(r.sentinel)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.stuck = true
		return true, fmt.Errorf("ozone: could not remove rotation sentinel: %w", err)
	}
	return true, nil
}
