// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package flock provides advisory file locks to prevent two loggers from
// writing to the same output directory.
package flock // import "github.com/go-lpc/o3log/internal/flock"

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// ErrLocked is returned when the lock is held by another process.
var ErrLocked = errors.New("flock: already locked")

// Lock is an exclusive advisory lock on a file.
type Lock struct {
	f *os.File
}

// New acquires an exclusive lock on fname, creating it if needed.
// The PID of the current process is written to the file.
func New(fname string) (*Lock, error) {
	f, err := os.OpenFile(fname, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("flock: could not open lock file: %w", err)
	}

	err = unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		_ = f.Close()
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, fmt.Errorf("%w: %q", ErrLocked, fname)
		}
		return nil, fmt.Errorf("flock: could not lock %q: %w", fname, err)
	}

	err = f.Truncate(0)
	if err == nil {
		_, err = f.WriteAt([]byte(strconv.Itoa(os.Getpid())+"\n"), 0)
	}
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("flock: could not write PID to %q: %w", fname, err)
	}

	return &Lock{f: f}, nil
}

// Close releases the lock.
func (l *Lock) Close() error {
	if l.f == nil {
		return nil
	}
	f := l.f
	l.f = nil

	err := unix.Flock(int(f.Fd()), unix.LOCK_UN)
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("flock: could not unlock %q: %w", f.Name(), err)
	}
	return f.Close()
}
