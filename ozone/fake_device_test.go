// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ozone

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-daq/tdaq/log"
	"github.com/go-lpc/o3log/dasibi"
)

type fakeClock struct {
	wall time.Time
	mono time.Duration
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{wall: t, mono: 42 * time.Hour}
}

func (c *fakeClock) Now() time.Time      { return c.wall }
func (c *fakeClock) Mono() time.Duration { return c.mono }

// advance lets time flow normally.
func (c *fakeClock) advance(d time.Duration) {
	c.wall = c.wall.Add(d)
	c.mono += d
}

// jump steps the wall clock only.
func (c *fakeClock) jump(d time.Duration) {
	c.wall = c.wall.Add(d)
}

// fakeAnalyzer replays lines. A nil line simulates a read timeout.
// Each read lets the clock advance by delay, or by the read timeout for
// timeouts.
type fakeAnalyzer struct {
	clock *fakeClock
	delay time.Duration
	lines [][]byte
	diags int
	after func() // called after each read, if set
}

func (dev *fakeAnalyzer) ReadLine(timeout time.Duration) ([]byte, error) {
	if dev.after != nil {
		defer dev.after()
	}
	if len(dev.lines) == 0 || dev.lines[0] == nil {
		if len(dev.lines) > 0 {
			dev.lines = dev.lines[1:]
		}
		dev.clock.advance(timeout)
		return nil, dasibi.ErrTimeout
	}
	line := dev.lines[0]
	dev.lines = dev.lines[1:]
	dev.clock.advance(dev.delay)
	return line, nil
}

func (dev *fakeAnalyzer) RequestDiagnostic() error {
	dev.diags++
	return nil
}

// brokenAnalyzer fails every read at once, as an unplugged serial line does.
type brokenAnalyzer struct {
	err   error
	reads int
	diags int
}

func (dev *brokenAnalyzer) ReadLine(timeout time.Duration) ([]byte, error) {
	dev.reads++
	return nil, dev.err
}

func (dev *brokenAnalyzer) RequestDiagnostic() error {
	dev.diags++
	return nil
}

type fakeOutput struct {
	on    bool
	stuck bool // ignore commands, as a failed driver would
	sets  []bool
}

func (out *fakeOutput) Set(on bool) error {
	out.sets = append(out.sets, on)
	if !out.stuck {
		out.on = on
	}
	return nil
}

func (out *fakeOutput) IsOn() bool { return out.on }

type fakeAnalog struct {
	v   float64
	err error
}

func (a *fakeAnalog) Read() (float64, error) { return a.v, a.err }

type fakeAlerter struct {
	kinds []string
}

func (a *fakeAlerter) Alert(kind, msg string) {
	a.kinds = append(a.kinds, kind)
}

func discard() log.MsgStream {
	return log.NewMsgStream("ozone", log.LvlError, io.Discard)
}

// frameLine builds an analyzer screen line with all fields set.
func frameLine(o3 string) []byte {
	vals := []string{
		o3 + " ppm", "00", "SAMPLE", "1.000", "-0.7",
		"31.2 C", "0.985 ATM", "45321", "45110",
	}
	o := new(strings.Builder)
	for i, v := range vals {
		o.WriteString(dasibi.Anchor(i) + " " + v + "  ")
	}
	o.WriteString("\r\n")
	return []byte(o.String())
}

func logFiles(t *testing.T, dir string) []string {
	t.Helper()
	names, err := filepath.Glob(filepath.Join(dir, "ozone-log-*.txt"))
	if err != nil {
		t.Fatalf("could not glob log files: %+v", err)
	}
	sort.Strings(names)
	return names
}

func readLines(t *testing.T, fname string) []string {
	t.Helper()
	raw, err := os.ReadFile(fname)
	if err != nil {
		t.Fatalf("could not read %q: %+v", fname, err)
	}
	return strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
}
