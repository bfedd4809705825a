// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package dasibi

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tarm/serial"
)

const (
	// Baud is the analyzer serial line speed.
	Baud = 9600
	// ReadTimeout is the longest a single read may block on the line.
	ReadTimeout = 20 * time.Second

	dataBits = 7 // the analyzer uses 7 data bits.

	// cmdDiag asks the analyzer to switch to its diagnostic screen.
	cmdDiag = 'd'
)

// ErrTimeout is returned by ReadLine when nothing was received before
// the read deadline.
var ErrTimeout = errors.New("dasibi: read timeout")

type port interface {
	Flush() error

	io.Reader
	io.Writer
	io.Closer
}

var (
	serialOpen = serialOpenImpl
	sleep      = time.Sleep
	now        = time.Now
)

func serialOpenImpl(name string) (port, error) {
	cfg := &serial.Config{
		Name:        name,
		Baud:        Baud,
		Size:        dataBits,
		Parity:      serial.ParityNone,
		StopBits:    serial.Stop1,
		ReadTimeout: ReadTimeout,
	}
	p, err := serial.OpenPort(cfg)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Device is a Dasibi analyzer connected over a serial line.
type Device struct {
	name string
	port port
	r    *bufio.Reader
}

// Open opens the named serial device, waits for the analyzer to settle
// and puts it in diagnostic mode.
func Open(name string, settle time.Duration) (*Device, error) {
	p, err := serialOpen(name)
	if err != nil {
		return nil, fmt.Errorf("dasibi: could not open serial port %q: %w", name, err)
	}

	dev := &Device{
		name: name,
		port: p,
		r:    bufio.NewReader(p),
	}

	err = dev.init(settle)
	if err != nil {
		_ = p.Close()
		return nil, fmt.Errorf("dasibi: could not initialize %q: %w", name, err)
	}

	return dev, nil
}

func (dev *Device) init(settle time.Duration) error {
	err := dev.port.Flush()
	if err != nil {
		return fmt.Errorf("could not flush serial port: %w", err)
	}

	sleep(settle)

	return dev.RequestDiagnostic()
}

// Name returns the name of the underlying serial device.
func (dev *Device) Name() string { return dev.name }

// Close closes the serial line.
func (dev *Device) Close() error {
	return dev.port.Close()
}

// RequestDiagnostic sends the diagnostic-mode command to the analyzer.
func (dev *Device) RequestDiagnostic() error {
	buf := []byte{cmdDiag}
	n, err := dev.port.Write(buf)
	switch {
	case err != nil:
		return fmt.Errorf("dasibi: could not write diagnostic request: %w", err)
	case n != len(buf):
		return fmt.Errorf("dasibi: could not write diagnostic request: %w", io.ErrShortWrite)
	}
	return nil
}

// ReadLine reads one newline terminated line from the analyzer.
//
// ReadLine returns early with what it has received so far when the port
// read timeout expires or when the line is still incomplete after timeout.
// ErrTimeout is returned when nothing was received at all.
//
// The deadline is checked as bytes arrive, and the wait for each byte is
// bounded by ReadTimeout: a line stalling just before the deadline returns
// after at most timeout+ReadTimeout.
func (dev *Device) ReadLine(timeout time.Duration) ([]byte, error) {
	var (
		line     []byte
		deadline = now().Add(timeout)
	)
	for {
		c, err := dev.r.ReadByte()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return line, fmt.Errorf("dasibi: could not read from %q: %w", dev.name, err)
			}
			// the port reports a read timeout as EOF.
			if len(line) == 0 {
				return nil, ErrTimeout
			}
			return line, nil
		}
		line = append(line, c)
		if c == '\n' || !now().Before(deadline) {
			return line, nil
		}
	}
}
