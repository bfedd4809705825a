// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xphat drives the Pimoroni Explorer pHAT of the ozone logger:
// two buffered digital outputs switching the analyzer span and zero
// solenoids, and one channel of the on-board ADS1015 ADC reading the
// analyzer analog output.
package xphat // import "github.com/go-lpc/o3log/xphat"

import (
	"fmt"

	"github.com/go-daq/tdaq/log"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

// BCM pin names of the Explorer pHAT outputs.
const (
	PinOutput1 = "GPIO6"
	PinOutput2 = "GPIO12"
	PinOutput3 = "GPIO13"
	PinOutput4 = "GPIO16"
)

var (
	hostInit  = hostInitImpl
	pinByName = gpioreg.ByName
)

func hostInitImpl() error {
	_, err := host.Init()
	return err
}

// Board is an initialized Explorer pHAT.
type Board struct {
	Zero *Output
	Span *Output
	ADC  *ADC
}

// Open initializes the host drivers and the Explorer pHAT peripherals
// connected to the analyzer.
func Open(bus int, msg log.MsgStream) (*Board, error) {
	err := hostInit()
	if err != nil {
		return nil, fmt.Errorf("xphat: could not initialize host drivers: %w", err)
	}

	zero, err := NewOutput("zero", PinOutput1)
	if err != nil {
		return nil, fmt.Errorf("xphat: could not setup zero output: %w", err)
	}

	span, err := NewOutput("span", PinOutput2)
	if err != nil {
		return nil, fmt.Errorf("xphat: could not setup span output: %w", err)
	}

	adc, err := OpenADC(bus, ADCAddr, AnalogOne)
	if err != nil {
		return nil, fmt.Errorf("xphat: could not setup analog input: %w", err)
	}

	msg.Infof("explorer pHAT: zero=%s span=%s adc=i2c-%d@0x%x", zero.pin, span.pin, bus, ADCAddr)

	return &Board{Zero: zero, Span: span, ADC: adc}, nil
}

// Close switches both outputs off and releases the ADC.
func (b *Board) Close() error {
	errs := []error{
		b.Span.Set(false),
		b.Zero.Set(false),
		b.ADC.Close(),
	}
	for _, err := range errs {
		if err != nil {
			return fmt.Errorf("xphat: could not close board: %w", err)
		}
	}
	return nil
}

// Output is one of the Explorer pHAT digital outputs.
type Output struct {
	name string
	pin  gpio.PinIO
}

// NewOutput returns the named output driven by the BCM pin name.
// The output is switched off.
func NewOutput(name, pin string) (*Output, error) {
	p := pinByName(pin)
	if p == nil {
		return nil, fmt.Errorf("xphat: could not find pin %q", pin)
	}
	out := &Output{name: name, pin: p}
	err := out.Set(false)
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Set switches the output on or off.
func (out *Output) Set(on bool) error {
	err := out.pin.Out(gpio.Level(on))
	if err != nil {
		return fmt.Errorf("xphat: could not set output %q to %v: %w", out.name, on, err)
	}
	return nil
}

// IsOn reports the state of the output pin.
func (out *Output) IsOn() bool {
	return out.pin.Read() == gpio.High
}
