// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xphat

import (
	"fmt"
	"math"
	"time"

	"github.com/go-daq/smbus"
)

const (
	// ADCAddr is the I2C address of the Explorer pHAT ADS1015.
	ADCAddr = 0x48

	// ADS1015 channels wired to the Explorer pHAT analog inputs.
	AnalogOne   = 3
	AnalogTwo   = 2
	AnalogThree = 1
	AnalogFour  = 0
)

// ADS1015 registers and configuration bits.
const (
	regConversion = 0x00
	regConfig     = 0x01

	cfgOS         = 0x8000 // start a single conversion / conversion done
	cfgMuxSingle  = 0x4000 // single-ended AINx vs GND, channel in bits 13:12
	cfgShiftMux   = 12
	cfgPGA6144    = 0x0000 // +/-6.144V full scale range
	cfgModeSingle = 0x0100
	cfgRate1600   = 0x0080
	cfgCompQueOff = 0x0003

	fullScale = 6.144 // volts
	maxCode   = 2048  // 12-bit signed conversion
	convDelay = 1 * time.Millisecond
	maxPolls  = 10
)

type smbusConn interface {
	ReadWord(addr, cmd uint8) (uint16, error)
	WriteWord(addr, cmd uint8, v uint16) error
	Close() error
}

var (
	smbusOpen = smbusOpenImpl
	adcSleep  = time.Sleep
)

func smbusOpenImpl(bus int, addr uint8) (smbusConn, error) {
	conn, err := smbus.Open(bus, addr)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ADC reads one single-ended channel of an ADS1015.
type ADC struct {
	conn smbusConn
	addr uint8
	ch   int
}

// OpenADC opens the ADS1015 at addr on the given I2C bus.
func OpenADC(bus int, addr uint8, ch int) (*ADC, error) {
	if ch < 0 || ch > 3 {
		return nil, fmt.Errorf("xphat: invalid ADS1015 channel %d", ch)
	}
	conn, err := smbusOpen(bus, addr)
	if err != nil {
		return nil, fmt.Errorf("xphat: could not open i2c-%d@0x%x: %w", bus, addr, err)
	}
	return &ADC{conn: conn, addr: addr, ch: ch}, nil
}

// Close releases the I2C bus.
func (adc *ADC) Close() error {
	return adc.conn.Close()
}

// Read performs a single-shot conversion and returns the channel voltage,
// rounded to the millivolt.
func (adc *ADC) Read() (float64, error) {
	cfg := uint16(cfgOS | cfgMuxSingle | adc.ch<<cfgShiftMux |
		cfgPGA6144 | cfgModeSingle | cfgRate1600 | cfgCompQueOff)

	err := adc.conn.WriteWord(adc.addr, regConfig, swap(cfg))
	if err != nil {
		return math.NaN(), fmt.Errorf("xphat: could not start ADS1015 conversion: %w", err)
	}

	for i := 0; ; i++ {
		adcSleep(convDelay)
		v, err := adc.conn.ReadWord(adc.addr, regConfig)
		if err != nil {
			return math.NaN(), fmt.Errorf("xphat: could not read ADS1015 status: %w", err)
		}
		if swap(v)&cfgOS != 0 {
			break
		}
		if i >= maxPolls {
			return math.NaN(), fmt.Errorf("xphat: ADS1015 conversion timed out")
		}
	}

	raw, err := adc.conn.ReadWord(adc.addr, regConversion)
	if err != nil {
		return math.NaN(), fmt.Errorf("xphat: could not read ADS1015 conversion: %w", err)
	}

	return volts(swap(raw)), nil
}

// swap converts between the SMBus (LSB first) and ADS1015 (MSB first)
// word byte orders.
func swap(v uint16) uint16 {
	return v<<8 | v>>8
}

func volts(raw uint16) float64 {
	code := int16(raw) >> 4
	v := float64(code) * fullScale / maxCode
	return math.Round(v*1000) / 1000
}
