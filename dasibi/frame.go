// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package dasibi holds functions to read and decode data from a
// Dasibi 1008 RS ozone analyzer.
//
// In diagnostic mode, the analyzer paints a terminal screen over its serial
// port: each value is preceded by a cursor positioning sequence
// ESC[<row>;<col>H followed by a NUL byte. Values are located by these
// anchors rather than by their position in the line.
package dasibi // import "github.com/go-lpc/o3log/dasibi"

import (
	"bytes"
	"math"
	"strconv"
	"strings"
)

// NaN is the value of a missing or unparseable field.
const NaN = "NaN"

// NumFields is the number of fields extracted from an instrument line.
const NumFields = 9

const (
	escSeq = "\x1b["
	escEnd = "\x00"
)

// field describes where a value lives on the analyzer screen.
type field struct {
	name   string
	anchor string // row;col cursor position
	unit   string // substring the value must contain, if any
}

var fields = [NumFields]field{
	{"O3_ppb", "05;17H", "ppm"},
	{"fault", "07;12H", ""},
	{"mode", "07;25H", ""},
	{"abscoef", "07;38H", ""},
	{"offset_ppb", "07;56H", ""},
	{"temp_c", "08;11H", "C"},
	{"pres_atm", "09;11H", "ATM"},
	{"cont_hz", "10;11H", ""},
	{"samp_hz", "10;32H", ""},
}

// Names returns the names of the instrument fields, in record order.
func Names() []string {
	names := make([]string, NumFields)
	for i, f := range fields {
		names[i] = f.name
	}
	return names
}

// Anchor returns the full escape sequence locating the i-th field.
func Anchor(i int) string {
	return escSeq + fields[i].anchor + escEnd
}

// Unit returns the unit token expected in the i-th field.
func Unit(i int) string {
	return fields[i].unit
}

// Policy selects which frames are considered as samples.
type Policy int

const (
	// Tolerant accepts frames where at least one field could be decoded.
	// Missing fields are reported as NaN.
	Tolerant Policy = iota
	// Strict only accepts frames where all fields could be decoded.
	Strict
)

func (p Policy) String() string {
	switch p {
	case Tolerant:
		return "tolerant"
	case Strict:
		return "strict"
	default:
		return "Policy(" + strconv.Itoa(int(p)) + ")"
	}
}

// Frame is a decoded analyzer line.
type Frame struct {
	vals [NumFields]string
	ok   [NumFields]bool
}

// Parse decodes one raw line from the analyzer.
// Parse never fails: fields that could not be located or validated
// are reported as missing.
func Parse(line []byte) Frame {
	var frame Frame
	for i := range fields {
		v, ok := extract(line, i)
		if !ok {
			continue
		}
		frame.vals[i] = v
		frame.ok[i] = true
	}

	if frame.ok[0] {
		frame.vals[0] = ppb(frame.vals[0])
	}

	return frame
}

func extract(line []byte, i int) (string, bool) {
	anchor := []byte(Anchor(i))
	beg := bytes.Index(line, anchor)
	if beg < 0 {
		return "", false
	}
	v := bytes.TrimSpace(line[beg+len(anchor):])
	if end := bytes.Index(v, []byte(escSeq)); end >= 0 {
		v = v[:end]
	}
	if !bytes.Contains(v, []byte(fields[i].unit)) {
		return "", false
	}
	if end := bytes.IndexByte(v, ' '); end >= 0 {
		v = v[:end]
	}
	return string(v), true
}

// ppb converts an ozone concentration in ppm into ppb,
// keeping the precision of the instrument reading.
func ppb(ppm string) string {
	v, err := strconv.ParseFloat(ppm, 64)
	if err != nil {
		return NaN
	}
	v *= 1000
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return NaN
	}
	prec := -1
	if !strings.ContainsAny(ppm, "eExXpP") {
		prec = 0
		if i := strings.IndexByte(ppm, '.'); i >= 0 {
			prec = len(ppm) - i - 1 - 3
		}
		if prec < 0 {
			prec = 0
		}
	}
	return strconv.FormatFloat(v, 'f', prec, 64)
}

// Len returns the number of decoded fields.
func (f Frame) Len() int {
	n := 0
	for _, ok := range f.ok {
		if ok {
			n++
		}
	}
	return n
}

// Has reports whether the i-th field was decoded.
func (f Frame) Has(i int) bool { return f.ok[i] }

// Field returns the i-th field, or NaN if it is missing.
func (f Frame) Field(i int) string {
	if !f.ok[i] || f.vals[i] == "" {
		return NaN
	}
	return f.vals[i]
}

// Fields returns all the fields of the frame, missing ones set to NaN.
func (f Frame) Fields() []string {
	out := make([]string, NumFields)
	for i := range out {
		out[i] = f.Field(i)
	}
	return out
}

// Sample reports whether the frame holds a sample under policy p.
func (f Frame) Sample(p Policy) bool {
	switch p {
	case Strict:
		return f.Len() == NumFields
	default:
		return f.Len() > 0
	}
}
