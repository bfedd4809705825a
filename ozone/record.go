// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ozone

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-lpc/o3log/dasibi"
)

var baseNames = []string{"datetime", "calmode", "O3_volts"}

// NumFields is the number of fields of a record.
const NumFields = 3 + dasibi.NumFields

// Header returns the names of the record fields.
func Header() []string {
	hdr := make([]string, 0, NumFields)
	hdr = append(hdr, baseNames...)
	hdr = append(hdr, dasibi.Names()...)
	return hdr
}

// Record is one line of the log file.
type Record struct {
	Time   time.Time
	Mode   CalMode
	Volts  float64
	Fields [dasibi.NumFields]string // analyzer fields
}

// NaNRecord returns a record where all analyzer fields are missing.
func NaNRecord(t time.Time, mode CalMode, volts float64) Record {
	rec := Record{Time: t, Mode: mode, Volts: volts}
	for i := range rec.Fields {
		rec.Fields[i] = dasibi.NaN
	}
	return rec
}

// NewRecord returns a record holding the analyzer fields of frame.
func NewRecord(t time.Time, mode CalMode, volts float64, frame dasibi.Frame) Record {
	rec := Record{Time: t, Mode: mode, Volts: volts}
	for i := range rec.Fields {
		rec.Fields[i] = frame.Field(i)
	}
	return rec
}

// Strings returns the record fields, in header order.
func (rec Record) Strings() []string {
	out := make([]string, 0, NumFields)
	out = append(out,
		rec.Time.Format(TimeFormat),
		strconv.Itoa(int(rec.Mode)),
		volts(rec.Volts),
	)
	for _, v := range rec.Fields {
		if v == "" {
			v = dasibi.NaN
		}
		out = append(out, v)
	}
	return out
}

// String returns the tab-separated representation of the record.
func (rec Record) String() string {
	return strings.Join(rec.Strings(), "\t")
}

func volts(v float64) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return dasibi.NaN
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
