// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package o3log logs the readings of a Dasibi 1008 RS ozone analyzer
// attached to a Raspberry Pi, and drives its daily span/zero calibration
// through an Explorer pHAT.
//
// The analyzer screen protocol lives in package dasibi, the pHAT outputs
// and analog input in package xphat, and the acquisition loop with its log
// file management in package ozone. The o3log command runs the logger as a
// daemon; o3-dump decodes raw analyzer captures and o3-rotate requests a
// new log file from a running logger.
package o3log // import "github.com/go-lpc/o3log"

import (
	"runtime/debug"
)

const modpath = "github.com/go-lpc/o3log"

// Version returns the module version the running binary was built from,
// and its checksum. Both are empty for binaries built without module
// information or from a development checkout.
func Version() (version, sum string) {
	b, ok := debug.ReadBuildInfo()
	if !ok {
		return "", ""
	}
	return versionOf(b)
}

func versionOf(b *debug.BuildInfo) (version, sum string) {
	m := findModule(b)
	if m == nil {
		return "", ""
	}

	r := m.Replace
	switch {
	case r == nil:
		if m.Version == "(devel)" {
			return "", ""
		}
		return m.Version, m.Sum
	case r.Path != "" && r.Version != "":
		return r.Path + " " + r.Version, r.Sum
	case r.Version != "":
		return r.Version, r.Sum
	case r.Path != "":
		return r.Path, r.Sum
	default:
		return m.Version + "*", ""
	}
}

// findModule returns o3log's entry in the build information, either as the
// main module or as a dependency of another one.
func findModule(b *debug.BuildInfo) *debug.Module {
	if b == nil {
		return nil
	}
	if b.Main.Path == modpath {
		return &b.Main
	}
	for _, m := range b.Deps {
		if m.Path == modpath {
			return m
		}
	}
	return nil
}
