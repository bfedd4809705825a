// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command o3-rotate requests a running o3log to close its current log file
// and to start a new one.
//
// Usage: o3-rotate [OPTIONS]
//
// Example:
//
//	$> o3-rotate -o /home/pi/data
//	o3-rotate: rotation requested ("/home/pi/data/rotate")
package main // import "github.com/go-lpc/o3log/cmd/o3-rotate"

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"

	"github.com/go-lpc/o3log/ozone"
)

func main() {
	log.SetPrefix("o3-rotate: ")
	log.SetFlags(0)

	var (
		odir     = flag.String("o", ".", "output directory of o3log")
		sentinel = flag.String("sentinel", ozone.DefaultSentinel, "rotation sentinel file, relative to the output directory")
	)

	flag.Parse()

	fname, err := request(*odir, *sentinel)
	if err != nil {
		log.Fatalf("%+v", err)
	}
	log.Printf("rotation requested (%q)", fname)
}

func request(dir, sentinel string) (string, error) {
	if sentinel == "" {
		return "", fmt.Errorf("invalid empty sentinel name")
	}

	fi, err := os.Stat(dir)
	if err != nil {
		return "", fmt.Errorf("could not stat output directory: %w", err)
	}
	if !fi.IsDir() {
		return "", fmt.Errorf("output directory %q is not a directory", dir)
	}

	fname := sentinel
	if !filepath.IsAbs(fname) {
		fname = filepath.Join(dir, fname)
	}

	f, err := os.OpenFile(fname, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	switch {
	case err == nil:
		// ok.
	case errors.Is(err, fs.ErrExist):
		// a rotation is already pending.
		return fname, nil
	default:
		return "", fmt.Errorf("could not create rotation sentinel: %w", err)
	}

	err = f.Close()
	if err != nil {
		return "", fmt.Errorf("could not close rotation sentinel: %w", err)
	}
	return fname, nil
}
