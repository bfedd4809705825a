// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// o3-dump decodes raw lines captured from a Dasibi 1008 RS ozone analyzer
// and displays them as tab-separated values.
//
// Usage: o3-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]
//
// Example:
//
//	$> o3-dump ./testdata/capture.raw
//	line	O3_ppb	fault	mode	abscoef	offset_ppb	temp_c	pres_atm	cont_hz	samp_hz
//	1	25	00	SAMPLE	1.000	-0.7	31.2	0.985	45321	45110
//	[...]
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/go-lpc/o3log/dasibi"
)

func main() {
	log.SetPrefix("o3-dump: ")
	log.SetFlags(0)

	xmain(os.Stdout, os.Args[1:])
}

func xmain(w io.Writer, args []string) {
	var (
		fset   = flag.NewFlagSet("o3-dump", flag.ExitOnError)
		strict = fset.Bool("strict", false, "only display frames where all fields could be decoded")
		all    = fset.Bool("a", false, "display all lines, even those without any field")
	)

	fset.Usage = func() {
		fmt.Printf(`o3-dump decodes raw lines captured from a Dasibi 1008 RS ozone analyzer.

Usage: o3-dump [OPTIONS] FILE1 [FILE2 [FILE3 ...]]

Example:

 $> o3-dump ./testdata/capture.raw
 line	O3_ppb	fault	mode	abscoef	offset_ppb	temp_c	pres_atm	cont_hz	samp_hz
 1	25	00	SAMPLE	1.000	-0.7	31.2	0.985	45321	45110
 [...]

Options:
`)
		fset.PrintDefaults()
	}

	err := fset.Parse(args)
	if err != nil {
		log.Fatalf("could not parse arguments: %+v", err)
	}

	if fset.NArg() == 0 {
		fset.Usage()
		log.Fatalf("missing path to input capture file")
	}

	policy := dasibi.Tolerant
	if *strict {
		policy = dasibi.Strict
	}

	for _, fname := range fset.Args() {
		err := process(w, fname, policy, *all)
		if err != nil {
			log.Fatalf("could not dump file %q: %+v", fname, err)
		}
	}
}

func process(w io.Writer, fname string, policy dasibi.Policy, all bool) error {
	wbuf := bufio.NewWriter(w)
	defer wbuf.Flush()

	f, err := os.Open(fname)
	if err != nil {
		return fmt.Errorf("could not open %q: %w", fname, err)
	}
	defer f.Close()

	fmt.Fprintf(wbuf, "line\t%s\n", strings.Join(dasibi.Names(), "\t"))

	var (
		scan = bufio.NewScanner(f)
		n    = 0
	)
	for scan.Scan() {
		n++
		frame := dasibi.Parse(scan.Bytes())
		if !all && !frame.Sample(policy) {
			continue
		}
		fmt.Fprintf(wbuf, "%s\t%s\n", strconv.Itoa(n), strings.Join(frame.Fields(), "\t"))
	}

	err = scan.Err()
	if err != nil {
		return fmt.Errorf("could not scan %q: %w", fname, err)
	}

	return nil
}
