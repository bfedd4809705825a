// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Command o3log logs data from a Dasibi 1008 RS ozone analyzer and drives
// its daily span/zero calibration.
//
// Usage: o3log [OPTIONS]
//
// Example:
//
//	$> o3log -dev=/dev/serial0 -o=/home/pi/data
//	o3log: version: v0.1.0
//	o3log: opened log file "/home/pi/data/ozone-log-20210601T090517.txt"
//	2021-06-01 09:05:17	0	0.002	25	00	SAMPLE	1.000	-0.7	31.2	0.985	45321	45110
//	[...]
//
// A new log file can be requested by creating the rotation sentinel file
// (see o3-rotate).
//
// Mail alerts are sent when the MAIL_USERNAME, MAIL_PASSWORD, MAIL_SERVER,
// MAIL_PORT and MAIL_TGTS environment variables are set.
package main // import "github.com/go-lpc/o3log/cmd/o3log"

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	tlog "github.com/go-daq/tdaq/log"
	"github.com/go-lpc/o3log"
	"github.com/go-lpc/o3log/dasibi"
	"github.com/go-lpc/o3log/internal/alert"
	"github.com/go-lpc/o3log/internal/flock"
	"github.com/go-lpc/o3log/ozone"
	"github.com/go-lpc/o3log/xphat"
	"github.com/sbinet/pmon"
	"golang.org/x/sync/errgroup"
)

func main() {
	log.SetPrefix("o3log: ")
	log.SetFlags(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := xmain(ctx, os.Args[1:])
	if err != nil {
		log.Fatalf("%+v", err)
	}
}

type config struct {
	dev      string
	odir     string
	sentinel string
	i2c      int
	policy   dasibi.Policy
	settle   time.Duration
	verbose  bool

	calHour int
	calSpan time.Duration
	calZero time.Duration

	pmon bool
	freq time.Duration
}

func xmain(ctx context.Context, args []string) error {
	var (
		fset     = flag.NewFlagSet("o3log", flag.ContinueOnError)
		dev      = fset.String("dev", "/dev/serial0", "serial device of the ozone analyzer")
		odir     = fset.String("o", ".", "output directory for log files")
		sentinel = fset.String("sentinel", ozone.DefaultSentinel, "rotation sentinel file, relative to the output directory (empty to disable)")
		i2c      = fset.Int("i2c", 1, "I2C bus of the Explorer pHAT")
		policy   = fset.String("policy", "tolerant", "frame acceptance policy (tolerant, strict)")
		settle   = fset.Duration("settle", 5*time.Second, "settle time of the serial line at startup")
		verbose  = fset.Bool("v", false, "enable verbose mode")

		calHour = fset.Int("cal-hour", ozone.DefaultCalHour, "hour of day of the calibration")
		calSpan = fset.Duration("cal-span", ozone.DefaultCalSpan, "duration of the span phase")
		calZero = fset.Duration("cal-zero", ozone.DefaultCalZero, "duration of the zero phase")

		doMon  = fset.Bool("pmon", false, "enable pmon monitoring")
		doFreq = fset.Duration("freq", 1*time.Second, "pmon frequency")
	)

	err := fset.Parse(args)
	if err != nil {
		return err
	}

	cfg := config{
		dev:      *dev,
		odir:     *odir,
		sentinel: *sentinel,
		i2c:      *i2c,
		settle:   *settle,
		verbose:  *verbose,
		calHour:  *calHour,
		calSpan:  *calSpan,
		calZero:  *calZero,
		pmon:     *doMon,
		freq:     *doFreq,
	}

	switch *policy {
	case "tolerant":
		cfg.policy = dasibi.Tolerant
	case "strict":
		cfg.policy = dasibi.Strict
	default:
		return fmt.Errorf("invalid frame policy %q", *policy)
	}

	return run(ctx, cfg)
}

type instrument interface {
	ozone.Instrument
	Close() error
}

var (
	openDevice = func(name string, settle time.Duration) (instrument, error) {
		dev, err := dasibi.Open(name, settle)
		if err != nil {
			return nil, err
		}
		return dev, nil
	}
	openBoard = xphat.Open
	hostname  = os.Hostname
)

func run(ctx context.Context, cfg config) error {
	if v, sum := o3log.Version(); v != "" {
		log.Printf("version: %s (%s)", v, sum)
	}

	lvl := tlog.LvlInfo
	if cfg.verbose {
		lvl = tlog.LvlDebug
	}
	msg := tlog.NewMsgStream("o3log", lvl, os.Stderr)

	err := os.MkdirAll(cfg.odir, 0755)
	if err != nil {
		return fmt.Errorf("could not create output directory %q: %w", cfg.odir, err)
	}

	lck, err := flock.New(filepath.Join(cfg.odir, ".o3log.lock"))
	if err != nil {
		return fmt.Errorf("could not lock output directory %q: %w", cfg.odir, err)
	}
	defer lck.Close()

	dev, err := openDevice(cfg.dev, cfg.settle)
	if err != nil {
		return fmt.Errorf("could not open ozone analyzer %q: %w", cfg.dev, err)
	}
	defer dev.Close()

	opts := []ozone.Option{
		ozone.WithDir(cfg.odir),
		ozone.WithSentinel(cfg.sentinel),
		ozone.WithCalibration(cfg.calHour, cfg.calSpan, cfg.calZero),
		ozone.WithPolicy(cfg.policy),
		ozone.WithMsgStream(msg),
	}

	board, err := openBoard(cfg.i2c, msg)
	switch {
	case err != nil:
		log.Printf("could not open explorer pHAT: %+v", err)
		log.Printf("calibration outputs and analog input disabled")
	default:
		defer func() {
			err := board.Close()
			if err != nil {
				log.Printf("could not close explorer pHAT: %+v", err)
			}
		}()
		opts = append(opts,
			ozone.WithOutputs(board.Span, board.Zero),
			ozone.WithAnalog(board.ADC),
		)
	}

	var mailer *alert.Mailer
	if mcfg := alert.FromEnv(); mcfg.Server != "" {
		host, err := hostname()
		if err != nil {
			host = "o3log"
		}
		mailer = alert.NewMailer(msg, mcfg, host)
		opts = append(opts, ozone.WithAlerter(mailer))
	}

	lg, err := ozone.New(dev, opts...)
	if err != nil {
		return fmt.Errorf("could not create ozone logger: %w", err)
	}

	if cfg.pmon {
		stop, err := monitor(cfg.odir, cfg.freq)
		if err != nil {
			return fmt.Errorf("could not start pmon: %w", err)
		}
		defer stop()
	}

	grp, ctx := errgroup.WithContext(ctx)
	if mailer != nil {
		grp.Go(func() error {
			return mailer.Run(ctx)
		})
	}
	grp.Go(func() error {
		return lg.Run(ctx)
	})

	err = grp.Wait()
	if err != nil {
		return fmt.Errorf("could not run ozone logger: %w", err)
	}
	return nil
}

func monitor(dir string, freq time.Duration) (func(), error) {
	pid := os.Getpid()
	p, err := pmon.Monitor(pid)
	if err != nil {
		return nil, fmt.Errorf("could not start monitoring (pid=%d): %w", pid, err)
	}
	f, err := os.Create(filepath.Join(dir, "o3log-pmon.log"))
	if err != nil {
		return nil, fmt.Errorf("could not create pmon log file: %w", err)
	}
	p.W = f
	p.Freq = freq

	go func() {
		err := p.Run()
		if err != nil {
			log.Printf("could not run pmon: %+v", err)
		}
	}()

	return func() {
		err := p.Kill()
		if err != nil {
			log.Printf("could not stop monitoring: %+v", err)
		}
		_ = f.Close()
	}, nil
}
