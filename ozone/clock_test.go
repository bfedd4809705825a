// Copyright 2021 The go-lpc Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package ozone

import (
	"errors"
	"testing"
	"time"
)

func TestReconcilerPredict(t *testing.T) {
	var (
		t0    = time.Date(2021, 6, 1, 9, 5, 17, 0, time.UTC)
		clock = newFakeClock(t0)
		rec   = NewReconciler(clock, 100*time.Second)
	)

	for i, dt := range []time.Duration{
		0, 1 * time.Second, 20 * time.Second, 1500 * time.Millisecond, 99 * time.Second,
	} {
		last := rec.Last()
		clock.advance(dt)
		pred := rec.Predict()
		if got, want := pred, last.Add(dt); !got.Equal(want) {
			t.Fatalf("iter %d: invalid prediction: got=%v, want=%v", i, got, want)
		}
		conf, err := rec.Confirm(pred)
		if err != nil {
			t.Fatalf("iter %d: unexpected clock discontinuity: %+v", i, err)
		}
		if !conf.Now.Equal(clock.Now()) {
			t.Fatalf("iter %d: reconciler not rebased: got=%v, want=%v", i, conf.Now, clock.Now())
		}
		if conf.Rollover() {
			t.Fatalf("iter %d: unexpected rollover", i)
		}
	}
}

func TestReconcilerDiscontinuity(t *testing.T) {
	var (
		t0    = time.Date(2021, 6, 1, 9, 5, 17, 0, time.UTC)
		clock = newFakeClock(t0)
		rec   = NewReconciler(clock, 100*time.Second)
	)

	clock.advance(1 * time.Second)
	clock.jump(500 * time.Second)

	pred := rec.Predict()
	if got, want := pred, t0.Add(1*time.Second); !got.Equal(want) {
		t.Fatalf("invalid prediction: got=%v, want=%v", got, want)
	}

	_, err := rec.Confirm(pred)
	var shift *ClockDiscontinuity
	if !errors.As(err, &shift) {
		t.Fatalf("expected a clock discontinuity, got=%+v", err)
	}
	if got, want := shift.Shift, 500*time.Second; got != want {
		t.Fatalf("invalid shift: got=%v, want=%v", got, want)
	}
	const want = "Time shift exception -- computer time is: 2021-06-01 09:13:38 " +
		"predicted time was: 2021-06-01 09:05:18 seconds time shifted = 500"
	if got := shift.Error(); got != want {
		t.Fatalf("invalid message:\ngot= %q\nwant=%q", got, want)
	}

	// after rebasing, the discontinuity is not reported again.
	clock.advance(1 * time.Second)
	pred = rec.Predict()
	if got, want := pred, clock.Now(); !got.Equal(want) {
		t.Fatalf("invalid prediction after rebase: got=%v, want=%v", got, want)
	}
	_, err = rec.Confirm(pred)
	if err != nil {
		t.Fatalf("unexpected clock discontinuity: %+v", err)
	}
}

func TestReconcilerBackward(t *testing.T) {
	var (
		t0    = time.Date(2021, 6, 1, 9, 5, 17, 0, time.UTC)
		clock = newFakeClock(t0)
		rec   = NewReconciler(clock, 100*time.Second)
	)

	clock.advance(10 * time.Second)
	clock.jump(-101 * time.Second)
	_, err := rec.Confirm(rec.Predict())
	var shift *ClockDiscontinuity
	if !errors.As(err, &shift) {
		t.Fatalf("expected a clock discontinuity, got=%+v", err)
	}
	if got, want := shift.Shift, -101*time.Second; got != want {
		t.Fatalf("invalid shift: got=%v, want=%v", got, want)
	}

	clock.advance(10 * time.Second)
	clock.jump(-100 * time.Second)
	_, err = rec.Confirm(rec.Predict())
	if err != nil {
		t.Fatalf("shift at threshold should be tolerated: %+v", err)
	}
}

func TestRollover(t *testing.T) {
	loc := time.FixedZone("AKDT", -8*3600)
	for _, tc := range []struct {
		name string
		prev time.Time
		now  time.Time
		want bool
	}{
		{
			name: "same-day",
			prev: time.Date(2021, 6, 1, 0, 0, 0, 0, loc),
			now:  time.Date(2021, 6, 1, 23, 59, 59, 0, loc),
		},
		{
			name: "midnight",
			prev: time.Date(2021, 6, 1, 23, 59, 59, 0, loc),
			now:  time.Date(2021, 6, 2, 0, 0, 0, 0, loc),
			want: true,
		},
		{
			name: "new-year",
			prev: time.Date(2021, 12, 31, 23, 59, 59, 0, loc),
			now:  time.Date(2022, 1, 1, 0, 0, 1, 0, loc),
			want: true,
		},
		{
			name: "backward",
			prev: time.Date(2021, 6, 2, 0, 0, 1, 0, loc),
			now:  time.Date(2021, 6, 1, 23, 59, 0, 0, loc),
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			conf := Confirmation{Prev: tc.prev, Now: tc.now}
			if got, want := conf.Rollover(), tc.want; got != want {
				t.Fatalf("got=%v, want=%v", got, want)
			}
		})
	}
}

func TestSystemClock(t *testing.T) {
	m1 := SystemClock.Mono()
	time.Sleep(10 * time.Millisecond)
	m2 := SystemClock.Mono()
	if m2-m1 < 10*time.Millisecond {
		t.Fatalf("monotonic clock did not advance: m1=%v, m2=%v", m1, m2)
	}

	now := SystemClock.Now()
	if now != now.Round(0) {
		t.Fatalf("wall clock reading carries a monotonic reading")
	}
}
