package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/notnil/evilcan/canbus"
	"github.com/notnil/evilcan/sim"
)

func testOptions() options {
	return options{
		id:      0x123,
		data:    []byte{0xDE, 0xAD, 0xBE, 0xEF},
		bitrate: canbus.Kbps500,
		tps:     64_000_000,
	}
}

func TestRun(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cases := []struct {
		name   string
		modify func(*options)
		want   sim.Outcome
	}{
		// The victim identifier differs, so the attack aborts and only the
		// other receivers decide.
		{"mismatch acknowledged", func(o *options) { o.flip = 0x40; o.autoAck = true }, sim.Delivered},
		{"mismatch alone", func(o *options) { o.flip = 0x40 }, sim.AckError},
	}
	for _, tc := range cases {
		o := testOptions()
		tc.modify(&o)
		res, err := run(context.Background(), o, logger)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if res.Outcome != tc.want {
			t.Fatalf("%s: %v, want %v", tc.name, res, tc.want)
		}
	}
}

func TestRun_RejectsBadInput(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := testOptions()
	o.bitrate = canbus.Bitrate(7)
	if _, err := run(context.Background(), o, logger); err == nil {
		t.Fatalf("bad bitrate accepted")
	}
	o = testOptions()
	o.data = make([]byte, 9)
	if _, err := run(context.Background(), o, logger); err == nil {
		t.Fatalf("9-byte payload accepted")
	}
	o = testOptions()
	o.flip = 0x800
	if _, err := run(context.Background(), o, logger); err == nil {
		t.Fatalf("out-of-range identifier accepted")
	}
}

func TestRun_LogMaskSelectsLoopbackArrivals(t *testing.T) {
	cases := []struct {
		mask   uint32
		logged bool
	}{
		{0, true},
		{0x7FF, false}, // the victim identifier differs from -id in bit 6
		{0x7BF, true},
	}
	for _, tc := range cases {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))
		o := testOptions()
		o.flip = 0x40
		o.autoAck = true
		o.logMask = tc.mask
		res, err := run(context.Background(), o, logger)
		if err != nil {
			t.Fatalf("mask %#x: %v", tc.mask, err)
		}
		if res.Outcome != sim.Delivered {
			t.Fatalf("mask %#x: %v", tc.mask, res)
		}
		if got := strings.Contains(buf.String(), `msg="canbus receive"`); got != tc.logged {
			t.Fatalf("mask %#x: receive logged = %v, want %v\n%s", tc.mask, got, tc.logged, buf.String())
		}
		if !strings.Contains(buf.String(), `msg="canbus send"`) {
			t.Fatalf("mask %#x: delivery not logged\n%s", tc.mask, buf.String())
		}
	}
}
