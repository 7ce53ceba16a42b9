package sim

import (
	"context"
	"errors"
	"testing"

	"github.com/notnil/evilcan/canbits"
	"github.com/notnil/evilcan/canbus"
)

func TestClock_WidthAndWrap(t *testing.T) {
	c := NewClock(1_000_000)
	c.SetWidth(24)
	c.Set(0xFF_FFFE)
	if got := c.Ticks(); got != 0xFF_FFFF {
		t.Fatalf("Ticks = %#x", got)
	}
	if got := c.Ticks(); got != 0 {
		t.Fatalf("Ticks after wrap = %#x, want 0", got)
	}
	if got := c.AddTicks(0xFF_FFF0, 0x20); got != 0x10 {
		t.Fatalf("AddTicks = %#x, want 0x10", got)
	}
	if !c.Reached(0x10, 0xFF_FFF0) {
		t.Fatalf("deadline before the wrap not reached")
	}
	if c.Reached(0xFF_FFF0, 0x10) {
		t.Fatalf("deadline after the wrap reported reached")
	}
	c.SetStep(5)
	c.Advance(3)
	if got := c.Ticks(); got != 8 {
		t.Fatalf("Ticks = %d, want 8", got)
	}
	if c.Now() != 8 {
		t.Fatalf("Now = %d, want 8", c.Now())
	}
}

func TestNewWire_Rejects(t *testing.T) {
	if _, err := NewWire(NewClock(64_000_000), canbus.Bitrate(3)); err == nil {
		t.Fatalf("unsupported bitrate accepted")
	}
	if _, err := NewWire(NewClock(4_000_000), canbus.Kbps1000); !errors.Is(err, ErrClockTooSlow) {
		t.Fatalf("slow clock: got %v", err)
	}
}

func newTestWire(t *testing.T) (*Clock, *Wire) {
	t.Helper()
	clk := NewClock(64_000_000)
	w, err := NewWire(clk, canbus.Kbps500)
	if err != nil {
		t.Fatalf("NewWire: %v", err)
	}
	return clk, w
}

func TestWire_PlaysFrame(t *testing.T) {
	clk, w := newTestWire(t)
	if w.TicksPerBit() != 128 {
		t.Fatalf("TicksPerBit = %d, want 128", w.TicksPerBit())
	}
	if !w.GetRx() {
		t.Fatalf("idle wire should be recessive")
	}
	if err := w.Transmit(canbus.MustFrame(0x0F0, []byte{0x12, 0x34})); err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if w.SOF() != DefaultIdleBits*128 {
		t.Fatalf("SOF = %d", w.SOF())
	}
	for i, b := range w.Bits() {
		clk.Set(w.BitStart(i) + 64)
		want := b.Level
		if b.Field == canbits.FieldACKSlot {
			want = canbits.Dominant
		}
		if got := w.GetRx(); got != want {
			t.Fatalf("wire bit %d (%v) = %v, want %v", i, b.Field, got, want)
		}
	}
	clk.Set(w.BitStart(len(w.Bits())))
	if !w.GetRx() {
		t.Fatalf("bus should be idle after EOF")
	}
}

func TestWire_AttackerLinesAreWiredAND(t *testing.T) {
	clk, w := newTestWire(t)
	clk.Set(500)
	w.SetForce(true)
	if w.GetRx() {
		t.Fatalf("force should pull the bus dominant")
	}
	w.SetForce(true)
	w.SetForce(false)
	w.SetTx(false)
	if w.GetRx() {
		t.Fatalf("tx low should pull the bus dominant")
	}
	w.SetTx(true)

	ev := w.Events()
	want := []LineEvent{
		{Tick: 500, Force: true, Tx: true},
		{Tick: 500, Force: false, Tx: true},
		{Tick: 500, Force: false, Tx: false},
		{Tick: 500, Force: false, Tx: true},
	}
	if len(ev) != len(want) {
		t.Fatalf("events = %+v", ev)
	}
	for i := range want {
		if ev[i] != want[i] {
			t.Fatalf("event %d = %+v, want %+v", i, ev[i], want[i])
		}
	}
}

func TestWire_TransmitRejectsInvalidFrame(t *testing.T) {
	_, w := newTestWire(t)
	if err := w.Transmit(canbus.Frame{ID: 0x800}); !errors.Is(err, canbus.ErrInvalidID) {
		t.Fatalf("got %v", err)
	}
}

func TestWire_WaitForSOFJumpsToFrame(t *testing.T) {
	clk, w := newTestWire(t)
	w.WaitForSOF()
	if clk.Now() != 0 {
		t.Fatalf("WaitForSOF moved the clock with nothing pending")
	}
	if err := w.TransmitAt(canbus.MustFrame(0x1, nil), 9000); err != nil {
		t.Fatalf("transmit: %v", err)
	}
	w.WaitForSOF()
	if clk.Now() != 9000 {
		t.Fatalf("Now = %d, want 9000", clk.Now())
	}
	if w.GetRx() {
		t.Fatalf("SOF should be dominant")
	}
}

func TestWire_Settle(t *testing.T) {
	clk, w := newTestWire(t)
	res, err := w.Settle(context.Background())
	if err != nil || res.Outcome != NotTransmitted {
		t.Fatalf("empty trial: %v, %v", res, err)
	}

	f := canbus.MustFrame(0x321, []byte{0xAA})
	if err := w.Transmit(f); err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if res, _ := w.Settle(context.Background()); res.Outcome != Delivered || res.Bit != -1 {
		t.Fatalf("untouched frame: %v", res)
	}

	w.AutoAck = false
	res, _ = w.Settle(context.Background())
	if res.Outcome != AckError || res.Field != canbits.FieldACKSlot {
		t.Fatalf("unacknowledged frame: %v", res)
	}

	// Pull the first EOF bit dominant.
	w.AutoAck = true
	eof := canbits.FieldStart(w.Bits(), canbits.FieldEOF)
	clk.Set(w.BitStart(eof) + 1)
	w.SetForce(true)
	clk.Set(w.BitStart(eof+1) + 1)
	w.SetForce(false)
	res, _ = w.Settle(context.Background())
	if res.Outcome != BitError || res.Bit != eof || res.Field != canbits.FieldEOF {
		t.Fatalf("dominant EOF: %v", res)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := w.Settle(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled settle: %v", err)
	}
}

func TestOutcome_String(t *testing.T) {
	cases := map[Outcome]string{
		Delivered:       "delivered",
		ArbitrationLost: "arbitration lost",
		AckError:        "ack error",
		Outcome(42):     "Outcome(42)",
	}
	for o, want := range cases {
		if got := o.String(); got != want {
			t.Fatalf("%d: %q, want %q", uint8(o), got, want)
		}
	}
}
