package rpi

import (
	"errors"
	"testing"

	"github.com/notnil/evilcan"
)

func fakeGPIO() *GPIO { return &GPIO{regs: make([]uint32, blockSize/4)} }

func TestGPIO_FunctionSelect(t *testing.T) {
	g := fakeGPIO()
	g.regs[regFSEL0+1] = 0xFFFF_FFFF
	if err := g.SetOutput(17); err != nil {
		t.Fatalf("SetOutput: %v", err)
	}
	// Pin 17 is slot 7 of GPFSEL1.
	if got := g.regs[regFSEL0+1] >> 21 & 0b111; got != fselOutput {
		t.Fatalf("fsel = %03b, want 001", got)
	}
	if g.regs[regFSEL0+1]|0b111<<21 != 0xFFFF_FFFF {
		t.Fatalf("neighbouring pins changed: %#x", g.regs[regFSEL0+1])
	}
	if err := g.SetInput(17); err != nil {
		t.Fatalf("SetInput: %v", err)
	}
	if got := g.regs[regFSEL0+1] >> 21 & 0b111; got != fselInput {
		t.Fatalf("fsel = %03b, want 000", got)
	}
	if err := g.SetOutput(54); !errors.Is(err, ErrBadPin) {
		t.Fatalf("pin 54: got %v", err)
	}
}

func TestPins_Validate(t *testing.T) {
	cases := []struct {
		pins Pins
		ok   bool
	}{
		{DefaultPins, true},
		{Pins{TX: 1, RX: 2, Force: 1}, false},
		{Pins{TX: 1, RX: 40, Force: 3}, false},
		{Pins{TX: -1, RX: 2, Force: 3}, false},
	}
	for _, tc := range cases {
		if err := tc.pins.validate(); (err == nil) != tc.ok {
			t.Fatalf("%+v: err = %v", tc.pins, err)
		}
	}
}

func TestTransceiver_Apply(t *testing.T) {
	g := fakeGPIO()
	tr, err := NewTransceiver(g, DefaultPins)
	if err != nil {
		t.Fatalf("NewTransceiver: %v", err)
	}
	tx, force := uint32(1)<<DefaultPins.TX, uint32(1)<<DefaultPins.Force

	// Released: tx high, force low.
	if g.regs[regSET0] != tx || g.regs[regCLR0] != force {
		t.Fatalf("idle: set=%#x clr=%#x", g.regs[regSET0], g.regs[regCLR0])
	}

	tr.Apply(evilcan.TransceiverState{Force: true, Tx: false})
	if g.regs[regSET0] != force || g.regs[regCLR0] != tx {
		t.Fatalf("attack: set=%#x clr=%#x", g.regs[regSET0], g.regs[regCLR0])
	}

	tr.SetTx(true)
	if g.regs[regSET0] != tx {
		t.Fatalf("SetTx(true): set=%#x", g.regs[regSET0])
	}

	g.regs[regLEV0] = 1 << DefaultPins.RX
	if !tr.GetRx() {
		t.Fatalf("rx high should read recessive")
	}
	g.regs[regLEV0] = 0
	if tr.GetRx() {
		t.Fatalf("rx low should read dominant")
	}
}

func TestClock_Monotonic(t *testing.T) {
	var c Clock
	a := c.Ticks()
	b := c.Ticks()
	if int32(b-a) < 0 {
		t.Fatalf("clock went backwards: %d then %d", a, b)
	}
	if c.AddTicks(0xFFFF_FFFF, 2) != 1 {
		t.Fatalf("AddTicks does not wrap")
	}
}
