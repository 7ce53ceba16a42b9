package rpi

import (
	"fmt"

	"github.com/notnil/evilcan"
)

// Pins assigns BCM GPIO numbers to the bus lines. All three must be in the
// first bank, which covers every pin on the 40-pin header.
type Pins struct {
	TX    int
	RX    int
	Force int
}

// DefaultPins is the wiring of the reference board.
var DefaultPins = Pins{TX: 23, RX: 24, Force: 25}

func (p Pins) validate() error {
	seen := map[int]bool{}
	for _, pin := range []int{p.TX, p.RX, p.Force} {
		if pin < 0 || pin > 31 {
			return fmt.Errorf("%w: %d is outside the first bank", ErrBadPin, pin)
		}
		if seen[pin] {
			return fmt.Errorf("%w: %d used twice", ErrBadPin, pin)
		}
		seen[pin] = true
	}
	return nil
}

// Transceiver implements evilcan.Transceiver on three GPIO lines.
type Transceiver struct {
	gpio  *GPIO
	tx    uint32
	rx    uint32
	force uint32
}

var (
	_ evilcan.Transceiver  = (*Transceiver)(nil)
	_ evilcan.StateApplier = (*Transceiver)(nil)
)

// NewTransceiver configures the pins and releases both output lines.
func NewTransceiver(g *GPIO, p Pins) (*Transceiver, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	t := &Transceiver{gpio: g}
	_, t.tx = pinBit(p.TX)
	_, t.rx = pinBit(p.RX)
	_, t.force = pinBit(p.Force)

	// Release before switching to output so the bus never glitches dominant.
	t.Apply(evilcan.IdleState)
	if err := g.SetInput(p.RX); err != nil {
		return nil, err
	}
	if err := g.SetOutput(p.TX); err != nil {
		return nil, err
	}
	if err := g.SetOutput(p.Force); err != nil {
		return nil, err
	}
	return t, nil
}

// SetTx drives the transmit line; true releases it.
func (t *Transceiver) SetTx(v bool) {
	if v {
		t.gpio.Set(0, t.tx)
	} else {
		t.gpio.Clear(0, t.tx)
	}
}

// SetForce drives the force line; true pulls the bus dominant.
func (t *Transceiver) SetForce(v bool) {
	if v {
		t.gpio.Set(0, t.force)
	} else {
		t.gpio.Clear(0, t.force)
	}
}

// GetRx reads the receive line; true is recessive.
func (t *Transceiver) GetRx() bool {
	return t.gpio.Level(0)&t.rx != 0
}

// Apply drives both output lines with one set and one clear write.
func (t *Transceiver) Apply(s evilcan.TransceiverState) {
	var set, clr uint32
	if s.Tx {
		set |= t.tx
	} else {
		clr |= t.tx
	}
	if s.Force {
		set |= t.force
	} else {
		clr |= t.force
	}
	if set != 0 {
		t.gpio.Set(0, set)
	}
	if clr != 0 {
		t.gpio.Clear(0, clr)
	}
}
