package sim

import (
	"errors"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/notnil/evilcan"
	"github.com/notnil/evilcan/canbits"
	"github.com/notnil/evilcan/canbus"
)

// DefaultIdleBits is the bus idle time before a transmitted frame starts.
const DefaultIdleBits = 11

// ErrClockTooSlow is returned when the clock cannot resolve the bit period.
var ErrClockTooSlow = errors.New("sim: clock too slow for bitrate")

// LineEvent is a change of the attacker's output lines.
type LineEvent struct {
	Tick  uint32
	Force bool
	Tx    bool
}

// Wire is a simulated bus segment carrying one victim frame. It implements
// evilcan.Transceiver for the attacker.
//
// The victim transmits its encoded frame regardless of what the attacker
// does; error frames are not simulated. Settle works out afterwards how the
// attack was perceived.
type Wire struct {
	clock       *Clock
	rate        canbus.Bitrate
	ticksPerBit uint32

	// IdleBits is the idle time Transmit leaves before the frame.
	IdleBits int
	// AutoAck makes the other receivers acknowledge the frame.
	AutoAck bool

	frame   canbus.Frame
	bits    []canbits.Bit
	sof     uint32
	pending bool

	force, tx bool
	events    []LineEvent

	bus canbus.Bus
}

var _ evilcan.Transceiver = (*Wire)(nil)

// NewWire returns an idle wire timed by clock.
func NewWire(clock *Clock, rate canbus.Bitrate) (*Wire, error) {
	if !rate.Valid() {
		return nil, fmt.Errorf("sim: unsupported bitrate %d", uint16(rate))
	}
	tpb := uint32(uint64(rate.PeriodNs()) * uint64(clock.TicksPerSecond()) / 1_000_000_000)
	if tpb < evilcan.QuantaPerBit {
		return nil, fmt.Errorf("%w: %d ticks per bit", ErrClockTooSlow, tpb)
	}
	return &Wire{
		clock:       clock,
		rate:        rate,
		ticksPerBit: tpb,
		IdleBits:    DefaultIdleBits,
		AutoAck:     true,
		tx:          true,
	}, nil
}

// Attach sets the bus that receives frames Settle finds delivered.
func (w *Wire) Attach(bus canbus.Bus) { w.bus = bus }

// Transmit schedules f to start IdleBits bit periods from now. It starts a
// new trial: recorded line events are dropped.
func (w *Wire) Transmit(f canbus.Frame) error {
	start := w.clock.AddTicks(w.clock.Now(), uint32(w.IdleBits)*w.ticksPerBit)
	return w.TransmitAt(f, start)
}

// TransmitAt schedules f to start at tick.
func (w *Wire) TransmitAt(f canbus.Frame, tick uint32) error {
	bits, err := canbits.Encode(f)
	if err != nil {
		return err
	}
	w.frame = f
	w.bits = bits
	w.sof = tick
	w.pending = true
	w.events = w.events[:0]
	return nil
}

// Frame returns the victim frame of the current trial.
func (w *Wire) Frame() canbus.Frame { return w.frame }

// Bits returns the victim frame as driven on the wire.
func (w *Wire) Bits() []canbits.Bit { return w.bits }

// SOF returns the tick at which the start-of-frame bit begins.
func (w *Wire) SOF() uint32 { return w.sof }

// TicksPerBit returns the bit period in clock ticks.
func (w *Wire) TicksPerBit() uint32 { return w.ticksPerBit }

// BitStart returns the tick at which wire bit i begins.
func (w *Wire) BitStart(i int) uint32 {
	return w.clock.AddTicks(w.sof, uint32(i)*w.ticksPerBit)
}

// Events returns the attacker line changes of the current trial.
func (w *Wire) Events() []LineEvent { return slices.Clone(w.events) }

// bitAt returns the index of the victim bit on the wire at tick t, or -1
// when the victim is not transmitting.
func (w *Wire) bitAt(t uint32) int {
	if !w.pending || !w.clock.Reached(t, w.sof) {
		return -1
	}
	i := int(((t - w.sof) & w.clock.mask) / w.ticksPerBit)
	if i >= len(w.bits) {
		return -1
	}
	return i
}

// victimLevel is what the victim and the acknowledging receivers drive
// during wire bit i.
func (w *Wire) victimLevel(i int) bool {
	if i < 0 {
		return canbits.Recessive
	}
	b := w.bits[i]
	if b.Field == canbits.FieldACKSlot && w.AutoAck {
		return canbits.Dominant
	}
	return b.Level
}

// GetRx implements evilcan.Transceiver: the wired-AND of every driver.
func (w *Wire) GetRx() bool {
	return w.victimLevel(w.bitAt(w.clock.Now())) && !w.force && w.tx
}

// SetTx implements evilcan.Transceiver.
func (w *Wire) SetTx(v bool) {
	if v != w.tx {
		w.tx = v
		w.record()
	}
}

// SetForce implements evilcan.Transceiver.
func (w *Wire) SetForce(v bool) {
	if v != w.force {
		w.force = v
		w.record()
	}
}

func (w *Wire) record() {
	w.events = append(w.events, LineEvent{Tick: w.clock.Now(), Force: w.force, Tx: w.tx})
}

// WaitForSOF implements evilcan.SOFWaiter by jumping the clock to the start
// of the pending frame. It returns at once when nothing is pending.
func (w *Wire) WaitForSOF() {
	if w.pending && !w.clock.Reached(w.clock.Now(), w.sof) {
		w.clock.Set(w.sof)
	}
}
