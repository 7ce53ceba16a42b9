package sim

import (
	"context"
	"fmt"

	"golang.org/x/exp/slices"

	"github.com/notnil/evilcan"
	"github.com/notnil/evilcan/canbits"
	"github.com/notnil/evilcan/canbus"
)

// Outcome is how a trial ended from the victim's point of view.
type Outcome uint8

const (
	// NotTransmitted means no frame was scheduled.
	NotTransmitted Outcome = iota
	// Delivered means the frame completed and was acknowledged.
	Delivered
	// ArbitrationLost means a dominant level overwrote a recessive
	// arbitration bit; the victim backs off without an error.
	ArbitrationLost
	// BitError means the victim read back a level it did not send, or a
	// fixed-form bit after the ACK slot was dominant.
	BitError
	// AckError means nobody drove the ACK slot dominant.
	AckError
)

var outcomeNames = [...]string{
	NotTransmitted:  "not transmitted",
	Delivered:       "delivered",
	ArbitrationLost: "arbitration lost",
	BitError:        "bit error",
	AckError:        "ack error",
}

func (o Outcome) String() string {
	if int(o) < len(outcomeNames) {
		return outcomeNames[o]
	}
	return fmt.Sprintf("Outcome(%d)", uint8(o))
}

// Result describes a settled trial.
type Result struct {
	Outcome Outcome
	Frame   canbus.Frame
	// Bit is the wire index of the bit that decided the outcome, -1 for
	// Delivered and NotTransmitted.
	Bit   int
	Field canbits.Field
}

func (r Result) String() string {
	if r.Bit < 0 {
		return fmt.Sprintf("%v: %v", r.Frame, r.Outcome)
	}
	return fmt.Sprintf("%v: %v at wire bit %d (%v)", r.Frame, r.Outcome, r.Bit, r.Field)
}

// samplePoint is the victim's sample position within a bit, in eighths.
const samplePoint = 7

// lineAt returns the attacker lines in effect at tick t.
func (w *Wire) lineAt(t uint32) (force, tx bool) {
	force, tx = false, true
	for _, e := range w.events {
		if !w.clock.Reached(t, e.Tick) {
			break
		}
		force, tx = e.Force, e.Tx
	}
	return force, tx
}

// Settle evaluates the current trial at the victim's sample points. A
// delivered frame is sent to the attached bus, if any.
func (w *Wire) Settle(ctx context.Context) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if !w.pending {
		return Result{Outcome: NotTransmitted, Bit: -1}, nil
	}
	res := w.judge()
	if res.Outcome == Delivered && w.bus != nil {
		if err := w.bus.Send(ctx, w.frame); err != nil {
			return res, fmt.Errorf("sim: deliver %v: %w", w.frame, err)
		}
	}
	return res, nil
}

func (w *Wire) judge() Result {
	res := Result{Outcome: Delivered, Frame: w.frame, Bit: -1}
	ack := slices.IndexFunc(w.bits, func(b canbits.Bit) bool {
		return b.Field == canbits.FieldACKSlot
	})
	fail := func(o Outcome, i int) Result {
		res.Outcome, res.Bit, res.Field = o, i, w.bits[i].Field
		return res
	}
	for i, b := range w.bits {
		t := w.clock.AddTicks(w.BitStart(i), w.ticksPerBit*samplePoint/evilcan.QuantaPerBit)
		force, tx := w.lineAt(t)
		bus := w.victimLevel(i) && !force && tx
		switch {
		case i < ack:
			if bus == b.Level {
				continue
			}
			if b.Arbitration && !b.Stuff && b.Level == canbits.Recessive {
				return fail(ArbitrationLost, i)
			}
			return fail(BitError, i)
		case i == ack:
			if bus != canbits.Dominant {
				return fail(AckError, i)
			}
		default:
			if bus != canbits.Recessive {
				return fail(BitError, i)
			}
		}
	}
	return res
}
