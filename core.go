package evilcan

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/notnil/evilcan/canbus"
)

// ErrClockTooSlow is returned when the clock cannot resolve one scheduling
// quantum at the configured bitrate.
var ErrClockTooSlow = errors.New("evilcan: clock too slow for bitrate")

// ErrSOFOffsetTooLong is returned when the start-of-frame offset does not fit
// in half the 32-bit tick range.
var ErrSOFOffsetTooLong = errors.New("evilcan: start-of-frame offset too long")

// Core owns a clock and a transceiver and schedules a Machine against the
// bus in real time.
type Core struct {
	clock   Clock
	tr      Transceiver
	reached func(now, deadline uint32) bool
	machine *Machine
	logger  *slog.Logger

	ticksPerQuantum uint32
	sofOffsetTicks  uint32
}

// NewCore returns a Core for the given clock and transceiver. The Core takes
// exclusive use of both.
func NewCore(clock Clock, tr Transceiver, cfg Config) (*Core, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	c := &Core{
		clock:   clock,
		tr:      tr,
		reached: deadlineFunc(clock),
		machine: NewMachine(tr),
		logger:  cfg.logger(),
	}
	if err := c.SetBitrate(cfg.Bitrate); err != nil {
		return nil, err
	}
	offset := uint64(clock.TicksPerSecond()/1_000_000) * uint64(cfg.SOFOffset.Nanoseconds()) / 1_000
	if offset > math.MaxInt32 {
		return nil, fmt.Errorf("%w: %v at %d ticks/s", ErrSOFOffsetTooLong, cfg.SOFOffset, clock.TicksPerSecond())
	}
	c.sofOffsetTicks = uint32(offset)
	c.logger.Debug("evilcan core ready",
		"ticks_per_second", clock.TicksPerSecond(),
		"sof_offset_ticks", c.sofOffsetTicks,
	)
	return c, nil
}

// quantumTicks converts a bit period into clock ticks per quantum, rounding
// each step down the same way the firmware integer maths does.
func quantumTicks(periodNs, ticksPerSecond uint32) uint32 {
	return (periodNs / 1_000) * (ticksPerSecond / 1_000_000) / QuantaPerBit
}

// SetBitrate recomputes the quantum length. The armed program is kept.
func (c *Core) SetBitrate(rate canbus.Bitrate) error {
	if !rate.Valid() {
		return fmt.Errorf("evilcan: unsupported bitrate %d", uint16(rate))
	}
	tpq := quantumTicks(rate.PeriodNs(), c.clock.TicksPerSecond())
	if tpq == 0 {
		return fmt.Errorf("%w: %v at %d ticks/s", ErrClockTooSlow, rate, c.clock.TicksPerSecond())
	}
	c.ticksPerQuantum = tpq
	c.logger.Info("evilcan bitrate set", "bitrate", rate.String(), "ticks_per_quantum", tpq)
	return nil
}

// TicksPerQuantum returns the current quantum length in clock ticks.
func (c *Core) TicksPerQuantum() uint32 { return c.ticksPerQuantum }

// SOFOffsetTicks returns the start-of-frame latency compensation in ticks.
func (c *Core) SOFOffsetTicks() uint32 { return c.sofOffsetTicks }

// Arm loads an attack program. See Machine.Arm.
func (c *Core) Arm(program []Instruction) error {
	if err := c.machine.Arm(program); err != nil {
		c.logger.Warn("evilcan arm rejected", "instructions", len(program), "error", err)
		return err
	}
	c.logger.Debug("evilcan armed", "instructions", len(program))
	return nil
}

// Attack waits for the next start of frame and runs the armed program to
// completion. It busy-waits and must be called with preemption disabled; it
// cannot be cancelled.
func (c *Core) Attack() {
	WaitForSOF(c.tr)
	c.AttackOnSOF()
}

// AttackOnSOF runs the armed program assuming the start-of-frame edge has
// just been observed.
func (c *Core) AttackOnSOF() {
	deadline := subTicks(c.clock, c.clock.Ticks(), c.sofOffsetTicks)
	for {
		quanta, ok := c.machine.Step()
		if !ok {
			return
		}
		if quanta == 0 {
			continue
		}
		deadline = c.clock.AddTicks(deadline, quanta*c.ticksPerQuantum)
		for !c.reached(c.clock.Ticks(), deadline) {
		}
	}
}
