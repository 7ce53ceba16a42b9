package rpi

import (
	"golang.org/x/sys/unix"

	"github.com/notnil/evilcan"
)

// Clock reads CLOCK_MONOTONIC_RAW in nanoseconds, truncated to 32 bits. It
// wraps every 4.29 s, well above any frame.
type Clock struct{}

var _ evilcan.Clock = Clock{}

// TicksPerSecond implements evilcan.Clock.
func (Clock) TicksPerSecond() uint32 { return 1_000_000_000 }

// Ticks implements evilcan.Clock.
func (Clock) Ticks() uint32 {
	var ts unix.Timespec
	// CLOCK_MONOTONIC_RAW cannot fail on a supported kernel.
	_ = unix.ClockGettime(unix.CLOCK_MONOTONIC_RAW, &ts)
	return uint32(ts.Nano())
}

// AddTicks implements evilcan.Clock.
func (Clock) AddTicks(t, d uint32) uint32 { return t + d }
