package evilcan

// Clock is a free-running tick counter.
type Clock interface {
	// TicksPerSecond is the counter frequency. It must not change.
	TicksPerSecond() uint32
	// Ticks reads the counter.
	Ticks() uint32
	// AddTicks adds d to t modulo the counter width.
	AddTicks(t, d uint32) uint32
}

// DeadlineComparer is implemented by clocks narrower than 32 bits, for which
// the default serial-number comparison would be wrong after a wrap.
type DeadlineComparer interface {
	// Reached reports whether now is at or past deadline.
	Reached(now, deadline uint32) bool
}

// reached32 compares two 32-bit counter values that are less than half the
// counter range apart.
func reached32(now, deadline uint32) bool {
	return int32(now-deadline) >= 0
}

func deadlineFunc(c Clock) func(now, deadline uint32) bool {
	if dc, ok := c.(DeadlineComparer); ok {
		return dc.Reached
	}
	return reached32
}

// subTicks returns t - d modulo the counter width, using only AddTicks.
func subTicks(c Clock, t, d uint32) uint32 {
	return c.AddTicks(t, -d)
}
