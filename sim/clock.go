// Package sim runs attack programs against a simulated CAN bus.
//
// A Clock stands in for the hardware counter and a Wire for the transceiver.
// The Wire plays one victim frame bit by bit, combines it with the lines the
// attacker drives and, once the attack is over, judges what the victim and
// the other nodes would have seen.
package sim

// Clock is a virtual free-running counter. Every read advances it by the
// step, so a busy-wait on it terminates. The counter can be narrowed to model
// hardware timers that wrap early.
//
// A Clock is not safe for concurrent use.
type Clock struct {
	now  uint32
	step uint32
	tps  uint32
	mask uint32
}

// NewClock returns a 32-bit clock at zero advancing one tick per read.
func NewClock(ticksPerSecond uint32) *Clock {
	return &Clock{step: 1, tps: ticksPerSecond, mask: ^uint32(0)}
}

// SetStep sets how far each read advances the counter.
func (c *Clock) SetStep(step uint32) { c.step = step }

// SetWidth narrows the counter to bits bits. Values outside 1..32 select 32.
func (c *Clock) SetWidth(bits int) {
	if bits <= 0 || bits >= 32 {
		c.mask = ^uint32(0)
	} else {
		c.mask = 1<<uint(bits) - 1
	}
	c.now &= c.mask
}

// Set moves the counter to t.
func (c *Clock) Set(t uint32) { c.now = t & c.mask }

// Now returns the last value read without advancing.
func (c *Clock) Now() uint32 { return c.now }

// Advance moves the counter forward by d ticks.
func (c *Clock) Advance(d uint32) { c.now = c.AddTicks(c.now, d) }

// TicksPerSecond implements evilcan.Clock.
func (c *Clock) TicksPerSecond() uint32 { return c.tps }

// Ticks implements evilcan.Clock.
func (c *Clock) Ticks() uint32 {
	c.now = c.AddTicks(c.now, c.step)
	return c.now
}

// AddTicks implements evilcan.Clock.
func (c *Clock) AddTicks(t, d uint32) uint32 { return (t + d) & c.mask }

// Reached implements evilcan.DeadlineComparer for the configured width.
func (c *Clock) Reached(now, deadline uint32) bool {
	return (now-deadline)&c.mask <= c.mask>>1
}
