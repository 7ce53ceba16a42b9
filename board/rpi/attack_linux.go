package rpi

import (
	"fmt"
	"runtime"
	"runtime/debug"

	"golang.org/x/sys/unix"

	"github.com/notnil/evilcan"
)

// RealtimePriority is the SCHED_FIFO priority used while an attack runs.
const RealtimePriority = 99

// RunAttack runs core.Attack on the calling goroutine pinned to cpu with
// real-time priority and the garbage collector disabled. Scheduling and
// affinity are restored afterwards. Isolating cpu from the kernel scheduler
// (isolcpus) is left to the system.
func RunAttack(core *evilcan.Core, cpu int) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var oldSet, set unix.CPUSet
	if err := unix.SchedGetaffinity(0, &oldSet); err != nil {
		return fmt.Errorf("rpi: get affinity: %w", err)
	}
	set.Set(cpu)
	if err := unix.SchedSetaffinity(0, &set); err != nil {
		return fmt.Errorf("rpi: pin to cpu %d: %w", cpu, err)
	}
	defer unix.SchedSetaffinity(0, &oldSet)

	oldAttr, err := unix.SchedGetAttr(0, 0)
	if err != nil {
		return fmt.Errorf("rpi: get scheduling attributes: %w", err)
	}
	attr := unix.SchedAttr{
		Size:     unix.SizeofSchedAttr,
		Policy:   unix.SCHED_FIFO,
		Priority: RealtimePriority,
	}
	if err := unix.SchedSetAttr(0, &attr, 0); err != nil {
		return fmt.Errorf("rpi: set SCHED_FIFO: %w", err)
	}
	defer unix.SchedSetAttr(0, oldAttr, 0)

	defer debug.SetGCPercent(debug.SetGCPercent(-1))

	core.Attack()
	return nil
}
