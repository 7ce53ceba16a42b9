package evilcan

import (
	"errors"
	"fmt"
)

// MaxAttackSize is the number of instruction slots in an armed program.
const MaxAttackSize = 32

// QuantaPerBit is the number of scheduling quanta in one nominal bit period.
const QuantaPerBit = 8

// Bit stuffing: after stuffRun identical bits the transmitter inserts one bit
// of the opposite level.
const stuffRun = 5

const (
	// applyQuanta separates the bit boundary from the sample point.
	applyQuanta = 1
	// sampleQuanta runs from the sample point to the next bit boundary.
	sampleQuanta = QuantaPerBit - applyQuanta
)

// ErrAttackTooLong is returned by Arm when a program has more instructions
// than MaxAttackSize.
var ErrAttackTooLong = errors.New("evilcan: attack too long")

// Machine executes an armed program one scheduling quantum at a time.
//
// Each bit period is split in two phases. At the bit boundary the machine
// drives the lines with a state computed during the previous bit; one quantum
// later it samples the bus, updates the stuffing tracker and evaluates the
// current instruction. Precomputing the next state keeps the work done at the
// boundary down to the line writes.
//
// A Machine is not safe for concurrent use.
type Machine struct {
	tr    Transceiver
	apply func(TransceiverState)

	program [MaxAttackSize]Instruction
	index   int
	acc     BitAccumulator

	// stuffing tracker: length and level of the current run of identical bits
	stuffCount uint8
	stuffLevel bool

	onStart    bool
	next       TransceiverState
	terminated bool
}

// NewMachine returns an unarmed machine driving tr. Step reports termination
// until Arm succeeds.
func NewMachine(tr Transceiver) *Machine {
	return &Machine{tr: tr, apply: applyFunc(tr), terminated: true}
}

// Arm loads program and resets all execution state. A program longer than
// MaxAttackSize is rejected and the previously armed program is kept.
func (m *Machine) Arm(program []Instruction) error {
	if len(program) > len(m.program) {
		return fmt.Errorf("%w: %d instructions, capacity %d", ErrAttackTooLong, len(program), len(m.program))
	}
	n := copy(m.program[:], program)
	for i := n; i < len(m.program); i++ {
		m.program[i] = Instruction{}
	}
	m.index = 0
	m.acc.Clean()
	m.stuffCount = 0
	m.stuffLevel = true
	m.onStart = true
	m.next = IdleState
	m.terminated = false
	m.preCalculate()
	return nil
}

// Terminated reports whether the current program has finished or aborted.
func (m *Machine) Terminated() bool { return m.terminated }

// Step advances one scheduling quantum. It returns the number of quanta to
// wait before the next call, or ok == false once the program is exhausted or
// a Match failed.
func (m *Machine) Step() (quanta uint32, ok bool) {
	if m.terminated {
		return 0, false
	}
	if m.onStart {
		if m.exhausted() {
			m.terminate()
			return 0, false
		}
		m.apply(m.next)
		m.onStart = false
		return applyQuanta, true
	}
	return m.evaluate()
}

// evaluate is the sample-point half of a bit period.
func (m *Machine) evaluate() (uint32, bool) {
	rx := m.tr.GetRx()
	if rx == m.stuffLevel {
		m.stuffCount++
	} else {
		m.stuffLevel = rx
		m.stuffCount = 1
	}

	in := &m.program[m.index]
	done := true
	switch in.Op {
	case OpWait:
		done = in.Count == 0
	case OpForce:
		if done = in.Stream.Len() == 0; done {
			m.next.Force = false
		}
	case OpSend:
		if done = in.Stream.Len() == 0; done {
			m.next.Tx = true
		}
	case OpMatch:
		if in.Stream.Len() > 0 && in.Stream.Pop() != rx {
			m.terminate()
			return 0, false
		}
		done = in.Stream.Len() == 0
	case OpRead:
		if in.Count > 0 {
			m.acc.Push(rx)
			in.Count--
		}
		done = in.Count == 0
	}
	if done {
		m.index++
	}
	m.preCalculate()

	m.onStart = true
	if m.stuffCount >= stuffRun {
		// Skip the stuff bit; it has the opposite level and starts the next run.
		m.stuffLevel = !m.stuffLevel
		m.stuffCount = 1
		return sampleQuanta + QuantaPerBit, true
	}
	return sampleQuanta, true
}

// preCalculate prepares the line state for the next bit from the current
// instruction.
func (m *Machine) preCalculate() {
	for m.index < len(m.program) {
		in := &m.program[m.index]
		switch in.Op {
		case OpWait:
			if in.Count > 0 {
				in.Count--
			}
		case OpForce:
			if in.Stream.Len() > 0 {
				m.next.Force = in.Stream.Pop()
			}
		case OpSend:
			if in.Stream.Len() > 0 {
				m.next.Tx = !in.Stream.Pop()
			}
		case OpWaitBuffered:
			bits := uint32(m.acc.Value()) * 8
			m.acc.Clean()
			if bits == 0 {
				m.index++
				continue
			}
			*in = Wait(bits - 1)
		}
		return
	}
}

func (m *Machine) exhausted() bool {
	return m.index >= len(m.program) || m.program[m.index].Op == OpNone
}

// terminate ends the program and releases both output lines.
func (m *Machine) terminate() {
	m.terminated = true
	m.next = IdleState
	m.apply(IdleState)
}
