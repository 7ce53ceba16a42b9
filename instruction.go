package evilcan

import "fmt"

// Op identifies the kind of an Instruction.
type Op uint8

const (
	// OpNone is the terminal padding instruction; it is the zero value.
	OpNone Op = iota
	// OpWait lets Count bits go by untouched.
	OpWait
	// OpForce drives the force line with each bit of Stream.
	OpForce
	// OpSend drives the transmit line with each bit of Stream; a 1 drives
	// the line low.
	OpSend
	// OpMatch compares each sampled bit with Stream and aborts the attack on
	// the first difference.
	OpMatch
	// OpRead samples Count bits into the accumulator.
	OpRead
	// OpWaitBuffered waits for (accumulator * 8) bits, consuming the value
	// collected by earlier Read instructions.
	OpWaitBuffered
)

var opNames = [...]string{
	OpNone:         "None",
	OpWait:         "Wait",
	OpForce:        "Force",
	OpSend:         "Send",
	OpMatch:        "Match",
	OpRead:         "Read",
	OpWaitBuffered: "WaitBuffered",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return fmt.Sprintf("Op(%d)", uint8(o))
}

// Instruction is one attack primitive. Only the fields relevant to Op are
// meaningful: Count for Wait and Read, Stream for Force, Send and Match.
// Instructions are plain values so a program can live in a fixed array.
type Instruction struct {
	Op     Op
	Count  uint32
	Stream BitQueue
}

// Wait returns an instruction that lets n bits go by.
func Wait(n uint32) Instruction { return Instruction{Op: OpWait, Count: n} }

// Force returns an instruction forcing the low n bits of value, MSB first.
func Force(value uint32, n int) Instruction {
	return Instruction{Op: OpForce, Stream: NewBitQueue(value, n)}
}

// Send returns an instruction transmitting the low n bits of value, MSB first.
func Send(value uint32, n int) Instruction {
	return Instruction{Op: OpSend, Stream: NewBitQueue(value, n)}
}

// Match returns an instruction expecting the low n bits of value on the bus.
func Match(value uint32, n int) Instruction {
	return Instruction{Op: OpMatch, Stream: NewBitQueue(value, n)}
}

// Read returns an instruction sampling n bits into the accumulator.
func Read(n uint32) Instruction { return Instruction{Op: OpRead, Count: n} }

// WaitBuffered returns an instruction waiting for the byte count captured by
// preceding Read instructions, expressed in bits.
func WaitBuffered() Instruction { return Instruction{Op: OpWaitBuffered} }

func (in Instruction) String() string {
	switch in.Op {
	case OpWait, OpRead:
		return fmt.Sprintf("%s{%d}", in.Op, in.Count)
	case OpForce, OpSend, OpMatch:
		n := in.Stream.Len()
		return fmt.Sprintf("%s{%#x/%d}", in.Op, in.Stream.value&lowMask(n), n)
	default:
		return in.Op.String()
	}
}

func lowMask(n int) uint32 {
	if n >= 32 {
		return ^uint32(0)
	}
	return 1<<uint(n) - 1
}
