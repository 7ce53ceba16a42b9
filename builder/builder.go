// Package builder assembles attack programs from frame-level steps.
//
// Every program starts with a one-bit wait for the start-of-frame bit, which
// the core has already seen when the program begins. Steps are appended in
// wire order:
//
//	prog, err := builder.New().
//		MatchID(0x123, false).
//		SkipFlags().
//		SkipData().
//		SkipCRC().
//		ForceAck().
//		Build()
//
// Bit counts refer to logical bits; stuff bits are skipped by the machine.
package builder

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"golang.org/x/exp/slices"

	"github.com/notnil/evilcan"
	"github.com/notnil/evilcan/canbus"
)

// MaxRawBits is the widest pattern ForceRaw and SendRaw accept.
const MaxRawBits = 256

// Bit lengths of the frame fields a builder steps over.
const (
	stdIDBits = 11
	// base identifier, SRR, IDE, extension
	extIDBits = 11 + 1 + 1 + 18
	// RTR then IDE and r0, or r1 and r0
	flagBits  = 3
	dlcBits   = 4
	crcBits   = 15
	errorFlag = 6
)

// ErrBadLength is recorded when a step is given a bit count it cannot encode.
var ErrBadLength = errors.New("builder: bad bit length")

// Builder accumulates instructions. The first error stops further steps and
// is returned by Build.
type Builder struct {
	program []evilcan.Instruction
	err     error
}

// New returns a builder holding the start-of-frame wait.
func New() *Builder {
	b := &Builder{}
	b.Reset()
	return b
}

// Reset drops every step except the start-of-frame wait.
func (b *Builder) Reset() *Builder {
	b.program = append(b.program[:0], evilcan.Wait(1))
	b.err = nil
	return b
}

// Len reports the number of instructions built so far.
func (b *Builder) Len() int { return len(b.program) }

// Err returns the first error recorded by a step.
func (b *Builder) Err() error { return b.err }

// Build returns a copy of the program.
func (b *Builder) Build() ([]evilcan.Instruction, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.program) > evilcan.MaxAttackSize {
		return nil, fmt.Errorf("%w: %d instructions, capacity %d",
			evilcan.ErrAttackTooLong, len(b.program), evilcan.MaxAttackSize)
	}
	return slices.Clone(b.program), nil
}

func (b *Builder) push(in ...evilcan.Instruction) *Builder {
	if b.err == nil {
		b.program = append(b.program, in...)
	}
	return b
}

func (b *Builder) fail(err error) *Builder {
	if b.err == nil {
		b.err = err
	}
	return b
}

// MatchID expects the arbitration identifier. Extended identifiers include
// the SRR and IDE bits between the base and the extension.
func (b *Builder) MatchID(id uint32, extended bool) *Builder {
	if extended {
		if id > canbus.MaxExtID {
			return b.fail(fmt.Errorf("%w: %#x", canbus.ErrInvalidID, id))
		}
		return b.push(evilcan.Match(extendedID(id), extIDBits))
	}
	if id > canbus.MaxStdID {
		return b.fail(fmt.Errorf("%w: %#x", canbus.ErrInvalidID, id))
	}
	return b.push(evilcan.Match(id, stdIDBits))
}

// SkipFlags waits over the three bits between the identifier and the DLC.
func (b *Builder) SkipFlags() *Builder {
	return b.push(evilcan.Wait(flagBits))
}

// MatchHeader expects the identifier, flags and DLC of f.
func (b *Builder) MatchHeader(f canbus.Frame) *Builder {
	if err := f.Validate(); err != nil {
		return b.fail(err)
	}
	v, n := header(f)
	return b.matchWide(v, n)
}

// MatchData expects data bytes in order. An empty slice adds nothing.
func (b *Builder) MatchData(data []byte) *Builder {
	if len(data) > 8 {
		return b.fail(fmt.Errorf("%w: %d bytes", canbus.ErrInvalidLen, len(data)))
	}
	v := new(uint256.Int)
	for _, d := range data {
		v.Lsh(v, 8)
		v.Or(v, uint256.NewInt(uint64(d)))
	}
	return b.matchWide(v, 8*len(data))
}

// MatchFrame expects the header and payload of f.
func (b *Builder) MatchFrame(f canbus.Frame) *Builder {
	return b.MatchHeader(f).MatchData(f.Payload())
}

// SkipData reads the DLC and waits over the payload it announces. It follows
// SkipFlags; a DLC above 8 or a remote frame with a non-zero DLC throws the
// timing off.
func (b *Builder) SkipData() *Builder {
	return b.push(evilcan.Read(dlcBits), evilcan.WaitBuffered())
}

// SkipCRC waits over the CRC sequence and its delimiter.
func (b *Builder) SkipCRC() *Builder {
	return b.push(evilcan.Wait(crcBits + 1))
}

// Wait lets n bits go by. Zero adds nothing.
func (b *Builder) Wait(n uint32) *Builder {
	if n == 0 {
		return b
	}
	return b.push(evilcan.Wait(n))
}

// Force pulls the bus dominant for every 1 in the low n bits of v.
func (b *Builder) Force(v uint32, n int) *Builder {
	if n < 1 || n > evilcan.MaxQueueBits {
		return b.fail(fmt.Errorf("%w: force %d", ErrBadLength, n))
	}
	return b.push(evilcan.Force(v, n))
}

// Send transmits the low n bits of v; a 1 is dominant.
func (b *Builder) Send(v uint32, n int) *Builder {
	if n < 1 || n > evilcan.MaxQueueBits {
		return b.fail(fmt.Errorf("%w: send %d", ErrBadLength, n))
	}
	return b.push(evilcan.Send(v, n))
}

// ForceRaw forces the low n bits of v, split into 32-bit instructions.
func (b *Builder) ForceRaw(v *uint256.Int, n int) *Builder {
	return b.raw(evilcan.Force, v, n)
}

// SendRaw transmits the low n bits of v, split into 32-bit instructions.
func (b *Builder) SendRaw(v *uint256.Int, n int) *Builder {
	return b.raw(evilcan.Send, v, n)
}

// ForceAck pulls the ACK slot dominant. It follows SkipCRC.
func (b *Builder) ForceAck() *Builder {
	return b.push(evilcan.Force(1, 1))
}

// SendError forces count active error flags back to back.
func (b *Builder) SendError(count int) *Builder {
	for i := 0; i < count; i++ {
		b.push(evilcan.Force(1<<errorFlag-1, errorFlag))
	}
	return b
}

func (b *Builder) raw(op func(uint32, int) evilcan.Instruction, v *uint256.Int, n int) *Builder {
	if n < 1 || n > MaxRawBits {
		return b.fail(fmt.Errorf("%w: raw %d", ErrBadLength, n))
	}
	for _, c := range chunks(v, n) {
		b.push(op(c.value, c.n))
	}
	return b
}

func (b *Builder) matchWide(v *uint256.Int, n int) *Builder {
	for _, c := range chunks(v, n) {
		b.push(evilcan.Match(c.value, c.n))
	}
	return b
}

type chunk struct {
	value uint32
	n     int
}

// chunks splits the low n bits of v into pieces of at most 32 bits, most
// significant first.
func chunks(v *uint256.Int, n int) []chunk {
	var out []chunk
	mask := uint256.NewInt(uint64(^uint32(0)))
	for n > 0 {
		take := evilcan.MaxQueueBits
		if n < take {
			take = n
		}
		n -= take
		part := new(uint256.Int).Rsh(v, uint(n))
		part.And(part, mask)
		out = append(out, chunk{value: uint32(part.Uint64()), n: take})
	}
	return out
}

// extendedID lays out base identifier, SRR, IDE and extension.
func extendedID(id uint32) uint32 {
	return (id>>18)<<20 | 1<<19 | 1<<18 | id&0x3FFFF
}

// header returns the arbitration and control fields of f as sent on the
// wire, without stuff bits.
func header(f canbus.Frame) (*uint256.Int, int) {
	v := new(uint256.Int)
	n := 0
	put := func(x uint32, bits int) {
		v.Lsh(v, uint(bits))
		v.Or(v, uint256.NewInt(uint64(x)))
		n += bits
	}
	if f.Extended {
		put(extendedID(f.ID), extIDBits)
		put(b2u(f.RTR), 1)
		put(0, flagBits-1)
	} else {
		put(f.ID, stdIDBits)
		put(b2u(f.RTR), 1)
		put(0, flagBits-1)
	}
	put(uint32(f.Len), dlcBits)
	return v, n
}

func b2u(v bool) uint32 {
	if v {
		return 1
	}
	return 0
}
