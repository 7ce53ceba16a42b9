// Package canbits lays out a classical CAN frame as the sequence of bits a
// transmitter puts on the wire, with CRC-15 and bit stuffing applied.
package canbits

import (
	"fmt"

	"github.com/notnil/evilcan/canbus"
)

// Field identifies which part of the frame a bit belongs to.
type Field uint8

const (
	FieldSOF Field = iota
	FieldID        // base identifier, 11 bits
	FieldSRR       // substitute remote request, extended frames
	FieldIDE       // identifier extension flag
	FieldIDExt     // identifier extension, 18 bits
	FieldRTR
	FieldReserved
	FieldDLC
	FieldData
	FieldCRC
	FieldCRCDelim
	FieldACKSlot
	FieldACKDelim
	FieldEOF
)

var fieldNames = [...]string{
	FieldSOF:      "SOF",
	FieldID:       "ID",
	FieldSRR:      "SRR",
	FieldIDE:      "IDE",
	FieldIDExt:    "IDExt",
	FieldRTR:      "RTR",
	FieldReserved: "Reserved",
	FieldDLC:      "DLC",
	FieldData:     "Data",
	FieldCRC:      "CRC",
	FieldCRCDelim: "CRCDelim",
	FieldACKSlot:  "ACKSlot",
	FieldACKDelim: "ACKDelim",
	FieldEOF:      "EOF",
}

func (f Field) String() string {
	if int(f) < len(fieldNames) {
		return fieldNames[f]
	}
	return fmt.Sprintf("Field(%d)", uint8(f))
}

// Bus levels.
const (
	Dominant  = false
	Recessive = true
)

// Bit is one bit period on the wire.
type Bit struct {
	Level bool  // true is recessive
	Field Field // for stuff bits, the field the stuff bit was inserted into
	Stuff bool  // inserted by the stuffing rule

	// Arbitration marks bits where a recessive transmitter losing to a
	// dominant level means lost arbitration rather than a bit error.
	Arbitration bool
}

// stuffRun is the number of identical bits after which a complement is
// inserted.
const stuffRun = 5

// crcPoly is the CAN CRC-15 generator x^15+x^14+x^10+x^8+x^7+x^4+x^3+1.
const crcPoly = 0x4599

// CRC15 computes the CAN CRC over unstuffed levels (true = 1).
func CRC15(bits []bool) uint16 {
	var crc uint16
	for _, b := range bits {
		next := b != (crc>>14&1 == 1)
		crc = crc << 1 & 0x7FFF
		if next {
			crc ^= crcPoly
		}
	}
	return crc
}

// Encode returns the bits of f from SOF through the end of EOF as a
// transmitter drives them. The ACK slot is recessive; receivers overwrite it.
func Encode(f canbus.Frame) ([]Bit, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	var raw []Bit
	put := func(v uint32, n int, field Field, arb bool) {
		for i := n - 1; i >= 0; i-- {
			raw = append(raw, Bit{Level: v>>uint(i)&1 == 1, Field: field, Arbitration: arb})
		}
	}

	put(0, 1, FieldSOF, false)
	if f.Extended {
		put(f.ID>>18, 11, FieldID, true)
		put(1, 1, FieldSRR, true)
		put(1, 1, FieldIDE, true)
		put(f.ID&0x3FFFF, 18, FieldIDExt, true)
		put(b2u(f.RTR), 1, FieldRTR, true)
		put(0, 2, FieldReserved, false)
	} else {
		put(f.ID, 11, FieldID, true)
		put(b2u(f.RTR), 1, FieldRTR, true)
		put(0, 1, FieldIDE, false)
		put(0, 1, FieldReserved, false)
	}
	put(uint32(f.Len), 4, FieldDLC, false)
	for _, b := range f.Payload() {
		put(uint32(b), 8, FieldData, false)
	}

	crcInput := make([]bool, len(raw))
	for i, b := range raw {
		crcInput[i] = b.Level
	}
	put(uint32(CRC15(crcInput)), 15, FieldCRC, false)

	out := Stuff(raw)
	tail := []struct {
		field Field
		n     int
	}{
		{FieldCRCDelim, 1},
		{FieldACKSlot, 1},
		{FieldACKDelim, 1},
		{FieldEOF, 7},
	}
	for _, t := range tail {
		for i := 0; i < t.n; i++ {
			out = append(out, Bit{Level: Recessive, Field: t.field})
		}
	}
	return out, nil
}

// Stuff inserts a complement bit after every run of five identical levels.
// Stuff bits count toward the following run.
func Stuff(bits []Bit) []Bit {
	out := make([]Bit, 0, len(bits)+len(bits)/4)
	run, level := 0, Recessive
	for _, b := range bits {
		out = append(out, b)
		if b.Level == level {
			run++
		} else {
			level, run = b.Level, 1
		}
		if run == stuffRun {
			level, run = !level, 1
			out = append(out, Bit{Level: level, Field: b.Field, Stuff: true, Arbitration: b.Arbitration})
		}
	}
	return out
}

// Destuff drops stuff bits.
func Destuff(bits []Bit) []Bit {
	out := make([]Bit, 0, len(bits))
	for _, b := range bits {
		if !b.Stuff {
			out = append(out, b)
		}
	}
	return out
}

// Levels returns the bus level of every bit.
func Levels(bits []Bit) []bool {
	out := make([]bool, len(bits))
	for i, b := range bits {
		out[i] = b.Level
	}
	return out
}

// WireIndex returns the position on the wire of the n-th non-stuff bit, or -1.
func WireIndex(bits []Bit, n int) int {
	for i, b := range bits {
		if b.Stuff {
			continue
		}
		if n == 0 {
			return i
		}
		n--
	}
	return -1
}

// FieldStart returns the wire position of the first non-stuff bit of field,
// or -1.
func FieldStart(bits []Bit, field Field) int {
	for i, b := range bits {
		if b.Field == field && !b.Stuff {
			return i
		}
	}
	return -1
}

func b2u(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
