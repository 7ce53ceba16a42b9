package evilcan

// MaxQueueBits is the capacity of a BitQueue.
const MaxQueueBits = 32

// BitQueue is a read-only queue of up to 32 bits, popped most significant
// bit first. It is a value type so an Instruction owns its own copy.
type BitQueue struct {
	value uint32
	n     uint8
}

// NewBitQueue returns a queue holding the low n bits of value. n is capped at
// MaxQueueBits; negative n yields an empty queue.
func NewBitQueue(value uint32, n int) BitQueue {
	if n <= 0 {
		return BitQueue{}
	}
	if n > MaxQueueBits {
		n = MaxQueueBits
	}
	if n < MaxQueueBits {
		value &= 1<<uint(n) - 1
	}
	return BitQueue{value: value, n: uint8(n)}
}

// Pop removes and returns the most significant remaining bit. Callers must
// check Len first; popping an empty queue returns false and leaves it empty.
func (q *BitQueue) Pop() bool {
	if q.n == 0 {
		return false
	}
	q.n--
	return q.value>>q.n&1 == 1
}

// Len reports the number of bits left.
func (q BitQueue) Len() int { return int(q.n) }

// BitAccumulator collects sampled bits into a byte, first bit most
// significant once eight bits have been pushed.
type BitAccumulator struct {
	value uint8
}

// Push shifts the accumulator left and ORs in bit.
func (a *BitAccumulator) Push(bit bool) {
	a.value <<= 1
	if bit {
		a.value |= 1
	}
}

// Value returns the accumulated byte.
func (a BitAccumulator) Value() uint8 { return a.value }

// Clean resets the accumulator to zero.
func (a *BitAccumulator) Clean() { a.value = 0 }
