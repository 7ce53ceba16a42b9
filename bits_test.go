package evilcan

import "testing"

func TestBitQueue_PopsMSBFirst(t *testing.T) {
	cases := []struct {
		value uint32
		n     int
		want  []bool
	}{
		{0b101, 3, []bool{true, false, true}},
		{0x123, 11, []bool{false, false, true, false, false, true, false, false, false, true, true}},
		{0xFF, 4, []bool{true, true, true, true}}, // high bits outside the width are dropped
		{0x1, 1, []bool{true}},
		{0, 0, nil},
	}
	for _, tc := range cases {
		q := NewBitQueue(tc.value, tc.n)
		if q.Len() != len(tc.want) {
			t.Fatalf("NewBitQueue(%#x, %d).Len() = %d, want %d", tc.value, tc.n, q.Len(), len(tc.want))
		}
		for i, want := range tc.want {
			if got := q.Pop(); got != want {
				t.Fatalf("NewBitQueue(%#x, %d) bit %d = %v, want %v", tc.value, tc.n, i, got, want)
			}
		}
		if q.Len() != 0 {
			t.Fatalf("queue not exhausted: %d left", q.Len())
		}
	}
}

func TestBitQueue_AllWidths(t *testing.T) {
	const v = 0xA5C3_96E1
	for n := 1; n <= 32; n++ {
		q := NewBitQueue(v, n)
		var got uint64
		for q.Len() > 0 {
			got <<= 1
			if q.Pop() {
				got |= 1
			}
		}
		want := uint64(v) & (1<<uint(n) - 1)
		if got != want {
			t.Fatalf("width %d: reassembled %#x, want %#x", n, got, want)
		}
	}
}

func TestBitQueue_CapsAndEmpty(t *testing.T) {
	if q := NewBitQueue(1, 40); q.Len() != MaxQueueBits {
		t.Fatalf("Len = %d, want cap %d", q.Len(), MaxQueueBits)
	}
	if q := NewBitQueue(1, -3); q.Len() != 0 {
		t.Fatalf("negative width Len = %d", q.Len())
	}
	var q BitQueue
	if q.Pop() || q.Len() != 0 {
		t.Fatalf("empty queue pop should be a no-op")
	}
}

func TestBitAccumulator(t *testing.T) {
	var a BitAccumulator
	for _, b := range []bool{true, false, true, true, false, false, true, false} {
		a.Push(b)
	}
	if a.Value() != 0b1011_0010 {
		t.Fatalf("Value = %08b", a.Value())
	}
	a.Clean()
	if a.Value() != 0 {
		t.Fatalf("Clean left %08b", a.Value())
	}
	for _, b := range []bool{true, false, false, false} {
		a.Push(b)
	}
	if a.Value() != 8 {
		t.Fatalf("4-bit read = %d, want 8", a.Value())
	}
}

func TestInstructionString(t *testing.T) {
	cases := map[string]Instruction{
		"Wait{3}":        Wait(3),
		"Read{4}":        Read(4),
		"Force{0x1/1}":   Force(1, 1),
		"Match{0x123/11}": Match(0x123, 11),
		"WaitBuffered":   WaitBuffered(),
		"None":           {},
	}
	for want, in := range cases {
		if got := in.String(); got != want {
			t.Fatalf("String() = %q, want %q", got, want)
		}
	}
}
