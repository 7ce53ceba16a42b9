package canbus

import (
	"errors"
	"testing"
)

func TestFrame_Validate_Marshal_Unmarshal_String(t *testing.T) {
	cases := []struct {
		name    string
		frame   Frame
		wantStr string
	}{
		{
			name:    "standard frame with data",
			frame:   MustFrame(0x123, []byte{0xDE, 0xAD}),
			wantStr: "123 [2] DE AD",
		},
		{
			name:    "extended RTR, zero length",
			frame:   Frame{ID: 0x1ABCDEFF, Extended: true, RTR: true, Len: 0},
			wantStr: "1ABCDEFF [0] RTR",
		},
		{
			name:    "standard empty",
			frame:   MustFrame(0x7FF, nil),
			wantStr: "7FF [0]",
		},
	}

	for _, tc := range cases {
		if err := tc.frame.Validate(); err != nil {
			t.Fatalf("%s: Validate() error = %v", tc.name, err)
		}
		b, err := tc.frame.MarshalBinary()
		if err != nil {
			t.Fatalf("%s: MarshalBinary() error = %v", tc.name, err)
		}
		var g Frame
		if err := g.UnmarshalBinary(b); err != nil {
			t.Fatalf("%s: UnmarshalBinary() error = %v", tc.name, err)
		}
		if g != tc.frame {
			t.Fatalf("%s: roundtrip mismatch: got %+v want %+v", tc.name, g, tc.frame)
		}
		if got := g.String(); got != tc.wantStr {
			t.Fatalf("%s: String() = %q, want %q", tc.name, got, tc.wantStr)
		}
	}
}

func TestFrame_Invalid(t *testing.T) {
	if err := (Frame{ID: 0x800}).Validate(); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("standard 0x800: got %v", err)
	}
	if err := (Frame{ID: 0x20000000, Extended: true}).Validate(); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("extended 0x20000000: got %v", err)
	}
	if err := (Frame{ID: 1, Len: 9}).Validate(); !errors.Is(err, ErrInvalidLen) {
		t.Fatalf("len 9: got %v", err)
	}
	var f Frame
	if err := f.UnmarshalBinary(make([]byte, 8)); err == nil {
		t.Fatalf("short buffer should fail")
	}
	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("MustFrame should panic for len>8")
		}
	}()
	_ = MustFrame(0x123, make([]byte, 9))
}

func TestFrame_Payload(t *testing.T) {
	f := MustFrame(0x10, []byte{1, 2, 3})
	if got := f.Payload(); len(got) != 3 || got[2] != 3 {
		t.Fatalf("payload = %v", got)
	}
	f.RTR = true
	if got := f.Payload(); got != nil {
		t.Fatalf("RTR payload = %v, want nil", got)
	}
}

func TestBitrate(t *testing.T) {
	cases := []struct {
		rate   Bitrate
		period uint32
		str    string
	}{
		{Kbps1000, 1_000, "1000kbps"},
		{Kbps500, 2_000, "500kbps"},
		{Kbps250, 4_000, "250kbps"},
		{Kbps125, 8_000, "125kbps"},
		{Kbps31_25, 32_000, "31.25kbps"},
		{Kbps33_3, 30_030, "33.3kbps"},
		{Kbps5, 200_000, "5kbps"},
	}
	for _, tc := range cases {
		if got := tc.rate.PeriodNs(); got != tc.period {
			t.Fatalf("%v: PeriodNs = %d, want %d", tc.rate, got, tc.period)
		}
		if got := tc.rate.String(); got != tc.str {
			t.Fatalf("String = %q, want %q", got, tc.str)
		}
		if !tc.rate.Valid() {
			t.Fatalf("%v should be valid", tc.rate)
		}
	}
	if Bitrate(7).Valid() {
		t.Fatalf("7kbps should be invalid")
	}
	if got := BitrateFromKbps(7); got != DefaultBitrate {
		t.Fatalf("BitrateFromKbps(7) = %v, want %v", got, DefaultBitrate)
	}
	if got := BitrateFromKbps(500); got != Kbps500 {
		t.Fatalf("BitrateFromKbps(500) = %v", got)
	}
	if got := Kbps500.BitsPerSecond(); got != 500_000 {
		t.Fatalf("BitsPerSecond = %d", got)
	}
}
