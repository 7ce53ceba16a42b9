package canbus

// FrameFilter decides whether a frame is of interest to a consumer.
type FrameFilter func(Frame) bool

// ByID matches frames with exactly this identifier, in either format.
func ByID(id uint32) FrameFilter {
	return func(f Frame) bool { return f.ID == id }
}

// ByMask matches when the identifier agrees with id on every bit set in
// mask. A zero mask matches everything.
func ByMask(id, mask uint32) FrameFilter {
	want := id & mask
	return func(f Frame) bool { return f.ID&mask == want }
}

// StandardOnly matches 11-bit identifiers.
func StandardOnly() FrameFilter {
	return func(f Frame) bool { return !f.Extended }
}

// ExtendedOnly matches 29-bit identifiers.
func ExtendedOnly() FrameFilter {
	return func(f Frame) bool { return f.Extended }
}

// DataOnly matches frames that are not remote requests.
func DataOnly() FrameFilter {
	return func(f Frame) bool { return !f.RTR }
}

// LenExactly matches frames whose data length code is n.
func LenExactly(n uint8) FrameFilter {
	return func(f Frame) bool { return f.Len == n }
}

// SameIdentity matches frames carrying the identifier of ref in the same
// format. This is what arbitration and an identifier match compare.
func SameIdentity(ref Frame) FrameFilter {
	format := StandardOnly()
	if ref.Extended {
		format = ExtendedOnly()
	}
	return And(ByID(ref.ID), format)
}

// And matches when every non-nil filter matches. With no filters it
// matches everything.
func And(filters ...FrameFilter) FrameFilter {
	var fs []FrameFilter
	for _, f := range filters {
		if f != nil {
			fs = append(fs, f)
		}
	}
	if len(fs) == 1 {
		return fs[0]
	}
	return func(f Frame) bool {
		for _, ok := range fs {
			if !ok(f) {
				return false
			}
		}
		return true
	}
}
