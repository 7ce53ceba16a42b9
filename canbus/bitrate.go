package canbus

import "strconv"

// Bitrate is a nominal CAN bit-rate expressed as its kbit/s code. The two
// fractional rates are encoded by their integer part.
type Bitrate uint16

const (
	Kbps5     Bitrate = 5
	Kbps10    Bitrate = 10
	Kbps20    Bitrate = 20
	Kbps31_25 Bitrate = 31
	Kbps33_3  Bitrate = 33
	Kbps40    Bitrate = 40
	Kbps50    Bitrate = 50
	Kbps80    Bitrate = 80
	Kbps100   Bitrate = 100
	Kbps125   Bitrate = 125
	Kbps200   Bitrate = 200
	Kbps250   Bitrate = 250
	Kbps500   Bitrate = 500
	Kbps1000  Bitrate = 1000
)

// DefaultBitrate is used when an unknown rate code is requested.
const DefaultBitrate = Kbps250

// BitrateFromKbps maps a kbit/s code to a Bitrate. Unknown codes fall back to
// DefaultBitrate, mirroring how adapters treat an unsupported speed setting.
func BitrateFromKbps(kbps uint16) Bitrate {
	b := Bitrate(kbps)
	if !b.Valid() {
		return DefaultBitrate
	}
	return b
}

// Valid reports whether b is one of the supported rates.
func (b Bitrate) Valid() bool {
	return b.PeriodNs() != 0
}

// PeriodNs returns the nominal bit period in nanoseconds, or 0 for an
// unsupported rate.
func (b Bitrate) PeriodNs() uint32 {
	switch b {
	case Kbps31_25:
		return 32_000
	case Kbps33_3:
		return 30_030
	case Kbps5, Kbps10, Kbps20, Kbps40, Kbps50, Kbps80, Kbps100,
		Kbps125, Kbps200, Kbps250, Kbps500, Kbps1000:
		return 1_000_000 / uint32(b)
	}
	return 0
}

// BitsPerSecond returns the nominal rate in bit/s.
func (b Bitrate) BitsPerSecond() uint32 {
	p := b.PeriodNs()
	if p == 0 {
		return 0
	}
	return 1_000_000_000 / p
}

func (b Bitrate) String() string {
	switch b {
	case Kbps31_25:
		return "31.25kbps"
	case Kbps33_3:
		return "33.3kbps"
	}
	return strconv.Itoa(int(b)) + "kbps"
}
