package evilcan

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/notnil/evilcan/canbus"
)

// MaxSOFOffset bounds Config.SOFOffset. NewCore further requires the offset
// to fit in half the 32-bit tick range.
const MaxSOFOffset = time.Second

// Config holds the parameters of a Core.
type Config struct {
	// Bitrate is the nominal bit-rate of the attacked bus.
	Bitrate canbus.Bitrate

	// SOFOffset is the expected latency between the start-of-frame edge on
	// the bus and WaitForSOF returning. The timing baseline is moved back by
	// this amount.
	SOFOffset time.Duration

	// Logger receives configuration messages. Nothing is logged while an
	// attack runs. Nil discards.
	Logger *slog.Logger
}

// DefaultConfig returns a Config for a 250 kbit/s bus with no start-of-frame
// compensation.
func DefaultConfig() Config {
	return Config{
		Bitrate: canbus.DefaultBitrate,
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !c.Bitrate.Valid() {
		return fmt.Errorf("evilcan: unsupported bitrate %d", uint16(c.Bitrate))
	}
	if c.SOFOffset < 0 || c.SOFOffset > MaxSOFOffset {
		return fmt.Errorf("evilcan: start-of-frame offset %v outside [0, %v]", c.SOFOffset, MaxSOFOffset)
	}
	return nil
}

func (c Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
