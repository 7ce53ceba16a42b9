// Command evilsim runs an ACK injection attack against a simulated victim
// frame and reports what the bus made of it.
//
//	evilsim -id 0x123 -data DEADBEEF
//	evilsim -id 0x123 -data DEADBEEF -flip 0x40   # victim ID differs, attack aborts
//	evilsim -id 0x123 -ack                        # other receivers acknowledge too
package main

import (
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pkg/profile"

	"github.com/notnil/evilcan"
	"github.com/notnil/evilcan/builder"
	"github.com/notnil/evilcan/canbus"
	"github.com/notnil/evilcan/sim"
)

type options struct {
	id        uint32
	extended  bool
	data      []byte
	bitrate   canbus.Bitrate
	flip      uint32
	autoAck   bool
	tps       uint32
	sofOffset time.Duration
	iface     string
	ifaceUp   bool
	logMask   uint32
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
		flag.PrintDefaults()
	}
	id := flag.Uint("id", 0x123, "`identifier` of the victim frame and of the attack match")
	ext := flag.Bool("ext", false, "use a 29-bit identifier")
	data := flag.String("data", "DEADBEEF", "victim payload as `hex`")
	kbps := flag.Uint("bitrate", 500, "bus bit-rate in `kbps`")
	flip := flag.Uint("flip", 0, "XOR `mask` applied to the victim identifier")
	ack := flag.Bool("ack", false, "let the other receivers acknowledge the frame")
	tps := flag.Uint("tps", 64_000_000, "simulated counter `frequency` in ticks per second")
	sofOffset := flag.Duration("sof-offset", 0, "start-of-frame detection latency")
	prof := flag.String("profile", "", "write a `cpu` or mem profile to the working directory")
	iface := flag.String("iface", "", "deliver the frame to a SocketCAN `interface` instead of a loopback bus")
	ifaceUp := flag.Bool("up", false, "bring the SocketCAN interface up for the run (needs CAP_NET_ADMIN)")
	logMask := flag.Uint("log-mask", 0, "log only loopback arrivals whose identifier matches -id under `mask` (0 logs all)")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	switch *prof {
	case "":
	case "cpu":
		defer profile.Start(profile.CPUProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	case "mem":
		defer profile.Start(profile.MemProfile, profile.ProfilePath("."), profile.Quiet).Stop()
	default:
		logger.Error("unknown profile", "profile", *prof)
		os.Exit(2)
	}

	rate := canbus.BitrateFromKbps(uint16(*kbps))
	if uint(rate) != *kbps {
		logger.Warn("unsupported bitrate, using default", "kbps", *kbps, "bitrate", rate.String())
	}
	payload, err := hex.DecodeString(*data)
	if err != nil {
		logger.Error("bad payload", "error", err)
		os.Exit(2)
	}
	opts := options{
		id:        uint32(*id),
		extended:  *ext,
		data:      payload,
		bitrate:   rate,
		flip:      uint32(*flip),
		autoAck:   *ack,
		tps:       uint32(*tps),
		sofOffset: *sofOffset,
		iface:     *iface,
		ifaceUp:   *ifaceUp,
		logMask:   uint32(*logMask),
	}

	res, err := run(context.Background(), opts, logger)
	if err != nil {
		logger.Error("evilsim failed", "error", err)
		os.Exit(1)
	}
	fmt.Println(res)
}

func victimFrame(o options) (canbus.Frame, error) {
	f := canbus.Frame{ID: o.id ^ o.flip, Extended: o.extended}
	if len(o.data) > 8 {
		return f, fmt.Errorf("%w: %d bytes", canbus.ErrInvalidLen, len(o.data))
	}
	f.Len = uint8(len(o.data))
	copy(f.Data[:], o.data)
	return f, f.Validate()
}

func run(ctx context.Context, o options, logger *slog.Logger) (sim.Result, error) {
	if !o.bitrate.Valid() {
		return sim.Result{}, errors.New("unsupported bitrate")
	}
	frame, err := victimFrame(o)
	if err != nil {
		return sim.Result{}, fmt.Errorf("victim frame: %w", err)
	}
	prog, err := builder.New().
		MatchID(o.id, o.extended).
		SkipFlags().
		SkipData().
		SkipCRC().
		ForceAck().
		Build()
	if err != nil {
		return sim.Result{}, err
	}
	logger.Debug("attack program", "instructions", fmt.Sprint(prog))

	clk := sim.NewClock(o.tps)
	wire, err := sim.NewWire(clk, o.bitrate)
	if err != nil {
		return sim.Result{}, err
	}
	wire.AutoAck = o.autoAck

	cfg := evilcan.DefaultConfig()
	cfg.Bitrate = o.bitrate
	cfg.SOFOffset = o.sofOffset
	cfg.Logger = logger
	core, err := evilcan.NewCore(clk, wire, cfg)
	if err != nil {
		return sim.Result{}, err
	}
	if err := core.Arm(prog); err != nil {
		return sim.Result{}, err
	}

	bus, monitor, closeBus, err := openBus(o, logger)
	if err != nil {
		return sim.Result{}, err
	}
	defer closeBus()
	wire.Attach(canbus.NewLoggedBusWithFilter(bus, logger, slog.LevelInfo, canbus.LogWrite,
		canbus.And(canbus.SameIdentity(frame), canbus.DataOnly())))

	var seen <-chan canbus.Frame
	if monitor != nil {
		mux := canbus.NewMux(ctx, monitor)
		defer mux.Close()
		var unsubscribe func()
		seen, unsubscribe = mux.Subscribe(canbus.And(canbus.SameIdentity(frame), canbus.LenExactly(frame.Len)), 1)
		defer unsubscribe()
	}

	if err := wire.Transmit(frame); err != nil {
		return sim.Result{}, err
	}
	core.Attack()
	logger.Debug("attack finished", "line_events", len(wire.Events()))

	res, err := wire.Settle(ctx)
	if err != nil {
		return res, err
	}
	if res.Outcome == sim.Delivered && seen != nil {
		select {
		case <-seen:
		case <-time.After(time.Second):
			return res, errors.New("monitor: delivered frame not seen")
		}
	}
	return res, nil
}

// openBus returns the bus delivered frames go to and, for the loopback bus,
// a second endpoint that logs what arrives.
func openBus(o options, logger *slog.Logger) (bus, monitor canbus.Bus, closeFn func(), err error) {
	if o.iface != "" {
		sc, closeSC, err := openSocketCAN(o.iface, o.ifaceUp, logger)
		if err != nil {
			return nil, nil, nil, err
		}
		return sc, nil, closeSC, nil
	}
	lb := canbus.NewLoopbackBus()
	monitor = canbus.NewLoggedBusWithFilter(lb.Open(), logger, slog.LevelInfo, canbus.LogRead, canbus.ByMask(o.id, o.logMask))
	return lb.Open(), monitor, func() { lb.Close() }, nil
}
