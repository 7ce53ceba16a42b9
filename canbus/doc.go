// Package canbus provides the frame-level side of evilcan: the classical CAN
// frame model, nominal bit-rates, and the Bus abstraction used to hand frames
// between simulated or real nodes.
//
// It includes:
//   - A Frame type with validation, SocketCAN binary layout and candump-style formatting
//   - A Bitrate table with nominal bit periods
//   - An in-memory loopback bus for tests and simulations
//   - A slog decorator, composable frame filters and a filtering multiplexer
//   - A Linux SocketCAN driver (linux-only) on golang.org/x/sys/unix
package canbus
