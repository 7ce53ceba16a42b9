// Package evilcan is a bit-level CAN fault-injection engine.
//
// An attack is a short, bounded program of bit-granular instructions (wait,
// force, send, match, read). Once armed, the Core waits for the start of a
// frame on the physical bus and runs the program in lock-step with the bits
// other nodes transmit, tracking bit stuffing so that instruction positions
// stay aligned with the unstuffed frame layout.
//
// The engine only needs two board capabilities: a free-running tick Clock and
// a raw Transceiver that can sense the receive line and drive the transmit and
// force lines. Everything that touches registers lives in board adapters.
//
// Core.Attack must run without preemption; see board/rpi for a Linux wrapper.
package evilcan
