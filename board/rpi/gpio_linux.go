// Package rpi drives an attack from the GPIO header of a Raspberry Pi.
//
// The transmit and force lines are plain GPIO outputs wired to the CAN
// transceiver's TXD input and to a transistor that pulls CANH/CANL into the
// dominant state. The receive line is the transceiver's RXD.
package rpi

import (
	"errors"
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// GPIOMemPath is the register window exposed to non-root users in the
// gpio group.
const GPIOMemPath = "/dev/gpiomem"

// MaxPin is the highest BCM GPIO number.
const MaxPin = 53

// Register word offsets in the BCM283x GPIO block.
const (
	regFSEL0 = 0x00 / 4
	regSET0  = 0x1C / 4
	regCLR0  = 0x28 / 4
	regLEV0  = 0x34 / 4

	blockSize = 4096
)

const (
	fselInput  = 0b000
	fselOutput = 0b001
)

// ErrBadPin is returned for pins outside the GPIO block or reused.
var ErrBadPin = errors.New("rpi: invalid gpio pin")

// GPIO is the memory-mapped GPIO register block.
type GPIO struct {
	mem  []byte
	regs []uint32
}

// OpenGPIO maps the GPIO registers.
func OpenGPIO() (*GPIO, error) {
	fd, err := unix.Open(GPIOMemPath, unix.O_RDWR|unix.O_SYNC|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("rpi: open %s: %w", GPIOMemPath, err)
	}
	defer unix.Close(fd)
	mem, err := unix.Mmap(fd, 0, blockSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("rpi: mmap %s: %w", GPIOMemPath, err)
	}
	regs := unsafe.Slice((*uint32)(unsafe.Pointer(&mem[0])), len(mem)/4)
	return &GPIO{mem: mem, regs: regs}, nil
}

// Close unmaps the registers.
func (g *GPIO) Close() error {
	if g.mem == nil {
		return nil
	}
	err := unix.Munmap(g.mem)
	g.mem, g.regs = nil, nil
	return err
}

func checkPin(pin int) error {
	if pin < 0 || pin > MaxPin {
		return fmt.Errorf("%w: %d", ErrBadPin, pin)
	}
	return nil
}

func (g *GPIO) setFunction(pin int, fn uint32) error {
	if err := checkPin(pin); err != nil {
		return err
	}
	reg := &g.regs[regFSEL0+pin/10]
	shift := uint(pin%10) * 3
	v := atomic.LoadUint32(reg)
	v = v&^(0b111<<shift) | fn<<shift
	atomic.StoreUint32(reg, v)
	return nil
}

// SetOutput configures pin as an output.
func (g *GPIO) SetOutput(pin int) error { return g.setFunction(pin, fselOutput) }

// SetInput configures pin as an input.
func (g *GPIO) SetInput(pin int) error { return g.setFunction(pin, fselInput) }

// Set drives the pins in mask of bank high.
func (g *GPIO) Set(bank int, mask uint32) { atomic.StoreUint32(&g.regs[regSET0+bank], mask) }

// Clear drives the pins in mask of bank low.
func (g *GPIO) Clear(bank int, mask uint32) { atomic.StoreUint32(&g.regs[regCLR0+bank], mask) }

// Level reads the input levels of bank.
func (g *GPIO) Level(bank int) uint32 { return atomic.LoadUint32(&g.regs[regLEV0+bank]) }

// pinBit returns the bank and mask of pin.
func pinBit(pin int) (int, uint32) { return pin / 32, 1 << uint(pin%32) }
