//go:build linux

package canbus

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// Linux network interface helpers. They toggle IFF_UP via ioctl on a
// SOCK_DGRAM socket and need CAP_NET_ADMIN to change anything.

func interfaceFlags(name string) (uint16, error) {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return 0, fmt.Errorf("canbus: invalid interface name %q: %w", name, err)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return 0, err
	}
	defer unix.Close(fd)
	if err := unix.IoctlIfreq(fd, unix.SIOCGIFFLAGS, ifr); err != nil {
		return 0, err
	}
	return ifr.Uint16(), nil
}

func setInterfaceFlags(name string, flags uint16) error {
	ifr, err := unix.NewIfreq(name)
	if err != nil {
		return fmt.Errorf("canbus: invalid interface name %q: %w", name, err)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC, 0)
	if err != nil {
		return err
	}
	defer unix.Close(fd)
	ifr.SetUint16(flags)
	return requireNetAdmin(unix.IoctlIfreq(fd, unix.SIOCSIFFLAGS, ifr))
}

// IsInterfaceUp returns true if the Linux network interface has IFF_UP set.
func IsInterfaceUp(name string) (bool, error) {
	flags, err := interfaceFlags(name)
	if err != nil {
		return false, err
	}
	return flags&unix.IFF_UP != 0, nil
}

// SetInterfaceUp sets IFF_UP on the given interface.
func SetInterfaceUp(name string) error {
	flags, err := interfaceFlags(name)
	if err != nil {
		return err
	}
	if flags&unix.IFF_UP != 0 {
		return nil
	}
	return setInterfaceFlags(name, flags|unix.IFF_UP)
}

// SetInterfaceDown clears IFF_UP on the given interface.
func SetInterfaceDown(name string) error {
	flags, err := interfaceFlags(name)
	if err != nil {
		return err
	}
	if flags&unix.IFF_UP == 0 {
		return nil
	}
	return setInterfaceFlags(name, flags&^unix.IFF_UP)
}

func requireNetAdmin(err error) error {
	if errors.Is(err, unix.EPERM) {
		return fmt.Errorf("canbus: operation requires CAP_NET_ADMIN (or root): %w", err)
	}
	return err
}
