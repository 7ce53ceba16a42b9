//go:build linux

package canbus

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// socketCAN implements Bus over a Linux SocketCAN raw socket.
type socketCAN struct {
	fd        int
	closeOnce sync.Once
	closed    chan struct{}
}

// pollInterval bounds how long a blocked Send/Receive goes without
// re-checking its context when the context has no deadline.
const pollInterval = 50 * time.Millisecond

// DialSocketCAN opens a raw CAN socket bound to the given interface name
// (e.g. "can0" or "vcan0").
func DialSocketCAN(iface string) (Bus, error) {
	netIf, err := net.InterfaceByName(iface)
	if err != nil {
		return nil, err
	}
	fd, err := unix.Socket(unix.AF_CAN, unix.SOCK_RAW|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.CAN_RAW)
	if err != nil {
		return nil, fmt.Errorf("canbus: socket: %w", err)
	}
	if err := unix.Bind(fd, &unix.SockaddrCAN{Ifindex: netIf.Index}); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("canbus: bind %s: %w", iface, err)
	}
	return &socketCAN{fd: fd, closed: make(chan struct{})}, nil
}

func (s *socketCAN) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		err = unix.Close(s.fd)
	})
	return err
}

// Send writes one frame using the Linux can_frame binary layout.
func (s *socketCAN) Send(ctx context.Context, frame Frame) error {
	buf, err := frame.MarshalBinary()
	if err != nil {
		return err
	}
	for {
		if s.isClosed() {
			return ErrClosed
		}
		n, werr := unix.Write(s.fd, buf)
		if werr == nil {
			if n != len(buf) {
				return errors.New("canbus: short write")
			}
			return nil
		}
		if werr != unix.EAGAIN {
			return werr
		}
		if err := s.wait(ctx, unix.POLLOUT); err != nil {
			return err
		}
	}
}

// Receive reads one frame (blocking respecting context).
func (s *socketCAN) Receive(ctx context.Context) (Frame, error) {
	buf := make([]byte, 16)
	for {
		if s.isClosed() {
			return Frame{}, ErrClosed
		}
		n, rerr := unix.Read(s.fd, buf)
		if rerr == nil {
			if n != len(buf) {
				return Frame{}, errors.New("canbus: short read")
			}
			var f Frame
			if err := f.UnmarshalBinary(buf); err != nil {
				return Frame{}, err
			}
			return f, nil
		}
		if rerr != unix.EAGAIN {
			return Frame{}, rerr
		}
		if err := s.wait(ctx, unix.POLLIN); err != nil {
			return Frame{}, err
		}
	}
}

func (s *socketCAN) isClosed() bool {
	select {
	case <-s.closed:
		return true
	default:
		return false
	}
}

func (s *socketCAN) wait(ctx context.Context, events int16) error {
	for {
		timeout := pollInterval
		if deadline, ok := ctx.Deadline(); ok {
			d := time.Until(deadline)
			if d <= 0 {
				return ctx.Err()
			}
			if d < timeout {
				timeout = d
			}
		}
		fds := []unix.PollFd{{Fd: int32(s.fd), Events: events}}
		n, err := unix.Poll(fds, int(timeout/time.Millisecond)+1)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if n > 0 {
			return nil
		}
	}
}
