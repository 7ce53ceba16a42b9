//go:build !linux

package main

import (
	"errors"
	"log/slog"

	"github.com/notnil/evilcan/canbus"
)

func openSocketCAN(string, bool, *slog.Logger) (canbus.Bus, func(), error) {
	return nil, nil, errors.New("SocketCAN is only available on Linux")
}
