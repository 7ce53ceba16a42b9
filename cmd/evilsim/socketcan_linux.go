package main

import (
	"fmt"
	"log/slog"

	"github.com/notnil/evilcan/canbus"
)

// openSocketCAN dials iface, bringing it up first when allowed. The returned
// function closes the socket and takes the interface back down if this call
// brought it up.
func openSocketCAN(iface string, bringUp bool, logger *slog.Logger) (canbus.Bus, func(), error) {
	up, err := canbus.IsInterfaceUp(iface)
	if err != nil {
		return nil, nil, err
	}
	broughtUp := false
	if !up {
		if !bringUp {
			return nil, nil, fmt.Errorf("%s is down; pass -up or run: ip link set %s up", iface, iface)
		}
		if err := canbus.SetInterfaceUp(iface); err != nil {
			return nil, nil, err
		}
		broughtUp = true
		logger.Info("interface up", "iface", iface)
	}
	sc, err := canbus.DialSocketCAN(iface)
	if err != nil {
		if broughtUp {
			restoreInterface(iface, logger)
		}
		return nil, nil, err
	}
	return sc, func() {
		sc.Close()
		if broughtUp {
			restoreInterface(iface, logger)
		}
	}, nil
}

func restoreInterface(iface string, logger *slog.Logger) {
	if err := canbus.SetInterfaceDown(iface); err != nil {
		logger.Warn("interface left up", "iface", iface, "error", err)
		return
	}
	logger.Info("interface down", "iface", iface)
}
