package app

import (
	"log/slog"
	"net"
	"os"
	"strings"
)

// deviceID returns a stable device identifier: the first non-loopback
// hardware address, falling back to the hostname.
func deviceID() string {
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if iface.Flags&net.FlagLoopback != 0 || len(iface.HardwareAddr) == 0 {
				continue
			}
			return strings.ToUpper(iface.HardwareAddr.String())
		}
	}

	hostname, err := os.Hostname()
	if err != nil || hostname == "" {
		return "unknown-device"
	}
	return hostname
}

// processRestart exits the process so the supervisor relaunches it, booting
// whatever image the applier staged.
type processRestart struct {
	logger *slog.Logger
}

func (r processRestart) Restart() {
	r.logger.Info("process restart requested")
	os.Exit(0)
}
