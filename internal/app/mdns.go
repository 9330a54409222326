package app

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/grandcat/zeroconf"

	"roombeacon/beacond/internal/config"
	"roombeacon/beacond/internal/ibeacon"
)

const (
	mdnsServiceType = "_roombeacon._tcp"
	mdnsDomain      = "local."
)

// startMDNS announces the device name so the beacon is discoverable by name
// during setup and debugging. Failure is non-fatal; discovery is convenience,
// not a startup gate.
func (a *App) startMDNS(deviceName string, id ibeacon.Identity) error {
	a.stopMDNS()

	instance := sanitizeMDNSInstance(deviceName)
	txt := []string{
		"major=" + strconv.Itoa(int(id.Major)),
		"minor=" + strconv.Itoa(int(id.Minor)),
		"uuid=" + id.UUIDString(),
		"fw=" + config.FirmwareVersion,
	}

	server, err := zeroconf.Register(instance, mdnsServiceType, mdnsDomain, a.cfg.MDNSPort, txt, nil)
	if err != nil {
		return fmt.Errorf("register mDNS service: %w", err)
	}

	a.mdns = server
	a.logger.Info("mDNS announcement started", "instance", instance)
	return nil
}

func (a *App) stopMDNS() {
	if a.mdns == nil {
		return
	}

	a.mdns.Shutdown()
	a.logger.Info("mDNS announcement stopped")
	a.mdns = nil
}

func sanitizeMDNSInstance(name string) string {
	cleaned := strings.TrimSpace(name)
	cleaned = strings.ReplaceAll(cleaned, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, ".", " ")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	if cleaned == "" {
		cleaned = "Room Beacon"
	}
	runes := []rune(cleaned)
	const maxLen = 63
	if len(runes) > maxLen {
		cleaned = string(runes[:maxLen])
	}
	return cleaned
}
