// beacon-identify scans nearby advertisements and prints every proximity
// beacon packet it recognizes, for verifying a deployed beacon from a laptop.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tinygo.org/x/bluetooth"

	"roombeacon/beacond/internal/ibeacon"
)

func main() {
	uuidFilter := flag.String("uuid", "", "Only print beacons with this proximity UUID")
	scanTime := flag.Duration("timeout", 30*time.Second, "Stop scanning after this long (0 = scan forever)")
	once := flag.Bool("once", false, "Exit after the first matching beacon")

	flag.Parse()

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		log.Fatalf("failed to enable bluetooth adapter: %v", err)
	}

	if *scanTime > 0 {
		time.AfterFunc(*scanTime, func() {
			adapter.StopScan()
			os.Exit(0)
		})
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		adapter.StopScan()
		os.Exit(0)
	}()

	seen := make(map[string]bool)

	log.Print("scanning for beacons...")
	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		for _, md := range result.ManufacturerData() {
			pkt, ok := ibeacon.FromManufacturerData(md.CompanyID, md.Data)
			if !ok {
				continue
			}

			id := ibeacon.Decode(pkt)
			if *uuidFilter != "" && id.UUIDString() != *uuidFilter {
				continue
			}

			addr, _ := result.Address.MarshalText()
			key := fmt.Sprintf("%s/%d/%d", id.UUIDString(), id.Major, id.Minor)
			if seen[key] {
				continue
			}
			seen[key] = true

			fmt.Printf("beacon %s\n", string(addr))
			fmt.Printf("  uuid:  %s\n", id.UUIDString())
			fmt.Printf("  major: %d\n", id.Major)
			fmt.Printf("  minor: %d\n", id.Minor)
			fmt.Printf("  power: %d dBm (rssi %d)\n", id.MeasuredPower, result.RSSI)
			if result.LocalName() != "" {
				fmt.Printf("  name:  %s\n", result.LocalName())
			}

			if *once {
				adapter.StopScan()
			}
		}
	})
	if err != nil {
		log.Fatalf("scan error: %v", err)
	}
}
