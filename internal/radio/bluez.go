package radio

import (
	"fmt"
	"sync"

	"tinygo.org/x/bluetooth"

	"roombeacon/beacond/internal/ibeacon"
)

// BlueZ adapts the host Bluetooth stack to the Driver contract. The underlying
// API is synchronous, so each command synthesizes its completion event from
// the call result, preserving issue order for consumers.
type BlueZ struct {
	adapter *bluetooth.Adapter
	events  chan Event

	mu      sync.Mutex
	name    string
	payload []byte
}

// NewBlueZ wraps the default host adapter. Enable is performed here so a
// construction error surfaces before any advertising command is issued.
func NewBlueZ() (*BlueZ, error) {
	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable bluetooth adapter: %w", err)
	}
	return &BlueZ{adapter: adapter, events: make(chan Event, 8)}, nil
}

func (b *BlueZ) SetDeviceName(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.name = name
	return nil
}

// SetTxPower records the requested level. The host stack owns the physical
// radio power, so the level is only reflected in the calibrated power byte of
// the payload itself.
func (b *BlueZ) SetTxPower(level int8) error {
	return nil
}

func (b *BlueZ) ConfigurePayload(payload []byte) error {
	b.mu.Lock()
	b.payload = append([]byte(nil), payload...)
	b.mu.Unlock()

	b.emit(Event{Kind: EventPayloadSetComplete})
	return nil
}

func (b *BlueZ) StartAdvertising(p Params) error {
	b.mu.Lock()
	payload := append([]byte(nil), b.payload...)
	name := b.name
	b.mu.Unlock()

	status := StatusSuccess
	if err := b.start(payload, name, p); err != nil {
		status = Status(1)
	}
	b.emit(Event{Kind: EventAdvertisingStartComplete, Status: status})
	return nil
}

func (b *BlueZ) start(payload []byte, name string, p Params) error {
	if !ibeacon.Recognize(payload) {
		return fmt.Errorf("payload is not a beacon packet")
	}

	adv := b.adapter.DefaultAdvertisement()
	opts := bluetooth.AdvertisementOptions{
		LocalName: name,
		Interval:  bluetooth.NewDuration(IntervalDuration(p.IntervalMin)),
		ManufacturerData: []bluetooth.ManufacturerDataElement{{
			CompanyID: ibeacon.CompanyID,
			Data:      ibeacon.ManufacturerData(payload),
		}},
	}
	if err := adv.Configure(opts); err != nil {
		return fmt.Errorf("configure advertisement: %w", err)
	}
	if err := adv.Start(); err != nil {
		return fmt.Errorf("start advertisement: %w", err)
	}
	return nil
}

func (b *BlueZ) Events() <-chan Event {
	return b.events
}

func (b *BlueZ) emit(ev Event) {
	select {
	case b.events <- ev:
	default:
		// Queue full means the consumer has stopped draining; drop rather
		// than block a stack-owned context.
	}
}
