// Package radio defines the radio-stack capability: commands are fire-and-forget
// and completion is reported through asynchronous events, in the order the
// commands were issued.
package radio

import "time"

// EventKind identifies an asynchronous completion raised by the stack.
type EventKind int

const (
	// EventPayloadSetComplete follows a ConfigurePayload command.
	EventPayloadSetComplete EventKind = iota
	// EventAdvertisingStartComplete follows a StartAdvertising command and
	// carries the start status.
	EventAdvertisingStartComplete
)

func (k EventKind) String() string {
	switch k {
	case EventPayloadSetComplete:
		return "payload_set_complete"
	case EventAdvertisingStartComplete:
		return "advertising_start_complete"
	default:
		return "unknown"
	}
}

// Status is a command completion code. Zero means success.
type Status int

// StatusSuccess is the only status on which advertising proceeds.
const StatusSuccess Status = 0

// Event is one completion notification from the stack.
type Event struct {
	Kind   EventKind
	Status Status
}

// AdvType selects the advertising PDU type.
type AdvType int

const (
	// AdvNonConnectable broadcasts without accepting connections.
	AdvNonConnectable AdvType = iota
	AdvConnectable
)

// AddrType selects the advertiser address type.
type AddrType int

const (
	AddrPublic AddrType = iota
	AddrRandom
)

// FilterPolicy controls who may scan or connect.
type FilterPolicy int

// FilterAllowAny permits scans and connections from anyone.
const FilterAllowAny FilterPolicy = 0

// ChannelAll enables all three advertising channels.
const ChannelAll uint8 = 0x07

// Params is the fixed parameter set issued with StartAdvertising.
type Params struct {
	// IntervalMin and IntervalMax are in the stack's native 0.625 ms units.
	IntervalMin uint16
	IntervalMax uint16
	Type        AdvType
	OwnAddrType AddrType
	ChannelMap  uint8
	Filter      FilterPolicy
}

// intervalUnit is the stack's native advertising-interval tick.
const intervalUnit = 625 * time.Microsecond

// IntervalUnits converts a millisecond-scale configuration duration into the
// stack's native 0.625 ms units.
func IntervalUnits(d time.Duration) uint16 {
	return uint16(d / intervalUnit)
}

// IntervalDuration is the inverse of IntervalUnits.
func IntervalDuration(units uint16) time.Duration {
	return time.Duration(units) * intervalUnit
}

// Driver is the capability boundary to the radio stack. ConfigurePayload and
// StartAdvertising are non-blocking; their outcomes arrive on Events in issue
// order. Events may be duplicated by the stack and consumers must tolerate
// that.
type Driver interface {
	// SetDeviceName sets the human-readable name used during setup/debugging.
	SetDeviceName(name string) error
	// SetTxPower sets the advertising transmit power in dBm.
	SetTxPower(level int8) error
	// ConfigurePayload submits the raw advertising payload.
	ConfigurePayload(payload []byte) error
	// StartAdvertising begins broadcasting with the given parameters.
	StartAdvertising(p Params) error
	// Events delivers completion events. The channel is owned by the driver.
	Events() <-chan Event
}
