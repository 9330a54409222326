// Package advertise drives the radio-stack event sequence that must complete
// before the beacon is broadcasting.
package advertise

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"roombeacon/beacond/internal/ibeacon"
	"roombeacon/beacond/internal/radio"
)

// State is the machine's position in the startup sequence.
type State int

const (
	// StateIdle means the payload has been submitted and the machine is
	// waiting for the stack to confirm it.
	StateIdle State = iota
	// StatePayloadConfigured means the payload is set and the start command
	// has been issued.
	StatePayloadConfigured
	// StateAdvertising is terminal for the process lifetime: the beacon is
	// broadcasting.
	StateAdvertising
	// StateFailed is terminal: a radio command completed with a non-success
	// status. Recovery requires a reboot, not a blind retry.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePayloadConfigured:
		return "payload_configured"
	case StateAdvertising:
		return "advertising"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Machine sequences payload configuration and advertising start. Transitions
// are driven exclusively by stack events; duplicate or out-of-order events are
// ignored. Event handling never blocks beyond issuing the next non-blocking
// command.
type Machine struct {
	logger   *slog.Logger
	driver   radio.Driver
	identity ibeacon.Identity
	interval time.Duration
	txPower  int8

	// EventTimeout bounds the wait for the next expected stack event. Zero
	// disables the bound, matching stacks that are trusted to always answer.
	EventTimeout time.Duration

	mu    sync.Mutex
	state State
	err   error

	done chan struct{}
}

// New builds a machine for one advertising cycle of the given identity.
func New(driver radio.Driver, id ibeacon.Identity, interval time.Duration, txPower int8, logger *slog.Logger) *Machine {
	return &Machine{
		logger:   logger,
		driver:   driver,
		identity: id,
		interval: interval,
		txPower:  txPower,
		state:    StateIdle,
		done:     make(chan struct{}),
	}
}

// Start submits the transmit power and encoded payload to the stack, then
// consumes completion events until the context ends. It returns immediately on
// command submission failure; otherwise it blocks, so callers run it on its
// own goroutine.
func (m *Machine) Start(ctx context.Context) error {
	if err := m.driver.SetTxPower(m.txPower); err != nil {
		return fmt.Errorf("set tx power: %w", err)
	}
	if err := m.driver.ConfigurePayload(ibeacon.Encode(m.identity)); err != nil {
		return fmt.Errorf("configure payload: %w", err)
	}

	m.logger.Info("advertising payload submitted",
		"uuid", m.identity.UUIDString(),
		"major", m.identity.Major,
		"minor", m.identity.Minor,
		"interval", m.interval)

	var timeout <-chan time.Time
	if m.EventTimeout > 0 {
		timer := time.NewTimer(m.EventTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-m.driver.Events():
			m.handle(ev)
		case <-timeout:
			if m.State() == StateIdle || m.State() == StatePayloadConfigured {
				m.fail(fmt.Errorf("no stack event within %s", m.EventTimeout))
			}
			timeout = nil
		}
	}
}

// HandleEvent applies one stack event. Exposed for stacks that deliver events
// on their own callback context instead of a channel.
func (m *Machine) HandleEvent(ev radio.Event) {
	m.handle(ev)
}

func (m *Machine) handle(ev radio.Event) {
	m.mu.Lock()
	state := m.state
	m.mu.Unlock()

	switch {
	case state == StateIdle && ev.Kind == radio.EventPayloadSetComplete:
		m.setState(StatePayloadConfigured)

		units := radio.IntervalUnits(m.interval)
		err := m.driver.StartAdvertising(radio.Params{
			IntervalMin: units,
			IntervalMax: units,
			Type:        radio.AdvNonConnectable,
			OwnAddrType: radio.AddrPublic,
			ChannelMap:  radio.ChannelAll,
			Filter:      radio.FilterAllowAny,
		})
		if err != nil {
			m.fail(fmt.Errorf("start advertising: %w", err))
		}

	case state == StatePayloadConfigured && ev.Kind == radio.EventAdvertisingStartComplete:
		if ev.Status != radio.StatusSuccess {
			m.fail(fmt.Errorf("advertising start completed with status %d", ev.Status))
			return
		}
		m.setState(StateAdvertising)
		m.logger.Info("beacon is broadcasting",
			"major", m.identity.Major,
			"minor", m.identity.Minor,
			"interval", m.interval)
		close(m.done)

	default:
		// Duplicate or late events are a normal artifact of asynchronous
		// radio firmware and are not an error.
		m.logger.Debug("ignoring radio event", "event", ev.Kind.String(), "state", state.String())
	}
}

func (m *Machine) setState(s State) {
	m.mu.Lock()
	m.state = s
	m.mu.Unlock()
}

func (m *Machine) fail(err error) {
	m.mu.Lock()
	if m.state == StateFailed {
		m.mu.Unlock()
		return
	}
	m.state = StateFailed
	m.err = err
	m.mu.Unlock()

	m.logger.Error("advertising failed", "error", err)
	close(m.done)
}

// State returns the current machine state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err returns the failure cause once the machine is in StateFailed.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// Done is closed when the machine reaches a terminal state, broadcasting or
// failed.
func (m *Machine) Done() <-chan struct{} {
	return m.done
}

// Identity returns the identity this cycle is broadcasting.
func (m *Machine) Identity() ibeacon.Identity {
	return m.identity
}
