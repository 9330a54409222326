package advertise

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roombeacon/beacond/internal/ibeacon"
	"roombeacon/beacond/internal/radio"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(testWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type testWriter struct{}

func (testWriter) Write(p []byte) (int, error) { return len(p), nil }

func testIdentity(t *testing.T) ibeacon.Identity {
	t.Helper()
	u, err := ibeacon.ParseUUID("FDA50693-A4E2-4FB1-AFCF-C6EB07647825")
	require.NoError(t, err)
	return ibeacon.Identity{ProximityUUID: u, Major: 100, Minor: 15, MeasuredPower: -59}
}

func TestStartReachesAdvertising(t *testing.T) {
	sim := radio.NewSim()
	m := New(sim, testIdentity(t), 50*time.Millisecond, 3, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("machine never reached a terminal state")
	}

	require.Equal(t, StateAdvertising, m.State())
	require.NoError(t, m.Err())
	require.Equal(t, int8(3), sim.TxPower())
	require.True(t, ibeacon.Recognize(sim.Payload()), "configured payload must be a beacon packet")

	p := sim.Params()
	require.Equal(t, radio.IntervalUnits(50*time.Millisecond), p.IntervalMin)
	require.Equal(t, p.IntervalMin, p.IntervalMax)
	require.Equal(t, radio.AdvNonConnectable, p.Type)
	require.Equal(t, radio.AddrPublic, p.OwnAddrType)
	require.Equal(t, radio.ChannelAll, p.ChannelMap)
	require.Equal(t, radio.FilterAllowAny, p.Filter)
}

func TestDuplicatePayloadEventIsIdempotent(t *testing.T) {
	sim := radio.NewSim()
	m := New(sim, testIdentity(t), 50*time.Millisecond, 3, testLogger())

	m.HandleEvent(radio.Event{Kind: radio.EventPayloadSetComplete})
	require.Equal(t, StatePayloadConfigured, m.State())
	require.Equal(t, 1, sim.StartCalls())

	m.HandleEvent(radio.Event{Kind: radio.EventPayloadSetComplete})
	require.Equal(t, StatePayloadConfigured, m.State())
	require.Equal(t, 1, sim.StartCalls(), "duplicate event must not issue start_advertising twice")

	m.HandleEvent(radio.Event{Kind: radio.EventAdvertisingStartComplete, Status: radio.StatusSuccess})
	require.Equal(t, StateAdvertising, m.State())
}

func TestStartFailureIsTerminal(t *testing.T) {
	sim := radio.NewSim()
	m := New(sim, testIdentity(t), 50*time.Millisecond, 3, testLogger())

	m.HandleEvent(radio.Event{Kind: radio.EventPayloadSetComplete})
	m.HandleEvent(radio.Event{Kind: radio.EventAdvertisingStartComplete, Status: radio.Status(0x85)})

	require.Equal(t, StateFailed, m.State())
	require.Error(t, m.Err())

	// No further radio commands after failure.
	m.HandleEvent(radio.Event{Kind: radio.EventPayloadSetComplete})
	m.HandleEvent(radio.Event{Kind: radio.EventAdvertisingStartComplete})
	require.Equal(t, 1, sim.StartCalls())
	require.Equal(t, StateFailed, m.State())
}

func TestOutOfOrderEventIgnored(t *testing.T) {
	sim := radio.NewSim()
	m := New(sim, testIdentity(t), 50*time.Millisecond, 3, testLogger())

	// advertising_start_complete before payload_set_complete is ignored.
	m.HandleEvent(radio.Event{Kind: radio.EventAdvertisingStartComplete})
	require.Equal(t, StateIdle, m.State())
	require.Equal(t, 0, sim.StartCalls())
}

// silentDriver accepts every command and never raises an event.
type silentDriver struct {
	events chan radio.Event
}

func (d *silentDriver) SetDeviceName(string) error          { return nil }
func (d *silentDriver) SetTxPower(int8) error               { return nil }
func (d *silentDriver) ConfigurePayload([]byte) error       { return nil }
func (d *silentDriver) StartAdvertising(radio.Params) error { return nil }
func (d *silentDriver) Events() <-chan radio.Event          { return d.events }

func TestEventTimeoutFails(t *testing.T) {
	drv := &silentDriver{events: make(chan radio.Event)}
	m := New(drv, testIdentity(t), 50*time.Millisecond, 3, testLogger())
	m.EventTimeout = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Start(ctx)

	select {
	case <-m.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("machine never timed out")
	}

	require.Equal(t, StateFailed, m.State())
	require.Error(t, m.Err())
}
