package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"roombeacon/beacond/internal/config"
	"roombeacon/beacond/internal/identity"
	"roombeacon/beacond/internal/radio"
)

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testConfig(t *testing.T) config.Config {
	t.Helper()
	return config.Config{
		LogLevel:      "error",
		DataPath:      filepath.Join(t.TempDir(), "beacond.db"),
		ProximityUUID: "FDA50693-A4E2-4FB1-AFCF-C6EB07647825",
		DefaultMajor:  100,
		DefaultMinor:  15,
		AdvInterval:   50 * time.Millisecond,
		TxPower:       3,
		MeasuredPower: -59,
		Radio:         "sim",
		MDNSPort:      0, // disables registration in tests via error path
	}
}

func TestInitStorageRecoversFromCorruptFile(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.DataPath, []byte("this is not a database file, definitely"), 0o644))

	a := New(cfg, radio.NewSim(), testLogger())
	require.NoError(t, a.initStorage(context.Background()))
	defer a.kv.Close()

	// Store must be usable after the erase-and-retry.
	s := identity.NewStore(a.kv, identity.Defaults{Major: 1, Minor: 2})
	rec, err := s.Load(context.Background())
	require.NoError(t, err)
	require.False(t, rec.Persisted)
}

func TestLoadIdentityFirstBootPersistsDefaults(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a := New(cfg, radio.NewSim(), testLogger())
	require.NoError(t, a.initStorage(ctx))
	defer a.kv.Close()

	id, err := a.loadIdentity(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(100), id.Major)
	require.Equal(t, uint16(15), id.Minor)
	require.Equal(t, int8(-59), id.MeasuredPower)

	// Second load must find the record persisted.
	s := identity.NewStore(a.kv, identity.Defaults{Major: 0, Minor: 0})
	rec, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, rec.Persisted)
	require.Equal(t, uint16(100), rec.Major)
	require.Equal(t, uint16(15), rec.Minor)
}

func TestLoadIdentityUnconfiguredSentinelSkipsSave(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.DefaultMinor = identity.UnconfiguredMinor

	a := New(cfg, radio.NewSim(), testLogger())
	require.NoError(t, a.initStorage(ctx))
	defer a.kv.Close()

	_, err := a.loadIdentity(ctx)
	require.NoError(t, err)

	s := identity.NewStore(a.kv, identity.Defaults{Major: 1, Minor: 1})
	rec, err := s.Load(ctx)
	require.NoError(t, err)
	require.False(t, rec.Persisted, "sentinel defaults must not be persisted proactively")
}

func TestLoadIdentityPrefersPersistedValues(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)

	a := New(cfg, radio.NewSim(), testLogger())
	require.NoError(t, a.initStorage(ctx))
	defer a.kv.Close()

	s := identity.NewStore(a.kv, identity.Defaults{Major: cfg.DefaultMajor, Minor: cfg.DefaultMinor})
	require.NoError(t, s.Save(ctx, 77, 3))

	id, err := a.loadIdentity(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(77), id.Major)
	require.Equal(t, uint16(3), id.Minor)
}

func TestRunStartsAdvertisingWithDeviceName(t *testing.T) {
	cfg := testConfig(t)
	sim := radio.NewSim()
	a := New(cfg, sim, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	require.Eventually(t, func() bool {
		return sim.StartCalls() == 1
	}, 5*time.Second, 5*time.Millisecond, "radio must receive start_advertising")

	require.Equal(t, "iBeacon-100-15", sim.DeviceName())
	require.Equal(t, int8(3), sim.TxPower())

	cancel()
	require.NoError(t, <-done)
}
