package identity

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"roombeacon/beacond/internal/kvstore"
)

func openTestKV(t *testing.T) *kvstore.Store {
	t.Helper()
	kv, err := kvstore.Open(filepath.Join(t.TempDir(), "beacond.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	require.NoError(t, kv.Init(context.Background()))
	return kv
}

func TestLoadFirstBootDefaults(t *testing.T) {
	kv := openTestKV(t)
	s := NewStore(kv, Defaults{Major: 100, Minor: 15})

	cfg, err := s.Load(context.Background())
	require.NoError(t, err)
	require.False(t, cfg.Persisted)
	require.Equal(t, uint16(100), cfg.Major)
	require.Equal(t, uint16(15), cfg.Minor)
}

func TestSaveThenLoad(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t)
	s := NewStore(kv, Defaults{Major: 100, Minor: 15})

	require.NoError(t, s.Save(ctx, 77, 3))

	cfg, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, cfg.Persisted)
	require.Equal(t, uint16(77), cfg.Major)
	require.Equal(t, uint16(3), cfg.Minor)
}

func TestLoadDefaultsOnlyMissingKey(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t)
	s := NewStore(kv, Defaults{Major: 100, Minor: 15})

	// Persist only the major key, as if the minor record were lost.
	h, err := kv.OpenNamespace(ctx, Namespace, kvstore.ReadWrite)
	require.NoError(t, err)
	require.NoError(t, h.SetU16(ctx, KeyMajor, 77))
	require.NoError(t, h.Commit())
	require.NoError(t, h.Close())

	cfg, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, cfg.Persisted)
	require.Equal(t, uint16(77), cfg.Major)
	require.Equal(t, uint16(15), cfg.Minor)
}

func TestSaveOverwritesPrevious(t *testing.T) {
	ctx := context.Background()
	kv := openTestKV(t)
	s := NewStore(kv, Defaults{Major: 1, Minor: 1})

	require.NoError(t, s.Save(ctx, 10, 20))
	require.NoError(t, s.Save(ctx, 30, 40))

	cfg, err := s.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, uint16(30), cfg.Major)
	require.Equal(t, uint16(40), cfg.Minor)
}
