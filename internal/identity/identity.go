// Package identity persists the beacon's major/minor pair across reboots.
package identity

import (
	"context"
	"errors"
	"fmt"

	"roombeacon/beacond/internal/kvstore"
)

// Namespace and key names of the persisted record.
const (
	Namespace = "beacon_cfg"
	KeyMajor  = "major"
	KeyMinor  = "minor"
)

// UnconfiguredMinor is the sentinel meaning "no identity was compiled in";
// defaults carrying it are never persisted proactively on first boot.
const UnconfiguredMinor uint16 = 0

// Defaults are the compiled-in fallback values used when the store has no
// record, or for individual keys that are missing.
type Defaults struct {
	Major uint16
	Minor uint16
}

// Config is the loaded identity record.
type Config struct {
	Major uint16
	Minor uint16
	// Persisted is false when no record existed and defaults were used for
	// both fields.
	Persisted bool
}

// Store reads and writes the identity record through short-lived kvstore
// handles, one per operation.
type Store struct {
	kv       *kvstore.Store
	defaults Defaults
}

// NewStore wraps a kvstore with identity semantics.
func NewStore(kv *kvstore.Store, defaults Defaults) *Store {
	return &Store{kv: kv, defaults: defaults}
}

// Load opens the namespace read-only and reads major and minor independently.
// A missing namespace yields the full defaults with Persisted=false. A missing
// individual key defaults only that key; the other keeps its stored value. The
// handle is closed on every path.
func (s *Store) Load(ctx context.Context) (Config, error) {
	cfg := Config{Major: s.defaults.Major, Minor: s.defaults.Minor}

	h, err := s.kv.OpenNamespace(ctx, Namespace, kvstore.ReadOnly)
	if err != nil {
		if errors.Is(err, kvstore.ErrNotFound) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open identity namespace: %w", err)
	}
	defer h.Close()

	cfg.Persisted = true

	major, err := h.GetU16(ctx, KeyMajor)
	switch {
	case err == nil:
		cfg.Major = major
	case errors.Is(err, kvstore.ErrNotFound):
		// keep default major
	default:
		return Config{}, err
	}

	minor, err := h.GetU16(ctx, KeyMinor)
	switch {
	case err == nil:
		cfg.Minor = minor
	case errors.Is(err, kvstore.ErrNotFound):
		// keep default minor
	default:
		return Config{}, err
	}

	return cfg, nil
}

// Save writes major then minor and commits. Any failure aborts the remaining
// steps, closes the handle, and leaves the previously stored values intact.
func (s *Store) Save(ctx context.Context, major, minor uint16) error {
	h, err := s.kv.OpenNamespace(ctx, Namespace, kvstore.ReadWrite)
	if err != nil {
		return fmt.Errorf("open identity namespace read-write: %w", err)
	}
	defer h.Close()

	if err := h.SetU16(ctx, KeyMajor, major); err != nil {
		return err
	}
	if err := h.SetU16(ctx, KeyMinor, minor); err != nil {
		return err
	}
	if err := h.Commit(); err != nil {
		return err
	}
	return nil
}
