package vault

import (
	"errors"
	"path/filepath"
	"testing"

	"farmdb/internal/database"
)

func newTestDatabaseVault(t *testing.T) *databaseVault {
	t.Helper()
	db, err := database.NewServiceAt(filepath.Join(t.TempDir(), "farmdb_test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return &databaseVault{db: db}
}

func TestDatabaseVaultRoundTrip(t *testing.T) {
	v := newTestDatabaseVault(t)

	if _, err := v.Load(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty from fresh vault, got %v", err)
	}
	if err := v.Store("rt-1"); err != nil {
		t.Fatalf("store failed: %v", err)
	}
	token, err := v.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if token != "rt-1" {
		t.Fatalf("expected rt-1, got %q", token)
	}
}

func TestDatabaseVaultStoreOverwrites(t *testing.T) {
	v := newTestDatabaseVault(t)

	v.Store("rt-1")
	if err := v.Store("rt-2"); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	token, _ := v.Load()
	if token != "rt-2" {
		t.Fatalf("expected rotated token, got %q", token)
	}
}

func TestDatabaseVaultClear(t *testing.T) {
	v := newTestDatabaseVault(t)

	v.Store("rt-1")
	if err := v.Clear(); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if _, err := v.Load(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty after clear, got %v", err)
	}

	// clearing an empty vault is a no-op
	if err := v.Clear(); err != nil {
		t.Fatalf("clear of empty vault failed: %v", err)
	}
}

func TestDatabaseVaultExposesPath(t *testing.T) {
	v := newTestDatabaseVault(t)
	if v.Path() == "" {
		t.Fatalf("expected backing path for watcher wiring")
	}
}

func TestMemoryVaultRoundTrip(t *testing.T) {
	v := &memoryVault{}

	if _, err := v.Load(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty from fresh vault, got %v", err)
	}
	v.Store("rt-1")
	token, err := v.Load()
	if err != nil || token != "rt-1" {
		t.Fatalf("expected rt-1, got %q (%v)", token, err)
	}
	v.Clear()
	if _, err := v.Load(); !errors.Is(err, ErrEmpty) {
		t.Fatalf("expected ErrEmpty after clear, got %v", err)
	}
}
