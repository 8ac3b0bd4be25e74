package vault

import (
	"path/filepath"
	"testing"
	"time"

	"farmdb/internal/database"
)

func TestWatchExternalChangesNeedsBackingFile(t *testing.T) {
	w, err := WatchExternalChanges(&memoryVault{}, func() {})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if w != nil {
		t.Fatalf("memory vault has no file to watch, expected nil watcher")
	}
}

func TestWatchExternalChangesFiresOnStoreWrite(t *testing.T) {
	db, err := database.NewServiceAt(filepath.Join(t.TempDir(), "farmdb_test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	defer db.Close()
	v := &databaseVault{db: db}

	changed := make(chan struct{}, 1)
	w, err := WatchExternalChanges(v, func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	if err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	if w == nil {
		t.Fatalf("expected a live watcher for the database vault")
	}
	defer w.Close()

	// simulate another instance touching the shared token cell
	if err := v.Store("rt-external"); err != nil {
		t.Fatalf("store failed: %v", err)
	}

	select {
	case <-changed:
	case <-time.After(5 * time.Second):
		t.Fatalf("expected change notification after store write")
	}
}

func TestWatcherCloseDropsPendingCallbacks(t *testing.T) {
	db, err := database.NewServiceAt(filepath.Join(t.TempDir(), "farmdb_test.db"))
	if err != nil {
		t.Fatalf("failed to open test store: %v", err)
	}
	defer db.Close()
	v := &databaseVault{db: db}

	fired := make(chan struct{}, 1)
	w, err := WatchExternalChanges(v, func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	if err != nil || w == nil {
		t.Fatalf("failed to start watcher: %v", err)
	}

	v.Store("rt-1")
	// close inside the debounce window; the pending callback must be dropped
	time.Sleep(100 * time.Millisecond)
	if err := w.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	select {
	case <-fired:
		t.Fatalf("callback fired after close")
	case <-time.After(changeDebounceWindow + 300*time.Millisecond):
	}

	// closing twice is a no-op
	if err := w.Close(); err != nil {
		t.Fatalf("second close failed: %v", err)
	}
}
