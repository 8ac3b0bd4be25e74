package vault

import (
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

const changeDebounceWindow = 900 * time.Millisecond

// Watcher observes the fallback store file for changes made by another
// running instance (e.g. a logout there clears the shared token cell), so
// this instance can tear its session down too. Keyring-backed vaults have
// nothing to watch; WatchExternalChanges returns nil for them.
type Watcher struct {
	watcher  *fsnotify.Watcher
	target   string
	onChange func()

	mu     sync.Mutex
	timer  *time.Timer
	done   chan struct{}
	closed bool
}

// WatchExternalChanges starts watching v's backing file when it has one.
// onChange fires debounced, outside any vault lock.
func WatchExternalChanges(v Vault, onChange func()) (*Watcher, error) {
	pathful, ok := v.(interface{ Path() string })
	if !ok || onChange == nil {
		return nil, nil
	}

	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	target := filepath.Clean(pathful.Path())
	// Watch the directory: SQLite swaps files on checkpoint and fsnotify
	// loses watches on replaced files
	if err := fsWatcher.Add(filepath.Dir(target)); err != nil {
		_ = fsWatcher.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fsWatcher,
		target:   target,
		onChange: onChange,
		done:     make(chan struct{}),
	}
	go w.eventLoop()
	log.Printf("[VAULT] Watching %s for external changes", target)
	return w, nil
}

func (w *Watcher) eventLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if !w.matches(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Remove|fsnotify.Rename|fsnotify.Create) == 0 {
				continue
			}
			w.scheduleChange()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[VAULT] Watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) matches(name string) bool {
	cleaned := filepath.Clean(name)
	// SQLite WAL/SHM sidecars count as changes to the store
	return cleaned == w.target ||
		cleaned == w.target+"-wal" ||
		cleaned == w.target+"-shm"
}

func (w *Watcher) scheduleChange() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(changeDebounceWindow, w.onChange)
}

// Close stops the watcher; pending debounced callbacks are dropped
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
	}
	close(w.done)
	w.mu.Unlock()
	return w.watcher.Close()
}
