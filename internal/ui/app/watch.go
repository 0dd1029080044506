package app

import (
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fsnotify/fsnotify"
)

// storeChangedMsg is sent when another process touched the store on disk.
type storeChangedMsg struct {
	path string
}

type watchErrMsg struct {
	err error
}

// StoreWatcher reports changes made to the backing store by other processes
// (a running `timelog serve`, a second shell, an editor open on the vault).
type StoreWatcher struct {
	watcher *fsnotify.Watcher
	dir     string
	// file limits events to one base name; empty accepts every file in dir.
	file string
}

// NewStoreWatcher watches dir. When file is non-empty only events on that
// base name, or its SQLite write-ahead log, are reported.
func NewStoreWatcher(dir, file string) (*StoreWatcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create watch dir: %w", err)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("new file watcher: %w", err)
	}
	if err := w.Add(dir); err != nil {
		w.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	return &StoreWatcher{watcher: w, dir: dir, file: file}, nil
}

func (s *StoreWatcher) Close() error {
	return s.watcher.Close()
}

func (s *StoreWatcher) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	base := filepath.Base(event.Name)
	if s.file != "" {
		return base == s.file || base == s.file+"-wal"
	}
	// Vault writes land in a .tmp sibling before the rename.
	return filepath.Ext(base) == ".md"
}

// next blocks until the next relevant change. It returns nil once the
// watcher is closed, which ends the watch loop.
func (s *StoreWatcher) next() tea.Cmd {
	return func() tea.Msg {
		for {
			select {
			case event, ok := <-s.watcher.Events:
				if !ok {
					return nil
				}
				if s.relevant(event) {
					return storeChangedMsg{path: event.Name}
				}
			case err, ok := <-s.watcher.Errors:
				if !ok {
					return nil
				}
				return watchErrMsg{err: err}
			}
		}
	}
}
