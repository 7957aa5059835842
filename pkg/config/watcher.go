package config

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the configuration file for changes and triggers
// reloads on the Manager, which in turn notifies its callbacks
type Watcher struct {
	manager      *Manager
	watcher      *fsnotify.Watcher
	watchPath    string
	mu           sync.Mutex
	stopChan     chan struct{}
	debounceTime time.Duration
	lastReload   time.Time
}

// NewWatcher creates a watcher over the manager's config file
func NewWatcher(manager *Manager) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	return &Watcher{
		manager:      manager,
		watcher:      fsWatcher,
		stopChan:     make(chan struct{}),
		debounceTime: 500 * time.Millisecond,
	}, nil
}

// Start begins watching the directory containing the config file.
// Editors replace files instead of writing in place, so watching the
// directory catches renames as well as writes.
func (w *Watcher) Start(configPath string) error {
	w.watchPath = configPath
	if err := w.watcher.Add(filepath.Dir(configPath)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", configPath, err)
	}

	log.Printf("config: watching %s for changes", configPath)
	go w.watchLoop()
	return nil
}

// Stop stops the watcher
func (w *Watcher) Stop() {
	close(w.stopChan)
	if err := w.watcher.Close(); err != nil {
		log.Printf("config: error closing file watcher: %v", err)
	}
}

func (w *Watcher) watchLoop() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("config: watcher error: %v", err)
		case <-w.stopChan:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if filepath.Clean(event.Name) != filepath.Clean(w.watchPath) {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	w.mu.Lock()
	if time.Since(w.lastReload) < w.debounceTime {
		w.mu.Unlock()
		return
	}
	w.lastReload = time.Now()
	w.mu.Unlock()

	log.Printf("config: file changed, reloading")
	if err := w.manager.Reload(); err != nil {
		log.Printf("config: reload failed, keeping previous configuration: %v", err)
	}
}
