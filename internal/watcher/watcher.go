// Package watcher detects external changes to the journal state file, such
// as the user deleting ~/.reverie to wipe their history while the worker is
// running, and notifies the owner so in-memory state can be reconciled.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// Watcher monitors the journal state file for removal. The parent directory
// is what gets watched, since fsnotify cannot watch a path that may not
// exist yet.
type Watcher struct {
	statePath  string
	parentPath string
	onRemove   func()
	fsw        *fsnotify.Watcher
	debounce   time.Duration

	mu      sync.Mutex
	running bool
	stop    chan struct{}
}

// New creates a watcher over the journal state file. onRemove fires after
// the file (or its containing directory) disappears and stays gone for the
// debounce interval.
func New(statePath string, onRemove func()) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		statePath:  statePath,
		parentPath: filepath.Dir(statePath),
		onRemove:   onRemove,
		fsw:        fsw,
		debounce:   100 * time.Millisecond,
		stop:       make(chan struct{}),
	}, nil
}

// Start begins watching. Safe to call once; later calls are no-ops.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addWatch(); err != nil {
		log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to establish watch")
	}

	go w.loop()
	return nil
}

// Stop shuts the watcher down.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return nil
	}
	w.running = false
	close(w.stop)
	return w.fsw.Close()
}

func (w *Watcher) addWatch() error {
	if _, err := os.Stat(w.parentPath); err != nil {
		return err
	}
	return w.fsw.Add(w.parentPath)
}

func (w *Watcher) loop() {
	var timer *time.Timer
	stopTimer := func() {
		if timer != nil {
			timer.Stop()
		}
	}

	for {
		select {
		case <-w.stop:
			stopTimer()
			return

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			path := filepath.Clean(event.Name)

			switch {
			case event.Op&fsnotify.Remove != 0 && (path == filepath.Clean(w.statePath) || path == w.parentPath):
				log.Info().Str("path", path).Msg("Journal state removed externally")
				stopTimer()
				timer = time.AfterFunc(w.debounce, w.fireRemove)

			case event.Op&fsnotify.Create != 0 && path == filepath.Clean(w.statePath):
				// The file came back before the debounce elapsed; our own
				// persist writes also land here.
				stopTimer()

			case event.Op&fsnotify.Create != 0 && path == w.parentPath:
				_ = w.addWatch()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("Watcher error")
		}
	}
}

func (w *Watcher) fireRemove() {
	log.Info().Str("path", w.statePath).Msg("Reconciling after external removal")
	if w.onRemove != nil {
		w.onRemove()
	}

	// The data directory may be recreated shortly after; try to re-attach.
	go func() {
		time.Sleep(500 * time.Millisecond)
		if err := w.addWatch(); err != nil {
			log.Warn().Err(err).Str("path", w.parentPath).Msg("Failed to re-establish watch")
		}
	}()
}
