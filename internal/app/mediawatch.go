package app

import (
	"os"
	"sync"
	"time"
)

// MediaWatcher polls a media file for changes and triggers a callback when
// it is rewritten on disk. Frames are often re-exported by an external
// capture tool while a marking session is open; the watcher lets the
// surface pick up the new frame without reopening it.
type MediaWatcher struct {
	mu            sync.Mutex
	path          string
	baseline      time.Time
	checkInterval time.Duration
	stopCh        chan struct{}
	onChanged     func(path string) // called from a background goroutine
}

// NewMediaWatcher creates a watcher for the given media file. Returns nil
// if the file cannot be stat'd.
func NewMediaWatcher(path string, checkInterval time.Duration) *MediaWatcher {
	info, err := os.Stat(path)
	if err != nil {
		return nil
	}
	return &MediaWatcher{
		path:          path,
		baseline:      info.ModTime(),
		checkInterval: checkInterval,
		stopCh:        make(chan struct{}),
	}
}

// OnChanged sets the callback to invoke when the file is rewritten. The
// callback runs on a background goroutine.
func (w *MediaWatcher) OnChanged(callback func(path string)) {
	w.mu.Lock()
	w.onChanged = callback
	w.mu.Unlock()
}

// Start begins watching in a background goroutine.
func (w *MediaWatcher) Start() {
	w.mu.Lock()
	w.stopCh = make(chan struct{})
	w.mu.Unlock()
	go w.watchLoop()
}

// Stop stops the watcher goroutine.
func (w *MediaWatcher) Stop() {
	close(w.stopCh)
}

func (w *MediaWatcher) watchLoop() {
	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			if w.checkForUpdate() {
				w.mu.Lock()
				cb := w.onChanged
				w.mu.Unlock()
				if cb != nil {
					cb(w.path)
				}
			}
		}
	}
}

// checkForUpdate advances the baseline and reports whether the file
// changed since the last check.
func (w *MediaWatcher) checkForUpdate() bool {
	info, err := os.Stat(w.path)
	if err != nil {
		// Export tools often replace the file non-atomically; a
		// transient miss is not a change.
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if info.ModTime().After(w.baseline) {
		w.baseline = info.ModTime()
		return true
	}
	return false
}

// Path returns the watched file path.
func (w *MediaWatcher) Path() string {
	return w.path
}
