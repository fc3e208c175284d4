package config

import (
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// ReloadHandler is called with the new settings after the config file
// changes on disk and parses cleanly. Settings that fail validation are
// counted as failures and never reach the handler.
type ReloadHandler func(Settings)

// Watcher reloads a config file when it changes.
//
// It watches the file's parent directory rather than the file itself,
// since editors typically replace config files by writing a temp file
// and renaming it over the original.
type Watcher struct {
	path    string
	handler ReloadHandler
	onError func(error)

	fsw      *fsnotify.Watcher
	debounce time.Duration

	mu      sync.Mutex
	closed  bool
	closeCh chan struct{}
	wg      sync.WaitGroup

	reloads  int64
	failures int64
}

// WatchStats reports watcher activity.
type WatchStats struct {
	// Reloads is the number of successful reloads delivered.
	Reloads int64

	// Failures counts changes that could not be loaded or validated.
	Failures int64
}

// WatchOption configures a Watcher.
type WatchOption func(*Watcher)

// WithDebounce sets how long the file must be quiet before a reload.
func WithDebounce(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithErrorHandler sets a callback for watch and reload errors.
func WithErrorHandler(fn func(error)) WatchOption {
	return func(w *Watcher) {
		w.onError = fn
	}
}

// Watch starts watching path and calls handler on each valid reload.
func Watch(path string, handler ReloadHandler, opts ...WatchOption) (*Watcher, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		path:     absPath,
		handler:  handler,
		fsw:      fsw,
		debounce: 100 * time.Millisecond,
		closeCh:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	if err := fsw.Add(filepath.Dir(absPath)); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	w.wg.Add(1)
	go w.run()

	return w, nil
}

// Path returns the absolute path being watched.
func (w *Watcher) Path() string {
	return w.path
}

// Stats returns watcher activity counters.
func (w *Watcher) Stats() WatchStats {
	return WatchStats{
		Reloads:  atomic.LoadInt64(&w.reloads),
		Failures: atomic.LoadInt64(&w.failures),
	}
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	err := w.fsw.Close()
	w.wg.Wait()
	return err
}

// run processes fsnotify events, coalescing bursts before reloading.
func (w *Watcher) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.debounce)
	defer ticker.Stop()

	var pending time.Time
	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if w.relevant(ev) {
				pending = time.Now()
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.reportError(err)

		case <-ticker.C:
			if pending.IsZero() || time.Since(pending) < w.debounce {
				continue
			}
			pending = time.Time{}
			w.reload()
		}
	}
}

// relevant reports whether the event touches the watched file.
func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if filepath.Clean(ev.Name) != w.path {
		return false
	}
	return ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename)
}

// reload loads the file and hands valid settings to the handler.
func (w *Watcher) reload() {
	settings, err := Load(w.path)
	if err != nil {
		atomic.AddInt64(&w.failures, 1)
		w.reportError(err)
		return
	}

	atomic.AddInt64(&w.reloads, 1)
	if w.handler != nil {
		w.callHandler(settings)
	}
}

// callHandler invokes the handler with panic recovery so a bad handler
// cannot kill the watch goroutine.
func (w *Watcher) callHandler(settings Settings) {
	defer func() {
		_ = recover()
	}()
	w.handler(settings)
}

func (w *Watcher) reportError(err error) {
	if w.onError != nil {
		w.onError(err)
	}
}
