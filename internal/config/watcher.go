package config

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"
)

// FileWatcher monitors a file and calls a callback when its content changes
// and still parses. It uses polling (not fsnotify) to keep dependencies
// minimal. A file that fails to parse is logged and the previous value kept.
type FileWatcher[T any] struct {
	path     string
	interval time.Duration
	parse    func([]byte) (T, error)
	onChange func(old, new T)

	mu       sync.Mutex
	current  T
	done     chan struct{}
	stopOnce sync.Once

	// last known file state for change detection
	lastMtime time.Time
	lastHash  [sha256.Size]byte
}

// Watcher watches the synk config file.
type Watcher = FileWatcher[*Config]

// WatcherOption configures a [FileWatcher].
type WatcherOption func(*watcherOptions)

type watcherOptions struct {
	interval time.Duration
}

// WithInterval sets the polling interval. The default is 5 seconds.
func WithInterval(d time.Duration) WatcherOption {
	return func(o *watcherOptions) {
		if d > 0 {
			o.interval = d
		}
	}
}

// NewWatcher watches the config file at path. onChange receives the old and
// new config after every valid change; it may be nil.
func NewWatcher(path string, onChange func(old, new *Config), opts ...WatcherOption) (*Watcher, error) {
	return WatchFile(path, func(data []byte) (*Config, error) {
		return LoadFromReader(bytes.NewReader(data))
	}, onChange, opts...)
}

// WatchFile loads path with parse immediately and starts polling it in a
// background goroutine.
func WatchFile[T any](path string, parse func([]byte) (T, error), onChange func(old, new T), opts ...WatcherOption) (*FileWatcher[T], error) {
	o := watcherOptions{interval: 5 * time.Second}
	for _, opt := range opts {
		opt(&o)
	}
	w := &FileWatcher[T]{
		path:     path,
		interval: o.interval,
		parse:    parse,
		onChange: onChange,
		done:     make(chan struct{}),
	}

	v, hash, mtime, err := w.loadAndHash()
	if err != nil {
		return nil, fmt.Errorf("config: watcher initial load: %w", err)
	}
	w.current = v
	w.lastHash = hash
	w.lastMtime = mtime

	go w.poll()
	return w, nil
}

// Path returns the watched path.
func (w *FileWatcher[T]) Path() string { return w.path }

// Current returns the most recently loaded valid value.
func (w *FileWatcher[T]) Current() T {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Stop stops the file watcher.
func (w *FileWatcher[T]) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
	})
}

func (w *FileWatcher[T]) poll() {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check reloads the file if it has changed and calls onChange when the new
// content parses.
func (w *FileWatcher[T]) check() {
	// Quick mtime check first to avoid hashing unchanged files.
	info, err := os.Stat(w.path)
	if err != nil {
		slog.Warn("config watcher: cannot stat file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	mtime := w.lastMtime
	w.mu.Unlock()

	if info.ModTime().Equal(mtime) {
		return
	}

	v, hash, newMtime, err := w.loadAndHash()
	if err != nil {
		slog.Warn("config watcher: failed to load file", "path", w.path, "err", err)
		return
	}

	w.mu.Lock()
	if hash == w.lastHash {
		// Touched but identical.
		w.lastMtime = newMtime
		w.mu.Unlock()
		return
	}
	old := w.current
	w.current = v
	w.lastHash = hash
	w.lastMtime = newMtime
	w.mu.Unlock()

	slog.Info("config watcher: file reloaded", "path", w.path)

	// Outside the lock so the callback can call Current.
	if w.onChange != nil {
		w.onChange(old, v)
	}
}

func (w *FileWatcher[T]) loadAndHash() (T, [sha256.Size]byte, time.Time, error) {
	var zero T
	info, err := os.Stat(w.path)
	if err != nil {
		return zero, [sha256.Size]byte{}, time.Time{}, err
	}
	data, err := os.ReadFile(w.path)
	if err != nil {
		return zero, [sha256.Size]byte{}, time.Time{}, err
	}
	v, err := w.parse(data)
	if err != nil {
		return zero, [sha256.Size]byte{}, time.Time{}, err
	}
	return v, sha256.Sum256(data), info.ModTime(), nil
}
