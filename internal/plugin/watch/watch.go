// Package watch notices extensions being installed into the extensions
// directory while the host runs.
//
// The root directory and each of its immediate subdirectories are watched,
// matching where manifests may live. Bursts of changes are coalesced: the
// change callback runs once the directory has been quiet for the debounce
// delay.
package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// DefaultDebounce is the quiet period before the change callback runs.
const DefaultDebounce = 500 * time.Millisecond

// ErrClosed is returned by Run after Close.
var ErrClosed = errors.New("watcher closed")

// Watcher monitors an extensions directory.
type Watcher struct {
	mu sync.Mutex

	fsw      *fsnotify.Watcher
	root     string
	paths    map[string]bool
	debounce time.Duration
	onChange func(ctx context.Context)
	log      zerolog.Logger
	closed   bool
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce sets the quiet period before onChange runs.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(w *Watcher) {
		w.log = log
	}
}

// New watches root and its immediate subdirectories. onChange runs on the
// Run goroutine after every burst of changes.
func New(root string, onChange func(ctx context.Context), opts ...Option) (*Watcher, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		fsw:      fsw,
		root:     absRoot,
		paths:    make(map[string]bool),
		debounce: DefaultDebounce,
		onChange: onChange,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With().Str("component", "watch").Logger()

	if err := w.add(absRoot); err != nil {
		fsw.Close()
		return nil, err
	}
	entries, err := os.ReadDir(absRoot)
	if err != nil {
		fsw.Close()
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			if err := w.add(filepath.Join(absRoot, e.Name())); err != nil {
				w.log.Warn().Err(err).Str("dir", e.Name()).Msg("cannot watch extension directory")
			}
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.paths[path] {
		return nil
	}
	if err := w.fsw.Add(path); err != nil {
		return err
	}
	w.paths[path] = true
	return nil
}

// WatchedPaths returns every watched directory.
func (w *Watcher) WatchedPaths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.paths))
	for p := range w.paths {
		out = append(out, p)
	}
	return out
}

// Run processes events until ctx is done or the watcher is closed.
func (w *Watcher) Run(ctx context.Context) error {
	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return ErrClosed
			}
			if w.handle(ev) {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return ErrClosed
			}
			w.log.Warn().Err(err).Msg("watch error")

		case <-timer.C:
			w.log.Debug().Str("dir", w.root).Msg("extensions directory changed")
			w.onChange(ctx)
		}
	}
}

// handle reports whether ev is relevant. New first level directories are
// watched as they appear.
func (w *Watcher) handle(ev fsnotify.Event) bool {
	if hidden(filepath.Base(ev.Name)) || ev.Op == fsnotify.Chmod {
		return false
	}
	if ev.Has(fsnotify.Create) && filepath.Dir(ev.Name) == w.root {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.add(ev.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", ev.Name).Msg("cannot watch extension directory")
			}
		}
	}
	if ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename) {
		w.mu.Lock()
		delete(w.paths, ev.Name)
		w.mu.Unlock()
	}
	return true
}

// Close stops the watcher. Run returns ErrClosed.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()
	return w.fsw.Close()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
