// Package watcher reports changes below a directory in debounced batches:
// entries created and removed and, when asked for, files written.
package watcher

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Op is the kind of change.
type Op int

const (
	// Created means a new entry appeared (including the new name of a rename).
	Created Op = iota + 1
	// Removed means an entry disappeared (including the old name of a rename).
	Removed
	// Written means a file's content changed. Only reported WithWrites.
	Written
)

func (o Op) String() string {
	switch o {
	case Created:
		return "created"
	case Removed:
		return "removed"
	case Written:
		return "written"
	default:
		return fmt.Sprintf("op(%d)", int(o))
	}
}

// Event is one change to one path.
type Event struct {
	Op   Op
	Path string
}

// Watcher watches a directory tree recursively.
type Watcher struct {
	root     string
	debounce time.Duration
	skip     func(path string, isDir bool) bool
	writes   bool
	log      zerolog.Logger

	fw     *fsnotify.Watcher
	events chan []Event

	mu      sync.Mutex
	pending []Event
	timer   *time.Timer
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounceDuration sets how long the watcher waits for the filesystem
// to settle before delivering a batch.
func WithDebounceDuration(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithFilter drops events for paths where skip returns true. Skipped
// directories are not watched.
func WithFilter(skip func(path string, isDir bool) bool) Option {
	return func(w *Watcher) { w.skip = skip }
}

// WithWrites reports content writes as Written events.
func WithWrites(on bool) Option {
	return func(w *Watcher) { w.writes = on }
}

// WithLogger sets the logger for watch errors.
func WithLogger(l zerolog.Logger) Option {
	return func(w *Watcher) { w.log = l }
}

// NewWatcher creates a watcher for root. Nothing is watched until Start.
func NewWatcher(root string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &Watcher{
		root:     filepath.Clean(root),
		debounce: 200 * time.Millisecond,
		log:      zerolog.Nop(),
		fw:       fw,
		events:   make(chan []Event, 16),
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Events delivers batches of changes in the order they happened.
func (w *Watcher) Events() <-chan []Event {
	return w.events
}

// Start registers the directory tree and begins delivering events.
// Start is idempotent.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.started || w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.started = true
	w.mu.Unlock()

	if err := w.addTree(w.root); err != nil {
		w.mu.Lock()
		w.started = false
		w.mu.Unlock()
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	go w.loop()
	return nil
}

// Stop ends watching. Stop is idempotent.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	w.stopped = true
	wasStarted := w.started
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	w.cancel()
	_ = w.fw.Close()
	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
		}
	}
}

func (w *Watcher) skipped(path string, isDir bool) bool {
	return w.skip != nil && path != w.root && w.skip(path, isDir)
}

// addTree watches dir and every directory below it.
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// Best effort below the root.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if w.skipped(path, true) {
			return filepath.SkipDir
		}
		if err := w.fw.Add(path); err != nil {
			w.log.Warn().Err(err).Str("dir", path).Msg("cannot watch directory")
		}
		return nil
	})
}

func (w *Watcher) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			return

		case event, ok := <-w.fw.Events:
			if !ok {
				return
			}
			w.handle(event)

		case err, ok := <-w.fw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	var ev Event
	switch {
	case event.Has(fsnotify.Create):
		info, err := os.Lstat(event.Name)
		if err != nil {
			return
		}
		if w.skipped(event.Name, info.IsDir()) {
			return
		}
		if info.IsDir() {
			if err := w.addTree(event.Name); err != nil {
				w.log.Warn().Err(err).Str("dir", event.Name).Msg("cannot watch new directory")
			}
		}
		ev = Event{Op: Created, Path: event.Name}
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if w.skipped(event.Name, false) {
			return
		}
		ev = Event{Op: Removed, Path: event.Name}
	case event.Has(fsnotify.Write):
		if !w.writes || w.skipped(event.Name, false) {
			return
		}
		ev = Event{Op: Written, Path: event.Name}
	default:
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	if n := len(w.pending); n > 0 && w.pending[n-1] == ev {
		return
	}
	w.pending = append(w.pending, ev)
	if w.timer == nil {
		w.timer = time.AfterFunc(w.debounce, w.flush)
	} else {
		w.timer.Reset(w.debounce)
	}
}

func (w *Watcher) flush() {
	w.mu.Lock()
	batch := w.pending
	w.pending = nil
	w.mu.Unlock()
	if len(batch) == 0 {
		return
	}
	select {
	case w.events <- batch:
	case <-w.ctx.Done():
	}
}
