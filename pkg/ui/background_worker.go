// This file implements the BackgroundWorker, which watches the source on
// disk and prepares updates off the UI thread.
package ui

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/vanderheijden86/flatree/pkg/model"
	"github.com/vanderheijden86/flatree/pkg/watcher"
)

// WorkerState represents the current state of the background worker.
type WorkerState int

const (
	// WorkerIdle means the worker is waiting for file changes.
	WorkerIdle WorkerState = iota
	// WorkerProcessing means the worker is reading a changed document.
	WorkerProcessing
	// WorkerStopped means the worker has been stopped.
	WorkerStopped
)

// WorkerError wraps errors with phase and retry context.
type WorkerError struct {
	Phase   string    // "read", "parse"
	Cause   error     // The underlying error
	Time    time.Time // When the error occurred
	Retries int       // Number of consecutive failures
}

func (e WorkerError) Error() string {
	return fmt.Sprintf("%s failed: %v (retries: %d)", e.Phase, e.Cause, e.Retries)
}

func (e WorkerError) Unwrap() error {
	return e.Cause
}

// BackgroundWorker owns the file watcher. It runs in one of two modes:
//
//   - Directory mode forwards created/removed batches as ChangesMsg; the UI
//     applies them to the index one entry at a time.
//   - Document mode watches a single file. With a Parse function it parses
//     changed content off the UI thread and sends DocumentReadyMsg, skipping
//     writes that leave the content unchanged. Without one it sends
//     SourceChangedMsg and the UI reloads the source itself.
type BackgroundWorker struct {
	// Configuration
	root     string
	document string
	parse    func(path string) (*model.Tree, error)
	send     func(tea.Msg)
	log      zerolog.Logger

	// State
	mu       sync.RWMutex
	state    WorkerState
	started  bool // True if Start() has been called
	lastHash string

	// Error tracking
	lastError  *WorkerError // Most recent error (nil if last operation succeeded)
	errorCount int          // Consecutive error count

	// Components
	watcher *watcher.Watcher

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// WorkerConfig configures the BackgroundWorker.
type WorkerConfig struct {
	// Root is the directory to watch recursively (directory mode).
	Root string
	// Document is the single file to watch (document mode). Takes
	// precedence over Root.
	Document string
	// Parse reads Document into a tree. Optional.
	Parse func(path string) (*model.Tree, error)
	// Filter drops events for matching paths in directory mode.
	Filter        func(path string, isDir bool) bool
	DebounceDelay time.Duration
	// Send delivers messages to the UI, usually (*tea.Program).Send.
	Send   func(tea.Msg)
	Logger zerolog.Logger
}

// NewBackgroundWorker creates a new background worker. With neither Root
// nor Document set, the worker is inert.
func NewBackgroundWorker(cfg WorkerConfig) (*BackgroundWorker, error) {
	ctx, cancel := context.WithCancel(context.Background())

	if cfg.DebounceDelay == 0 {
		cfg.DebounceDelay = 200 * time.Millisecond
	}

	w := &BackgroundWorker{
		root:     cfg.Root,
		document: cfg.Document,
		parse:    cfg.Parse,
		send:     cfg.Send,
		log:      cfg.Logger,
		state:    WorkerIdle,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}

	var (
		fw  *watcher.Watcher
		err error
	)
	switch {
	case cfg.Document != "":
		doc := filepath.Clean(cfg.Document)
		w.document = doc
		fw, err = watcher.NewWatcher(filepath.Dir(doc),
			watcher.WithDebounceDuration(cfg.DebounceDelay),
			watcher.WithWrites(true),
			watcher.WithFilter(func(path string, isDir bool) bool {
				return isDir || filepath.Clean(path) != doc
			}),
			watcher.WithLogger(cfg.Logger),
		)
	case cfg.Root != "":
		fw, err = watcher.NewWatcher(cfg.Root,
			watcher.WithDebounceDuration(cfg.DebounceDelay),
			watcher.WithFilter(cfg.Filter),
			watcher.WithLogger(cfg.Logger),
		)
	}
	if err != nil {
		cancel()
		return nil, err
	}
	w.watcher = fw

	return w, nil
}

// Start begins watching for file changes.
// Start is idempotent - calling it multiple times has no effect.
func (w *BackgroundWorker) Start() error {
	w.mu.Lock()
	if w.started {
		w.mu.Unlock()
		return nil // Already started
	}
	w.started = true
	w.mu.Unlock()

	if w.watcher == nil {
		// No watcher - close done channel immediately so Stop() doesn't block
		close(w.done)
		return nil
	}

	if w.document != "" {
		w.setHash(hashFile(w.document))
	}
	if err := w.watcher.Start(); err != nil {
		w.mu.Lock()
		w.started = false
		w.mu.Unlock()
		return err
	}
	go w.processLoop()
	return nil
}

// Stop halts the background worker and cleans up resources.
// Stop is idempotent - calling it multiple times has no effect.
func (w *BackgroundWorker) Stop() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerStopped
	wasStarted := w.started
	w.mu.Unlock()

	w.cancel()

	if w.watcher != nil {
		w.watcher.Stop()
	}

	// Only wait for done if Start() was called
	if wasStarted {
		select {
		case <-w.done:
		case <-time.After(2 * time.Second):
			// Timeout waiting for graceful shutdown
		}
	}
}

// State returns the current worker state.
func (w *BackgroundWorker) State() WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// LastError returns the most recent error (nil if last operation succeeded).
func (w *BackgroundWorker) LastError() *WorkerError {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastError
}

// processLoop waits for change batches and dispatches them.
func (w *BackgroundWorker) processLoop() {
	defer close(w.done)

	for {
		select {
		case <-w.ctx.Done():
			return

		case batch := <-w.watcher.Events():
			if w.document == "" {
				w.emit(ChangesMsg{Events: batch})
				continue
			}
			w.process()
		}
	}
}

// process re-reads the watched document. It runs on the process loop, so
// runs never overlap; changes arriving meanwhile queue up as the next batch.
func (w *BackgroundWorker) process() {
	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerProcessing
	w.mu.Unlock()

	msg := w.buildUpdate()

	w.mu.Lock()
	if w.state == WorkerStopped {
		w.mu.Unlock()
		return
	}
	w.state = WorkerIdle
	w.mu.Unlock()

	if msg != nil {
		w.emit(msg)
	}
}

// buildUpdate prepares the message for a document change. It returns nil
// when the content hash is unchanged.
func (w *BackgroundWorker) buildUpdate() tea.Msg {
	start := time.Now()

	var data []byte
	if werr := w.safeCompute("read", func() error {
		var err error
		data, err = os.ReadFile(w.document)
		return err
	}); werr != nil {
		// Editors often replace files by rename; the next event brings
		// the new content.
		w.recordError(werr)
		w.log.Debug().Err(werr).Str("path", w.document).Msg("document not readable")
		return nil
	}

	hash := hashBytes(data)
	w.mu.RLock()
	unchanged := hash == w.lastHash
	w.mu.RUnlock()
	if unchanged {
		w.log.Debug().Str("hash", hashPrefix(hash)).Msg("content unchanged, skipping reload")
		w.recordError(nil)
		return nil
	}

	if w.parse == nil {
		w.setHash(hash)
		w.recordError(nil)
		return SourceChangedMsg{Path: w.document}
	}

	var tree *model.Tree
	if werr := w.safeCompute("parse", func() error {
		var err error
		tree, err = w.parse(w.document)
		return err
	}); werr != nil {
		w.recordError(werr)
		w.log.Warn().Err(werr).Str("path", w.document).Msg("cannot parse document")
		return WorkerErrorMsg{Err: werr, Recoverable: true}
	}

	w.setHash(hash)
	w.recordError(nil)
	w.log.Debug().
		Str("path", w.document).
		Int("roots", len(tree.Roots)).
		Dur("took", time.Since(start)).
		Msg("document parsed")
	return DocumentReadyMsg{Tree: tree, Hash: hash}
}

func (w *BackgroundWorker) emit(msg tea.Msg) {
	if w.send != nil {
		w.send(msg)
	}
}

func (w *BackgroundWorker) setHash(hash string) {
	w.mu.Lock()
	w.lastHash = hash
	w.mu.Unlock()
}

// safeCompute executes fn and recovers from any panics.
// Returns a WorkerError if fn fails or panics, nil otherwise.
func (w *BackgroundWorker) safeCompute(phase string, fn func() error) *WorkerError {
	var result *WorkerError
	func() {
		defer func() {
			if r := recover(); r != nil {
				result = &WorkerError{
					Phase: phase,
					Cause: fmt.Errorf("panic: %v\n%s", r, debug.Stack()),
					Time:  time.Now(),
				}
			}
		}()
		if err := fn(); err != nil {
			result = &WorkerError{
				Phase: phase,
				Cause: err,
				Time:  time.Now(),
			}
		}
	}()
	return result
}

// recordError tracks an error and updates error state.
func (w *BackgroundWorker) recordError(err *WorkerError) {
	w.mu.Lock()
	w.lastError = err
	if err != nil {
		w.errorCount++
		err.Retries = w.errorCount
	} else {
		w.errorCount = 0
	}
	w.mu.Unlock()
}

// LastHash returns the content hash of the last document read.
func (w *BackgroundWorker) LastHash() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.lastHash
}

// ChangesMsg carries a batch of directory changes to the UI.
type ChangesMsg struct {
	Events []watcher.Event
}

// DocumentReadyMsg is sent when a changed document has been parsed.
type DocumentReadyMsg struct {
	Tree *model.Tree
	Hash string
}

// SourceChangedMsg is sent when a watched file changed and the source must
// reload itself.
type SourceChangedMsg struct {
	Path string
}

// WorkerErrorMsg is sent to the UI when reading a change fails.
type WorkerErrorMsg struct {
	Err         error
	Recoverable bool // True if we expect to recover on next file change
}

func hashBytes(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func hashFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return hashBytes(data)
}

// hashPrefix returns a safe prefix of the hash for logging.
func hashPrefix(hash string) string {
	if len(hash) > 16 {
		return hash[:16]
	}
	return hash
}
