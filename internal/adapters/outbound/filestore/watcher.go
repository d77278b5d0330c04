package filestore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

const DefaultDebounce = 500 * time.Millisecond

var errWatcherStopped = errors.New("config watcher stopped")

// Watcher calls onChange after the settings file is created or written by
// someone, debouncing bursts of events into a single call.
type Watcher struct {
	logger   *slog.Logger
	path     string
	debounce time.Duration
	onChange func(ctx context.Context)

	ready      chan struct{}
	doneCh     chan struct{}
	inShutdown atomic.Bool
	stopped    atomic.Bool

	mu      sync.Mutex
	fsw     *fsnotify.Watcher
	timer   *time.Timer
	reloads atomic.Int64
}

// NewWatcher creates a watcher for the settings file at path.
func NewWatcher(
	logger *slog.Logger,
	path string,
	debounce time.Duration,
	onChange func(ctx context.Context),
) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	return &Watcher{
		logger:   logger.With("component", "config-watcher", "path", path),
		path:     filepath.Clean(path),
		debounce: debounce,
		onChange: onChange,
		ready:    make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start watches the directory of the file; watching the directory keeps
// working across rename-based rewrites of the file.
func (w *Watcher) Start(ctx context.Context) error {
	if w.inShutdown.Load() {
		w.logger.InfoContext(ctx, "config watcher is shutting down, skipping start")

		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}

	dir := filepath.Dir(w.path)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		_ = fsw.Close()

		return fmt.Errorf("create watched dir: %w", err)
	}

	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()

		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.mu.Lock()
	w.fsw = fsw
	w.mu.Unlock()

	go w.run(ctx, fsw.Events, fsw.Errors)

	close(w.ready)

	w.logger.InfoContext(ctx, "watching settings file for changes")

	return nil
}

func (w *Watcher) run(ctx context.Context, events <-chan fsnotify.Event, errs <-chan error) {
	defer close(w.doneCh)
	defer w.stopped.Store(true)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}

			w.handleEvent(ctx, event)
		case err, ok := <-errs:
			if !ok {
				return
			}

			w.logger.WarnContext(ctx, "fsnotify error", "reason", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, event fsnotify.Event) {
	if filepath.Clean(event.Name) != w.path {
		return
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
		return
	}

	w.logger.DebugContext(ctx, "settings file changed", "op", event.Op.String())

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	reloadCtx := context.WithoutCancel(ctx)

	w.timer = time.AfterFunc(w.debounce, func() {
		if w.inShutdown.Load() {
			return
		}

		w.reloads.Add(1)
		w.onChange(reloadCtx)
	})
}

// Reloads returns how many times onChange has been called.
func (w *Watcher) Reloads() int64 {
	return w.reloads.Load()
}

// Name returns the name of the component.
func (w *Watcher) Name() string {
	return "config-watcher"
}

func (w *Watcher) Ready() <-chan struct{} {
	return w.ready
}

// Ping fails once the event loop has exited.
func (w *Watcher) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if w.stopped.Load() {
		return errWatcherStopped
	}

	return nil
}

// Shutdown stops watching and cancels a pending reload.
func (w *Watcher) Shutdown(ctx context.Context) error {
	if !w.inShutdown.CompareAndSwap(false, true) {
		return nil
	}

	w.mu.Lock()
	fsw := w.fsw

	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()

	if fsw == nil {
		return nil
	}

	if err := fsw.Close(); err != nil {
		return fmt.Errorf("close fsnotify watcher: %w", err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("shutdown context done before watcher exited: %w", ctx.Err())
	case <-w.doneCh:
		w.logger.InfoContext(ctx, "config watcher stopped")
	}

	return nil
}
