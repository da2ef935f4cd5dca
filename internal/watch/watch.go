// Package watch delivers newly created capture files from a directory tree.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const (
	defaultQueueSize = 64
	// sweptMemory is how long a file queued by a directory sweep waits for
	// its own create event before the sweep forgets it.
	sweptMemory = time.Minute
)

// Filter selects paths by substring. A path matches when it contains every
// Include entry and none of the Exclude entries. Empty entries are ignored.
type Filter struct {
	Include []string
	Exclude []string
}

// Match reports whether path passes the filter.
func (f Filter) Match(path string) bool {
	for _, s := range f.Include {
		if s != "" && !strings.Contains(path, s) {
			return false
		}
	}
	for _, s := range f.Exclude {
		if s != "" && strings.Contains(path, s) {
			return false
		}
	}
	return true
}

// Handler processes one settled capture.
type Handler func(ctx context.Context, path string)

// Options configures a Watcher.
type Options struct {
	Root   string
	Filter Filter
	// Settle is how long after its create event a file is handed to the
	// handler, so the writer can finish.
	Settle time.Duration
	// QueueSize bounds the number of captures waiting to settle.
	QueueSize int
}

type pending struct {
	path string
	seen time.Time
}

// Watcher watches Root and every directory below it, including ones created
// later. Matching files are handed to the handler one at a time, in the
// order their create events arrived.
type Watcher struct {
	logger *zap.Logger
	fsw    *fsnotify.Watcher
	root   string
	filter Filter
	settle time.Duration
	queue  chan pending

	mu   sync.Mutex
	dirs map[string]struct{}
	// swept holds files queued by sweeping a new directory, so a create
	// event for the same file does not queue it twice.
	swept map[string]time.Time
}

// New creates a Watcher and registers Root and its existing subdirectories.
func New(logger *zap.Logger, opts Options) (*Watcher, error) {
	if opts.Root == "" {
		return nil, errors.New("watch root is required")
	}
	info, err := os.Stat(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("watch root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("watch root %s is not a directory", opts.Root)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}

	size := opts.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	w := &Watcher{
		logger: logger.Named("watch"),
		fsw:    fsw,
		root:   opts.Root,
		filter: opts.Filter,
		settle: opts.Settle,
		queue:  make(chan pending, size),
		dirs:   make(map[string]struct{}),
		swept:  make(map[string]time.Time),
	}
	if err := w.addTree(opts.Root, nil); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Dirs returns the directories currently watched.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.dirs))
	for d := range w.dirs {
		out = append(out, d)
	}
	return out
}

// Run dispatches settled captures to handle until ctx is cancelled. Captures
// still settling when ctx ends are dropped.
func (w *Watcher) Run(ctx context.Context, handle Handler) error {
	w.logger.Info("Watching for captures",
		zap.String("root", w.root),
		zap.Duration("settle", w.settle),
		zap.Int("dirs", len(w.Dirs())),
	)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		w.dispatch(ctx, handle)
	}()
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

// Close releases the underlying watcher. Call after Run returns.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if !ev.Has(fsnotify.Create) {
		return
	}
	info, err := os.Stat(ev.Name)
	if err != nil {
		w.logger.Debug("Created path vanished", zap.String("path", ev.Name), zap.Error(err))
		return
	}
	if info.IsDir() {
		// Files can land in a new directory before it is watched; the
		// sweep queues those.
		err := w.addTree(ev.Name, func(path string) {
			if !w.filter.Match(path) {
				return
			}
			w.markSwept(path)
			w.enqueue(ctx, path)
		})
		if err != nil {
			w.logger.Warn("Failed to watch new directory", zap.String("path", ev.Name), zap.Error(err))
		}
		return
	}
	if w.takeSwept(ev.Name) {
		w.logger.Debug("Capture already queued by directory sweep", zap.String("path", ev.Name))
		return
	}
	if !w.filter.Match(ev.Name) {
		w.logger.Debug("Ignoring file", zap.String("path", ev.Name))
		return
	}
	w.enqueue(ctx, ev.Name)
}

func (w *Watcher) enqueue(ctx context.Context, path string) {
	select {
	case w.queue <- pending{path: path, seen: time.Now()}:
		w.logger.Debug("Capture queued", zap.String("path", path))
	case <-ctx.Done():
	default:
		w.logger.Warn("Capture queue full, dropping file", zap.String("path", path))
	}
}

func (w *Watcher) markSwept(path string) {
	now := time.Now()
	w.mu.Lock()
	defer w.mu.Unlock()
	for p, at := range w.swept {
		if now.Sub(at) > sweptMemory {
			delete(w.swept, p)
		}
	}
	w.swept[path] = now
}

func (w *Watcher) takeSwept(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.swept[path]
	delete(w.swept, path)
	return ok
}

// dispatch hands queued captures to handle in arrival order, each one once
// its settle delay has passed.
func (w *Watcher) dispatch(ctx context.Context, handle Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		case p := <-w.queue:
			if wait := time.Until(p.seen.Add(w.settle)); wait > 0 {
				timer := time.NewTimer(wait)
				select {
				case <-timer.C:
				case <-ctx.Done():
					timer.Stop()
					return
				}
			}
			w.invoke(ctx, handle, p.path)
		}
	}
}

func (w *Watcher) invoke(ctx context.Context, handle Handler, path string) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("Capture handler panicked", zap.String("path", path), zap.Any("recovered", r))
		}
	}()
	handle(ctx, path)
}

// addTree watches dir and every directory below it. A non-nil onFile is
// called for each regular file found, after its directory is watched.
func (w *Watcher) addTree(dir string, onFile func(path string)) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			if onFile != nil && d.Type().IsRegular() {
				onFile(path)
			}
			return nil
		}
		w.mu.Lock()
		_, seen := w.dirs[path]
		w.mu.Unlock()
		if seen {
			return nil
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		w.mu.Lock()
		w.dirs[path] = struct{}{}
		w.mu.Unlock()
		w.logger.Debug("Watching directory", zap.String("path", path))
		return nil
	})
}
