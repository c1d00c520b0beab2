package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/joseph-ayodele/invoice-helper/constants"
)

type WatchConfig struct {
	Roots       []string      // directories to watch (recursive)
	InitialScan bool          // if true, walk roots and emit existing invoices
	SkipHidden  bool          // ignore dot files and dot directories
	Debounce    time.Duration // a file is emitted once it has been quiet this long
}

// StartWatcher watches the roots for invoice PDFs and emits each path once
// writes to it have settled. Both channels are closed when ctx is done.
func StartWatcher(ctx context.Context, cfg WatchConfig, logger *slog.Logger) (<-chan string, <-chan error, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.Roots) == 0 {
		logger.Error("watcher start failed: no roots provided")
		return nil, nil, errors.New("no roots provided")
	}
	evCh := make(chan string, 256)
	errCh := make(chan error, 1)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		logger.Error("failed to create fsnotify watcher", "error", err)
		return nil, nil, err
	}

	var initial []string
	for _, r := range cfg.Roots {
		err := filepath.WalkDir(r, func(path string, d fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if d.IsDir() {
				if cfg.SkipHidden && path != r && IsHidden(path) {
					return filepath.SkipDir
				}
				return w.Add(path)
			}
			if cfg.InitialScan && wanted(path, cfg.SkipHidden) {
				initial = append(initial, path)
			}
			return nil
		})
		if err != nil {
			logger.Error("failed to add root directory", "root", r, "error", err)
			_ = w.Close()
			return nil, nil, err
		}
	}

	d := newDebouncer(cfg.Debounce, evCh)
	for _, p := range initial {
		d.emitNow(p)
	}

	go func() {
		defer close(errCh)
		defer close(evCh)
		defer d.stop()
		defer func() {
			if err := w.Close(); err != nil {
				logger.Warn("failed to close watcher", "error", err)
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-w.Events:
				if !ok {
					return
				}
				if e.Has(fsnotify.Create) && isDir(e.Name) {
					if cfg.SkipHidden && IsHidden(e.Name) {
						continue
					}
					if err := w.Add(e.Name); err != nil {
						logger.Warn("failed to add new directory to watcher", "path", e.Name, "error", err)
					}
					continue
				}
				if !wanted(e.Name, cfg.SkipHidden) {
					continue
				}
				switch {
				case e.Has(fsnotify.Create), e.Has(fsnotify.Write):
					d.touch(e.Name)
				case e.Has(fsnotify.Remove), e.Has(fsnotify.Rename):
					// renamed away or deleted before it settled
					d.forget(e.Name)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				logger.Error("watcher error", "error", err)
				select {
				case errCh <- err:
				default:
				}
			}
		}
	}()

	return evCh, errCh, nil
}

func wanted(path string, skipHidden bool) bool {
	if skipHidden && IsHidden(path) {
		return false
	}
	return constants.IsInvoiceExt(filepath.Ext(path))
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

// debouncer emits a path after it has seen no events for the configured delay.
type debouncer struct {
	delay time.Duration
	out   chan<- string

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

func newDebouncer(delay time.Duration, out chan<- string) *debouncer {
	return &debouncer{delay: delay, out: out, timers: map[string]*time.Timer{}}
}

func (d *debouncer) touch(path string) {
	if d.delay <= 0 {
		d.emitNow(path)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if t, ok := d.timers[path]; ok {
		t.Reset(d.delay)
		return
	}
	d.timers[path] = time.AfterFunc(d.delay, func() { d.fire(path) })
}

func (d *debouncer) fire(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	delete(d.timers, path)
	d.send(path)
}

func (d *debouncer) emitNow(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.stopped {
		d.send(path)
	}
}

// send must be called with mu held.
func (d *debouncer) send(path string) {
	select {
	case d.out <- path:
	default:
	}
}

func (d *debouncer) forget(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.timers[path]; ok {
		t.Stop()
		delete(d.timers, path)
	}
}

// stop cancels pending timers. Nothing is sent after it returns.
func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stopped = true
	for p, t := range d.timers {
		t.Stop()
		delete(d.timers, p)
	}
}
