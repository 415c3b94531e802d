// Package watcher reports files appearing in the staging directory while a
// download is running.
package watcher

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/zjrosen/wavecut/internal/log"
)

// Watcher monitors one directory and emits debounced batches of new entries.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	debounce  time.Duration
	arrivals  chan []string
	done      chan struct{}
	stopOnce  sync.Once

	mu    sync.Mutex
	seen  map[string]struct{}
	total int
}

// Config holds watcher configuration options.
type Config struct {
	Dir         string
	DebounceDur time.Duration
}

// DefaultConfig returns a half-second debounce for dir.
func DefaultConfig(dir string) Config {
	return Config{
		Dir:         dir,
		DebounceDur: 500 * time.Millisecond,
	}
}

// New creates a watcher; nothing is watched until Start.
func New(cfg Config) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &Watcher{
		fsWatcher: fsw,
		dir:       filepath.Clean(cfg.Dir),
		debounce:  cfg.DebounceDur,
		arrivals:  make(chan []string, 16),
		done:      make(chan struct{}),
		seen:      make(map[string]struct{}),
	}, nil
}

// Start begins watching. The returned channel receives the base names of
// entries created since the previous batch, sorted.
func (w *Watcher) Start() (<-chan []string, error) {
	if err := w.fsWatcher.Add(w.dir); err != nil {
		return nil, fmt.Errorf("watching directory %s: %w", w.dir, err)
	}

	go w.loop()

	return w.arrivals, nil
}

// Stop terminates the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.fsWatcher.Close()
	})
	return err
}

// Total is the number of distinct entries seen since Start.
func (w *Watcher) Total() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.total
}

func (w *Watcher) loop() {
	var (
		timer   *time.Timer
		pending []string
	)

	flush := func() {
		if len(pending) == 0 {
			return
		}
		sort.Strings(pending)
		select {
		case w.arrivals <- pending:
		default:
			log.Debug(log.CatFetch, "Dropping arrival batch", "files", len(pending))
		}
		pending = nil
	}
	defer func() {
		flush()
		close(w.arrivals)
	}()

	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			name, fresh := w.record(event)
			if !fresh {
				continue
			}
			pending = append(pending, name)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}

		case <-func() <-chan time.Time {
			if timer != nil {
				return timer.C
			}
			return nil
		}():
			timer = nil
			flush()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn(log.CatFetch, "Staging watcher error", "dir", w.dir, "error", err)

		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}

// record notes a created entry and reports whether it is new.
func (w *Watcher) record(event fsnotify.Event) (string, bool) {
	if event.Op&fsnotify.Create == 0 {
		return "", false
	}
	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return "", false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.seen[name]; ok {
		return "", false
	}
	w.seen[name] = struct{}{}
	w.total++
	return name, true
}
