package fetcher

import (
	"context"
	"time"

	"github.com/zjrosen/wavecut/internal/log"
	"github.com/zjrosen/wavecut/internal/watcher"
)

// ArrivalFunc is told about files that appeared during a fetch.
type ArrivalFunc func(day string, year int, names []string)

// Watching reports staging directory arrivals while next runs.
type Watching struct {
	next     ArchiveFetcher
	dir      string
	debounce time.Duration
	onArrive ArrivalFunc
}

// NewWatching wraps next with a watcher on dir. onArrive may be nil.
func NewWatching(next ArchiveFetcher, dir string, onArrive ArrivalFunc) *Watching {
	return &Watching{
		next:     next,
		dir:      dir,
		debounce: watcher.DefaultConfig(dir).DebounceDur,
		onArrive: onArrive,
	}
}

// Fetch delegates to the wrapped fetcher. A watcher that cannot start is
// logged and the fetch runs unwatched.
func (w *Watching) Fetch(ctx context.Context, day string, year int) error {
	wt, err := watcher.New(watcher.Config{Dir: w.dir, DebounceDur: w.debounce})
	if err != nil {
		log.Warn(log.CatFetch, "Staging watcher unavailable", "error", err)
		return w.next.Fetch(ctx, day, year)
	}
	arrivals, err := wt.Start()
	if err != nil {
		_ = wt.Stop()
		log.Warn(log.CatFetch, "Staging watcher unavailable", "error", err)
		return w.next.Fetch(ctx, day, year)
	}

	drained := make(chan struct{})
	go func() {
		defer close(drained)
		for names := range arrivals {
			log.Debug(log.CatFetch, "Staged files arrived", "day", day, "year", year, "count", len(names))
			if w.onArrive != nil {
				w.onArrive(day, year, names)
			}
		}
	}()

	fetchErr := w.next.Fetch(ctx, day, year)

	_ = wt.Stop()
	<-drained
	log.Info(log.CatFetch, "Fetch watched", "day", day, "year", year, "files", wt.Total())
	return fetchErr
}
