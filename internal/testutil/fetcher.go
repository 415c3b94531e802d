package testutil

import (
	"context"
	"fmt"
	"sync"

	"github.com/zjrosen/wavecut/internal/fetcher"
)

// FetchCall records one Fetch invocation.
type FetchCall struct {
	Day  string
	Year int
}

// FakeFetcher populates a staging directory from prepared sets instead of
// downloading. Days without a prepared set fetch successfully and stage
// nothing.
type FakeFetcher struct {
	dir string

	mu     sync.Mutex
	days   map[string]*Staging
	fails  map[string]error
	calls  []FetchCall
	hookFn func(FetchCall)
}

// NewFakeFetcher returns a fake writing into dir.
func NewFakeFetcher(dir string) *FakeFetcher {
	return &FakeFetcher{
		dir:   dir,
		days:  make(map[string]*Staging),
		fails: make(map[string]error),
	}
}

func dayKey(day string, year int) string {
	return fmt.Sprintf("%d/%s", year, day)
}

// Stage makes Fetch(day, year) write s into the staging directory.
func (f *FakeFetcher) Stage(day string, year int, s *Staging) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days[dayKey(day, year)] = s
	return f
}

// Fail makes Fetch(day, year) fail. A nil err uses a generic exit error.
func (f *FakeFetcher) Fail(day string, year int, err error) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		err = fmt.Errorf("%w: exit status 1", fetcher.ErrFetchFailed)
	}
	f.fails[dayKey(day, year)] = err
	return f
}

// OnFetch registers a hook run after every call, before staging files.
func (f *FakeFetcher) OnFetch(fn func(FetchCall)) *FakeFetcher {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hookFn = fn
	return f
}

// Fetch implements fetcher.ArchiveFetcher.
func (f *FakeFetcher) Fetch(_ context.Context, day string, year int) error {
	f.mu.Lock()
	call := FetchCall{Day: day, Year: year}
	f.calls = append(f.calls, call)
	hook := f.hookFn
	err := f.fails[dayKey(day, year)]
	staged := f.days[dayKey(day, year)]
	f.mu.Unlock()

	if hook != nil {
		hook(call)
	}
	if err != nil {
		return err
	}
	if staged != nil {
		return staged.Write(f.dir)
	}
	return nil
}

// Calls returns every recorded invocation in order.
func (f *FakeFetcher) Calls() []FetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FetchCall(nil), f.calls...)
}

var _ fetcher.ArchiveFetcher = (*FakeFetcher)(nil)
