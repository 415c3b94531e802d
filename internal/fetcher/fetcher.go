// Package fetcher fills the staging directory with one day of station
// archives. The production fetcher shells out to a download command.
package fetcher

import (
	"context"
	"errors"
)

// ErrFetchFailed wraps every failure to retrieve a day of archives.
var ErrFetchFailed = errors.New("archive fetch failed")

// ArchiveFetcher retrieves the archives for one day into the staging
// directory. day is the zero-padded day of year ("070").
type ArchiveFetcher interface {
	Fetch(ctx context.Context, day string, year int) error
}

// Func adapts a plain function to ArchiveFetcher.
type Func func(ctx context.Context, day string, year int) error

// Fetch calls f.
func (f Func) Fetch(ctx context.Context, day string, year int) error {
	return f(ctx, day, year)
}
