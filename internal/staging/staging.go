// Package staging is the scratch directory one day's archive files are
// fetched into, scanned from, and purged after every event.
package staging

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// Dir is a handle on a staging directory.
type Dir struct {
	path string
}

// New returns a handle for path. Nothing is created until Ensure.
func New(path string) Dir {
	return Dir{path: filepath.Clean(path)}
}

// Path returns the directory path.
func (d Dir) Path() string { return d.path }

// Ensure creates the directory and any parents.
func (d Dir) Ensure() error {
	if err := os.MkdirAll(d.path, 0o755); err != nil {
		return fmt.Errorf("creating staging directory: %w", err)
	}
	return nil
}

// List returns the full path of every entry, sorted by name. A missing
// directory lists as empty.
func (d Dir) List() ([]string, error) {
	entries, err := os.ReadDir(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing staging directory: %w", err)
	}
	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		paths = append(paths, filepath.Join(d.path, e.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// EntryError is a staging entry that could not be removed.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("removing %s: %v", e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }

// Purge removes every entry (files, symlinks, subdirectories) and keeps the
// directory itself. It reports how many entries were removed and one
// EntryError per entry that was not; a failure never stops the sweep.
func (d Dir) Purge() (int, []*EntryError) {
	paths, err := d.List()
	if err != nil {
		return 0, []*EntryError{{Path: d.path, Err: err}}
	}

	removed := 0
	var failed []*EntryError
	for _, p := range paths {
		if err := removeEntry(p); err != nil {
			failed = append(failed, &EntryError{Path: p, Err: err})
			continue
		}
		removed++
	}
	return removed, failed
}

func removeEntry(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return os.RemoveAll(path)
	}
	// files and symlinks; a link is removed, never its target
	return os.Remove(path)
}
