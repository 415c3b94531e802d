package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/wavecut/internal/mseed"
)

// fileData holds one staged entry to be written.
type fileData struct {
	name   string
	traces []*mseed.Trace
	raw    []byte
	dir    bool
}

// Staging accumulates staged archive files and writes them into a directory.
type Staging struct {
	files []fileData
}

// NewStaging starts an empty staging set.
func NewStaging() *Staging {
	return &Staging{}
}

// WithFile adds a miniSEED file holding traces.
func (s *Staging) WithFile(name string, traces ...*mseed.Trace) *Staging {
	s.files = append(s.files, fileData{name: name, traces: traces})
	return s
}

// WithGarbage adds a file that is not miniSEED.
func (s *Staging) WithGarbage(name, content string) *Staging {
	s.files = append(s.files, fileData{name: name, raw: []byte(content)})
	return s
}

// WithSubdir adds a subdirectory containing a small text file.
func (s *Staging) WithSubdir(name string) *Staging {
	s.files = append(s.files, fileData{name: name, dir: true})
	return s
}

// Len is the number of top-level entries.
func (s *Staging) Len() int { return len(s.files) }

// Write materializes every entry under dir.
func (s *Staging) Write(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	for _, f := range s.files {
		path := filepath.Join(dir, f.name)
		switch {
		case f.dir:
			if err := os.MkdirAll(path, 0o755); err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(path, "README"), []byte("station metadata"), 0o644); err != nil {
				return err
			}
		case f.raw != nil:
			if err := os.WriteFile(path, f.raw, 0o644); err != nil {
				return err
			}
		default:
			if err := mseed.WriteFile(path, f.traces); err != nil {
				return fmt.Errorf("staging %s: %w", f.name, err)
			}
		}
	}
	return nil
}

// Build writes every entry under dir and fails the test on error.
func (s *Staging) Build(t *testing.T, dir string) {
	t.Helper()
	require.NoError(t, s.Write(dir))
}
