// Package report writes the user-facing side of a run: per-year log files,
// the failure ledger and the closing summary.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
)

// YearLogPath returns {outputDir}/{year}/{year}.log.
func YearLogPath(outputDir string, year int) string {
	y := strconv.Itoa(year)
	return filepath.Join(outputDir, y, y+".log")
}

// Journal appends status lines to per-year log files and echoes them to the
// console. Log files are opened on first use and kept open until Close.
type Journal struct {
	outputDir string
	console   io.Writer
	palette   palette

	mu    sync.Mutex
	files map[int]*os.File
}

// NewJournal writes year logs under outputDir. console may be nil.
func NewJournal(outputDir string, console io.Writer) *Journal {
	if console == nil {
		console = io.Discard
	}
	return &Journal{
		outputDir: outputDir,
		console:   console,
		palette:   newPalette(console),
		files:     make(map[int]*os.File),
	}
}

// Log writes msg to the year's log file and the console. A message starting
// with newlines keeps them, which separates event blocks.
func (j *Journal) Log(year int, msg string) error {
	j.Print(msg)

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := j.open(year)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, msg+"\n"); err != nil {
		return fmt.Errorf("writing %s: %w", f.Name(), err)
	}
	return nil
}

// Print writes msg to the console only.
func (j *Journal) Print(msg string) {
	body := strings.TrimLeft(msg, "\n")
	lead := msg[:len(msg)-len(body)]
	_, _ = fmt.Fprintln(j.console, lead+j.palette.colorize(body))
}

func (j *Journal) open(year int) (*os.File, error) {
	if f, ok := j.files[year]; ok {
		return f, nil
	}
	path := YearLogPath(j.outputDir, year)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating year directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644) //nolint:gosec // G304: path is built from the output directory
	if err != nil {
		return nil, fmt.Errorf("opening year log: %w", err)
	}
	j.files[year] = f
	return f, nil
}

// Close closes every open year log.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	var first error
	for year, f := range j.files {
		if err := f.Close(); err != nil && first == nil {
			first = err
		}
		delete(j.files, year)
	}
	return first
}
