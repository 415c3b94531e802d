package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/zjrosen/wavecut/internal/catalog"
)

// LedgerHeader is the first line of every failure ledger.
const LedgerHeader = "Date,Time,Magnitude,Latitude,Longitude,Depth,DayOfYear,Year,Remarks"

// LedgerPath returns {outputDir}/failed.log.
func LedgerPath(outputDir string) string {
	return filepath.Join(outputDir, "failed.log")
}

// FailureRecord is one failed event.
type FailureRecord struct {
	Origin    time.Time
	Magnitude float64
	Latitude  float64
	Longitude float64
	Depth     float64
	Day       string
	Year      int
	Remarks   string
}

// Row renders the record as a ledger line. Remarks are always quoted.
func (r FailureRecord) Row() string {
	return strings.Join([]string{
		r.Origin.Format("2006-01-02"),
		r.Origin.Format("15:04:05"),
		catalog.FormatFloat(r.Magnitude),
		catalog.FormatFloat(r.Latitude),
		catalog.FormatFloat(r.Longitude),
		catalog.FormatFloat(r.Depth),
		r.Day,
		fmt.Sprint(r.Year),
		`"` + strings.ReplaceAll(r.Remarks, `"`, `""`) + `"`,
	}, ",")
}

// Ledger is the per-run failure ledger.
type Ledger struct {
	f *os.File
}

// CreateLedger truncates path and writes the header.
func CreateLedger(path string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating ledger directory: %w", err)
	}
	f, err := os.Create(path) //nolint:gosec // G304: path is built from the output directory
	if err != nil {
		return nil, fmt.Errorf("creating failure ledger: %w", err)
	}
	if _, err := fmt.Fprintln(f, LedgerHeader); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("writing ledger header: %w", err)
	}
	return &Ledger{f: f}, nil
}

// Append writes one failed event.
func (l *Ledger) Append(r FailureRecord) error {
	if _, err := fmt.Fprintln(l.f, r.Row()); err != nil {
		return fmt.Errorf("appending to failure ledger: %w", err)
	}
	return nil
}

// Path is the ledger file path.
func (l *Ledger) Path() string { return l.f.Name() }

// Close closes the ledger file.
func (l *Ledger) Close() error { return l.f.Close() }
