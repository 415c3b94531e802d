package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Header is the column layout of the filtered event table.
var Header = []string{"Date", "Time", "Magnitude", "Latitude", "Longitude", "Depth", "DayOfYear", "YearDay", "Remarks"}

// WriteCSV writes events as the filtered event table.
func WriteCSV(w io.Writer, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return err
	}
	for _, ev := range events {
		date := ""
		if !ev.Date.IsZero() {
			date = ev.Date.Format(DateLayout)
		}
		doy := ""
		if ev.DayOfYear > 0 {
			doy = fmt.Sprintf("%03d", ev.DayOfYear)
		}
		record := []string{
			date,
			ev.Time,
			FormatFloat(ev.Magnitude),
			FormatFloat(ev.Latitude),
			FormatFloat(ev.Longitude),
			FormatFloat(ev.Depth),
			doy,
			strconv.Itoa(ev.YearDay),
			ev.Remarks,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteCSVFile writes the table to path, replacing any existing file.
func WriteCSVFile(path string, events []Event) error {
	f, err := os.Create(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := WriteCSV(f, events); err != nil {
		_ = f.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return f.Close()
}

// ReadCSV loads the filtered event table. Columns are located by header
// name. Cells that do not parse are left empty (zero date, zero day of year,
// NaN number) so that Event.Validate can reject the row without failing the
// whole table.
func ReadCSV(r io.Reader) ([]Event, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, name := range []string{"Date", "Time", "DayOfYear"} {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("%w: header has no %s column", ErrMalformedRow, name)
		}
	}

	var events []Event
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(events)+1, err)
		}
		cell := func(name string) string {
			i, ok := cols[name]
			if !ok || i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		events = append(events, Event{
			Date:      parseDate(cell("Date")),
			Time:      cell("Time"),
			Magnitude: parseNumber(cell("Magnitude")),
			Latitude:  parseNumber(cell("Latitude")),
			Longitude: parseNumber(cell("Longitude")),
			Depth:     parseNumber(cell("Depth")),
			DayOfYear: parseWhole(cell("DayOfYear")),
			YearDay:   parseWhole(cell("YearDay")),
			Remarks:   cell("Remarks"),
		})
	}
	return events, nil
}

// ReadCSVFile loads the filtered event table at path.
func ReadCSVFile(path string) ([]Event, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	events, err := ReadCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return events, nil
}

func parseDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range []string{DateLayout, "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		}
	}
	return time.Time{}
}

// parseWhole accepts "070" as well as "70.0", the form a column with
// missing values is written in.
func parseWhole(s string) int {
	v := parseNumber(s)
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return int(v)
}
