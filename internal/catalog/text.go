package catalog

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/zjrosen/wavecut/internal/log"
)

// Columns of a catalog listing row, in order.
const (
	colOriginTime = iota
	colStatus
	colOriginCount
	colMagnitude
	colMagnitudeType
	colMagnitudeCount
	colLatitude
	colLongitude
	colDepth
	colRemarks
	columnCount
)

var (
	timestampPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}`)
	cellSeparator    = regexp.MustCompile(`\s*\|\s*`)
)

// ParseText reads a pipe-delimited catalog listing. Only lines carrying an
// origin timestamp are considered; rows that cannot be normalized are logged
// and dropped. YearDay is counted from the earliest date among the kept rows.
func ParseText(r io.Reader) ([]Event, error) {
	var events []Event

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !timestampPattern.MatchString(line) {
			continue
		}
		ev, err := parseRow(line)
		if err != nil {
			log.Warn(log.CatCatalog, "Skipping catalog line", "line", lineNo, "error", err)
			continue
		}
		events = append(events, ev)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	assignYearDays(events)
	return events, nil
}

func parseRow(line string) (Event, error) {
	trimmed := strings.TrimSpace(strings.Trim(line, "| \n\r"))
	cells := cellSeparator.Split(trimmed, -1)
	if len(cells) != columnCount {
		return Event{}, fmt.Errorf("%w: %d columns, want %d", ErrMalformedRow, len(cells), columnCount)
	}

	dateText, timeText, _ := strings.Cut(cells[colOriginTime], " ")
	date, err := time.Parse(DateLayout, dateText)
	if err != nil {
		return Event{}, fmt.Errorf("%w: origin date %q", ErrMalformedRow, dateText)
	}

	lat, err := parseCoordinate(cells[colLatitude])
	if err != nil {
		return Event{}, err
	}
	lon, err := parseCoordinate(cells[colLongitude])
	if err != nil {
		return Event{}, err
	}
	depth, err := parseDepth(cells[colDepth])
	if err != nil {
		return Event{}, err
	}

	return Event{
		Date:      date,
		Time:      timeText,
		Magnitude: parseNumber(cells[colMagnitude]),
		Latitude:  lat,
		Longitude: lon,
		Depth:     depth,
		DayOfYear: date.YearDay(),
		Remarks:   cells[colRemarks],
	}, nil
}

// parseCoordinate converts "8.25 S" style values to signed decimal degrees.
func parseCoordinate(s string) (float64, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformedRow, s)
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0, fmt.Errorf("%w: coordinate %q", ErrMalformedRow, s)
	}
	switch strings.ToUpper(fields[1]) {
	case "S", "W":
		v = -v
	}
	return v, nil
}

func parseDepth(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(strings.ReplaceAll(s, " km", "")), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: depth %q", ErrMalformedRow, s)
	}
	return v, nil
}

// parseNumber returns NaN for anything that is not a number so the row is
// still kept and later rejected by the range filter.
func parseNumber(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

func assignYearDays(events []Event) {
	if len(events) == 0 {
		return
	}
	earliest := events[0].Date
	for _, ev := range events[1:] {
		if ev.Date.Before(earliest) {
			earliest = ev.Date
		}
	}
	for i := range events {
		events[i].YearDay = int(events[i].Date.Sub(earliest).Hours()/24) + 1
	}
}
