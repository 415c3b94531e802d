package report

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// Summary is the closing report of a run.
type Summary struct {
	RunID      string
	Total      int
	Succeeded  int
	Failed     int
	Skipped    int
	LedgerPath string
	Elapsed    time.Duration
}

// Lines returns the summary as plain text lines.
func (s Summary) Lines() []string {
	lines := []string{
		"=== All events processed ===",
		fmt.Sprintf("Total event input: %d", s.Total),
		fmt.Sprintf("Total succeeded  : %d", s.Succeeded),
		fmt.Sprintf("Total failed     : %d", s.Failed),
	}
	if s.Skipped > 0 {
		lines = append(lines, fmt.Sprintf("Total skipped    : %d", s.Skipped))
	}
	lines = append(lines, fmt.Sprintf("Failed events saved to: %s", s.LedgerPath))
	if s.RunID != "" {
		lines = append(lines, fmt.Sprintf("Run id: %s", s.RunID))
	}
	if s.Elapsed > 0 {
		lines = append(lines, fmt.Sprintf("Elapsed: %s", s.Elapsed.Round(time.Millisecond)))
	}
	return lines
}

// WriteSummary prints s to w, boxed when boxed is set.
func WriteSummary(w io.Writer, s Summary, boxed bool) error {
	text := strings.Join(s.Lines(), "\n")
	if boxed {
		p := newPalette(w)
		head, rest, _ := strings.Cut(text, "\n")
		text = p.box.Render(p.heading.Render(head) + "\n" + rest)
	}
	_, err := fmt.Fprintln(w, "\n"+text)
	return err
}
