package report

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Severity tags that prefix user-facing run messages.
const (
	TagSkip   = "[SKIP]"
	TagFailed = "[FAILED]"
	TagSaved  = "[SAVED]"
	TagError  = "[ERROR]"
	TagInfo   = "[INFO]"
)

var (
	successColor = lipgloss.AdaptiveColor{Light: "#43BF6D", Dark: "#73F59F"}
	warningColor = lipgloss.AdaptiveColor{Light: "#FECA57", Dark: "#FECA57"}
	errorColor   = lipgloss.AdaptiveColor{Light: "#FF6B6B", Dark: "#FF8787"}
	mutedColor   = lipgloss.AdaptiveColor{Light: "#666666", Dark: "#999999"}
	headingColor = lipgloss.AdaptiveColor{Light: "#1A5276", Dark: "#89B4FA"}
)

// palette renders tags for one output stream. The renderer inspects the
// writer, so files and buffers get plain text.
type palette struct {
	tags    map[string]lipgloss.Style
	heading lipgloss.Style
	box     lipgloss.Style
}

func newPalette(w io.Writer) palette {
	r := lipgloss.NewRenderer(w)
	return palette{
		tags: map[string]lipgloss.Style{
			TagSkip:   r.NewStyle().Foreground(warningColor),
			TagFailed: r.NewStyle().Foreground(errorColor).Bold(true),
			TagSaved:  r.NewStyle().Foreground(successColor).Bold(true),
			TagError:  r.NewStyle().Foreground(errorColor),
			TagInfo:   r.NewStyle().Foreground(mutedColor),
		},
		heading: r.NewStyle().Foreground(headingColor).Bold(true),
		box: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(mutedColor).
			Padding(0, 1),
	}
}

// colorize styles the leading severity tag or event heading of line.
func (p palette) colorize(line string) string {
	for tag, style := range p.tags {
		if rest, ok := strings.CutPrefix(line, tag); ok {
			return style.Render(tag) + rest
		}
	}
	if strings.HasPrefix(line, "=== ") {
		return p.heading.Render(line)
	}
	return line
}
