// Package console renders the display surface and builds the structured
// logger used across the harness.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

// Status glyphs for CLI output.
const (
	GlyphPlay   = "▶"
	GlyphPassed = "✓"
	GlyphFailed = "✗"
	GlyphPaused = "⏸"
)

var (
	colorYellow = lipgloss.Color("214")
	colorRed    = lipgloss.Color("196")
	colorGreen  = lipgloss.Color("42")
	colorDim    = lipgloss.Color("240")
)

var displayStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(colorYellow).
	Padding(0, 1)

var (
	passedStyle = lipgloss.NewStyle().Foreground(colorGreen)
	failedStyle = lipgloss.NewStyle().Foreground(colorRed)
	dimStyle    = lipgloss.NewStyle().Foreground(colorDim)
)

// Surface is the user-facing display: messages are drawn in a bordered box.
type Surface struct {
	w io.Writer
}

// NewSurface returns a display writing to w (stderr when nil).
func NewSurface(w io.Writer) *Surface {
	if w == nil {
		w = os.Stderr
	}
	return &Surface{w: w}
}

// Display draws msg.
func (s *Surface) Display(msg string) {
	msg = strings.TrimRight(msg, "\n")
	if msg == "" {
		return
	}
	fmt.Fprintln(s.w, displayStyle.Render(msg))
}

// Passed formats a success line.
func Passed(format string, args ...any) string {
	return passedStyle.Render(GlyphPassed + " " + fmt.Sprintf(format, args...))
}

// Failed formats a failure line.
func Failed(format string, args ...any) string {
	return failedStyle.Render(GlyphFailed + " " + fmt.Sprintf(format, args...))
}

// Dim formats secondary text.
func Dim(format string, args ...any) string {
	return dimStyle.Render(fmt.Sprintf(format, args...))
}

// NewLogger returns a logger writing to w at the named level.
func NewLogger(w io.Writer, level string) (*log.Logger, error) {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	return log.NewWithOptions(w, log.Options{
		Level:           lvl,
		Prefix:          "lazylink",
		ReportTimestamp: true,
	}), nil
}

// Discard returns a logger that drops everything; used by tests and
// embedders that do not want diagnostics.
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.FatalLevel})
}
