package console

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/muesli/termenv"

	"github.com/shadowtrace/shadowtrace-cli/api/schemas"
)

// Palette.
var (
	colorAccent  = lipgloss.Color("#3B82F6")
	colorSuccess = lipgloss.Color("#22C55E")
	colorWarning = lipgloss.Color("#F59E0B")
	colorError   = lipgloss.Color("#EF4444")
	colorMuted   = lipgloss.Color("#64748B")
)

// Theme holds the styles bound to one output renderer.
type Theme struct {
	renderer *lipgloss.Renderer

	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Success lipgloss.Style
	Warning lipgloss.Style
	Error   lipgloss.Style
	Card    lipgloss.Style
	Header  lipgloss.Style
	Cell    lipgloss.Style
	Border  lipgloss.Style
}

// ColorEnabled resolves a color mode ("auto", "always", "never") for out.
// In auto mode color is used only when out is a terminal.
func ColorEnabled(mode string, out io.Writer) bool {
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "always":
		return true
	case "never":
		return false
	}
	f, ok := out.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewTheme builds the styles for out.
func NewTheme(out io.Writer, color bool) *Theme {
	r := lipgloss.NewRenderer(out)
	if color {
		r.SetColorProfile(termenv.TrueColor)
	} else {
		r.SetColorProfile(termenv.Ascii)
	}

	return &Theme{
		renderer: r,
		Title:    r.NewStyle().Bold(true).Foreground(colorAccent),
		Label:    r.NewStyle().Foreground(colorMuted).Bold(true),
		Muted:    r.NewStyle().Foreground(colorMuted),
		Success:  r.NewStyle().Foreground(colorSuccess),
		Warning:  r.NewStyle().Foreground(colorWarning),
		Error:    r.NewStyle().Foreground(colorError).Bold(true),
		Card: r.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1).
			Width(24),
		Header: r.NewStyle().Bold(true).Foreground(colorAccent).Padding(0, 1),
		Cell:   r.NewStyle().Padding(0, 1),
		Border: r.NewStyle().Foreground(colorMuted),
	}
}

// Risk styles a risk level.
func (t *Theme) Risk(level schemas.RiskLevel) string {
	switch level {
	case schemas.RiskCritical:
		return t.Error.Render(string(level))
	case schemas.RiskHigh:
		return t.Warning.Bold(true).Render(string(level))
	case schemas.RiskMedium:
		return t.Warning.Render(string(level))
	default:
		return t.Success.Render(string(level))
	}
}

// Status styles a session status.
func (t *Theme) Status(s schemas.SessionStatus) string {
	switch s {
	case schemas.StatusComplete:
		return t.Success.Render(s.String())
	case schemas.StatusFailed:
		return t.Error.Render(s.String())
	case schemas.StatusRunning:
		return t.Warning.Render(s.String())
	default:
		return t.Muted.Render(s.String())
	}
}
