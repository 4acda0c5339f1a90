package render

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/iedon/gameping-agent/latency"
	"github.com/iedon/gameping-agent/monitor"
)

const clearScreen = "\033[2J\033[H"

// Terminal redraws a fixed status panel on every report
type Terminal struct {
	w io.Writer

	title lipgloss.Style
	rule  lipgloss.Style
	label lipgloss.Style
	value lipgloss.Style
	good  lipgloss.Style
	bad   lipgloss.Style
	dim   lipgloss.Style
}

func NewTerminal(w io.Writer) *Terminal {
	r := lipgloss.NewRenderer(w)
	return &Terminal{
		w:     w,
		title: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#7C3AED")),
		rule:  r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
		label: r.NewStyle().Width(9),
		value: r.NewStyle().Bold(true).Foreground(lipgloss.Color("#F9FAFB")),
		good:  r.NewStyle().Foreground(lipgloss.Color("#10B981")).Bold(true),
		bad:   r.NewStyle().Foreground(lipgloss.Color("#EF4444")).Bold(true),
		dim:   r.NewStyle().Foreground(lipgloss.Color("#6B7280")),
	}
}

func (t *Terminal) header(sb *strings.Builder) {
	sb.WriteString(clearScreen)
	sb.WriteString(t.title.Render("Game server monitor:"))
	sb.WriteString("\n")
	sb.WriteString(t.rule.Render("-------------------------"))
	sb.WriteString("\n")
}

func (t *Terminal) field(sb *strings.Builder, label, value string) {
	sb.WriteString(t.label.Render(label + ":"))
	sb.WriteString(value)
	sb.WriteString("\n")
}

func (t *Terminal) RenderSnapshot(s monitor.Snapshot) error {
	var sb strings.Builder
	t.header(&sb)

	server := t.value.Render(s.Endpoint)
	if s.Country != "" {
		server += " " + t.dim.Render("["+s.Country+"]")
	}
	t.field(&sb, "Server", server)

	noSamples := s.Samples == 0
	t.field(&sb, "Ping", t.millis(s.Last, noSamples))
	t.field(&sb, "Average", t.millis(s.Average, noSamples))
	t.field(&sb, "Max", t.millis(s.Max, noSamples))
	t.field(&sb, "Min", t.millis(s.Min, noSamples || s.Min == latency.MinSentinel))

	errStyle := t.good
	if s.Errors > 0 {
		errStyle = t.bad
	}
	t.field(&sb, "Errors", errStyle.Render(fmt.Sprintf("%d", s.Errors)))

	_, err := io.WriteString(t.w, sb.String())
	return err
}

func (t *Terminal) RenderStatus(msg string) error {
	var sb strings.Builder
	t.header(&sb)
	sb.WriteString(t.bad.Render(msg))
	sb.WriteString("\n")

	_, err := io.WriteString(t.w, sb.String())
	return err
}

func (t *Terminal) millis(v uint32, missing bool) string {
	if missing {
		return t.dim.Render("n/a")
	}
	return t.value.Render(fmt.Sprintf("%d ms", v))
}
