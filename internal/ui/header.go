package ui

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Header is the banner printed before a one-shot device command.
type Header struct {
	Title   string            // e.g. "SET TEXT FRAME"
	Command string            // e.g. "signctl text-frame gantry-north"
	Params  map[string]string // e.g. {"Device": "10.0.0.9:4001", "Frame": "5"}
	Width   int
}

// NewHeader creates a new header with the given values
func NewHeader(title, command string, params map[string]string) *Header {
	return &Header{
		Title:   title,
		Command: command,
		Params:  params,
		Width:   GetTerminalWidth(),
	}
}

// SetWidth sets the terminal width for responsive rendering
func (h *Header) SetWidth(width int) *Header {
	h.Width = width
	return h
}

// Render returns the styled header. Params are listed in key order.
func (h *Header) Render() string {
	width := max(h.Width, MinWidth)

	top := lipgloss.JoinVertical(lipgloss.Left,
		DeviceTitleStyle.Render(strings.ToUpper(h.Title)),
		CommandPathStyle.Render(h.Command),
	)
	if len(h.Params) == 0 {
		return h.box(width, top)
	}

	keys := make([]string, 0, len(h.Params))
	keyWidth := 0
	for k := range h.Params {
		keys = append(keys, k)
		keyWidth = max(keyWidth, len(k)+1)
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		label := ParamKeyStyle.Render(k + ":" + strings.Repeat(" ", keyWidth-len(k)-1))
		lines = append(lines, label+" "+ParamValueStyle.Render(h.Params[k]))
	}

	divider := RenderHorizontalDivider(max(width-6, 10), "─")
	return h.box(width, lipgloss.JoinVertical(lipgloss.Left, top, divider, strings.Join(lines, "\n")))
}

func (h *Header) box(width int, content string) string {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(LanternColor).
		Width(width - 2).
		Render(content)
}

// String implements fmt.Stringer
func (h *Header) String() string {
	return h.Render()
}
