package ui

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Palette. Amber follows the lantern colour of the signs themselves.
var (
	LanternColor   = lipgloss.Color("#F2A900")
	ActiveColor    = lipgloss.Color("#3FB950")
	FaultColor     = lipgloss.Color("#F85149")
	HandshakeColor = lipgloss.Color("#D29922")
	DimColor       = lipgloss.Color("#6E7681")
	TextColor      = lipgloss.Color("#F0F6FC")
)

// Width bounds for rendered output.
const (
	MinWidth = 60
	MaxWidth = 120
)

// Device header: which controller a command talks to and with what.
var (
	DeviceTitleStyle = lipgloss.NewStyle().Foreground(TextColor).Bold(true).PaddingLeft(2)
	CommandPathStyle = lipgloss.NewStyle().Foreground(DimColor).PaddingLeft(2)
	ParamKeyStyle    = lipgloss.NewStyle().Foreground(DimColor).PaddingLeft(2)
	ParamValueStyle  = lipgloss.NewStyle().Foreground(TextColor)
)

// Session and sign states.
var (
	ActiveStyle    = lipgloss.NewStyle().Foreground(ActiveColor)
	HandshakeStyle = lipgloss.NewStyle().Foreground(HandshakeColor)
	IdleStyle      = lipgloss.NewStyle().Foreground(DimColor)
	FaultStyle     = lipgloss.NewStyle().Foreground(FaultColor)
	NoteStyle      = lipgloss.NewStyle().Foreground(DimColor).Italic(true)
)

// Controller replies.
var (
	AcceptedTitleStyle = lipgloss.NewStyle().Foreground(ActiveColor).Bold(true)
	RejectedTitleStyle = lipgloss.NewStyle().Foreground(FaultColor).Bold(true)
	ReplyTitleStyle    = lipgloss.NewStyle().Foreground(DimColor).Bold(true)

	// FieldKeyStyle pads decoded field names into a column.
	FieldKeyStyle   = lipgloss.NewStyle().Foreground(DimColor).Width(18)
	FieldValueStyle = lipgloss.NewStyle().Foreground(TextColor)

	HintTitleStyle = lipgloss.NewStyle().Foreground(DimColor).Bold(true)
	HintItemStyle  = lipgloss.NewStyle().Foreground(DimColor)
)

// Markers
const (
	MarkerDone     = "✓"
	MarkerBusy     = "●"
	MarkerIdle     = "·"
	MarkerAccepted = "✓"
	MarkerFailed   = "✗"
	MarkerCaution  = "⚠"
)

// StateStyle colours a session state name: green when active, orange while
// the handshake is in progress, red when disconnected.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "active":
		return ActiveStyle
	case "disconnected", "":
		return FaultStyle
	default:
		return HandshakeStyle
	}
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// GetTerminalWidth returns the current terminal width, with fallback
func GetTerminalWidth() int {
	width, _ := GetTerminalSize()
	return width
}

// GetTerminalSize returns the stdout width and height clamped to the
// supported range, or 80x24 when stdout is not a terminal.
func GetTerminalSize() (int, int) {
	width, height, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80, 24
	}
	return clampWidth(width), height
}

func clampWidth(width int) int {
	return min(max(width, MinWidth), MaxWidth)
}

// RenderHorizontalDivider creates a horizontal line of the specified width
func RenderHorizontalDivider(width int, char string) string {
	return lipgloss.NewStyle().
		Foreground(LanternColor).
		Render(strings.Repeat(char, max(width, 0)))
}
