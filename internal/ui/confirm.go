package ui

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/signctl/internal/protocol"
)

// Confirm shows a warning box and asks the operator to type phrase. It
// returns true only on an exact match.
func Confirm(in io.Reader, out io.Writer, title string, warnings []string, phrase string) bool {
	width := GetTerminalWidth()

	lines := []string{
		"",
		lipgloss.NewStyle().Foreground(HandshakeColor).Bold(true).
			Render(fmt.Sprintf("   %s  WARNING  ─  %s", MarkerCaution, title)),
		"",
	}
	for _, w := range warnings {
		lines = append(lines, lipgloss.NewStyle().Foreground(TextColor).Render("   • "+w))
	}
	lines = append(lines, "")

	box := lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(HandshakeColor).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))

	_, _ = fmt.Fprintln(out, box)
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, lipgloss.NewStyle().Foreground(HandshakeColor).Bold(true).
		Render(fmt.Sprintf("To proceed, type %q and press Enter: ", phrase)))

	input, err := bufio.NewReader(in).ReadString('\n')
	_, _ = fmt.Fprintln(out)
	if err != nil && input == "" {
		return false
	}
	if strings.TrimSpace(input) == phrase {
		return true
	}
	_, _ = fmt.Fprintln(out, IdleStyle.Render("  Operation cancelled."))
	return false
}

// ConfirmReset guards a controller reset.
func ConfirmReset(in io.Reader, out io.Writer, device string, level protocol.ResetLevel) bool {
	warnings := []string{
		fmt.Sprintf("Controller %s will be reset (level 0x%02X)", device, byte(level)),
		"Signs may go blank while the controller restarts",
		"The session is lost and re-established automatically",
	}
	if level == protocol.ResetLevelFactory {
		warnings = append(warnings, "A factory reset restores the controller defaults")
	}
	return Confirm(in, out, "CONTROLLER RESET", warnings, device)
}
