package ui

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/dispatch"
	"github.com/muurk/signctl/internal/errcodes"
)

// ResultType indicates success or failure
type ResultType int

const (
	ResultSuccess ResultType = iota
	ResultFailure
	ResultWarning
)

// Result is the box printed after a command finishes.
type Result struct {
	Type            ResultType
	Title           string
	Details         map[string]string
	Error           error
	Troubleshooting []string
	Width           int
}

// NewSuccessResult creates a success result box
func NewSuccessResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultSuccess, Title: title, Details: details, Width: GetTerminalWidth()}
}

// NewFailureResult creates a failure result box. Troubleshooting tips are
// derived from err when tips is nil.
func NewFailureResult(title string, err error, tips []string) *Result {
	if tips == nil {
		tips = Troubleshooting(err)
	}
	return &Result{Type: ResultFailure, Title: title, Error: err, Troubleshooting: tips, Width: GetTerminalWidth()}
}

// NewWarningResult creates a warning result box
func NewWarningResult(title string, details map[string]string) *Result {
	return &Result{Type: ResultWarning, Title: title, Details: details, Width: GetTerminalWidth()}
}

// SetWidth sets the terminal width for responsive rendering
func (r *Result) SetWidth(width int) *Result {
	r.Width = width
	return r
}

// AddDetail adds a detail key-value pair
func (r *Result) AddDetail(key, value string) *Result {
	if r.Details == nil {
		r.Details = make(map[string]string)
	}
	r.Details[key] = value
	return r
}

// Render returns the styled result box as a string
func (r *Result) Render() string {
	width := max(r.Width, MinWidth)

	var colour lipgloss.Color
	var title string
	switch r.Type {
	case ResultFailure:
		colour = FaultColor
		title = RejectedTitleStyle.Render(fmt.Sprintf("   %s  FAILED  ─  %s", MarkerFailed, r.Title))
	case ResultWarning:
		colour = HandshakeColor
		title = lipgloss.NewStyle().Foreground(HandshakeColor).Bold(true).
			Render(fmt.Sprintf("   %s  WARNING  ─  %s", MarkerCaution, r.Title))
	default:
		colour = ActiveColor
		title = AcceptedTitleStyle.Render(fmt.Sprintf("   %s  SUCCESS  ─  %s", MarkerAccepted, r.Title))
	}

	lines := []string{"", title, ""}
	if r.Error != nil {
		lines = append(lines, FaultStyle.Render("   Error: "+r.Error.Error()), "")
	}
	if details := r.renderDetails(); details != "" {
		lines = append(lines, details, "")
	}
	if len(r.Troubleshooting) > 0 {
		lines = append(lines, r.renderTroubleshootingBox(width), "")
	}

	return lipgloss.NewStyle().
		Border(lipgloss.DoubleBorder()).
		BorderForeground(colour).
		Width(width-2).
		Padding(0, 2).
		Render(strings.Join(lines, "\n"))
}

func (r *Result) renderDetails() string {
	keys := make([]string, 0, len(r.Details))
	for k := range r.Details {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	lines := make([]string, 0, len(keys))
	for _, k := range keys {
		lines = append(lines, FieldKeyStyle.Render("   "+k+":")+" "+FieldValueStyle.Render(r.Details[k]))
	}
	return strings.Join(lines, "\n")
}

func (r *Result) renderTroubleshootingBox(width int) string {
	lines := []string{HintTitleStyle.Render("Troubleshooting:"), ""}
	for _, tip := range r.Troubleshooting {
		lines = append(lines, HintItemStyle.Render("  • "+tip))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(DimColor).
		Width(max(width-12, 40)).
		Padding(0, 1).
		MarginLeft(3).
		Render(strings.Join(lines, "\n"))
}

// String implements fmt.Stringer
func (r *Result) String() string {
	return r.Render()
}

// Troubleshooting suggests next steps for a failed command.
func Troubleshooting(err error) []string {
	if err == nil {
		return nil
	}
	de := device.Classify(err, "")

	switch de.Type {
	case device.ErrTypeRejected:
		var reject *dispatch.RejectError
		if errors.As(err, &reject) {
			return []string{
				fmt.Sprintf("Controller answered %s with code 0x%02X: %s",
					reject.MI, reject.ApplicationErrorCode, errcodes.Application(reject.ApplicationErrorCode)),
				"Check the command parameters against the sign configuration",
				"Try: signctl status <device>",
			}
		}
		return []string{"Check the command parameters against the sign configuration"}
	case device.ErrTypeTimeout:
		return []string{
			"Check the controller is powered and reachable",
			"Increase request_timeout in the configuration file",
			"Run with --log-level debug to see frame traffic",
		}
	case device.ErrTypeConnectionRefused, device.ErrTypeDNS, device.ErrTypeTransport:
		return []string{
			"Verify host and port (or serial_port) in the configuration file",
			"Check no other master holds the controller link",
		}
	case device.ErrTypeHandshake:
		return []string{
			"Verify seed_offset and password_offset for this controller",
			"Check the controller address matches its configured address",
		}
	case device.ErrTypeValidation:
		return []string{"The command was not sent; correct the parameters and retry"}
	case device.ErrTypeNotActive:
		return []string{
			"The session is ended or still starting",
			"On a running gateway: POST /api/<device>/start-session",
		}
	}
	return []string{"Run with --log-level debug for details"}
}
