package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/session"
)

// StepStatus represents the current state of a step
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepComplete
	StepFailed
)

// Step is one line of a Progress display.
type Step struct {
	Name    string
	Status  StepStatus
	Message string // optional note, e.g. "2 groups, 4 signs"
}

// Session steps, in the order a one-shot command passes through them.
const (
	StepConnect = iota
	StepSeed
	StepAuthenticate
	StepConfiguration
	StepCommand
)

// Progress tracks a one-shot command from connection to reply.
type Progress struct {
	Steps []Step
	Width int
	bar   progress.Model
}

// NewProgress creates the five-step session progress for command.
func NewProgress(command string) *Progress {
	p := &Progress{
		Steps: []Step{
			{Name: "Connect"},
			{Name: "Request password seed"},
			{Name: "Authenticate"},
			{Name: "Read configuration"},
			{Name: command},
		},
	}
	p.SetWidth(GetTerminalWidth())
	return p
}

// SetWidth sets the terminal width for responsive rendering
func (p *Progress) SetWidth(width int) *Progress {
	p.Width = width
	p.bar = progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(min(max(width-30, 20), 50)),
		progress.WithoutPercentage(),
	)
	return p
}

// Set updates one step. Steps before a running or completed step are
// marked complete.
func (p *Progress) Set(step int, status StepStatus, message string) {
	if step < 0 || step >= len(p.Steps) {
		return
	}
	p.Steps[step].Status = status
	p.Steps[step].Message = message
	if status == StepRunning || status == StepComplete {
		for i := range step {
			if p.Steps[i].Status != StepComplete {
				p.Steps[i].Status = StepComplete
			}
		}
	}
}

// Fail marks the running step, or the first pending one, as failed.
func (p *Progress) Fail(message string) {
	for i, s := range p.Steps {
		if s.Status == StepRunning || s.Status == StepPending {
			p.Set(i, StepFailed, message)
			return
		}
	}
}

// Observe maps a supervisor event onto the session steps.
func (p *Progress) Observe(e device.Event) {
	switch e.Kind {
	case device.EventState:
		switch session.State(e.State) {
		case session.StateConnecting:
			p.Set(StepConnect, StepRunning, "")
		case session.StateAwaitingPasswordSeed:
			p.Set(StepSeed, StepRunning, "")
		case session.StateAuthenticating:
			p.Set(StepAuthenticate, StepRunning, "")
		case session.StateActive:
			p.Set(StepConfiguration, StepRunning, "")
		}
	case device.EventConfiguration:
		p.Set(StepConfiguration, StepComplete, fmt.Sprintf("%d signs", e.Signs))
	case device.EventError:
		p.Fail(e.Error)
	}
}

// Percent is the fraction of completed steps.
func (p *Progress) Percent() float64 {
	done := 0
	for _, s := range p.Steps {
		if s.Status == StepComplete {
			done++
		}
	}
	return float64(done) / float64(len(p.Steps))
}

// Render returns the bar followed by the step list.
func (p *Progress) Render() string {
	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().PaddingLeft(2).
		Render(fmt.Sprintf("%s  %3.0f%%", p.bar.ViewAs(p.Percent()), p.Percent()*100)))
	b.WriteString("\n\n")
	for i, s := range p.Steps {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.renderStep(i, s))
	}
	return b.String()
}

func (p *Progress) renderStep(i int, s Step) string {
	var marker string
	var style lipgloss.Style
	switch s.Status {
	case StepComplete:
		marker, style = MarkerDone, ActiveStyle
	case StepRunning:
		marker, style = MarkerBusy, HandshakeStyle
	case StepFailed:
		marker, style = MarkerFailed, RejectedTitleStyle
	default:
		marker, style = MarkerIdle, IdleStyle
	}

	line := fmt.Sprintf("  [%d/%d] %s%s%s", i+1, len(p.Steps),
		style.Render(s.Name),
		strings.Repeat(" ", max(36-lipgloss.Width(s.Name), 1)),
		style.Render(marker))
	if s.Message != "" {
		line += "  " + NoteStyle.Render("("+s.Message+")")
	}
	return line
}

// String implements fmt.Stringer
func (p *Progress) String() string {
	return p.Render()
}
