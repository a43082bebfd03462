package ui

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/signctl/internal/device"
)

// RunnerConfig describes a one-shot device command.
type RunnerConfig struct {
	Title   string            // e.g. "Set Text Frame"
	Command string            // e.g. "signctl text-frame gantry-north"
	Params  map[string]string // shown in the header
	Output  io.Writer         // default: os.Stdout
	// Quiet suppresses the header and step lines; only the result is printed.
	Quiet bool
}

// Runner prints the header, the session steps as supervisor events arrive
// and the result box for one command.
type Runner struct {
	config   RunnerConfig
	out      io.Writer
	width    int
	mu       sync.Mutex
	progress *Progress
	printed  []bool
}

// NewRunner creates a runner for a one-shot command.
func NewRunner(config RunnerConfig) *Runner {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	width := GetTerminalWidth()
	p := NewProgress(config.Title).SetWidth(width)
	return &Runner{
		config:   config,
		out:      config.Output,
		width:    width,
		progress: p,
		printed:  make([]bool, len(p.Steps)),
	}
}

// Observe is suitable for device.Options.OnEvent.
func (r *Runner) Observe(e device.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress.Observe(e)
	r.flushSteps()
}

// flushSteps prints each step once it has finished.
func (r *Runner) flushSteps() {
	if r.config.Quiet {
		return
	}
	for i, s := range r.progress.Steps {
		if r.printed[i] || (s.Status != StepComplete && s.Status != StepFailed) {
			continue
		}
		r.printed[i] = true
		_, _ = fmt.Fprintln(r.out, r.progress.renderStep(i, s))
	}
}

// Operation performs the command once the session is ready. A non-nil reply
// is printed below the result.
type Operation func(ctx context.Context) (any, error)

// Run prints the header, executes op and prints the result.
func (r *Runner) Run(ctx context.Context, op Operation) (any, error) {
	start := time.Now()
	if !r.config.Quiet {
		header := NewHeader(r.config.Title, r.config.Command, r.config.Params).SetWidth(r.width)
		_, _ = fmt.Fprintln(r.out, header.Render())
		_, _ = fmt.Fprintln(r.out)
	}

	r.mu.Lock()
	r.progress.Set(StepCommand, StepRunning, "")
	r.mu.Unlock()

	reply, err := op(ctx)
	duration := time.Since(start).Round(time.Millisecond)

	r.mu.Lock()
	if err != nil {
		r.progress.Fail(device.ShortMessage(err))
	} else {
		r.progress.Set(StepCommand, StepComplete, duration.String())
	}
	r.flushSteps()
	r.mu.Unlock()

	_, _ = fmt.Fprintln(r.out)
	if err != nil {
		result := NewFailureResult(r.config.Title+" failed", err, nil).SetWidth(r.width)
		_, _ = fmt.Fprintln(r.out, result.Render())
		return nil, err
	}

	result := NewSuccessResult(r.config.Title+" complete", map[string]string{
		"Duration": duration.String(),
	}).SetWidth(r.width)
	_, _ = fmt.Fprintln(r.out, result.Render())
	if reply != nil {
		_, _ = fmt.Fprintln(r.out)
		_, _ = fmt.Fprintln(r.out, RenderReply(reply, r.width))
	}
	return reply, nil
}

// RenderReply renders a decoded reply as indented JSON in a muted box.
func RenderReply(reply any, width int) string {
	body, err := json.MarshalIndent(reply, "", "  ")
	if err != nil {
		body = []byte(fmt.Sprintf("%+v", reply))
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(DimColor).
		Width(max(width, MinWidth)-4).
		Padding(0, 1).
		Render(ReplyTitleStyle.Render("Reply") + "\n" + string(body))
}
