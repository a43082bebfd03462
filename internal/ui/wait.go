package ui

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type waitDoneMsg struct{}

type waitTickMsg time.Time

var waitCancelKey = key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "stop early"))

// WaitModel shows a spinner and an elapsed-time bar while work of a known
// expected duration runs, such as an mDNS browse.
type WaitModel struct {
	Label    string
	Expected time.Duration

	spinner     spinner.Model
	bar         progress.Model
	started     time.Time
	now         time.Time
	done        bool
	interrupted bool
}

// NewWaitModel creates a wait display for label.
func NewWaitModel(label string, expected time.Duration) WaitModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(LanternColor)
	now := time.Now()
	return WaitModel{
		Label:    label,
		Expected: expected,
		spinner:  s,
		bar: progress.New(
			progress.WithDefaultGradient(),
			progress.WithWidth(30),
			progress.WithoutPercentage(),
		),
		started: now,
		now:     now,
	}
}

// Interrupted reports whether the user stopped the wait.
func (m WaitModel) Interrupted() bool { return m.interrupted }

// Percent is the share of the expected duration that has elapsed.
func (m WaitModel) Percent() float64 {
	if m.Expected <= 0 {
		return 0
	}
	p := float64(m.now.Sub(m.started)) / float64(m.Expected)
	return min(max(p, 0), 1)
}

func waitTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg { return waitTickMsg(t) })
}

func (m WaitModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitTick())
}

func (m WaitModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case waitDoneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		if key.Matches(msg, waitCancelKey) {
			m.interrupted = true
			return m, tea.Quit
		}
	case waitTickMsg:
		m.now = time.Time(msg)
		return m, waitTick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m WaitModel) View() string {
	if m.done || m.interrupted {
		return ""
	}
	elapsed := m.now.Sub(m.started).Truncate(100 * time.Millisecond)
	return fmt.Sprintf("  %s %s  %s %s  %s\n",
		m.spinner.View(),
		m.Label,
		m.bar.ViewAs(m.Percent()),
		NoteStyle.Render(fmt.Sprintf("%s / %s", elapsed, m.Expected)),
		IdleStyle.Render(waitCancelKey.Help().Key+" "+waitCancelKey.Help().Desc),
	)
}

// RunWait runs work while a WaitModel is drawn on out. Stopping early
// cancels the context passed to work, which should then return what it
// has.
func RunWait[T any](ctx context.Context, out io.Writer, label string, expected time.Duration, work func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		result T
		err    error
	)
	done := make(chan struct{})
	prog := tea.NewProgram(NewWaitModel(label, expected), tea.WithOutput(out), tea.WithContext(ctx))

	go func() {
		defer close(done)
		result, err = work(ctx)
		prog.Send(waitDoneMsg{})
	}()

	final, runErr := prog.Run()
	if m, ok := final.(WaitModel); ok && m.Interrupted() {
		cancel()
	}
	if runErr != nil {
		cancel()
	}
	<-done
	return result, err
}
