package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/muurk/signctl/internal/device"
)

const (
	eventLogSize  = 8
	refreshPeriod = time.Second
	actionTimeout = 10 * time.Second
)

// Fleet is the part of device.Manager the monitor reads.
type Fleet interface {
	Summaries() []device.Summary
	Get(name string) (*device.Supervisor, bool)
}

type eventMsg device.Event

type eventsClosedMsg struct{}

type tickMsg time.Time

type actionDoneMsg struct {
	device string
	action string
	err    error
}

type monitorKeyMap struct {
	Up      key.Binding
	Down    key.Binding
	Poll    key.Binding
	Restart key.Binding
	End     key.Binding
	Help    key.Binding
	Quit    key.Binding
}

// ShortHelp returns keybindings to be shown in the mini help view
func (k monitorKeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Poll, k.Restart, k.End, k.Help, k.Quit}
}

// FullHelp returns keybindings for the expanded help view
func (k monitorKeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Poll, k.Restart, k.End},
		{k.Help, k.Quit},
	}
}

func newMonitorKeyMap() monitorKeyMap {
	return monitorKeyMap{
		Up:      key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:    key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Poll:    key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "poll")),
		Restart: key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "start session")),
		End:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "end session")),
		Help:    key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
		Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// MonitorModel is the live device table shown by "signctl monitor".
type MonitorModel struct {
	fleet  Fleet
	events <-chan device.Event

	table table.Model
	help  help.Model
	keys  monitorKeyMap

	log    []string
	notice string
	width  int
}

// NewMonitorModel creates the monitor over fleet, fed by events.
func NewMonitorModel(fleet Fleet, events <-chan device.Event) MonitorModel {
	t := table.New(
		table.WithColumns(monitorColumns()),
		table.WithFocused(true),
		table.WithHeight(8),
	)
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(DimColor).
		BorderBottom(true).
		Foreground(LanternColor).
		Bold(true)
	styles.Selected = styles.Selected.Foreground(TextColor).Background(LanternColor)
	t.SetStyles(styles)

	m := MonitorModel{
		fleet:  fleet,
		events: events,
		table:  t,
		help:   help.New(),
		keys:   newMonitorKeyMap(),
		width:  GetTerminalWidth(),
	}
	m.refresh()
	return m
}

func monitorColumns() []table.Column {
	return []table.Column{
		{Title: "Device", Width: 16},
		{Title: "State", Width: 22},
		{Title: "Signs", Width: 5},
		{Title: "Faults", Width: 8},
		{Title: "Beats", Width: 7},
		{Title: "Restarts", Width: 8},
		{Title: "Last error", Width: 30},
	}
}

// Rows renders one table row per device.
func (m MonitorModel) Rows() []table.Row {
	summaries := m.fleet.Summaries()
	rows := make([]table.Row, 0, len(summaries))
	for _, s := range summaries {
		state := s.State
		if s.Paused {
			state += " (paused)"
		}
		signs, faults := "-", "-"
		if sup, ok := m.fleet.Get(s.Name); ok {
			if st := sup.Status(); st != nil && !st.Updated.IsZero() {
				signs = fmt.Sprintf("%d", len(st.Signs))
				faults = fmt.Sprintf("%d", len(st.Faulted()))
			}
		}
		rows = append(rows, table.Row{
			s.Name,
			state,
			signs,
			faults,
			fmt.Sprintf("%d", s.Heartbeats),
			fmt.Sprintf("%d", s.Restarts),
			s.LastError,
		})
	}
	return rows
}

func (m *MonitorModel) refresh() {
	m.table.SetRows(m.Rows())
}

func (m MonitorModel) waitForEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return eventMsg(e)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshPeriod, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model
func (m MonitorModel) Init() tea.Cmd {
	return tea.Batch(m.waitForEvent(), tick())
}

// Update implements tea.Model
func (m MonitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = clampWidth(msg.Width)
		m.help.Width = msg.Width
		return m, nil

	case eventMsg:
		m.log = append(m.log, FormatEvent(device.Event(msg)))
		if len(m.log) > eventLogSize {
			m.log = m.log[len(m.log)-eventLogSize:]
		}
		m.refresh()
		return m, m.waitForEvent()

	case eventsClosedMsg:
		m.notice = "event feed closed"
		return m, nil

	case tickMsg:
		m.refresh()
		return m, tick()

	case actionDoneMsg:
		if msg.err != nil {
			m.notice = fmt.Sprintf("%s %s: %s", msg.device, msg.action, device.ShortMessage(msg.err))
		} else {
			m.notice = fmt.Sprintf("%s %s: ok", msg.device, msg.action)
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		case key.Matches(msg, m.keys.Poll):
			return m, m.act("poll", func(ctx context.Context, s *device.Supervisor) error {
				_, err := s.Poll(ctx)
				return err
			})
		case key.Matches(msg, m.keys.Restart):
			return m, m.act("start session", func(ctx context.Context, s *device.Supervisor) error {
				return s.StartSession(ctx)
			})
		case key.Matches(msg, m.keys.End):
			return m, m.act("end session", func(ctx context.Context, s *device.Supervisor) error {
				return s.EndSession(ctx)
			})
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

// Selected returns the highlighted device name.
func (m MonitorModel) Selected() string {
	row := m.table.SelectedRow()
	if len(row) == 0 {
		return ""
	}
	return row[0]
}

func (m MonitorModel) act(action string, run func(context.Context, *device.Supervisor) error) tea.Cmd {
	name := m.Selected()
	sup, ok := m.fleet.Get(name)
	if !ok {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		return actionDoneMsg{device: name, action: action, err: run(ctx, sup)}
	}
}

// View implements tea.Model
func (m MonitorModel) View() string {
	var b strings.Builder
	b.WriteString(DeviceTitleStyle.Render("SIGNCTL MONITOR"))
	b.WriteString("\n\n")
	b.WriteString(m.table.View())
	b.WriteString("\n\n")

	b.WriteString(ReplyTitleStyle.Render("  Recent events"))
	b.WriteString("\n")
	for _, line := range m.log {
		b.WriteString(IdleStyle.Render("  " + line))
		b.WriteString("\n")
	}
	if m.notice != "" {
		b.WriteString("\n")
		b.WriteString(HandshakeStyle.Render("  " + m.notice))
		b.WriteString("\n")
	}
	b.WriteString("\n  ")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// RunMonitor runs the TUI until the operator quits or ctx is cancelled.
func RunMonitor(ctx context.Context, fleet Fleet, events <-chan device.Event) error {
	p := tea.NewProgram(NewMonitorModel(fleet, events), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}
