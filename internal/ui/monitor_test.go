package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/transport/transporttest"
)

func newFleet(t *testing.T, names ...string) *device.Manager {
	t.Helper()
	mgr := device.NewManager()
	for _, name := range names {
		_, err := mgr.Add(transporttest.NewMock(nil), device.Options{
			Name:           name,
			Address:        "01",
			SeedOffset:     "20",
			PasswordOffset: "5A5A",
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	return mgr
}

func TestMonitorRows(t *testing.T) {
	m := NewMonitorModel(newFleet(t, "north", "south"), nil)

	rows := m.Rows()
	if len(rows) != 2 {
		t.Fatalf("Rows() = %d rows, want 2", len(rows))
	}
	if rows[0][0] != "north" || rows[1][0] != "south" {
		t.Errorf("rows not sorted by name: %v", rows)
	}
	if rows[0][1] != "disconnected" || rows[0][2] != "-" {
		t.Errorf("row = %v, want disconnected with no status", rows[0])
	}
	if m.Selected() != "north" {
		t.Errorf("Selected() = %q, want north", m.Selected())
	}
}

func TestMonitorKeys(t *testing.T) {
	tests := []struct {
		name     string
		msg      tea.KeyMsg
		wantQuit bool
		wantHelp bool
	}{
		{name: "q quits", msg: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}, wantQuit: true},
		{name: "ctrl+c quits", msg: tea.KeyMsg{Type: tea.KeyCtrlC}, wantQuit: true},
		{name: "? toggles help", msg: tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("?")}, wantHelp: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMonitorModel(newFleet(t, "north"), nil)
			next, cmd := m.Update(tt.msg)

			quit := false
			if cmd != nil {
				_, quit = cmd().(tea.QuitMsg)
			}
			if quit != tt.wantQuit {
				t.Errorf("quit = %t, want %t", quit, tt.wantQuit)
			}
			if got := next.(MonitorModel).help.ShowAll; got != tt.wantHelp {
				t.Errorf("help.ShowAll = %t, want %t", got, tt.wantHelp)
			}
		})
	}
}

func TestMonitorEventLog(t *testing.T) {
	events := make(chan device.Event, 1)
	m := NewMonitorModel(newFleet(t, "north"), events)

	var model tea.Model = m
	for i := range eventLogSize + 3 {
		model, _ = model.Update(eventMsg(device.Event{
			Device: "north",
			Kind:   device.EventError,
			Time:   time.Now(),
			Error:  "attempt " + string(rune('a'+i)),
		}))
	}
	got := model.(MonitorModel)
	if len(got.log) != eventLogSize {
		t.Fatalf("log length = %d, want %d", len(got.log), eventLogSize)
	}
	if !strings.HasSuffix(got.log[len(got.log)-1], "attempt k") {
		t.Errorf("last log line = %q", got.log[len(got.log)-1])
	}

	close(events)
	if _, ok := got.waitForEvent()().(eventsClosedMsg); !ok {
		t.Error("closed feed should yield eventsClosedMsg")
	}
	if !strings.Contains(got.View(), "SIGNCTL MONITOR") {
		t.Error("View() missing title")
	}
}

func TestMonitorActionOnStoppedDevice(t *testing.T) {
	m := NewMonitorModel(newFleet(t, "north"), nil)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})
	if cmd == nil {
		t.Fatal("poll should return a command")
	}
	done, ok := cmd().(actionDoneMsg)
	if !ok {
		t.Fatalf("cmd() = %T, want actionDoneMsg", cmd())
	}
	if done.err == nil || done.device != "north" {
		t.Errorf("actionDoneMsg = %+v, want not-active error for north", done)
	}

	next, _ := m.Update(done)
	if !strings.Contains(next.(MonitorModel).notice, "north poll") {
		t.Errorf("notice = %q", next.(MonitorModel).notice)
	}
}
