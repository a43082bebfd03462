package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func TestWaitModelPercent(t *testing.T) {
	m := NewWaitModel("Browsing", 4*time.Second)

	tests := []struct {
		name    string
		elapsed time.Duration
		want    float64
	}{
		{"start", 0, 0},
		{"half", 2 * time.Second, 0.5},
		{"overrun", 10 * time.Second, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, _ := m.Update(waitTickMsg(m.started.Add(tt.elapsed)))
			if got := next.(WaitModel).Percent(); got != tt.want {
				t.Errorf("Percent() = %v, want %v", got, tt.want)
			}
		})
	}

	if got := NewWaitModel("x", 0).Percent(); got != 0 {
		t.Errorf("Percent() with no expected duration = %v, want 0", got)
	}
}

func TestWaitModelQuits(t *testing.T) {
	m := NewWaitModel("Browsing", time.Second)
	if !strings.Contains(m.View(), "Browsing") {
		t.Errorf("View() = %q, want label", m.View())
	}

	next, cmd := m.Update(waitDoneMsg{})
	if cmd == nil {
		t.Fatal("done should quit")
	}
	if next.(WaitModel).View() != "" {
		t.Error("finished model should render nothing")
	}

	next, cmd = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil || !next.(WaitModel).Interrupted() {
		t.Error("q should interrupt the wait")
	}
}
