package tui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"overseer/internal/config"
	"overseer/internal/host"
	"overseer/pkg/logx"
)

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestDisabledSpawnsNothing(t *testing.T) {
	t.Parallel()
	sys := host.NewSystem(logx.Nop())
	h, err := New(config.TUIConfig{Enabled: false}).Spawn(sys)
	if err != nil || h != nil {
		t.Fatalf("Spawn = (%v, %v), want (nil, nil)", h, err)
	}
}

func TestBadTickRejected(t *testing.T) {
	t.Parallel()
	sys := host.NewSystem(logx.Nop())
	if _, err := New(config.TUIConfig{Enabled: true, Tick: "soon"}).Spawn(sys); err == nil {
		t.Fatal("invalid tick duration must fail spawn")
	}
}

func TestTickQuitsOnceBusSignaled(t *testing.T) {
	t.Parallel()
	sys := host.NewSystem(logx.Nop())
	m := newModel(sys, defaultTick)

	_, cmd := m.Update(tickMsg(time.Now()))
	if isQuit(cmd) {
		t.Fatal("must keep ticking while the bus is quiet")
	}

	sys.Bus.Signal()
	_, cmd = m.Update(tickMsg(time.Now()))
	if !isQuit(cmd) {
		t.Fatal("tick after bus signal must quit")
	}
}

func TestQuitKeys(t *testing.T) {
	t.Parallel()
	sys := host.NewSystem(logx.Nop())
	for _, key := range []string{"q", "esc", "ctrl+c"} {
		m := newModel(sys, defaultTick)
		var msg tea.Msg
		switch key {
		case "q":
			msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}}
		case "esc":
			msg = tea.KeyMsg{Type: tea.KeyEsc}
		case "ctrl+c":
			msg = tea.KeyMsg{Type: tea.KeyCtrlC}
		}
		_, cmd := m.Update(msg)
		if !isQuit(cmd) {
			t.Errorf("key %q did not quit", key)
		}
	}
}

func TestWindowSizePreparesViewport(t *testing.T) {
	t.Parallel()
	sys := host.NewSystem(logx.Nop())
	m := newModel(sys, defaultTick)

	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	got := updated.(model)
	if !got.ready {
		t.Fatal("window size must initialize the viewport")
	}
	if got.logs.Width != 80 {
		t.Fatalf("viewport width = %d", got.logs.Width)
	}
	if got.View() == "starting..." {
		t.Fatal("sized model should render the dashboard")
	}
}
