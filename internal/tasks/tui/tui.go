// Package tui renders a terminal dashboard: recent log lines, recent
// task events, and process status. Terminal I/O is blocking, so the
// program runs on its own goroutine and polls the quit bus on every UI
// tick instead of selecting on it.
package tui

import (
	"runtime"

	tea "github.com/charmbracelet/bubbletea"

	"overseer/internal/config"
	"overseer/internal/host"
	"overseer/pkg/logx"
)

type Task struct {
	cfg config.TUIConfig
}

func New(cfg config.TUIConfig) *Task { return &Task{cfg: cfg} }

func (t *Task) Name() string { return "tui" }

func (t *Task) Spawn(sys *host.System) (*host.Handle, error) {
	if !t.cfg.Enabled {
		return nil, nil
	}

	tick, err := config.ParseDurationOrDefault("tui.tick", t.cfg.Tick, defaultTick)
	if err != nil {
		return nil, err
	}

	return host.Go(t.Name(), sys.Log, func() error {
		// Some terminal backends misbehave when the render loop migrates
		// between OS threads.
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()

		// The program owns the terminal; routing console log output
		// through it would corrupt the frame.
		if sys.LogSvc != nil {
			sys.LogSvc.SetConsoleEnabled(false)
			defer sys.LogSvc.SetConsoleEnabled(true)
		}

		p := tea.NewProgram(newModel(sys, tick), tea.WithAltScreen())
		_, err := p.Run()

		// The user closing the UI is a shutdown request for everyone.
		sys.Bus.Signal()
		if err != nil {
			sys.Log.Error("terminal ui exited abnormally", logx.Err(err))
		}
		return err
	}), nil
}
