// Package daemon maps OS termination signals onto the quit bus so a
// plain SIGTERM (or Ctrl-C) shuts the whole task set down cleanly.
// Under systemd (Type=notify) it also reports READY and STOPPING.
package daemon

import (
	"os"
	"os/signal"
	"syscall"

	sdaemon "github.com/coreos/go-systemd/v22/daemon"

	"overseer/internal/config"
	"overseer/internal/host"
	"overseer/pkg/logx"
)

type Task struct {
	cfg config.DaemonConfig
	// detached is true in daemon run mode: SIGHUP from a closing
	// controlling terminal is ignored instead of killing the process.
	detached bool
}

func New(cfg config.DaemonConfig, runMode string) *Task {
	return &Task{cfg: cfg, detached: runMode == config.ModeDaemon}
}

func (t *Task) Name() string { return "daemon" }

func (t *Task) Spawn(sys *host.System) (*host.Handle, error) {
	if !t.cfg.Enabled {
		return nil, nil
	}
	log := sys.Log.With(logx.String("task", t.Name()))

	sigs := make(chan os.Signal, 2)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	if t.detached {
		// Delivered when the controlling terminal goes away. A detached
		// daemon must outlive its terminal.
		signal.Ignore(syscall.SIGHUP)
	}

	notify := t.cfg.NotifySystemd
	if notify {
		if ok, err := sdaemon.SdNotify(false, sdaemon.SdNotifyReady); err != nil {
			log.Warn("sd_notify failed", logx.Err(err))
			notify = false
		} else if !ok {
			log.Debug("sd_notify socket not present; skipping systemd notifications")
			notify = false
		}
	}

	return host.Go(t.Name(), sys.Log, func() error {
		defer signal.Stop(sigs)

		select {
		case sig := <-sigs:
			log.Info("termination signal received", logx.String("signal", sig.String()))
			sys.Bus.Signal()
		case <-sys.Bus.Done():
		}

		if notify {
			_, _ = sdaemon.SdNotify(false, sdaemon.SdNotifyStopping)
		}
		return nil
	}), nil
}
