// Package confwatch keeps the running process in sync with its config
// file. It follows the file through the manager's watcher and applies
// the settings that can change without a restart, currently the logging
// section. Everything else takes effect on the next boot.
package confwatch

import (
	"context"

	"overseer/internal/config"
	"overseer/internal/host"
	"overseer/pkg/logx"
)

type Task struct {
	mgr *config.Manager
}

func New(mgr *config.Manager) *Task { return &Task{mgr: mgr} }

func (t *Task) Name() string { return "confwatch" }

func (t *Task) Spawn(sys *host.System) (*host.Handle, error) {
	log := sys.Log.With(logx.String("task", t.Name()))
	t.mgr.SetLogger(log)

	return host.Go(t.Name(), sys.Log, func() error {
		ctx, cancel := sys.Bus.Context(context.Background())
		defer cancel()

		updates := t.mgr.Subscribe(4)
		defer t.mgr.Unsubscribe(updates)

		done := make(chan error, 1)
		go func() { done <- t.mgr.Watch(ctx) }()

		for {
			select {
			case cfg, ok := <-updates:
				if !ok {
					<-done
					return nil
				}
				t.apply(sys, cfg, log)
			case err := <-done:
				// Watch only returns after ctx cancel, so this is shutdown.
				return err
			}
		}
	}), nil
}

func (t *Task) apply(sys *host.System, cfg *config.Config, log logx.Logger) {
	if cfg == nil {
		return
	}
	if sys.LogSvc != nil {
		sys.LogSvc.Apply(cfg.Logging.ToLogx())
		log.Info("logging settings applied",
			logx.String("level", cfg.Logging.Level),
			logx.Bool("console", cfg.Logging.Console))
	}
}
