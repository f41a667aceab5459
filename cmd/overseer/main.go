package main

import (
	"flag"
	"fmt"
	"os"

	"overseer/internal/audit"
	"overseer/internal/config"
	"overseer/internal/host"
	"overseer/internal/tasks/confwatch"
	"overseer/internal/tasks/daemon"
	"overseer/internal/tasks/irc"
	"overseer/internal/tasks/pgboot"
	"overseer/internal/tasks/tui"
	"overseer/internal/tasks/web"
	"overseer/pkg/logx"
)

func main() {
	var (
		cfgPath string
		mode    string
	)
	flag.StringVar(&cfgPath, "config", "./overseer.yaml", "path to config file (yaml or json)")
	flag.StringVar(&mode, "mode", "", "override run_mode: daemon | tui | attached")
	flag.Parse()

	if err := run(cfgPath, mode); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run(cfgPath, mode string) error {
	created, err := config.EnsureFile(cfgPath)
	if err != nil {
		return err
	}
	if created {
		fmt.Printf("wrote default config to %s, edit it and start again\n", cfgPath)
		return nil
	}

	mgr := config.NewManager(cfgPath)
	cfg, err := mgr.Load()
	if err != nil {
		return fmt.Errorf("load %s: %w", cfgPath, err)
	}
	if mode != "" {
		cfg.RunMode = mode
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	// In TUI mode the terminal belongs to the dashboard; anywhere else
	// the daemon task owns signal handling and the TUI stays off.
	if cfg.RunMode == config.ModeTUI {
		cfg.TUI.Enabled = true
		cfg.Daemon.Enabled = false
	} else {
		cfg.TUI.Enabled = false
		cfg.Daemon.Enabled = true
	}

	svc, log := logx.New(cfg.Logging.ToLogx())
	defer svc.Close()
	mgr.SetLogger(log)

	auditCfg, err := cfg.Audit.ToAudit()
	if err != nil {
		return err
	}
	store, err := audit.Open(auditCfg, log)
	if err != nil {
		return err
	}

	sys := host.NewSystem(log)
	sys.LogSvc = svc
	sys.Audit = store

	sup := host.NewSupervisor(sys,
		confwatch.New(mgr),
		pgboot.New(cfg.Database),
		daemon.New(cfg.Daemon, cfg.RunMode),
		tui.New(cfg.TUI),
		web.New(cfg.Web),
		irc.New(cfg.IRC),
	)

	log.Info("starting", logx.String("run_mode", cfg.RunMode), logx.String("config", cfgPath))
	err = sup.Run()

	if store != nil {
		if cerr := store.Close(); cerr != nil {
			log.Warn("audit close failed", logx.Err(cerr))
		}
	}
	log.Info("stopped")
	return err
}
