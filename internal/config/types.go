package config

import (
	"fmt"
	"strings"

	"overseer/internal/audit"
	"overseer/internal/database"
	"overseer/pkg/logx"
)

// Run modes select which interactive surface owns the foreground.
const (
	ModeDaemon   = "daemon"   // headless, signal-driven
	ModeTUI      = "tui"      // terminal UI in the foreground
	ModeAttached = "attached" // plain foreground process, Ctrl-C to stop
)

type Config struct {
	// RunMode is one of "daemon", "tui", "attached".
	RunMode string `json:"run_mode"`

	Logging LoggingConfig `json:"logging"`

	// Audit persists task lifecycle events. Omit to disable.
	Audit *AuditConfig `json:"audit,omitempty"`

	Database database.Config `json:"database"`

	Daemon DaemonConfig `json:"daemon"`
	TUI    TUIConfig    `json:"tui"`
	Web    WebConfig    `json:"web"`
	IRC    IRCConfig    `json:"irc"`
}

type LoggingConfig struct {
	Level   string        `json:"level"`
	Console bool          `json:"console"`
	File    FileLogConfig `json:"file"`
}

type FileLogConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path,omitempty"`
}

func (c LoggingConfig) ToLogx() logx.Config {
	return logx.Config{
		Level:   c.Level,
		Console: c.Console,
		File:    logx.FileConfig{Enabled: c.File.Enabled, Path: c.File.Path},
	}
}

type AuditConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

func (c *AuditConfig) ToAudit() (audit.Config, error) {
	if c == nil {
		return audit.Config{}, nil
	}
	bt, err := ParseDurationField("audit.busy_timeout", c.BusyTimeout)
	if err != nil {
		return audit.Config{}, err
	}
	return audit.Config{Driver: c.Driver, Path: c.Path, BusyTimeout: bt}, nil
}

type DaemonConfig struct {
	Enabled bool `json:"enabled"`
	// NotifySystemd sends sd_notify READY/STOPPING when running under a
	// systemd service with Type=notify.
	NotifySystemd bool `json:"notify_systemd,omitempty"`
}

type TUIConfig struct {
	Enabled bool `json:"enabled"`
	// Tick is the UI refresh interval (Go duration string, default 100ms).
	// The quit bus is polled on every tick.
	Tick string `json:"tick,omitempty"`
}

type WebConfig struct {
	Enabled bool   `json:"enabled"`
	Address string `json:"address,omitempty"` // default "127.0.0.1"
	Port    uint16 `json:"port,omitempty"`    // default 8080
	URLRoot string `json:"url_root,omitempty"`

	// Server timeouts (Go duration strings).
	ReadTimeout     string `json:"read_timeout,omitempty"`
	WriteTimeout    string `json:"write_timeout,omitempty"`
	IdleTimeout     string `json:"idle_timeout,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty"`

	// PoolWait bounds how long the server waits for the database pool to
	// appear in the registry before giving up.
	PoolWait string `json:"pool_wait,omitempty"`

	Sessions SessionsConfig `json:"sessions"`

	// LoginRatePerMin throttles login attempts per client IP.
	LoginRatePerMin int `json:"login_rate_per_min,omitempty"`
}

type SessionsConfig struct {
	// CookieSecret authenticates session cookies. Generated configs get a
	// random one; rotate it to invalidate all cookies.
	CookieSecret string `json:"cookie_secret"`
	// MaxAge is how long a session stays valid (Go duration string).
	MaxAge string `json:"max_age,omitempty"`
	// PruneSchedule is a cron expression for expired-session cleanup.
	PruneSchedule string `json:"prune_schedule,omitempty"`
}

type IRCConfig struct {
	Enabled  bool   `json:"enabled"`
	DataPath string `json:"data_path,omitempty"`
}

func Default() *Config {
	return &Config{
		RunMode: ModeAttached,
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
			File:    FileLogConfig{Enabled: false, Path: "./overseer.log"},
		},
		Audit: &AuditConfig{
			Driver: "sqlite",
			Path:   "./data/audit.db",
		},
		Database: database.DefaultConfig(),
		Daemon:   DaemonConfig{Enabled: true},
		TUI:      TUIConfig{Enabled: false, Tick: "100ms"},
		Web: WebConfig{
			Enabled:         false,
			Address:         "127.0.0.1",
			Port:            8080,
			ReadTimeout:     "10s",
			WriteTimeout:    "30s",
			IdleTimeout:     "2m",
			ShutdownTimeout: "15s",
			PoolWait:        "60s",
			Sessions: SessionsConfig{
				MaxAge:        "168h",
				PruneSchedule: "17 * * * *",
			},
			LoginRatePerMin: 10,
		},
		IRC: IRCConfig{Enabled: false, DataPath: "./data/irc"},
	}
}

func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.RunMode)) {
	case ModeDaemon, ModeTUI, ModeAttached:
	case "":
		return fmt.Errorf("run_mode is required (%q, %q, or %q)", ModeDaemon, ModeTUI, ModeAttached)
	default:
		return fmt.Errorf("unknown run_mode %q", c.RunMode)
	}

	if _, err := c.Audit.ToAudit(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}

	if c.Web.Enabled {
		for _, f := range []struct{ path, raw string }{
			{"web.read_timeout", c.Web.ReadTimeout},
			{"web.write_timeout", c.Web.WriteTimeout},
			{"web.idle_timeout", c.Web.IdleTimeout},
			{"web.shutdown_timeout", c.Web.ShutdownTimeout},
			{"web.pool_wait", c.Web.PoolWait},
			{"web.sessions.max_age", c.Web.Sessions.MaxAge},
		} {
			if _, err := ParseDurationField(f.path, f.raw); err != nil {
				return err
			}
		}
		if strings.TrimSpace(c.Web.Sessions.CookieSecret) == "" {
			return fmt.Errorf("web.sessions.cookie_secret is required when web is enabled")
		}
	}
	if c.TUI.Enabled {
		if _, err := ParseDurationField("tui.tick", c.TUI.Tick); err != nil {
			return err
		}
	}
	if c.IRC.Enabled && strings.TrimSpace(c.IRC.DataPath) == "" {
		return fmt.Errorf("irc.data_path is required when irc is enabled")
	}
	return nil
}
