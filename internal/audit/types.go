package audit

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("audit disabled")

// Config configures the audit store.
//
// Driver values:
//   - "file": dependency-free JSON Lines backend
//   - "sqlite": SQLite database file
//
// If Driver is empty or "none", auditing is disabled.
type Config struct {
	Driver      string        `json:"driver"`
	Path        string        `json:"path"`
	BusyTimeout time.Duration `json:"busy_timeout,omitempty"` // sqlite only; 0 means default
}

// Event kinds recorded by the supervisor.
const (
	EventSpawned    = "spawned"
	EventDisabled   = "disabled"
	EventCompleted  = "completed"
	EventFailed     = "failed"
	EventJoinFailed = "join_failed"
	EventShutdown   = "shutdown"
)

// TaskEvent records one task lifecycle transition.
// Keep it compact and schema-stable.
type TaskEvent struct {
	At     time.Time `json:"at"`
	Task   string    `json:"task"`
	Event  string    `json:"event"`
	Error  string    `json:"error,omitempty"`
	TookMS int64     `json:"took_ms,omitempty"`
}
