package audit

import (
	"context"
	"errors"
	"strings"

	"overseer/pkg/logx"
)

// Store is the persistence API the supervisor records into.
type Store interface {
	AppendEvent(ctx context.Context, e TaskEvent) error
	Recent(ctx context.Context, limit int) ([]TaskEvent, error)
	Close() error
}

// Open initializes the configured store.
// It returns (nil, nil) if auditing is disabled.
func Open(cfg Config, log logx.Logger) (Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver == "" || driver == "none" {
		return nil, nil
	}
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "file":
		return openFile(cfg, log)
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown audit driver: " + driver)
	}
}
