package audit

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"overseer/pkg/logx"
)

// fileStore is a dependency-free audit backend: an append-only JSON
// Lines file plus an in-memory ring for Recent queries.
type fileStore struct {
	log logx.Logger

	mu     sync.Mutex
	file   *os.File
	recent []TaskEvent
	max    int
}

const fileRecentMax = 256

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("audit.path is required for file driver")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{log: log, file: f, max: fileRecentMax}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}

func (s *fileStore) AppendEvent(ctx context.Context, e TaskEvent) error {
	_ = ctx
	if e.At.IsZero() {
		e.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return errors.New("audit file closed")
	}
	if err := json.NewEncoder(s.file).Encode(e); err != nil {
		return err
	}

	s.recent = append(s.recent, e)
	if len(s.recent) > s.max {
		s.recent = s.recent[len(s.recent)-s.max:]
	}
	return nil
}

// Recent returns up to limit of the newest events, newest first. Only
// events appended during this process lifetime are visible.
func (s *fileStore) Recent(ctx context.Context, limit int) ([]TaskEvent, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.recent)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]TaskEvent, 0, n)
	for i := len(s.recent) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, s.recent[i])
	}
	return out, nil
}
