package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"overseer/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"", "none"} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		if err != nil {
			t.Fatalf("Open(%q): %v", driver, err)
		}
		if st != nil {
			t.Fatalf("Open(%q) should return a nil store", driver)
		}
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis"}, logx.Nop()); err == nil {
		t.Fatal("unknown driver must fail")
	}
}

func TestFileStoreAppendAndRecent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	events := []TaskEvent{
		{Task: "daemon", Event: EventSpawned},
		{Task: "web", Event: EventSpawned},
		{Task: "web", Event: EventFailed, Error: "bind: address in use"},
	}
	for _, e := range events {
		if err := st.AppendEvent(ctx, e); err != nil {
			t.Fatalf("AppendEvent: %v", err)
		}
	}

	recent, err := st.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent returned %d events, want 2", len(recent))
	}
	// Newest first.
	if recent[0].Event != EventFailed || recent[0].Task != "web" {
		t.Fatalf("recent[0] = %+v", recent[0])
	}

	// Every event is one JSON line on disk.
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open jsonl: %v", err)
	}
	defer f.Close()
	var lines int
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e TaskEvent
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			t.Fatalf("line %d is not valid JSON: %v", lines+1, err)
		}
		if e.At.IsZero() {
			t.Fatalf("line %d has no timestamp", lines+1)
		}
		lines++
	}
	if lines != len(events) {
		t.Fatalf("file holds %d lines, want %d", lines, len(events))
	}
}

func TestSQLiteStoreAppendAndRecent(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "audit.db")
	st, err := Open(Config{Driver: "sqlite", Path: path, BusyTimeout: time.Second}, logx.Nop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.AppendEvent(ctx, TaskEvent{Task: "pg", Event: EventSpawned}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}
	if err := st.AppendEvent(ctx, TaskEvent{Task: "pg", Event: EventCompleted, TookMS: 12}); err != nil {
		t.Fatalf("AppendEvent: %v", err)
	}

	recent, err := st.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(recent) != 2 {
		t.Fatalf("Recent returned %d events, want 2", len(recent))
	}
	if recent[0].Event != EventCompleted || recent[0].TookMS != 12 {
		t.Fatalf("recent[0] = %+v", recent[0])
	}
	if recent[1].Event != EventSpawned {
		t.Fatalf("recent[1] = %+v", recent[1])
	}
}
