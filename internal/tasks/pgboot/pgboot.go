// Package pgboot owns the database for the whole process: it opens the
// configured connection (external or embedded), publishes the pool in
// the registry for other tasks to discover, and tears everything down
// last on shutdown.
package pgboot

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"overseer/internal/database"
	"overseer/internal/host"
	"overseer/internal/registry"
	"overseer/pkg/logx"
)

// drainWait bounds how long shutdown waits for pool borrowers to
// finish before closing connections under them.
const drainWait = 5 * time.Second

type Task struct {
	cfg database.Config
}

func New(cfg database.Config) *Task { return &Task{cfg: cfg} }

func (t *Task) Name() string { return "pgboot" }

// Spawn opens the database synchronously so dependent tasks either find
// a working pool in the registry or nothing at all. The spawned
// goroutine only exists to unwind on shutdown.
func (t *Task) Spawn(sys *host.System) (*host.Handle, error) {
	log := sys.Log.With(logx.String("task", t.Name()))

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	lock, pool, err := database.Open(ctx, t.cfg, log)
	if err != nil {
		return nil, err
	}

	if err := registry.Insert(sys.Registry, pool); err != nil {
		pool.Close()
		_ = lock.Close()
		return nil, err
	}

	return host.Go(t.Name(), sys.Log, func() error {
		<-sys.Bus.Done()

		// Stop handing out the pool, then give current borrowers a
		// bounded window to finish.
		if _, err := registry.Remove[*pgxpool.Pool](sys.Registry); err != nil {
			log.Warn("pool already removed from registry", logx.Err(err))
		}
		waitForBorrowers(pool, log)

		pool.Close()
		return lock.Close()
	}), nil
}

func waitForBorrowers(pool *pgxpool.Pool, log logx.Logger) {
	deadline := time.Now().Add(drainWait)
	for time.Now().Before(deadline) {
		if pool.Stat().AcquiredConns() == 0 {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	log.Warn("database pool still has borrowers after drain window",
		logx.Int("acquired", int(pool.Stat().AcquiredConns())))
}
