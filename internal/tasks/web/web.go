// Package web serves the HTTP interface: health, login/logout backed by
// the accounts schema, and process status. It discovers the database
// pool through the registry, runs its migrations before binding the
// listener, and drains in-flight requests on shutdown.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"

	"overseer/internal/accounts"
	"overseer/internal/config"
	"overseer/internal/database"
	"overseer/internal/host"
	"overseer/internal/registry"
	"overseer/pkg/logx"
)

type Task struct {
	cfg config.WebConfig
}

func New(cfg config.WebConfig) *Task { return &Task{cfg: cfg} }

func (t *Task) Name() string { return "web" }

func (t *Task) Spawn(sys *host.System) (*host.Handle, error) {
	if !t.cfg.Enabled {
		return nil, nil
	}
	log := sys.Log.With(logx.String("task", t.Name()))

	timeouts, err := parseTimeouts(t.cfg)
	if err != nil {
		return nil, err
	}

	return host.Go(t.Name(), sys.Log, func() error {
		// The pool is owned by another task; wait for it to show up.
		waitCtx, cancelWait := sys.Bus.Context(context.Background())
		pool, err := registry.WaitValue[*pgxpool.Pool](waitCtx, sys.Registry, timeouts.poolWait)
		cancelWait()
		if err != nil {
			if sys.Bus.Signaled() {
				return nil
			}
			return sys.Bus.OnError(fmt.Errorf("web: database pool never appeared: %w", err))
		}

		mctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = accounts.Migrations().Apply(mctx, database.PoolBeginner(pool), log)
		cancel()
		if err != nil {
			return sys.Bus.OnError(err)
		}

		srv, err := newServer(t.cfg, timeouts, dbAccounts{pool: pool}, sys, log)
		if err != nil {
			return sys.Bus.OnError(err)
		}

		pruner := cron.New()
		if t.cfg.Sessions.PruneSchedule != "" {
			if _, err := pruner.AddFunc(t.cfg.Sessions.PruneSchedule, srv.pruneSessions); err != nil {
				return sys.Bus.OnError(fmt.Errorf("web: bad prune_schedule: %w", err))
			}
			pruner.Start()
			defer pruner.Stop()
		}

		addr := fmt.Sprintf("%s:%d", t.cfg.Address, t.cfg.Port)
		serveErr := make(chan error, 1)
		go func() {
			log.Info("listening", logx.String("addr", addr))
			serveErr <- srv.start(addr)
		}()

		select {
		case err := <-serveErr:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return sys.Bus.OnError(err)
			}
			return nil
		case <-sys.Bus.Done():
		}

		sctx, cancel := context.WithTimeout(context.Background(), timeouts.shutdown)
		defer cancel()
		log.Info("draining http server", logx.Duration("timeout", timeouts.shutdown))
		if err := srv.shutdown(sctx); err != nil {
			log.Warn("http drain incomplete", logx.Err(err))
		}
		<-serveErr
		return nil
	}), nil
}

type timeouts struct {
	read     time.Duration
	write    time.Duration
	idle     time.Duration
	shutdown time.Duration
	poolWait time.Duration
	maxAge   time.Duration
}

func parseTimeouts(cfg config.WebConfig) (timeouts, error) {
	var t timeouts
	var err error
	if t.read, err = config.ParseDurationOrDefault("web.read_timeout", cfg.ReadTimeout, 10*time.Second); err != nil {
		return t, err
	}
	if t.write, err = config.ParseDurationOrDefault("web.write_timeout", cfg.WriteTimeout, 30*time.Second); err != nil {
		return t, err
	}
	if t.idle, err = config.ParseDurationOrDefault("web.idle_timeout", cfg.IdleTimeout, 2*time.Minute); err != nil {
		return t, err
	}
	if t.shutdown, err = config.ParseDurationOrDefault("web.shutdown_timeout", cfg.ShutdownTimeout, 15*time.Second); err != nil {
		return t, err
	}
	if t.poolWait, err = config.ParseDurationOrDefault("web.pool_wait", cfg.PoolWait, time.Minute); err != nil {
		return t, err
	}
	if t.maxAge, err = config.ParseDurationOrDefault("web.sessions.max_age", cfg.Sessions.MaxAge, 7*24*time.Hour); err != nil {
		return t, err
	}
	return t, nil
}
