// Package irc hosts the chat connector. The wire protocol is not
// implemented yet; the task owns the connector's schema and publishes a
// Connections resource other tasks can discover through the registry.
package irc

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"overseer/internal/config"
	"overseer/internal/database"
	"overseer/internal/host"
	"overseer/internal/registry"
	"overseer/pkg/logx"
)

const poolWait = 30 * time.Second

// Connections is the shared connector state. Networks are registered by
// name; actual socket handling is a stub until the protocol lands.
type Connections struct {
	mu       sync.Mutex
	networks map[string]struct{}
}

func NewConnections() *Connections {
	return &Connections{networks: make(map[string]struct{})}
}

// Track records a network name. It reports whether the name was new.
func (c *Connections) Track(network string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.networks[network]; ok {
		return false
	}
	c.networks[network] = struct{}{}
	return true
}

func (c *Connections) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.networks)
}

type Task struct {
	cfg config.IRCConfig
}

func New(cfg config.IRCConfig) *Task { return &Task{cfg: cfg} }

func (t *Task) Name() string { return "irc" }

func (t *Task) Spawn(sys *host.System) (*host.Handle, error) {
	if !t.cfg.Enabled {
		return nil, nil
	}
	if err := os.MkdirAll(t.cfg.DataPath, 0o755); err != nil {
		return nil, fmt.Errorf("irc: create data path: %w", err)
	}
	log := sys.Log.With(logx.String("task", t.Name()))

	return host.Go(t.Name(), sys.Log, func() error {
		waitCtx, cancelWait := sys.Bus.Context(context.Background())
		pool, err := registry.WaitValue[*pgxpool.Pool](waitCtx, sys.Registry, poolWait)
		cancelWait()
		if err != nil {
			if sys.Bus.Signaled() {
				return nil
			}
			return sys.Bus.OnError(fmt.Errorf("irc: database pool never appeared: %w", err))
		}

		mctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		err = Migrations().Apply(mctx, database.PoolBeginner(pool), log)
		cancel()
		if err != nil {
			return sys.Bus.OnError(err)
		}

		conns := NewConnections()
		if err := registry.Insert(sys.Registry, conns); err != nil {
			return sys.Bus.OnError(fmt.Errorf("irc: publish connections: %w", err))
		}
		log.Info("connector ready", logx.String("data_path", t.cfg.DataPath))

		<-sys.Bus.Done()

		if _, err := registry.Remove[*Connections](sys.Registry); err != nil {
			log.Warn("connections already gone", logx.Err(err))
		}
		return nil
	}), nil
}

// Migrations returns the connector's schema set.
func Migrations() database.Set {
	return database.Set{
		Module: "irc",
		Migrations: []database.Migration{
			{
				Description: "network definitions",
				UpSQL: `CREATE TABLE irc_networks (
	id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
	name text NOT NULL UNIQUE,
	address text NOT NULL,
	port integer NOT NULL DEFAULT 6697,
	use_tls boolean NOT NULL DEFAULT true,
	nick text NOT NULL,
	created_at timestamp NOT NULL DEFAULT now()
);`,
				DownSQL: `DROP TABLE irc_networks;`,
			},
		},
	}
}
