package database

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"

	"overseer/pkg/logx"
)

// Lock pins the underlying connection target for the lifetime of the
// pool. For external connections it is inert; for embedded connections
// it owns the running server. Close it only after the pool is closed.
type Lock struct {
	uri      string
	embedded *embeddedpostgres.EmbeddedPostgres
	dataPath string
	wipe     bool
	log      logx.Logger
}

func (l *Lock) URI() string { return l.uri }

func (l *Lock) Close() error {
	if l.embedded == nil {
		return nil
	}
	l.log.Info("stopping embedded database")
	if err := l.embedded.Stop(); err != nil {
		l.log.Error("embedded database shutdown failed", logx.Err(err))
		return err
	}
	l.log.Info("embedded database stopped")
	if l.wipe && l.dataPath != "" {
		if err := os.RemoveAll(l.dataPath); err != nil {
			l.log.Warn("failed removing transient database directory",
				logx.String("path", l.dataPath), logx.Err(err))
		}
	}
	return nil
}

// Open resolves the configured connection, creates the pgx pool, and
// bootstraps the migration ledger table. On success the caller owns
// both the Lock and the pool; close the pool first.
func Open(ctx context.Context, cfg Config, log logx.Logger) (*Lock, *pgxpool.Pool, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	lock, err := acquire(cfg.Connection, log)
	if err != nil {
		return nil, nil, err
	}

	pc, err := pgxpool.ParseConfig(lock.URI())
	if err != nil {
		_ = lock.Close()
		return nil, nil, fmt.Errorf("database: parse connection uri: %w", err)
	}
	pc.MaxConns = cfg.MaxConnections

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		_ = lock.Close()
		return nil, nil, fmt.Errorf("database: create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		_ = lock.Close()
		return nil, nil, fmt.Errorf("database: ping: %w", err)
	}

	if err := bootstrapLedger(ctx, pool); err != nil {
		pool.Close()
		_ = lock.Close()
		return nil, nil, err
	}

	log.Info("database connection pool ready",
		logx.String("type", cfg.Connection.Type),
		logx.Int("max_conns", int(cfg.MaxConnections)))
	return lock, pool, nil
}

func acquire(cc ConnectionConfig, log logx.Logger) (*Lock, error) {
	switch strings.ToLower(strings.TrimSpace(cc.Type)) {
	case ConnectionExternal:
		return &Lock{uri: cc.URI, log: log}, nil
	case ConnectionEmbedded:
		return startEmbedded(cc.Embedded, log)
	default:
		return nil, fmt.Errorf("database: unknown connection type %q", cc.Type)
	}
}

func startEmbedded(ec EmbeddedConfig, log logx.Logger) (*Lock, error) {
	log.Info("starting embedded database",
		logx.String("root", ec.RootPath),
		logx.Int("port", int(ec.Port)))

	root, err := filepath.Abs(ec.RootPath)
	if err != nil {
		return nil, fmt.Errorf("database: resolve embedded root: %w", err)
	}
	dataPath := filepath.Join(root, "db")

	ecfg := embeddedpostgres.DefaultConfig().
		Version(embeddedpostgres.V16).
		Port(uint32(ec.Port)).
		Username(ec.Username).
		Password(ec.Password).
		Database(ec.Database).
		RuntimePath(filepath.Join(root, "runtime")).
		BinariesPath(filepath.Join(root, "bin")).
		DataPath(dataPath).
		StartTimeout(ec.startTimeout())
	if ec.MirrorURL != "" {
		ecfg = ecfg.BinaryRepositoryURL(ec.MirrorURL)
	}

	epg := embeddedpostgres.NewDatabase(ecfg)
	if err := epg.Start(); err != nil {
		return nil, fmt.Errorf("database: start embedded server: %w", err)
	}

	uri := fmt.Sprintf("postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		url.QueryEscape(ec.Username), url.QueryEscape(ec.Password), ec.Port, ec.Database)

	log.Info("embedded database started", logx.Int("port", int(ec.Port)))
	return &Lock{
		uri:      uri,
		embedded: epg,
		dataPath: dataPath,
		wipe:     !ec.Persistent,
		log:      log,
	}, nil
}

const ledgerDDL = `
CREATE TABLE IF NOT EXISTS _migrations (
	module text NOT NULL,
	version bigint NOT NULL,
	checksum bytea NOT NULL,
	description text NOT NULL,
	inserted_at timestamp without time zone NOT NULL DEFAULT now(),
	CONSTRAINT _migrations_pkey PRIMARY KEY (module, version)
)`

func bootstrapLedger(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, ledgerDDL); err != nil {
		return fmt.Errorf("database: bootstrap migration ledger: %w", err)
	}
	return nil
}
