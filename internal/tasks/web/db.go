package web

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"overseer/internal/accounts"
)

// dbAccounts backs the handler interface with real transactions.
type dbAccounts struct {
	pool *pgxpool.Pool
}

func (d dbAccounts) inTx(ctx context.Context, fn func(q accounts.Querier) error) error {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (d dbAccounts) LoginSession(ctx context.Context, login, password string, validFor time.Duration) (accounts.Session, error) {
	var sess accounts.Session
	err := d.inTx(ctx, func(q accounts.Querier) error {
		var err error
		sess, err = accounts.LoginSession(ctx, q, login, password, validFor)
		return err
	})
	return sess, err
}

func (d dbAccounts) ValidateSession(ctx context.Context, s accounts.Session) error {
	return s.Validate(ctx, d.pool)
}

func (d dbAccounts) CreateAccount(ctx context.Context, login, password string) (accounts.Account, error) {
	var acct accounts.Account
	err := d.inTx(ctx, func(q accounts.Querier) error {
		var err error
		acct, err = accounts.Create(ctx, q, login)
		if err != nil {
			return err
		}
		return accounts.SetPassword(ctx, q, acct.ID, password)
	})
	return acct, err
}

func (d dbAccounts) DeleteSession(ctx context.Context, s accounts.Session) error {
	return accounts.DeleteSession(ctx, d.pool, s)
}

func (d dbAccounts) PruneSessions(ctx context.Context) (int64, error) {
	return accounts.DeleteExpiredSessions(ctx, d.pool)
}
