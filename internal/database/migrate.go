package database

import (
	"bytes"
	"context"
	"crypto/sha512"
	"fmt"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"overseer/pkg/logx"
)

// Migration is one forward/backward schema step. The checksum covers
// both directions, so editing either after deployment is detected.
type Migration struct {
	Description string
	UpSQL       string
	DownSQL     string
}

func (m Migration) Checksum() [sha512.Size]byte {
	h := sha512.New()
	_, _ = io.WriteString(h, m.UpSQL)
	_, _ = io.WriteString(h, m.DownSQL)
	var sum [sha512.Size]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// Set is the ordered migration list for one module. A migration's
// version is its index; appending is the only safe evolution.
type Set struct {
	Module     string
	Migrations []Migration
}

// Tx is the slice of pgx.Tx the migration engine needs. pgx.Tx
// satisfies it directly.
type Tx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Beginner opens transactions for the migration engine.
type Beginner interface {
	Begin(ctx context.Context) (Tx, error)
}

// PoolBeginner adapts a pgx pool to the Beginner interface.
func PoolBeginner(pool *pgxpool.Pool) Beginner { return poolBeginner{pool} }

type poolBeginner struct{ pool *pgxpool.Pool }

func (b poolBeginner) Begin(ctx context.Context) (Tx, error) { return b.pool.Begin(ctx) }

// Apply brings the module's schema up to date inside one transaction:
// either every pending migration lands and is recorded, or none do.
//
// Ledger rows are verified positionally against the code set. A version
// or checksum mismatch means code and database have diverged and is
// fatal; nothing is executed in that case. Ledger rows beyond the code
// set are left untouched.
func (s Set) Apply(ctx context.Context, db Beginner, log logx.Logger) error {
	if len(s.Migrations) == 0 {
		return nil
	}

	log.Info("applying migrations", logx.String("module", s.Module),
		logx.Int("defined", len(s.Migrations)))

	tx, err := db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("migrations %s: begin: %w", s.Module, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	applied, err := appliedRows(ctx, tx, s.Module)
	if err != nil {
		return fmt.Errorf("migrations %s: read ledger: %w", s.Module, err)
	}

	ran := 0
	for version, mig := range s.Migrations {
		sum := mig.Checksum()
		if version < len(applied) {
			row := applied[version]
			if len(row.checksum) != sha512.Size {
				return fmt.Errorf("migrations %s: recorded checksum for version %d has invalid length %d",
					s.Module, row.version, len(row.checksum))
			}
			if row.version != int64(version) {
				return fmt.Errorf("migrations %s: version mismatch: ledger has %d where code expects %d",
					s.Module, row.version, version)
			}
			if !bytes.Equal(row.checksum, sum[:]) {
				return fmt.Errorf("migrations %s: checksum mismatch for version %d (%q): migration changed after it was applied",
					s.Module, version, mig.Description)
			}
			continue
		}

		if _, err := tx.Exec(ctx, mig.UpSQL); err != nil {
			return fmt.Errorf("migrations %s: apply version %d (%q): %w",
				s.Module, version, mig.Description, err)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO _migrations(module, version, checksum, description) VALUES ($1, $2, $3, $4)`,
			s.Module, int64(version), sum[:], mig.Description,
		); err != nil {
			return fmt.Errorf("migrations %s: record version %d: %w", s.Module, version, err)
		}
		ran++
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("migrations %s: commit: %w", s.Module, err)
	}

	log.Info("migrations up to date", logx.String("module", s.Module),
		logx.Int("applied", ran))
	return nil
}

type ledgerRow struct {
	version  int64
	checksum []byte
}

func appliedRows(ctx context.Context, tx Tx, module string) ([]ledgerRow, error) {
	rows, err := tx.Query(ctx,
		`SELECT version, checksum FROM _migrations WHERE module = $1 ORDER BY version ASC`, module)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ledgerRow
	for rows.Next() {
		var r ledgerRow
		if err := rows.Scan(&r.version, &r.checksum); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
