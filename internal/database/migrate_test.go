package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"overseer/pkg/logx"
)

// fakeDB emulates the _migrations ledger plus transactional visibility:
// inserts stay pending until Commit.
type fakeDB struct {
	ledger     map[string][]ledgerRow
	beginCount int
	failExecOn string
}

func newFakeDB() *fakeDB {
	return &fakeDB{ledger: make(map[string][]ledgerRow)}
}

func (db *fakeDB) Begin(ctx context.Context) (Tx, error) {
	db.beginCount++
	return &fakeTx{db: db}, nil
}

type fakeTx struct {
	db         *fakeDB
	applied    []string // non-ledger SQL executed in this tx
	pending    map[string][]ledgerRow
	committed  bool
	rolledBack bool
}

func (tx *fakeTx) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx.db.failExecOn != "" && strings.Contains(sql, tx.db.failExecOn) {
		return pgconn.CommandTag{}, errors.New("forced exec failure")
	}
	if strings.HasPrefix(strings.TrimSpace(sql), "INSERT INTO _migrations") {
		module := args[0].(string)
		row := ledgerRow{version: args[1].(int64), checksum: args[2].([]byte)}
		if tx.pending == nil {
			tx.pending = make(map[string][]ledgerRow)
		}
		tx.pending[module] = append(tx.pending[module], row)
		return pgconn.CommandTag{}, nil
	}
	tx.applied = append(tx.applied, sql)
	return pgconn.CommandTag{}, nil
}

func (tx *fakeTx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	module := args[0].(string)
	return &fakeRows{rows: tx.db.ledger[module]}, nil
}

func (tx *fakeTx) Commit(ctx context.Context) error {
	tx.committed = true
	for module, rows := range tx.pending {
		tx.db.ledger[module] = append(tx.db.ledger[module], rows...)
	}
	tx.pending = nil
	return nil
}

func (tx *fakeTx) Rollback(ctx context.Context) error {
	if !tx.committed {
		tx.rolledBack = true
		tx.pending = nil
	}
	return nil
}

type fakeRows struct {
	rows []ledgerRow
	idx  int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}
func (r *fakeRows) Scan(dest ...any) error {
	row := r.rows[r.idx-1]
	*(dest[0].(*int64)) = row.version
	*(dest[1].(*[]byte)) = row.checksum
	return nil
}
func (r *fakeRows) Values() ([]any, error) { return nil, nil }
func (r *fakeRows) RawValues() [][]byte    { return nil }
func (r *fakeRows) Conn() *pgx.Conn        { return nil }

func testSet() Set {
	return Set{
		Module: "accounts",
		Migrations: []Migration{
			{Description: "create accounts", UpSQL: "CREATE TABLE accounts ()", DownSQL: "DROP TABLE accounts"},
			{Description: "create locals", UpSQL: "CREATE TABLE accounts_locals ()", DownSQL: "DROP TABLE accounts_locals"},
			{Description: "create sessions", UpSQL: "CREATE TABLE accounts_sessions ()", DownSQL: "DROP TABLE accounts_sessions"},
		},
	}
}

func TestApplyFreshThenRerun(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	set := testSet()

	if err := set.Apply(context.Background(), db, logx.Nop()); err != nil {
		t.Fatalf("first Apply: %v", err)
	}
	if got := len(db.ledger["accounts"]); got != 3 {
		t.Fatalf("ledger has %d rows, want 3", got)
	}
	for i, row := range db.ledger["accounts"] {
		if row.version != int64(i) {
			t.Fatalf("row %d has version %d", i, row.version)
		}
		sum := set.Migrations[i].Checksum()
		if string(row.checksum) != string(sum[:]) {
			t.Fatalf("row %d checksum does not match the code migration", i)
		}
	}

	// A rerun verifies the ledger and executes nothing new.
	before := db.beginCount
	if err := set.Apply(context.Background(), db, logx.Nop()); err != nil {
		t.Fatalf("rerun Apply: %v", err)
	}
	if db.beginCount != before+1 {
		t.Fatalf("rerun opened %d transactions, want 1", db.beginCount-before)
	}
	if got := len(db.ledger["accounts"]); got != 3 {
		t.Fatalf("rerun grew the ledger to %d rows", got)
	}
}

func TestEmptySetOpensNoTransaction(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	set := Set{Module: "empty"}
	if err := set.Apply(context.Background(), db, logx.Nop()); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if db.beginCount != 0 {
		t.Fatalf("empty set opened %d transactions", db.beginCount)
	}
}

func TestPartialSetAppliesOnlyTail(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	set := testSet()

	// Start with only the first migration applied.
	short := Set{Module: set.Module, Migrations: set.Migrations[:1]}
	if err := short.Apply(context.Background(), db, logx.Nop()); err != nil {
		t.Fatalf("seed Apply: %v", err)
	}

	if err := set.Apply(context.Background(), db, logx.Nop()); err != nil {
		t.Fatalf("full Apply: %v", err)
	}
	if got := len(db.ledger["accounts"]); got != 3 {
		t.Fatalf("ledger has %d rows, want 3", got)
	}
}

func TestChecksumMismatchIsFatal(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	set := testSet()
	if err := set.Apply(context.Background(), db, logx.Nop()); err != nil {
		t.Fatalf("seed Apply: %v", err)
	}

	// Editing an already-applied migration must be refused.
	set.Migrations[1].UpSQL = "CREATE TABLE accounts_locals (renamed text)"
	err := set.Apply(context.Background(), db, logx.Nop())
	if err == nil || !strings.Contains(err.Error(), "checksum mismatch") {
		t.Fatalf("Apply = %v, want checksum mismatch", err)
	}
}

func TestChecksumCoversDownSQL(t *testing.T) {
	t.Parallel()
	a := Migration{UpSQL: "CREATE TABLE t ()", DownSQL: "DROP TABLE t"}
	b := Migration{UpSQL: "CREATE TABLE t ()", DownSQL: "DROP TABLE t CASCADE"}
	if a.Checksum() == b.Checksum() {
		t.Fatal("down sql must contribute to the checksum")
	}
}

func TestVersionMismatchIsFatal(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	sum := testSet().Migrations[0].Checksum()
	db.ledger["accounts"] = []ledgerRow{{version: 5, checksum: sum[:]}}

	err := testSet().Apply(context.Background(), db, logx.Nop())
	if err == nil || !strings.Contains(err.Error(), "version mismatch") {
		t.Fatalf("Apply = %v, want version mismatch", err)
	}
}

func TestInvalidChecksumLengthIsFatal(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	db.ledger["accounts"] = []ledgerRow{{version: 0, checksum: []byte{1, 2, 3}}}

	err := testSet().Apply(context.Background(), db, logx.Nop())
	if err == nil || !strings.Contains(err.Error(), "invalid length") {
		t.Fatalf("Apply = %v, want invalid checksum length", err)
	}
}

func TestFailedMigrationRollsBackEverything(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	db.failExecOn = "accounts_locals"

	err := testSet().Apply(context.Background(), db, logx.Nop())
	if err == nil {
		t.Fatal("Apply should fail when a migration fails")
	}
	if got := len(db.ledger["accounts"]); got != 0 {
		t.Fatalf("failed run left %d ledger rows", got)
	}
}

func TestExtraLedgerRowsAreIgnored(t *testing.T) {
	t.Parallel()
	db := newFakeDB()
	set := testSet()
	if err := set.Apply(context.Background(), db, logx.Nop()); err != nil {
		t.Fatalf("seed Apply: %v", err)
	}
	// Simulate a newer deployment having applied a fourth migration.
	sum := Migration{UpSQL: "x", DownSQL: "y"}.Checksum()
	db.ledger["accounts"] = append(db.ledger["accounts"], ledgerRow{version: 3, checksum: sum[:]})

	if err := set.Apply(context.Background(), db, logx.Nop()); err != nil {
		t.Fatalf("Apply with extra ledger rows: %v", err)
	}
}

func TestChecksumIsStable(t *testing.T) {
	t.Parallel()
	m := Migration{Description: "d", UpSQL: "up", DownSQL: "down"}
	want := m.Checksum()
	for i := 0; i < 3; i++ {
		if got := m.Checksum(); got != want {
			t.Fatalf("checksum changed between calls")
		}
	}
	if fmt.Sprintf("%x", want[:8]) == "0000000000000000" {
		t.Fatal("checksum looks empty")
	}
}
