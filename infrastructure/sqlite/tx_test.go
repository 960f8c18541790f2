package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/uptrace/bun"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		t.Fatalf("runtime caller unavailable")
	}
	if err := ApplyMigrations(context.Background(), db, filepath.Join(filepath.Dir(file), "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return db
}

const insertAudit = `INSERT INTO audit_logs (session_id, action, entity_type, entity_id) VALUES (?, 'test', 'nonconformity', ?)`

func countAudit(t *testing.T, db *DB, entityID string) int {
	t.Helper()
	var count int
	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		return tx.NewRaw(`SELECT COUNT(*) FROM audit_logs WHERE entity_id = ?`, entityID).Scan(ctx, &count)
	})
	if err != nil {
		t.Fatalf("count audit rows: %v", err)
	}
	return count
}

func TestWithWriteTxRollsBackOnError(t *testing.T) {
	db := openTestDB(t)

	boom := errors.New("boom")
	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.ExecContext(ctx, insertAudit, "s1", "NC-rollback"); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom error, got: %v", err)
	}
	if n := countAudit(t, db, "NC-rollback"); n != 0 {
		t.Fatalf("expected rollback to remove insert, count=%d", n)
	}
}

func TestWithWriteTxCommitsOnSuccess(t *testing.T) {
	db := openTestDB(t)

	err := db.WithWriteTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, insertAudit, "s1", "NC-commit")
		return err
	})
	if err != nil {
		t.Fatalf("write tx failed: %v", err)
	}
	if n := countAudit(t, db, "NC-commit"); n != 1 {
		t.Fatalf("expected committed insert, count=%d", n)
	}
}

func TestWithReadTxRejectsWrite(t *testing.T) {
	db := openTestDB(t)

	err := db.WithReadTx(context.Background(), func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.ExecContext(ctx, insertAudit, "s1", "NC-readonly")
		return err
	})
	if err == nil && countAudit(t, db, "NC-readonly") > 0 {
		t.Fatalf("expected write in read tx to be blocked; write succeeded")
	}
}

func TestNilDBIsNotInitialized(t *testing.T) {
	var db *DB
	err := db.WithWriteTx(context.Background(), func(context.Context, bun.Tx) error { return nil })
	if !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
}
