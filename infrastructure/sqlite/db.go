package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps split read/write Bun connections to the journal database.
type DB struct {
	WriteSQL *sql.DB
	ReadSQL  *sql.DB
	W        *bun.DB
	R        *bun.DB

	// Path is the database file; tempDir is set when the file is
	// ephemeral and removed by Close.
	Path    string
	tempDir string
}

// OpenDB opens the journal at path. An empty path creates the database in
// a fresh temp directory that Close removes, so nothing outlives the
// process.
func OpenDB(path string) (*DB, error) {
	var tempDir string
	if strings.TrimSpace(path) == "" {
		dir, err := os.MkdirTemp("", "kpidash-journal-")
		if err != nil {
			return nil, fmt.Errorf("create journal temp dir: %w", err)
		}
		tempDir = dir
		path = filepath.Join(dir, "journal.db")
	}

	db, err := open(path)
	if err != nil {
		if tempDir != "" {
			_ = os.RemoveAll(tempDir)
		}
		return nil, err
	}
	db.tempDir = tempDir
	return db, nil
}

func (db *DB) Ephemeral() bool { return db != nil && db.tempDir != "" }

func open(path string) (*DB, error) {
	writeDSN := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate", path)
	readDSN := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000&_query_only=1", path)

	wsql, err := sql.Open("sqlite3", writeDSN)
	if err != nil {
		return nil, fmt.Errorf("open write db: %w", err)
	}
	wsql.SetMaxOpenConns(1)
	wsql.SetConnMaxLifetime(15 * time.Minute)
	// Create the file before readers attach.
	if err := wsql.Ping(); err != nil {
		wsql.Close()
		return nil, fmt.Errorf("ping write db: %w", err)
	}

	rsql, err := sql.Open("sqlite3", readDSN)
	if err != nil {
		wsql.Close()
		return nil, fmt.Errorf("open read db: %w", err)
	}
	rsql.SetMaxOpenConns(4)
	rsql.SetConnMaxIdleTime(5 * time.Minute)
	rsql.SetConnMaxLifetime(15 * time.Minute)

	return &DB{
		WriteSQL: wsql,
		ReadSQL:  rsql,
		W:        bun.NewDB(wsql, sqlitedialect.New()),
		R:        bun.NewDB(rsql, sqlitedialect.New()),
		Path:     path,
	}, nil
}

// Close closes both handles and removes an ephemeral database.
func (db *DB) Close() error {
	if db == nil {
		return nil
	}
	var errs []error
	if db.W != nil {
		errs = append(errs, db.W.Close())
	}
	if db.R != nil {
		errs = append(errs, db.R.Close())
	}
	if db.tempDir != "" {
		errs = append(errs, os.RemoveAll(db.tempDir))
	}
	return errors.Join(errs...)
}
