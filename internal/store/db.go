package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

const currentVersion = 1

// DB wraps a SQLite database connection holding the product catalog.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) a catalog database at the given path and runs migrations.
// Use ":memory:" for an in-memory database (useful for testing).
//
// LIKE matching is case-insensitive on every connection.
func Open(path string) (*DB, error) {
	const pragmas = "_pragma=foreign_keys(ON)&_pragma=case_sensitive_like(0)"
	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&" + pragmas
	} else {
		dsn = ":memory:?" + pragmas
	}

	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// One connection: a single writer, and :memory: stays one database.
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	store := &DB{db: sqlDB}
	if err := store.migrate(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return store, nil
}

// New wraps an already opened handle without running migrations.
func New(db *sql.DB) *DB {
	return &DB{db: db}
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Checkpoint moves the write-ahead log into the main database file. After it
// returns, the file alone holds every committed row and can be copied.
func (d *DB) Checkpoint(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("checkpointing database: %w", err)
	}
	return nil
}

// Conn returns the underlying *sql.DB for advanced use cases.
func (d *DB) Conn() *sql.DB {
	return d.db
}

func (d *DB) migrate() error {
	var version int
	err := d.db.QueryRow("PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("reading user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	if version < 1 {
		if err := d.migrateV1(); err != nil {
			return err
		}
	}

	_, err = d.db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentVersion))
	if err != nil {
		return fmt.Errorf("setting user_version: %w", err)
	}

	return nil
}

// migrateV1 creates the catalog tables. Databases written by earlier dump
// tools already carry these tables at user_version 0 and are left as they are.
func (d *DB) migrateV1() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id   INTEGER PRIMARY KEY,
			name TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS files (
			id        INTEGER,
			product   INTEGER,
			name      TEXT,
			"desc"    TEXT,
			langc     TEXT,
			bootstrap TEXT DEFAULT NULL,
			sha1      TEXT DEFAULT NULL,
			sha2      TEXT DEFAULT NULL,
			FOREIGN KEY(product) REFERENCES products(id),
			PRIMARY KEY(id, product)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_files_product ON files(product)`,
	}

	tx, err := d.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning migration transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range statements {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("executing migration statement: %w", err)
		}
	}

	return tx.Commit()
}
