package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"
)

// SQLiteJournal implements Journal using an embedded SQLite database.
type SQLiteJournal struct{ db *sql.DB }

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a journal.
func OpenSQLite(ctx context.Context, path string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// SQLite is a single-writer engine; one connection serialises log writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// Append inserts one entry.
func (j *SQLiteJournal) Append(ctx context.Context, e Entry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO log_entries (ts, level, logger, message, fields)
		VALUES (?, ?, ?, ?, ?)`,
		toUnixMilli(e.Time), e.Level, e.Logger, e.Message, e.Fields,
	)
	return err
}

// Tail returns the newest n entries in chronological order.
func (j *SQLiteJournal) Tail(ctx context.Context, n int) ([]Entry, error) {
	if n <= 0 {
		return nil, nil
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, ts, level, logger, message, fields
		FROM (
			SELECT id, ts, level, logger, message, fields
			FROM log_entries
			ORDER BY id DESC
			LIMIT ?
		)
		ORDER BY id ASC`,
		n,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []Entry
	for rows.Next() {
		var (
			e  Entry
			ts int64
		)
		if err := rows.Scan(&e.ID, &ts, &e.Level, &e.Logger, &e.Message, &e.Fields); err != nil {
			return nil, err
		}
		e.Time = fromUnixMilli(ts)
		res = append(res, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return res, nil
}

// Prune deletes everything but the newest keep entries.
func (j *SQLiteJournal) Prune(ctx context.Context, keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := j.db.ExecContext(ctx, `
		DELETE FROM log_entries
		WHERE id <= (
			SELECT COALESCE(MAX(id), 0) - ? FROM log_entries
		)`,
		keep,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
