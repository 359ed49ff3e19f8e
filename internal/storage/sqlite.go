package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/Ananth-NQI/sessiongate/internal/models"
)

// SQLiteStore keeps sessions in a local SQLite file
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (and creates if needed) the database at path
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	// WAL lets readers continue while a save is in flight
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}

	const schema = `
	CREATE TABLE IF NOT EXISTS session_entries (
		key        TEXT PRIMARY KEY,
		entry      TEXT NOT NULL,
		updated_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_session_entries_updated_at ON session_entries(updated_at);`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize session schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Load(ctx context.Context) (models.Sessions, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, entry, updated_at FROM session_entries`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	defer rows.Close()

	var records []models.SessionRecord
	for rows.Next() {
		var r models.SessionRecord
		if err := rows.Scan(&r.Key, &r.Entry, &r.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read sessions: %w", err)
	}
	return decodeRecords(records), nil
}

// Save replaces every row inside one transaction
func (s *SQLiteStore) Save(ctx context.Context, sessions models.Sessions) error {
	records, err := encodeRecords(sessions)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", ErrSave, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_entries`); err != nil {
		return fmt.Errorf("%w: clear: %v", ErrSave, err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO session_entries (key, entry, updated_at) VALUES (?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", ErrSave, err)
	}
	defer stmt.Close()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, r.Key, r.Entry, r.UpdatedAt); err != nil {
			return fmt.Errorf("%w: insert %s: %v", ErrSave, r.Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", ErrSave, err)
	}
	return nil
}
