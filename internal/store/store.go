// Package store handles SQLite persistence of user preferences.
package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "modernc.org/sqlite" // SQLite driver.
)

const keyHighScore = "highscore"

// Store wraps SQLite access for the preference table.
type Store struct {
	db *sql.DB
}

// Open opens or creates the SQLite database and applies migrations.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		if cerr := db.Close(); cerr != nil {
			// Best-effort close on migration failure.
			_ = cerr
		}
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// LoadHighScore returns the stored high score, or 0 when none was saved yet.
func (s *Store) LoadHighScore(ctx context.Context) (int, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, keyHighScore).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(raw)
}

// SaveHighScore stores v unless a higher score is already stored.
func (s *Store) SaveHighScore(ctx context.Context, v int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET
			value = CASE WHEN CAST(excluded.value AS INTEGER) > CAST(preferences.value AS INTEGER)
				THEN excluded.value ELSE preferences.value END,
			updated_at = CASE WHEN CAST(excluded.value AS INTEGER) > CAST(preferences.value AS INTEGER)
				THEN excluded.updated_at ELSE preferences.updated_at END`,
		keyHighScore,
		strconv.Itoa(v),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// ResetHighScore removes the stored high score.
func (s *Store) ResetHighScore(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM preferences WHERE key = ?`, keyHighScore)
	return err
}
