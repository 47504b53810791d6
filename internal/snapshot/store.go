// Package snapshot persists a researcher's in-progress query state so a
// later session can offer to resume it.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/researchmesh/fedsession/internal/session"
)

// Store wraps a SQLite database holding previous-session snapshots.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the snapshot database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS snapshots (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		query TEXT NOT NULL,
		panels TEXT NOT NULL,
		filters TEXT NOT NULL,
		saved_at DATETIME NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

// Save stores a snapshot. Only the most recent snapshot is ever offered,
// so older rows are pruned on the way in.
func (s *Store) Save(ctx context.Context, snap session.Snapshot) error {
	panels, err := json.Marshal(snap.Panels)
	if err != nil {
		return fmt.Errorf("marshal panels: %w", err)
	}
	filters, err := json.Marshal(snap.Filters)
	if err != nil {
		return fmt.Errorf("marshal filters: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (query, panels, filters, saved_at) VALUES (?, ?, ?, ?)`,
		snap.Query, string(panels), string(filters), snap.SavedAt.UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return tx.Commit()
}

// Latest returns the most recently saved snapshot, or nil when none exists.
func (s *Store) Latest(ctx context.Context) (*session.Snapshot, error) {
	var (
		snap    session.Snapshot
		panels  string
		filters string
		savedAt string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT query, panels, filters, saved_at FROM snapshots ORDER BY saved_at DESC, id DESC LIMIT 1`,
	).Scan(&snap.Query, &panels, &filters, &savedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}

	if err := json.Unmarshal([]byte(panels), &snap.Panels); err != nil {
		return nil, fmt.Errorf("unmarshal panels: %w", err)
	}
	if err := json.Unmarshal([]byte(filters), &snap.Filters); err != nil {
		return nil, fmt.Errorf("unmarshal filters: %w", err)
	}
	snap.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt)
	if err != nil {
		return nil, fmt.Errorf("parse saved_at: %w", err)
	}
	return &snap, nil
}

// Clear removes all stored snapshots.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM snapshots`); err != nil {
		return fmt.Errorf("clear snapshots: %w", err)
	}
	return nil
}
