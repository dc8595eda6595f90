package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"stockdash/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ SnapshotStore = (*SQLiteStore)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS snapshots (
	id       TEXT PRIMARY KEY,
	minutes  INTEGER NOT NULL,
	hash     TEXT NOT NULL,
	matrix   TEXT NOT NULL,
	taken_at INTEGER NOT NULL,
	UNIQUE (minutes, hash)
);
CREATE INDEX IF NOT EXISTS snapshots_taken_at ON snapshots (taken_at DESC);
`

// SQLiteStore implements SnapshotStore backed by a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, creates the
// schema and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// SnapshotStore implementation
// ---------------------------------------------------------------------------

// SaveSnapshot inserts a snapshot unless its (window, hash) already exists.
func (s *SQLiteStore) SaveSnapshot(ctx context.Context, snap *domain.Snapshot) (bool, error) {
	matrix, err := json.Marshal(snap.Matrix)
	if err != nil {
		return false, fmt.Errorf("encoding matrix: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO snapshots (id, minutes, hash, matrix, taken_at) VALUES (?, ?, ?, ?, ?)`,
		snap.ID, int(snap.Window), snap.Hash, string(matrix), snap.TakenAt.UnixMilli())
	if err != nil {
		return false, fmt.Errorf("inserting snapshot %s: %w", snap.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListSnapshots returns the most recent snapshots, newest first.
func (s *SQLiteStore) ListSnapshots(ctx context.Context, window domain.Window, limit int) ([]domain.Snapshot, error) {
	if limit <= 0 {
		limit = 20
	}
	var (
		rows *sql.Rows
		err  error
	)
	if window == AnyWindow {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, minutes, hash, matrix, taken_at FROM snapshots ORDER BY taken_at DESC, id LIMIT ?`, limit)
	} else {
		rows, err = s.db.QueryContext(ctx,
			`SELECT id, minutes, hash, matrix, taken_at FROM snapshots WHERE minutes = ? ORDER BY taken_at DESC, id LIMIT ?`,
			int(window), limit)
	}
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	var out []domain.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// LatestSnapshot returns the newest snapshot for window, or nil if none.
func (s *SQLiteStore) LatestSnapshot(ctx context.Context, window domain.Window) (*domain.Snapshot, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, minutes, hash, matrix, taken_at FROM snapshots WHERE minutes = ? ORDER BY taken_at DESC LIMIT 1`,
		int(window))
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(sc scanner) (domain.Snapshot, error) {
	var (
		snap    domain.Snapshot
		minutes int
		matrix  string
		takenAt int64
	)
	if err := sc.Scan(&snap.ID, &minutes, &snap.Hash, &matrix, &takenAt); err != nil {
		return domain.Snapshot{}, err
	}
	if err := json.Unmarshal([]byte(matrix), &snap.Matrix); err != nil {
		return domain.Snapshot{}, fmt.Errorf("decoding snapshot %s: %w", snap.ID, err)
	}
	snap.Window = domain.Window(minutes)
	snap.TakenAt = time.UnixMilli(takenAt).UTC()
	return snap, nil
}
