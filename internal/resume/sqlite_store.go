// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package resume

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	xglog "github.com/ManuGH/reelfeed/internal/log"
	"github.com/ManuGH/reelfeed/internal/persistence/sqlite"
)

const schemaVersion = 1

// SqliteStore implements Store using SQLite.
type SqliteStore struct {
	DB *sql.DB
}

// NewSqliteStore initializes a new SQLite resume store. An existing
// database is integrity-checked first; corruption is surfaced in the
// log but does not block startup, resume positions are best-effort.
func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if _, err := os.Stat(dbPath); err == nil {
		if issues, err := sqlite.VerifyIntegrity(dbPath, "quick"); err == nil && issues != nil {
			l := xglog.WithComponent("resume")
			l.Warn().
				Strs("issues", issues).
				Str("path", dbPath).
				Msg("resume database failed integrity check")
		}
	}

	db, err := sqlite.Open(dbPath, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}

	s := &SqliteStore{DB: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("resume store: migration failed: %w", err)
	}

	return s, nil
}

func (s *SqliteStore) migrate() error {
	var currentVersion int
	if err := s.DB.QueryRow("PRAGMA user_version").Scan(&currentVersion); err != nil {
		return err
	}
	if currentVersion >= schemaVersion {
		return nil
	}

	tx, err := s.DB.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	schema := `
	CREATE TABLE IF NOT EXISTS resume_positions (
		viewer_id TEXT NOT NULL,
		reel_id TEXT NOT NULL,
		fraction REAL NOT NULL,
		watched BOOLEAN NOT NULL DEFAULT 0,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (viewer_id, reel_id)
	);
	CREATE INDEX IF NOT EXISTS idx_resume_updated ON resume_positions(updated_at);
	`

	if _, err := tx.Exec(schema); err != nil {
		return err
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return err
	}

	return tx.Commit()
}

func (s *SqliteStore) Put(ctx context.Context, viewerID, reelID string, pos *Position) error {
	query := `
	INSERT INTO resume_positions (viewer_id, reel_id, fraction, watched, updated_at)
	VALUES (?, ?, ?, ?, ?)
	ON CONFLICT(viewer_id, reel_id) DO UPDATE SET
		fraction = excluded.fraction,
		watched = excluded.watched,
		updated_at = excluded.updated_at
	`
	_, err := s.DB.ExecContext(ctx, query,
		viewerID, reelID, pos.Fraction, pos.Watched, pos.UpdatedAt.Format(time.RFC3339),
	)
	return err
}

func (s *SqliteStore) Get(ctx context.Context, viewerID, reelID string) (*Position, error) {
	query := `SELECT fraction, watched, updated_at FROM resume_positions WHERE viewer_id = ? AND reel_id = ?`
	var pos Position
	var updatedAtStr string
	err := s.DB.QueryRowContext(ctx, query, viewerID, reelID).Scan(&pos.Fraction, &pos.Watched, &updatedAtStr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	pos.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)
	return &pos, nil
}

func (s *SqliteStore) Delete(ctx context.Context, viewerID, reelID string) error {
	_, err := s.DB.ExecContext(ctx, "DELETE FROM resume_positions WHERE viewer_id = ? AND reel_id = ?", viewerID, reelID)
	return err
}

func (s *SqliteStore) Close() error {
	return s.DB.Close()
}

var _ Store = (*SqliteStore)(nil)
