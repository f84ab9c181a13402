// Package sqlite implements the state store on a single SQLite database, so
// the active request and the processed set are committed in one transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/danielolaszy/issuebot/internal/ports"
	"github.com/danielolaszy/issuebot/pkg/models"

	_ "modernc.org/sqlite"
)

// DatabaseFileName is the database file created inside the data directory.
const DatabaseFileName = "state.db"

const schema = `
CREATE TABLE IF NOT EXISTS active_request (
	id INTEGER PRIMARY KEY CHECK (id = 1),
	repo_owner TEXT NOT NULL,
	repo_name TEXT NOT NULL,
	issue_number INTEGER NOT NULL,
	issue_url TEXT NOT NULL,
	requested_at TEXT NOT NULL,
	expires_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS processed_issues (
	issue_id INTEGER PRIMARY KEY
);
`

// Store keeps the state in a single SQLite database.
type Store struct {
	db     *sql.DB
	dbPath string
}

var _ ports.StateStore = (*Store)(nil)

// NewStore opens (creating if needed) the database under dataDir.
func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dataDir, err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}
	// one writer; the poller is the only user
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize state database: %w", err)
	}

	return &Store{db: db, dbPath: dbPath}, nil
}

// LoadActive reads the outstanding request, nil when none is stored.
func (s *Store) LoadActive(ctx context.Context) (*models.ActiveRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT repo_owner, repo_name, issue_number, issue_url, requested_at, expires_at
		FROM active_request WHERE id = 1`)

	var (
		active               models.ActiveRequest
		requested, expiresAt string
	)
	err := row.Scan(&active.RepoOwner, &active.RepoName, &active.IssueNumber, &active.IssueURL, &requested, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("load active request: %w", err)
	}

	if active.RequestedAt, err = time.Parse(time.RFC3339Nano, requested); err != nil {
		return nil, fmt.Errorf("parse requested_at: %w", err)
	}
	if active.ExpiresAt, err = time.Parse(time.RFC3339Nano, expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}

	return &active, nil
}

// SaveActive overwrites the active request; nil clears it.
func (s *Store) SaveActive(ctx context.Context, active *models.ActiveRequest) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return saveActive(ctx, tx, active)
	})
}

// LoadProcessed reads every processed issue ID.
func (s *Store) LoadProcessed(ctx context.Context) (models.ProcessedSet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT issue_id FROM processed_issues`)
	if err != nil {
		return nil, fmt.Errorf("load processed issues: %w", err)
	}
	defer rows.Close()

	processed := models.NewProcessedSet()
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan processed issue: %w", err)
		}
		processed.Add(id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate processed issues: %w", err)
	}

	return processed, nil
}

// SaveProcessed replaces the whole processed set.
func (s *Store) SaveProcessed(ctx context.Context, processed models.ProcessedSet) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return saveProcessed(ctx, tx, processed)
	})
}

// Commit stores both values in one transaction.
func (s *Store) Commit(ctx context.Context, active *models.ActiveRequest, processed models.ProcessedSet) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := saveProcessed(ctx, tx, processed); err != nil {
			return err
		}
		return saveActive(ctx, tx, active)
	})
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func saveActive(ctx context.Context, tx *sql.Tx, active *models.ActiveRequest) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM active_request`); err != nil {
		return fmt.Errorf("clear active request: %w", err)
	}
	if active == nil {
		return nil
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO active_request (id, repo_owner, repo_name, issue_number, issue_url, requested_at, expires_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)`,
		active.RepoOwner, active.RepoName, active.IssueNumber, active.IssueURL,
		active.RequestedAt.UTC().Format(time.RFC3339Nano), active.ExpiresAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save active request: %w", err)
	}
	return nil
}

func saveProcessed(ctx context.Context, tx *sql.Tx, processed models.ProcessedSet) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM processed_issues`); err != nil {
		return fmt.Errorf("clear processed issues: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO processed_issues (issue_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("prepare processed insert: %w", err)
	}
	defer stmt.Close()

	for _, id := range processed.Sorted() {
		if _, err := stmt.ExecContext(ctx, id); err != nil {
			return fmt.Errorf("save processed issue %d: %w", id, err)
		}
	}
	return nil
}
