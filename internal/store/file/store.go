// Package file implements the state store as two JSON documents in a data
// directory.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/danielolaszy/issuebot/internal/logging"
	"github.com/danielolaszy/issuebot/internal/ports"
	"github.com/danielolaszy/issuebot/pkg/models"
)

const (
	// ActiveFileName holds the outstanding request, absent when idle.
	ActiveFileName = "active_issue.json"
	// ProcessedFileName holds the IDs of every issue ever requested.
	ProcessedFileName = "processed_issues.json"

	dataDirMode     = 0o700
	stateFileMode   = 0o600
	tempFilePattern = ".state-*.json.tmp"
)

// Store keeps the state in two JSON documents under dataDir.
type Store struct {
	dataDir string
	mu      sync.RWMutex
}

var _ ports.StateStore = (*Store)(nil)

// NewStore creates the data directory if needed.
func NewStore(dataDir string) (*Store, error) {
	dataDir = filepath.Clean(dataDir)
	if err := os.MkdirAll(dataDir, dataDirMode); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", dataDir, err)
	}

	return &Store{dataDir: dataDir}, nil
}

func (s *Store) activePath() string {
	return filepath.Join(s.dataDir, ActiveFileName)
}

func (s *Store) processedPath() string {
	return filepath.Join(s.dataDir, ProcessedFileName)
}

// LoadActive reads the outstanding request; a missing document yields nil.
func (s *Store) LoadActive(ctx context.Context) (*models.ActiveRequest, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var active models.ActiveRequest
	found, err := readJSON(s.activePath(), &active)
	if err != nil {
		return nil, fmt.Errorf("load active request: %w", err)
	}
	if !found {
		return nil, nil
	}

	return &active, nil
}

// SaveActive overwrites the active request; nil removes the document.
func (s *Store) SaveActive(ctx context.Context, active *models.ActiveRequest) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveActiveLocked(active)
}

// LoadProcessed reads the processed set; a missing document yields an empty set.
func (s *Store) LoadProcessed(ctx context.Context) (models.ProcessedSet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	processed := models.NewProcessedSet()
	if _, err := readJSON(s.processedPath(), &processed); err != nil {
		return nil, fmt.Errorf("load processed issues: %w", err)
	}
	if processed == nil {
		processed = models.NewProcessedSet()
	}

	return processed, nil
}

// SaveProcessed replaces the processed document.
func (s *Store) SaveProcessed(ctx context.Context, processed models.ProcessedSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.saveProcessedLocked(processed)
}

// Commit writes the processed set before the active request. Each document is
// replaced atomically, so a crash between the two writes leaves the issue
// marked processed without an active request: the cooldown is lost but the
// issue is never requested twice.
func (s *Store) Commit(ctx context.Context, active *models.ActiveRequest, processed models.ProcessedSet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.saveProcessedLocked(processed); err != nil {
		return err
	}
	if err := s.saveActiveLocked(active); err != nil {
		return err
	}

	logging.Debug("state committed", "data_dir", s.dataDir, "processed_count", processed.Len())
	return nil
}

// Close is a no-op; every write is complete when it returns.
func (s *Store) Close() error {
	return nil
}

func (s *Store) saveActiveLocked(active *models.ActiveRequest) error {
	if active == nil {
		err := os.Remove(s.activePath())
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("clear active request: %w", err)
		}
		return nil
	}

	if err := writeJSON(s.activePath(), active); err != nil {
		return fmt.Errorf("save active request: %w", err)
	}
	return nil
}

func (s *Store) saveProcessedLocked(processed models.ProcessedSet) error {
	if processed == nil {
		processed = models.NewProcessedSet()
	}
	if err := writeJSON(s.processedPath(), processed); err != nil {
		return fmt.Errorf("save processed issues: %w", err)
	}
	return nil
}

// readJSON decodes path into v. A missing file is not an error; found is false.
func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decode %s: %w", path, err)
	}

	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := tempFile.Chmod(stateFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp file: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tempName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}

	cleanup = false
	return nil
}
