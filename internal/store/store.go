// Package store selects a state store backend.
package store

import (
	"fmt"
	"strings"

	"github.com/danielolaszy/issuebot/internal/logging"
	"github.com/danielolaszy/issuebot/internal/ports"
	"github.com/danielolaszy/issuebot/internal/store/file"
	"github.com/danielolaszy/issuebot/internal/store/sqlite"
)

// Kind names a state store backend.
type Kind string

const (
	KindJSON   Kind = "json"
	KindSQLite Kind = "sqlite"
)

// Open returns the backend of the given kind rooted at dataDir.
func Open(kind Kind, dataDir string) (ports.StateStore, error) {
	logging.Debug("opening state store", "kind", kind, "data_dir", dataDir)

	switch Kind(strings.ToLower(string(kind))) {
	case KindJSON, "":
		st, err := file.NewStore(dataDir)
		if err != nil {
			return nil, err
		}
		return st, nil
	case KindSQLite:
		st, err := sqlite.NewStore(dataDir)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown state store %q, expected %q or %q", kind, KindJSON, KindSQLite)
	}
}
