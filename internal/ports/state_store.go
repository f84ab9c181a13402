package ports

import (
	"context"

	"github.com/danielolaszy/issuebot/pkg/models"
)

// StateStore persists the outstanding request and the processed set.
//
// A nil *models.ActiveRequest means no request is outstanding. Commit writes
// both values as one logical update; implementations document how close they
// get to atomicity.
type StateStore interface {
	LoadActive(ctx context.Context) (*models.ActiveRequest, error)
	SaveActive(ctx context.Context, active *models.ActiveRequest) error
	LoadProcessed(ctx context.Context) (models.ProcessedSet, error)
	SaveProcessed(ctx context.Context, processed models.ProcessedSet) error
	Commit(ctx context.Context, active *models.ActiveRequest, processed models.ProcessedSet) error
	Close() error
}
