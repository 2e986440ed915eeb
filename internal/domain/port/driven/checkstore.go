package driven

import (
	"context"

	"github.com/prsentry/prsentry/internal/domain/model"
)

// CheckStore defines the read-side driven port for check run persistence.
type CheckStore interface {
	// GetByExternalID returns nil, nil when the check run does not exist.
	GetByExternalID(ctx context.Context, externalID string) (*model.CheckRun, error)
	GetByPR(ctx context.Context, prID int64) ([]model.CheckRun, error)
}
