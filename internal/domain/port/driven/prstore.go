package driven

import (
	"context"

	"github.com/prsentry/prsentry/internal/domain/model"
)

// PRStore defines the read-side driven port for pull request persistence.
// Write access goes through the SyncUnitOfWork so every mutation is
// transaction-scoped.
type PRStore interface {
	// GetByRepoAndNumber returns nil, nil when the pull request does not exist.
	GetByRepoAndNumber(ctx context.Context, repositoryID int64, number int) (*model.PullRequest, error)
	GetByRepository(ctx context.Context, repositoryID int64) ([]model.PullRequest, error)
	ListAll(ctx context.Context) ([]model.PullRequest, error)
}
