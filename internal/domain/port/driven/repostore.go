package driven

import (
	"context"
	"errors"

	"github.com/prsentry/prsentry/internal/domain/model"
)

// Sentinel errors returned by RepoStore implementations.
var (
	// ErrRepoNotFound indicates the requested repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrRepoAlreadyExists indicates a repository with the same URL already exists.
	ErrRepoAlreadyExists = errors.New("repository already exists")
)

// RepoStore defines the driven port for repository persistence.
// Add returns ErrRepoAlreadyExists if a repository with the same URL exists.
// Remove returns ErrRepoNotFound if the repository does not exist; removal
// cascade-deletes all owned pull requests, check runs, and history.
type RepoStore interface {
	Add(ctx context.Context, repo model.Repository) error
	Remove(ctx context.Context, url string) error
	GetByURL(ctx context.Context, url string) (*model.Repository, error)
	ListAll(ctx context.Context) ([]model.Repository, error)
	ListActive(ctx context.Context) ([]model.Repository, error)
	Update(ctx context.Context, repo model.Repository) error
}
