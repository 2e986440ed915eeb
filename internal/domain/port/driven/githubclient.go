package driven

import (
	"context"

	"github.com/prsentry/prsentry/internal/domain/discovery"
)

// GitHubClient defines the driven port for the external fetcher. It produces
// source-agnostic discovery snapshots; rate limiting, pagination, and HTTP
// retries live behind this boundary.
type GitHubClient interface {
	// FetchPullRequests returns a snapshot per observed pull request for the
	// repository, each carrying its nested check run snapshots.
	FetchPullRequests(ctx context.Context, repoFullName string) ([]discovery.PRSnapshot, error)
}
