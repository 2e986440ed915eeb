package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prsentry/prsentry/internal/domain/model"
	"github.com/prsentry/prsentry/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.PRStore = (*PRRepo)(nil)

// prColumns is the shared select list for pull request scans.
const prColumns = `id, repository_id, number, title, author, state, is_draft, body,
       url, branch, base_branch, head_sha, base_sha, metadata, opened_at, updated_at`

// PRRepo is the SQLite implementation of the read-side PRStore port.
// Writes go through the sync unit of work.
type PRRepo struct {
	db *DB
}

// NewPRRepo creates a new PRRepo backed by the given DB.
func NewPRRepo(db *DB) *PRRepo {
	return &PRRepo{db: db}
}

// GetByRepoAndNumber retrieves a single pull request by its identity pair.
// Returns nil, nil if the pull request does not exist.
func (r *PRRepo) GetByRepoAndNumber(ctx context.Context, repositoryID int64, number int) (*model.PullRequest, error) {
	return getPRByRepoAndNumber(ctx, r.db.Reader, repositoryID, number)
}

// GetByRepository returns all pull requests for the given repository, ordered by number.
func (r *PRRepo) GetByRepository(ctx context.Context, repositoryID int64) ([]model.PullRequest, error) {
	query := `SELECT ` + prColumns + ` FROM pull_requests WHERE repository_id = ? ORDER BY number`
	return queryPRs(ctx, r.db.Reader, query, repositoryID)
}

// ListAll returns all pull requests ordered by updated_at descending.
func (r *PRRepo) ListAll(ctx context.Context) ([]model.PullRequest, error) {
	query := `SELECT ` + prColumns + ` FROM pull_requests ORDER BY updated_at DESC`
	return queryPRs(ctx, r.db.Reader, query)
}

// getPRByRepoAndNumber is shared between the pooled reader and the
// transaction-scoped store so in-transaction reads observe flushed rows.
func getPRByRepoAndNumber(ctx context.Context, q querier, repositoryID int64, number int) (*model.PullRequest, error) {
	query := `SELECT ` + prColumns + ` FROM pull_requests WHERE repository_id = ? AND number = ?`

	pr, err := scanPR(q.QueryRowContext(ctx, query, repositoryID, number))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get PR %d#%d: %w", repositoryID, number, err)
	}

	return pr, nil
}

func queryPRs(ctx context.Context, q querier, query string, args ...any) ([]model.PullRequest, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query pull requests: %w", err)
	}
	defer rows.Close()

	var prs []model.PullRequest
	for rows.Next() {
		pr, err := scanPR(rows)
		if err != nil {
			return nil, fmt.Errorf("scan pull request: %w", err)
		}
		prs = append(prs, *pr)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pull requests: %w", err)
	}

	return prs, nil
}

func scanPR(s scanner) (*model.PullRequest, error) {
	var pr model.PullRequest
	var state string
	var isDraft int
	var metadataJSON string
	var openedAt, updatedAt string

	err := s.Scan(
		&pr.ID, &pr.RepositoryID, &pr.Number, &pr.Title, &pr.Author,
		&state, &isDraft, &pr.Body, &pr.URL, &pr.Branch, &pr.BaseBranch,
		&pr.HeadSHA, &pr.BaseSHA, &metadataJSON, &openedAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	pr.State = model.PRState(state)
	pr.IsDraft = isDraft != 0

	pr.Metadata, err = model.ParseMetadata(metadataJSON)
	if err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	pr.OpenedAt, err = parseTime(openedAt)
	if err != nil {
		return nil, fmt.Errorf("parse opened_at: %w", err)
	}

	pr.UpdatedAt, err = parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}

	return &pr, nil
}
