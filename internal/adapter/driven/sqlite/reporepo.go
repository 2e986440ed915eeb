package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/prsentry/prsentry/internal/domain/model"
	"github.com/prsentry/prsentry/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.RepoStore = (*RepoRepo)(nil)

// RepoRepo is the SQLite implementation of the RepoStore port interface.
type RepoRepo struct {
	db *DB
}

// NewRepoRepo creates a new RepoRepo backed by the given DB.
func NewRepoRepo(db *DB) *RepoRepo {
	return &RepoRepo{db: db}
}

// Add inserts a new repository. Returns ErrRepoAlreadyExists if a repository
// with the same URL already exists.
func (r *RepoRepo) Add(ctx context.Context, repo model.Repository) error {
	const query = `
		INSERT INTO repositories (url, full_name, owner, name, status, poll_interval_seconds, consecutive_failures, added_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	status := repo.Status
	if status == "" {
		status = model.RepoStatusActive
	}

	addedAt := repo.AddedAt
	if addedAt.IsZero() {
		addedAt = time.Now().UTC()
	}

	_, err := r.db.Writer.ExecContext(ctx, query,
		repo.URL, repo.FullName, repo.Owner, repo.Name, string(status),
		int(repo.PollInterval.Seconds()), repo.ConsecutiveFailures, formatTime(addedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return fmt.Errorf("add repository %s: %w", repo.URL, driven.ErrRepoAlreadyExists)
		}
		return fmt.Errorf("add repository %s: %w", repo.URL, err)
	}

	return nil
}

// Remove deletes a repository by URL. Returns ErrRepoNotFound if the
// repository does not exist. Due to foreign key cascade, all owned pull
// requests, check runs, and history records are also deleted.
func (r *RepoRepo) Remove(ctx context.Context, url string) error {
	const query = `DELETE FROM repositories WHERE url = ?`

	result, err := r.db.Writer.ExecContext(ctx, query, url)
	if err != nil {
		return fmt.Errorf("remove repository %s: %w", url, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("remove repository %s: %w", url, driven.ErrRepoNotFound)
	}

	return nil
}

// GetByURL retrieves a repository by its unique URL. Returns nil, nil if the
// repository does not exist.
func (r *RepoRepo) GetByURL(ctx context.Context, url string) (*model.Repository, error) {
	const query = `
		SELECT id, url, full_name, owner, name, status, poll_interval_seconds, consecutive_failures, added_at, last_polled_at
		FROM repositories
		WHERE url = ?
	`

	repo, err := scanRepository(r.db.Reader.QueryRowContext(ctx, query, url))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get repository %s: %w", url, err)
	}

	return repo, nil
}

// ListAll returns all repositories ordered by URL.
func (r *RepoRepo) ListAll(ctx context.Context) ([]model.Repository, error) {
	const query = `
		SELECT id, url, full_name, owner, name, status, poll_interval_seconds, consecutive_failures, added_at, last_polled_at
		FROM repositories
		ORDER BY url
	`

	return r.queryRepos(ctx, query)
}

// ListActive returns repositories eligible for polling, ordered by URL.
func (r *RepoRepo) ListActive(ctx context.Context) ([]model.Repository, error) {
	const query = `
		SELECT id, url, full_name, owner, name, status, poll_interval_seconds, consecutive_failures, added_at, last_polled_at
		FROM repositories
		WHERE status = ?
		ORDER BY url
	`

	return r.queryRepos(ctx, query, string(model.RepoStatusActive))
}

// Update persists mutable repository fields (status, failure counter, poll
// bookkeeping). Returns ErrRepoNotFound if the row does not exist.
func (r *RepoRepo) Update(ctx context.Context, repo model.Repository) error {
	const query = `
		UPDATE repositories
		SET status = ?, poll_interval_seconds = ?, consecutive_failures = ?, last_polled_at = ?
		WHERE id = ?
	`

	var lastPolledAt any
	if !repo.LastPolledAt.IsZero() {
		lastPolledAt = formatTime(repo.LastPolledAt)
	}

	result, err := r.db.Writer.ExecContext(ctx, query,
		string(repo.Status), int(repo.PollInterval.Seconds()), repo.ConsecutiveFailures, lastPolledAt, repo.ID,
	)
	if err != nil {
		return fmt.Errorf("update repository %d: %w", repo.ID, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check rows affected: %w", err)
	}

	if rows == 0 {
		return fmt.Errorf("update repository %d: %w", repo.ID, driven.ErrRepoNotFound)
	}

	return nil
}

func (r *RepoRepo) queryRepos(ctx context.Context, query string, args ...any) ([]model.Repository, error) {
	rows, err := r.db.Reader.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query repositories: %w", err)
	}
	defer rows.Close()

	var repos []model.Repository
	for rows.Next() {
		repo, err := scanRepository(rows)
		if err != nil {
			return nil, fmt.Errorf("scan repository: %w", err)
		}
		repos = append(repos, *repo)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate repositories: %w", err)
	}

	return repos, nil
}

func scanRepository(s scanner) (*model.Repository, error) {
	var repo model.Repository
	var status string
	var pollSeconds int
	var addedAt string
	var lastPolledAt sql.NullString

	err := s.Scan(
		&repo.ID, &repo.URL, &repo.FullName, &repo.Owner, &repo.Name,
		&status, &pollSeconds, &repo.ConsecutiveFailures, &addedAt, &lastPolledAt,
	)
	if err != nil {
		return nil, err
	}

	repo.Status = model.RepoStatus(status)
	repo.PollInterval = time.Duration(pollSeconds) * time.Second

	repo.AddedAt, err = parseTime(addedAt)
	if err != nil {
		return nil, fmt.Errorf("parse added_at: %w", err)
	}

	if lastPolledAt.Valid {
		repo.LastPolledAt, err = parseTime(lastPolledAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_polled_at: %w", err)
		}
	}

	return &repo, nil
}
