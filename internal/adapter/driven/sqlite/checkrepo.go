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
var _ driven.CheckStore = (*CheckRepo)(nil)

// checkColumns is the shared select list for check run scans.
const checkColumns = `id, pr_id, external_id, check_name, status, conclusion,
       output_text, output_summary, details_url, metadata, started_at, completed_at`

// CheckRepo is the SQLite implementation of the read-side CheckStore port.
// Writes go through the sync unit of work.
type CheckRepo struct {
	db *DB
}

// NewCheckRepo creates a new CheckRepo backed by the given DB.
func NewCheckRepo(db *DB) *CheckRepo {
	return &CheckRepo{db: db}
}

// GetByExternalID retrieves a check run by the source system's globally
// unique id. Returns nil, nil if the check run does not exist.
func (r *CheckRepo) GetByExternalID(ctx context.Context, externalID string) (*model.CheckRun, error) {
	query := `SELECT ` + checkColumns + ` FROM check_runs WHERE external_id = ?`

	run, err := scanCheckRun(r.db.Reader.QueryRowContext(ctx, query, externalID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get check run %s: %w", externalID, err)
	}

	return run, nil
}

// GetByPR returns all check runs for the given pull request, ordered by check name.
func (r *CheckRepo) GetByPR(ctx context.Context, prID int64) ([]model.CheckRun, error) {
	query := `SELECT ` + checkColumns + ` FROM check_runs WHERE pr_id = ? ORDER BY check_name`
	return queryCheckRuns(ctx, r.db.Reader, query, prID)
}

func queryCheckRuns(ctx context.Context, q querier, query string, args ...any) ([]model.CheckRun, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query check runs: %w", err)
	}
	defer rows.Close()

	var runs []model.CheckRun
	for rows.Next() {
		run, err := scanCheckRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan check run: %w", err)
		}
		runs = append(runs, *run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate check runs: %w", err)
	}

	return runs, nil
}

func scanCheckRun(s scanner) (*model.CheckRun, error) {
	var run model.CheckRun
	var status, conclusion string
	var metadataJSON string
	var startedAt, completedAt sql.NullString

	err := s.Scan(
		&run.ID, &run.PRID, &run.ExternalID, &run.CheckName, &status, &conclusion,
		&run.OutputText, &run.OutputSummary, &run.DetailsURL, &metadataJSON, &startedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	run.Status = model.CheckStatus(status)
	run.Conclusion = model.CheckConclusion(conclusion)

	run.Metadata, err = model.ParseMetadata(metadataJSON)
	if err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	if startedAt.Valid {
		run.StartedAt, err = parseTime(startedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
	}

	if completedAt.Valid {
		run.CompletedAt, err = parseTime(completedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parse completed_at: %w", err)
		}
	}

	return &run, nil
}
