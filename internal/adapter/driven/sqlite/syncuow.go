package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prsentry/prsentry/internal/domain/model"
	"github.com/prsentry/prsentry/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.SyncUnitOfWork = (*SyncUnitOfWork)(nil)
	_ driven.SyncTx         = (*syncTx)(nil)
)

// SyncUnitOfWork opens write transactions on the single writer connection.
// Each Begin call owns the writer exclusively until Commit or Rollback, so
// concurrent synchronize calls serialize at the storage layer.
type SyncUnitOfWork struct {
	db *DB
}

// NewSyncUnitOfWork creates a SyncUnitOfWork backed by the given DB.
func NewSyncUnitOfWork(db *DB) *SyncUnitOfWork {
	return &SyncUnitOfWork{db: db}
}

// Begin opens a new transaction scope.
func (u *SyncUnitOfWork) Begin(ctx context.Context) (driven.SyncTx, error) {
	tx, err := u.db.Writer.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sync transaction: %w", err)
	}
	return &syncTx{tx: tx}, nil
}

type syncTx struct {
	tx *sql.Tx
}

func (t *syncTx) PRs() driven.PRTxStore          { return &prTxStore{tx: t.tx} }
func (t *syncTx) CheckRuns() driven.CheckTxStore { return &checkTxStore{tx: t.tx} }
func (t *syncTx) History() driven.HistoryTxStore { return &historyTxStore{tx: t.tx} }

func (t *syncTx) Commit() error {
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit sync transaction: %w", err)
	}
	return nil
}

func (t *syncTx) Rollback() error {
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback sync transaction: %w", err)
	}
	return nil
}

// prTxStore implements transactional pull request writes.
type prTxStore struct {
	tx *sql.Tx
}

// BulkUpsert writes one batch of pull requests inside the transaction. The
// existing key set is bulk-loaded first to partition creates from updates;
// every discovered field overwrites the stored field (no partial patch). The
// unique (repository_id, number) index guarantees at most one row per key.
func (s *prTxStore) BulkUpsert(ctx context.Context, prs []model.PullRequest) (int, int, error) {
	if len(prs) == 0 {
		return 0, 0, nil
	}

	existing, err := s.existingKeys(ctx, prs)
	if err != nil {
		return 0, 0, err
	}

	const query = `
		INSERT INTO pull_requests (
			repository_id, number, title, author, state, is_draft, body,
			url, branch, base_branch, head_sha, base_sha, metadata, opened_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(repository_id, number) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			state = excluded.state,
			is_draft = excluded.is_draft,
			body = excluded.body,
			url = excluded.url,
			branch = excluded.branch,
			base_branch = excluded.base_branch,
			head_sha = excluded.head_sha,
			base_sha = excluded.base_sha,
			metadata = excluded.metadata,
			opened_at = excluded.opened_at,
			updated_at = excluded.updated_at
	`

	var created, updated int
	for _, pr := range prs {
		metadataJSON, err := json.Marshal(pr.Metadata)
		if err != nil {
			return created, updated, fmt.Errorf("marshal metadata for PR %d#%d: %w", pr.RepositoryID, pr.Number, err)
		}

		isDraft := 0
		if pr.IsDraft {
			isDraft = 1
		}

		if _, err := s.tx.ExecContext(ctx, query,
			pr.RepositoryID, pr.Number, pr.Title, pr.Author, string(pr.State), isDraft, pr.Body,
			pr.URL, pr.Branch, pr.BaseBranch, pr.HeadSHA, pr.BaseSHA, string(metadataJSON),
			formatTime(pr.OpenedAt), formatTime(pr.UpdatedAt),
		); err != nil {
			return created, updated, fmt.Errorf("upsert PR %d#%d: %w", pr.RepositoryID, pr.Number, err)
		}

		if existing[prKey{pr.RepositoryID, pr.Number}] {
			updated++
		} else {
			created++
		}
	}

	return created, updated, nil
}

// GetByRepoAndNumber reads through the transaction, observing rows flushed by
// earlier batches in the same call.
func (s *prTxStore) GetByRepoAndNumber(ctx context.Context, repositoryID int64, number int) (*model.PullRequest, error) {
	return getPRByRepoAndNumber(ctx, s.tx, repositoryID, number)
}

type prKey struct {
	repositoryID int64
	number       int
}

func (s *prTxStore) existingKeys(ctx context.Context, prs []model.PullRequest) (map[prKey]bool, error) {
	placeholders := make([]string, 0, len(prs))
	args := make([]any, 0, len(prs)*2)
	for _, pr := range prs {
		placeholders = append(placeholders, "(?, ?)")
		args = append(args, pr.RepositoryID, pr.Number)
	}

	query := `SELECT repository_id, number FROM pull_requests WHERE (repository_id, number) IN (VALUES ` +
		strings.Join(placeholders, ", ") + `)`

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load existing PR keys: %w", err)
	}
	defer rows.Close()

	existing := make(map[prKey]bool, len(prs))
	for rows.Next() {
		var key prKey
		if err := rows.Scan(&key.repositoryID, &key.number); err != nil {
			return nil, fmt.Errorf("scan existing PR key: %w", err)
		}
		existing[key] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing PR keys: %w", err)
	}

	return existing, nil
}

// checkTxStore implements transactional check run writes.
type checkTxStore struct {
	tx *sql.Tx
}

// BulkUpsert writes one batch of check runs inside the transaction, keyed on
// the globally unique external_id.
func (s *checkTxStore) BulkUpsert(ctx context.Context, runs []model.CheckRun) (int, int, error) {
	if len(runs) == 0 {
		return 0, 0, nil
	}

	existing, err := s.existingIDs(ctx, runs)
	if err != nil {
		return 0, 0, err
	}

	const query = `
		INSERT INTO check_runs (
			pr_id, external_id, check_name, status, conclusion,
			output_text, output_summary, details_url, metadata, started_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(external_id) DO UPDATE SET
			pr_id = excluded.pr_id,
			check_name = excluded.check_name,
			status = excluded.status,
			conclusion = excluded.conclusion,
			output_text = excluded.output_text,
			output_summary = excluded.output_summary,
			details_url = excluded.details_url,
			metadata = excluded.metadata,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at
	`

	var created, updated int
	for _, run := range runs {
		metadataJSON, err := json.Marshal(run.Metadata)
		if err != nil {
			return created, updated, fmt.Errorf("marshal metadata for check run %s: %w", run.ExternalID, err)
		}

		var startedAt, completedAt any
		if !run.StartedAt.IsZero() {
			startedAt = formatTime(run.StartedAt)
		}
		if !run.CompletedAt.IsZero() {
			completedAt = formatTime(run.CompletedAt)
		}

		if _, err := s.tx.ExecContext(ctx, query,
			run.PRID, run.ExternalID, run.CheckName, string(run.Status), string(run.Conclusion),
			run.OutputText, run.OutputSummary, run.DetailsURL, string(metadataJSON), startedAt, completedAt,
		); err != nil {
			return created, updated, fmt.Errorf("upsert check run %s: %w", run.ExternalID, err)
		}

		if existing[run.ExternalID] {
			updated++
		} else {
			created++
		}
	}

	return created, updated, nil
}

func (s *checkTxStore) existingIDs(ctx context.Context, runs []model.CheckRun) (map[string]bool, error) {
	placeholders := make([]string, 0, len(runs))
	args := make([]any, 0, len(runs))
	for _, run := range runs {
		placeholders = append(placeholders, "?")
		args = append(args, run.ExternalID)
	}

	query := `SELECT external_id FROM check_runs WHERE external_id IN (` +
		strings.Join(placeholders, ", ") + `)`

	rows, err := s.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("load existing check run ids: %w", err)
	}
	defer rows.Close()

	existing := make(map[string]bool, len(runs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan existing check run id: %w", err)
		}
		existing[id] = true
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate existing check run ids: %w", err)
	}

	return existing, nil
}

// historyTxStore implements transactional appends to the state history log.
type historyTxStore struct {
	tx *sql.Tx
}

// CreateTransition appends one immutable history record for a detected state
// transition.
func (s *historyTxStore) CreateTransition(ctx context.Context, prID int64, oldState *model.PRState, newState model.PRState,
	triggerEvent, triggeredBy string, metadata model.Metadata, at time.Time) (model.PRStateHistory, error) {

	const query = `
		INSERT INTO pr_state_history (pr_id, old_state, new_state, trigger_event, triggered_by, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	metadataJSON, err := json.Marshal(metadata)
	if err != nil {
		return model.PRStateHistory{}, fmt.Errorf("marshal metadata for PR %d history: %w", prID, err)
	}

	var oldStateVal any
	if oldState != nil {
		oldStateVal = string(*oldState)
	}

	result, err := s.tx.ExecContext(ctx, query,
		prID, oldStateVal, string(newState), triggerEvent, triggeredBy, string(metadataJSON), formatTime(at),
	)
	if err != nil {
		return model.PRStateHistory{}, fmt.Errorf("insert state history for PR %d: %w", prID, err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return model.PRStateHistory{}, fmt.Errorf("read state history id: %w", err)
	}

	return model.PRStateHistory{
		ID:           id,
		PRID:         prID,
		OldState:     oldState,
		NewState:     newState,
		TriggerEvent: triggerEvent,
		TriggeredBy:  triggeredBy,
		Metadata:     metadata,
		CreatedAt:    at.UTC(),
	}, nil
}
