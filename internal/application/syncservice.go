// Package application contains use-case orchestration services.
package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/prsentry/prsentry/internal/domain/discovery"
	"github.com/prsentry/prsentry/internal/domain/model"
	"github.com/prsentry/prsentry/internal/domain/port/driven"
)

// defaultSyncBatchSize bounds per-flush memory and lock duration for very
// large discovery batches while keeping all batches inside one transaction.
const defaultSyncBatchSize = 100

// SyncResult reports what one Synchronize call attempted. Counts reflect
// attempted work, not post-rollback persisted state: when Errors contains a
// non-recoverable entry the transaction was rolled back and non-zero counts
// must not be read as proof of durability.
type SyncResult struct {
	RunID          string
	PRsCreated     int
	PRsUpdated     int
	ChecksCreated  int
	ChecksUpdated  int
	HistoryRecords int
	Errors         []SyncError
	StartedAt      time.Time
	Duration       time.Duration
}

// HasFatalError reports whether the call rolled back its transaction.
func (r *SyncResult) HasFatalError() bool {
	for _, e := range r.Errors {
		if !e.Recoverable {
			return true
		}
	}
	return false
}

// SyncError is a structured record of a single failure during synchronization.
type SyncError struct {
	EntityType  string // "pull_request", "check_run", "state_history", "synchronization".
	EntityKey   string
	Repo        string
	PRNumber    int
	Message     string
	Recoverable bool
	OccurredAt  time.Time
}

// SyncService applies discovery results and detected changes to persistent
// storage. Each Synchronize call owns one transaction scope; the service
// itself holds no mutable state, so one instance is safe for concurrent use
// as long as the unit of work hands out independent transactions.
type SyncService struct {
	uow       driven.SyncUnitOfWork
	batchSize int
	now       func() time.Time
}

// NewSyncService creates a SyncService with the default batch size.
func NewSyncService(uow driven.SyncUnitOfWork) *SyncService {
	return &SyncService{
		uow:       uow,
		batchSize: defaultSyncBatchSize,
		now:       time.Now,
	}
}

// Synchronize persists a batch of discovery results and the pre-computed
// change list under a single transaction with batch-sized flushes. It never
// returns an error: per-item failures are recorded as recoverable entries in
// the result, and a fatal failure rolls back the whole transaction and is
// recorded as a non-recoverable entry.
func (s *SyncService) Synchronize(ctx context.Context, results []discovery.Result, changes []discovery.StateChangeEvent) (result SyncResult) {
	result = SyncResult{
		RunID:     uuid.NewString(),
		StartedAt: s.now(),
	}
	defer func() {
		result.Duration = s.now().Sub(result.StartedAt)
	}()

	tx, err := s.uow.Begin(ctx)
	if err != nil {
		s.recordFatal(&result, "", fmt.Errorf("begin transaction: %w", err))
		return result
	}

	// The transaction must never leak past this call, and no failure may
	// propagate to the caller: a panic mid-sync rolls back and is reported
	// structurally like any other fatal error.
	committed := false
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			s.recordFatal(&result, "", fmt.Errorf("panic during synchronize: %v", p))
		}
		if !committed && !result.HasFatalError() {
			// Fatal paths roll back explicitly; this guards early returns.
			_ = tx.Rollback()
		}
	}()

	for _, res := range results {
		if err := s.syncResult(ctx, tx, res, &result); err != nil {
			_ = tx.Rollback()
			s.recordFatal(&result, res.RepoFullName, err)
			return result
		}
	}

	if err := s.recordHistory(ctx, tx, changes, &result); err != nil {
		_ = tx.Rollback()
		s.recordFatal(&result, "", err)
		return result
	}

	if err := tx.Commit(); err != nil {
		_ = tx.Rollback()
		s.recordFatal(&result, "", fmt.Errorf("commit: %w", err))
		return result
	}
	committed = true

	slog.Info("synchronize complete",
		"run_id", result.RunID,
		"repos", len(results),
		"prs_created", result.PRsCreated,
		"prs_updated", result.PRsUpdated,
		"checks_created", result.ChecksCreated,
		"checks_updated", result.ChecksUpdated,
		"history_records", result.HistoryRecords,
		"errors", len(result.Errors),
	)

	return result
}

// syncResult persists one repository's discovery pass. All PR batches flush
// before any check run batch so foreign keys of newly created PRs resolve by
// re-querying inside the same transaction. This ordering is mandatory, not
// an optimization: check runs require a parent PR row to exist.
func (s *SyncService) syncResult(ctx context.Context, tx driven.SyncTx, res discovery.Result, result *SyncResult) error {
	for start := 0; start < len(res.PRs); start += s.batchSize {
		end := min(start+s.batchSize, len(res.PRs))
		s.flushPRBatch(ctx, tx, res, res.PRs[start:end], result)
	}

	var runs []model.CheckRun
	for _, snap := range res.PRs {
		if len(snap.CheckRuns) == 0 {
			continue
		}

		pr, err := tx.PRs().GetByRepoAndNumber(ctx, res.RepositoryID, snap.Number)
		if err != nil {
			return fmt.Errorf("resolve PR %s#%d: %w", res.RepoFullName, snap.Number, err)
		}
		if pr == nil {
			// The PR itself failed to persist; its checks are reported, not written.
			s.recordItemError(result, "check_run", fmt.Sprintf("pr#%d", snap.Number), res.RepoFullName, snap.Number,
				"parent pull request not persisted")
			continue
		}

		for _, crSnap := range snap.CheckRuns {
			run, err := crSnap.ToModel(pr.ID)
			if err != nil {
				s.recordItemError(result, "check_run", crSnap.ExternalID, res.RepoFullName, snap.Number, err.Error())
				continue
			}
			runs = append(runs, run)
		}
	}

	for start := 0; start < len(runs); start += s.batchSize {
		end := min(start+s.batchSize, len(runs))
		s.flushCheckBatch(ctx, tx, res, runs[start:end], result)
	}

	return nil
}

// flushPRBatch converts and writes one batch of PR snapshots. Conversion
// failures and storage failures degrade per item: one bad record never
// aborts the batch.
func (s *SyncService) flushPRBatch(ctx context.Context, tx driven.SyncTx, res discovery.Result, snaps []discovery.PRSnapshot, result *SyncResult) {
	batch := make([]model.PullRequest, 0, len(snaps))
	for _, snap := range snaps {
		pr, err := snap.ToModel(res.RepositoryID)
		if err != nil {
			s.recordItemError(result, "pull_request", fmt.Sprintf("#%d", snap.Number), res.RepoFullName, snap.Number, err.Error())
			continue
		}
		batch = append(batch, pr)
	}
	if len(batch) == 0 {
		return
	}

	created, updated, err := tx.PRs().BulkUpsert(ctx, batch)
	if err == nil {
		result.PRsCreated += created
		result.PRsUpdated += updated
		return
	}

	// The batch write failed as a whole; retry item by item to isolate the
	// offending rows and keep the rest of the batch.
	for _, pr := range batch {
		c, u, itemErr := tx.PRs().BulkUpsert(ctx, []model.PullRequest{pr})
		if itemErr != nil {
			s.recordItemError(result, "pull_request", fmt.Sprintf("#%d", pr.Number), res.RepoFullName, pr.Number, itemErr.Error())
			continue
		}
		result.PRsCreated += c
		result.PRsUpdated += u
	}
}

// flushCheckBatch writes one batch of converted check runs with the same
// per-item degradation as PR batches.
func (s *SyncService) flushCheckBatch(ctx context.Context, tx driven.SyncTx, res discovery.Result, runs []model.CheckRun, result *SyncResult) {
	created, updated, err := tx.CheckRuns().BulkUpsert(ctx, runs)
	if err == nil {
		result.ChecksCreated += created
		result.ChecksUpdated += updated
		return
	}

	for _, run := range runs {
		c, u, itemErr := tx.CheckRuns().BulkUpsert(ctx, []model.CheckRun{run})
		if itemErr != nil {
			s.recordItemError(result, "check_run", run.ExternalID, res.RepoFullName, 0, itemErr.Error())
			continue
		}
		result.ChecksCreated += c
		result.ChecksUpdated += u
	}
}

// recordHistory appends one audit row per detected pull request state
// transition. Check-run-level changes are reported as changes only, never
// historized here, and the pending-entity sentinel is skipped: for a PR that
// did not exist at detection time, the creation itself is the record.
func (s *SyncService) recordHistory(ctx context.Context, tx driven.SyncTx, changes []discovery.StateChangeEvent, result *SyncResult) error {
	for _, change := range changes {
		if change.Type != discovery.ChangePRStateChanged {
			continue
		}
		if change.EntityID == discovery.PendingEntityID {
			continue
		}

		var oldState *model.PRState
		if change.OldState != nil {
			state := model.PRState(change.OldState["state"])
			oldState = &state
		}
		newState := model.PRState(change.NewState["state"])

		metadata := model.Metadata{"severity": string(change.Severity)}

		_, err := tx.History().CreateTransition(ctx, change.EntityID, oldState, newState,
			"discovery_sync", "sync_service", metadata, s.now())
		if err != nil {
			s.recordItemError(result, "state_history", fmt.Sprintf("pr:%d", change.EntityID), "", change.PRNumber, err.Error())
		} else {
			result.HistoryRecords++
		}
	}

	return nil
}

func (s *SyncService) recordItemError(result *SyncResult, entityType, key, repo string, prNumber int, message string) {
	result.Errors = append(result.Errors, SyncError{
		EntityType:  entityType,
		EntityKey:   key,
		Repo:        repo,
		PRNumber:    prNumber,
		Message:     message,
		Recoverable: true,
		OccurredAt:  s.now(),
	})
	slog.Warn("sync item failed", "entity", entityType, "key", key, "repo", repo, "error", message)
}

func (s *SyncService) recordFatal(result *SyncResult, repo string, err error) {
	result.Errors = append(result.Errors, SyncError{
		EntityType:  "synchronization",
		Repo:        repo,
		Message:     err.Error(),
		Recoverable: false,
		OccurredAt:  s.now(),
	})
	slog.Error("synchronize failed, transaction rolled back", "run_id", result.RunID, "repo", repo, "error", err)
}
