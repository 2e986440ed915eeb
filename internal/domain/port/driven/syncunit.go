package driven

import (
	"context"
	"time"

	"github.com/prsentry/prsentry/internal/domain/model"
)

// SyncUnitOfWork opens transaction scopes for synchronization. One Begin call
// owns one storage session exclusively until Commit or Rollback; batched
// writes inside the transaction act as flushes, not commits, so the
// one-transaction-many-flushes contract is structurally enforced.
type SyncUnitOfWork interface {
	Begin(ctx context.Context) (SyncTx, error)
}

// SyncTx is a transaction-scoped view of the stores the synchronizer writes
// through. All accessors are bound to the same underlying transaction.
type SyncTx interface {
	PRs() PRTxStore
	CheckRuns() CheckTxStore
	History() HistoryTxStore
	Commit() error
	Rollback() error
}

// PRTxStore is the transactional write surface for pull requests.
type PRTxStore interface {
	// BulkUpsert writes a batch of pull requests keyed on
	// (repository_id, number). After the call at most one row exists per key;
	// conflicting fields resolve last-writer-wins. Returns how many rows were
	// created versus updated.
	BulkUpsert(ctx context.Context, prs []model.PullRequest) (created, updated int, err error)

	// GetByRepoAndNumber reads through the transaction, observing
	// already-flushed but uncommitted rows. Returns nil, nil when absent.
	GetByRepoAndNumber(ctx context.Context, repositoryID int64, number int) (*model.PullRequest, error)
}

// CheckTxStore is the transactional write surface for check runs.
type CheckTxStore interface {
	// BulkUpsert writes a batch of check runs keyed on external_id with the
	// same at-most-one-row and last-writer-wins guarantees as PR upserts.
	BulkUpsert(ctx context.Context, runs []model.CheckRun) (created, updated int, err error)
}

// HistoryTxStore is the transactional write surface for the state history log.
type HistoryTxStore interface {
	CreateTransition(ctx context.Context, prID int64, oldState *model.PRState, newState model.PRState,
		triggerEvent, triggeredBy string, metadata model.Metadata, at time.Time) (model.PRStateHistory, error)
}
