package application

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/prsentry/prsentry/internal/domain/discovery"
	"github.com/prsentry/prsentry/internal/domain/model"
	"github.com/prsentry/prsentry/internal/domain/port/driven"
)

// errSyncFailed marks a poll whose synchronization rolled back; the failure
// details live in the SyncResult already logged by the sync service.
var errSyncFailed = errors.New("synchronization failed")

// refreshRequest represents a manual refresh trigger.
type refreshRequest struct {
	repoURL string
	done    chan error
}

// PollService orchestrates periodic GitHub polling: it fetches discovery
// snapshots per repository, runs change detection against persisted state,
// and hands the results to the synchronizer. Poll outcomes feed each
// repository's failure counter, which auto-suspends after repeated failures.
type PollService struct {
	ghClient   driven.GitHubClient
	repoStore  driven.RepoStore
	prStore    driven.PRStore
	checkStore driven.CheckStore
	syncSvc    *SyncService
	interval   time.Duration
	refreshCh  chan refreshRequest
}

// NewPollService creates a new PollService with all required dependencies.
func NewPollService(
	ghClient driven.GitHubClient,
	repoStore driven.RepoStore,
	prStore driven.PRStore,
	checkStore driven.CheckStore,
	syncSvc *SyncService,
	interval time.Duration,
) *PollService {
	return &PollService{
		ghClient:   ghClient,
		repoStore:  repoStore,
		prStore:    prStore,
		checkStore: checkStore,
		syncSvc:    syncSvc,
		interval:   interval,
		refreshCh:  make(chan refreshRequest),
	}
}

// Start begins the polling loop. It runs an immediate poll, then polls on the
// configured interval, and listens for manual refresh requests. Start blocks
// until the context is canceled.
func (s *PollService) Start(ctx context.Context) {
	if err := s.pollAll(ctx); err != nil {
		slog.Error("initial poll failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("poll service stopped")
			return
		case <-ticker.C:
			if err := s.pollAll(ctx); err != nil {
				slog.Error("poll cycle failed", "error", err)
			}
		case req := <-s.refreshCh:
			req.done <- s.handleRefresh(ctx, req)
		}
	}
}

// RefreshRepo triggers a manual refresh for a specific repository URL,
// bypassing the polling interval. It blocks until the refresh completes or
// the context is canceled.
func (s *PollService) RefreshRepo(ctx context.Context, repoURL string) error {
	done := make(chan error, 1)
	req := refreshRequest{repoURL: repoURL, done: done}

	select {
	case s.refreshCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// pollAll polls every active repository. Suspended and errored repositories
// are skipped until an operator intervenes or a manual refresh succeeds.
func (s *PollService) pollAll(ctx context.Context) error {
	start := time.Now()

	repos, err := s.repoStore.ListActive(ctx)
	if err != nil {
		return err
	}

	var pollErrors int
	for _, repo := range repos {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if err := s.pollRepo(ctx, repo); err != nil {
			slog.Error("repo poll failed", "repo", repo.FullName, "error", err)
			pollErrors++
		}
	}

	slog.Info("poll cycle complete",
		"repos", len(repos),
		"errors", pollErrors,
		"duration", time.Since(start).Round(time.Millisecond),
	)

	return nil
}

// pollRepo runs the full discovery pipeline for a single repository:
// fetch -> detect -> significance analysis -> synchronize. The repository's
// failure counter is updated from the outcome.
func (s *PollService) pollRepo(ctx context.Context, repo model.Repository) error {
	snapshots, err := s.ghClient.FetchPullRequests(ctx, repo.FullName)
	if err != nil {
		s.recordOutcome(ctx, repo, false)
		return err
	}

	changes, err := s.detectChanges(ctx, repo, snapshots)
	if err != nil {
		s.recordOutcome(ctx, repo, false)
		return err
	}
	changes = discovery.AnalyzeSignificance(changes)

	result := discovery.Result{
		RepositoryID: repo.ID,
		RepoURL:      repo.URL,
		RepoFullName: repo.FullName,
		PRs:          snapshots,
		FetchedAt:    time.Now().UTC(),
	}

	syncResult := s.syncSvc.Synchronize(ctx, []discovery.Result{result}, changes)
	s.recordOutcome(ctx, repo, !syncResult.HasFatalError())

	actionable := discovery.FilterActionable(changes)
	slog.Info("repo polled",
		"repo", repo.FullName,
		"fetched", len(snapshots),
		"changes", len(changes),
		"actionable", len(actionable),
		"sync_errors", len(syncResult.Errors),
		"run_id", syncResult.RunID,
	)

	if syncResult.HasFatalError() {
		return errSyncFailed
	}
	return nil
}

// detectChanges compares fetched snapshots against the last persisted state
// of every pull request and its check runs.
func (s *PollService) detectChanges(ctx context.Context, repo model.Repository, snapshots []discovery.PRSnapshot) ([]discovery.StateChangeEvent, error) {
	stored, err := s.prStore.GetByRepository(ctx, repo.ID)
	if err != nil {
		return nil, err
	}

	storedByNumber := make(map[int]model.PullRequest, len(stored))
	for _, pr := range stored {
		storedByNumber[pr.Number] = pr
	}

	var changes []discovery.StateChangeEvent
	for _, snap := range snapshots {
		var old *model.PullRequest
		var oldChecks []model.CheckRun
		var prID int64 = discovery.PendingEntityID

		if existing, ok := storedByNumber[snap.Number]; ok {
			old = &existing
			prID = existing.ID

			oldChecks, err = s.checkStore.GetByPR(ctx, existing.ID)
			if err != nil {
				return nil, err
			}
		}

		changes = append(changes, discovery.DetectPRChanges(old, snap)...)
		changes = append(changes, discovery.DetectCheckRunChanges(oldChecks, snap.CheckRuns, prID, snap.Number)...)
	}

	return changes, nil
}

// recordOutcome updates the repository's consecutive failure counter and
// persists the resulting status.
func (s *PollService) recordOutcome(ctx context.Context, repo model.Repository, success bool) {
	now := time.Now().UTC()
	if success {
		repo.RecordPollSuccess(now)
	} else {
		repo.RecordPollFailure(now)
		if repo.Status == model.RepoStatusError {
			slog.Warn("repository auto-suspended after consecutive failures",
				"repo", repo.FullName,
				"failures", repo.ConsecutiveFailures,
			)
		}
	}

	if err := s.repoStore.Update(ctx, repo); err != nil {
		slog.Error("update repository poll outcome failed", "repo", repo.FullName, "error", err)
	}
}

// handleRefresh dispatches a manual refresh request.
func (s *PollService) handleRefresh(ctx context.Context, req refreshRequest) error {
	if req.repoURL == "" {
		return s.pollAll(ctx)
	}

	repo, err := s.repoStore.GetByURL(ctx, req.repoURL)
	if err != nil {
		return err
	}
	if repo == nil {
		return driven.ErrRepoNotFound
	}

	return s.pollRepo(ctx, *repo)
}
