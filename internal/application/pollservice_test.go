package application_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prsentry/prsentry/internal/application"
	"github.com/prsentry/prsentry/internal/domain/discovery"
	"github.com/prsentry/prsentry/internal/domain/model"
	"github.com/prsentry/prsentry/internal/domain/port/driven"
)

type mockGitHubClient struct {
	snapshots []discovery.PRSnapshot
	err       error
}

func (m *mockGitHubClient) FetchPullRequests(context.Context, string) ([]discovery.PRSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.snapshots, nil
}

type mockRepoStore struct {
	mu      sync.Mutex
	repos   []model.Repository
	updates chan model.Repository
}

func newMockRepoStore(repos ...model.Repository) *mockRepoStore {
	return &mockRepoStore{repos: repos, updates: make(chan model.Repository, 16)}
}

func (m *mockRepoStore) Add(context.Context, model.Repository) error { return nil }
func (m *mockRepoStore) Remove(context.Context, string) error        { return nil }
func (m *mockRepoStore) ListAll(context.Context) ([]model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Repository(nil), m.repos...), nil
}

func (m *mockRepoStore) ListActive(context.Context) ([]model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var active []model.Repository
	for _, r := range m.repos {
		if r.Status == model.RepoStatusActive {
			active = append(active, r)
		}
	}
	return active, nil
}

func (m *mockRepoStore) GetByURL(_ context.Context, url string) (*model.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.repos {
		if r.URL == url {
			repo := r
			return &repo, nil
		}
	}
	return nil, nil
}

func (m *mockRepoStore) Update(_ context.Context, repo model.Repository) error {
	m.updates <- repo
	return nil
}

type mockPRStore struct {
	prs []model.PullRequest
}

func (m *mockPRStore) GetByRepoAndNumber(context.Context, int64, int) (*model.PullRequest, error) {
	return nil, nil
}

func (m *mockPRStore) GetByRepository(context.Context, int64) ([]model.PullRequest, error) {
	return m.prs, nil
}

func (m *mockPRStore) ListAll(context.Context) ([]model.PullRequest, error) { return m.prs, nil }

type mockCheckStore struct {
	runs []model.CheckRun
}

func (m *mockCheckStore) GetByExternalID(context.Context, string) (*model.CheckRun, error) {
	return nil, nil
}

func (m *mockCheckStore) GetByPR(context.Context, int64) ([]model.CheckRun, error) {
	return m.runs, nil
}

func waitForUpdate(t *testing.T, store *mockRepoStore) model.Repository {
	t.Helper()
	select {
	case repo := <-store.updates:
		return repo
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for repository update")
		return model.Repository{}
	}
}

func activeRepo() model.Repository {
	return model.Repository{
		ID:       1,
		URL:      "https://github.com/acme/widgets",
		FullName: "acme/widgets",
		Status:   model.RepoStatusActive,
	}
}

func TestPollServiceInitialPollPersistsDiscoveries(t *testing.T) {
	uow := newFakeUnitOfWork()
	ghClient := &mockGitHubClient{snapshots: []discovery.PRSnapshot{prSnap(1)}}
	repoStore := newMockRepoStore(activeRepo())

	svc := application.NewPollService(ghClient, repoStore, &mockPRStore{}, &mockCheckStore{},
		application.NewSyncService(uow), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	updated := waitForUpdate(t, repoStore)
	cancel()
	<-done

	assert.Zero(t, updated.ConsecutiveFailures)
	assert.Equal(t, model.RepoStatusActive, updated.Status)
	assert.False(t, updated.LastPolledAt.IsZero())
	assert.Contains(t, uow.tx.prs.rows, prKey{1, 1})
}

func TestPollServiceRecordsFetchFailure(t *testing.T) {
	ghClient := &mockGitHubClient{err: errors.New("api unavailable")}
	repoStore := newMockRepoStore(activeRepo())

	svc := application.NewPollService(ghClient, repoStore, &mockPRStore{}, &mockCheckStore{},
		application.NewSyncService(newFakeUnitOfWork()), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	updated := waitForUpdate(t, repoStore)
	cancel()
	<-done

	assert.Equal(t, 1, updated.ConsecutiveFailures)
	assert.Equal(t, model.RepoStatusActive, updated.Status)
}

func TestPollServiceAutoSuspendsAfterRepeatedFailures(t *testing.T) {
	ghClient := &mockGitHubClient{err: errors.New("api unavailable")}
	repo := activeRepo()
	repo.ConsecutiveFailures = model.MaxConsecutiveFailures - 1
	repoStore := newMockRepoStore(repo)

	svc := application.NewPollService(ghClient, repoStore, &mockPRStore{}, &mockCheckStore{},
		application.NewSyncService(newFakeUnitOfWork()), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	updated := waitForUpdate(t, repoStore)
	cancel()
	<-done

	assert.Equal(t, model.MaxConsecutiveFailures, updated.ConsecutiveFailures)
	assert.Equal(t, model.RepoStatusError, updated.Status)
}

func TestPollServiceRefreshBypassesActiveFilter(t *testing.T) {
	// A suspended repository is skipped by the cycle but still refreshable on
	// demand.
	uow := newFakeUnitOfWork()
	ghClient := &mockGitHubClient{snapshots: []discovery.PRSnapshot{prSnap(4)}}
	repo := activeRepo()
	repo.Status = model.RepoStatusSuspended
	repoStore := newMockRepoStore(repo)

	svc := application.NewPollService(ghClient, repoStore, &mockPRStore{}, &mockCheckStore{},
		application.NewSyncService(uow), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	err := svc.RefreshRepo(ctx, repo.URL)
	require.NoError(t, err)
	cancel()
	<-done

	assert.Contains(t, uow.tx.prs.rows, prKey{1, 4})
}

func TestPollServiceRefreshUnknownRepo(t *testing.T) {
	repoStore := newMockRepoStore()

	svc := application.NewPollService(&mockGitHubClient{}, repoStore, &mockPRStore{}, &mockCheckStore{},
		application.NewSyncService(newFakeUnitOfWork()), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		svc.Start(ctx)
		close(done)
	}()

	err := svc.RefreshRepo(ctx, "https://github.com/acme/missing")
	assert.ErrorIs(t, err, driven.ErrRepoNotFound)
	cancel()
	<-done
}
