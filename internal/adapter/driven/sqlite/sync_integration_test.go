package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prsentry/prsentry/internal/adapter/driven/sqlite"
	"github.com/prsentry/prsentry/internal/application"
	"github.com/prsentry/prsentry/internal/domain/discovery"
	"github.com/prsentry/prsentry/internal/domain/model"
)

// Rows written in one pass must be readable in the next: registration reads
// back the repository it just added, and the second sync pass must see the
// first pass's rows as updates, not creations. Timestamp columns round-trip
// through formatTime/parseTime, which this exercises end to end.
func TestSyncServiceRoundTripsThroughDatabase(t *testing.T) {
	db := setupTestDB(t)
	repo := seedRepo(t, db, "https://github.com/acme/widgets")
	svc := application.NewSyncService(sqlite.NewSyncUnitOfWork(db))
	ctx := context.Background()

	opened := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	results := []discovery.Result{{
		RepositoryID: repo.ID,
		RepoURL:      repo.URL,
		RepoFullName: repo.FullName,
		FetchedAt:    opened,
		PRs: []discovery.PRSnapshot{{
			Number:    1,
			Title:     "Add feature",
			Author:    "octocat",
			State:     "opened",
			HeadSHA:   "abc123",
			OpenedAt:  opened,
			UpdatedAt: opened,
			CheckRuns: []discovery.CheckRunSnapshot{{
				ExternalID: "ext-1",
				Name:       "unit-tests",
				Status:     "in_progress",
				StartedAt:  opened.Add(time.Minute),
			}},
		}},
	}}

	first := svc.Synchronize(ctx, results, nil)
	require.Empty(t, first.Errors)
	assert.Equal(t, 1, first.PRsCreated)
	assert.Equal(t, 1, first.ChecksCreated)

	second := svc.Synchronize(ctx, results, nil)
	require.Empty(t, second.Errors)
	assert.Zero(t, second.PRsCreated)
	assert.Equal(t, 1, second.PRsUpdated)
	assert.Zero(t, second.ChecksCreated)
	assert.Equal(t, 1, second.ChecksUpdated)

	pr, err := sqlite.NewPRRepo(db).GetByRepoAndNumber(ctx, repo.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, pr)
	assert.Equal(t, model.PRStateOpened, pr.State)
	assert.True(t, pr.OpenedAt.Equal(opened))

	run, err := sqlite.NewCheckRepo(db).GetByExternalID(ctx, "ext-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.True(t, run.StartedAt.Equal(opened.Add(time.Minute)))
}
