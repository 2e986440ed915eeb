package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/prsentry/prsentry/internal/adapter/driven/sqlite"
	"github.com/prsentry/prsentry/internal/domain/model"
)

// setupTestDB creates a migrated database in a per-test temp directory.
func setupTestDB(t *testing.T) *sqlite.DB {
	t.Helper()

	db, err := sqlite.NewDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, sqlite.RunMigrations(db.Writer))

	return db
}

// seedRepo inserts a repository and returns the stored row with its id.
func seedRepo(t *testing.T, db *sqlite.DB, url string) model.Repository {
	t.Helper()

	repos := sqlite.NewRepoRepo(db)
	require.NoError(t, repos.Add(context.Background(), model.Repository{
		URL:          url,
		FullName:     "acme/widgets",
		Owner:        "acme",
		Name:         "widgets",
		Status:       model.RepoStatusActive,
		PollInterval: 5 * time.Minute,
	}))

	repo, err := repos.GetByURL(context.Background(), url)
	require.NoError(t, err)
	require.NotNil(t, repo)

	return *repo
}

// seedPR upserts a pull request through the unit of work and returns the
// stored row with its id.
func seedPR(t *testing.T, db *sqlite.DB, repositoryID int64, number int) model.PullRequest {
	t.Helper()

	pr := testPR(repositoryID, number)

	tx, err := sqlite.NewSyncUnitOfWork(db).Begin(context.Background())
	require.NoError(t, err)
	_, _, err = tx.PRs().BulkUpsert(context.Background(), []model.PullRequest{pr})
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	stored, err := sqlite.NewPRRepo(db).GetByRepoAndNumber(context.Background(), repositoryID, number)
	require.NoError(t, err)
	require.NotNil(t, stored)

	return *stored
}

func testPR(repositoryID int64, number int) model.PullRequest {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return model.PullRequest{
		RepositoryID: repositoryID,
		Number:       number,
		Title:        "Add feature",
		Author:       "octocat",
		State:        model.PRStateOpened,
		Body:         "adds the feature",
		URL:          "https://github.com/acme/widgets/pull/1",
		Branch:       "feat/thing",
		BaseBranch:   "main",
		HeadSHA:      "abc123",
		BaseSHA:      "def456",
		Metadata:     model.Metadata{},
		OpenedAt:     now,
		UpdatedAt:    now,
	}
}

func testCheckRun(prID int64, externalID string) model.CheckRun {
	return model.CheckRun{
		PRID:       prID,
		ExternalID: externalID,
		CheckName:  "unit-tests",
		Status:     model.CheckStatusQueued,
		Metadata:   model.Metadata{},
	}
}
