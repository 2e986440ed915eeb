package github_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prsentry/prsentry/internal/adapter/driven/github"
)

func newTestClient(t *testing.T, handler http.Handler) *github.Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := github.NewClientWithHTTPClient(srv.Client(), srv.URL+"/")
	require.NoError(t, err)

	return client
}

func TestFetchPullRequestsMapsFields(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{
			"number": 7,
			"title": "Fix bug",
			"user": {"login": "octocat"},
			"state": "open",
			"draft": true,
			"body": "fixes the bug",
			"html_url": "https://github.com/acme/widgets/pull/7",
			"head": {"ref": "fix/bug", "sha": "abc123"},
			"base": {"ref": "main", "sha": "def456"},
			"created_at": "2026-08-01T09:00:00Z",
			"updated_at": "2026-08-01T10:00:00Z"
		}]`)
	})
	mux.HandleFunc("/repos/acme/widgets/commits/abc123/check-runs", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"total_count": 1,
			"check_runs": [{
				"id": 1234,
				"name": "unit-tests",
				"status": "waiting",
				"details_url": "https://ci.example.com/1234",
				"output": {"summary": "pending", "text": ""}
			}]
		}`)
	})

	client := newTestClient(t, mux)

	snapshots, err := client.FetchPullRequests(context.Background(), "acme/widgets")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	snap := snapshots[0]
	assert.Equal(t, 7, snap.Number)
	assert.Equal(t, "Fix bug", snap.Title)
	assert.Equal(t, "octocat", snap.Author)
	assert.Equal(t, "opened", snap.State)
	assert.True(t, snap.IsDraft)
	assert.Equal(t, "fix/bug", snap.Branch)
	assert.Equal(t, "main", snap.BaseBranch)
	assert.Equal(t, "abc123", snap.HeadSHA)
	assert.False(t, snap.ObservedAt.IsZero())

	require.Len(t, snap.CheckRuns, 1)
	run := snap.CheckRuns[0]
	assert.Equal(t, "1234", run.ExternalID)
	assert.Equal(t, "unit-tests", run.Name)
	// Pre-start statuses normalize to queued.
	assert.Equal(t, "queued", run.Status)
	assert.Empty(t, run.Conclusion)
	// Every snapshot of one fetch shares the pass's observation time.
	assert.Equal(t, snap.ObservedAt, run.ObservedAt)
}

func TestFetchPullRequestsMergedState(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{
			"number": 8,
			"state": "closed",
			"merged_at": "2026-08-02T12:00:00Z"
		}]`)
	})

	client := newTestClient(t, mux)

	snapshots, err := client.FetchPullRequests(context.Background(), "acme/widgets")
	require.NoError(t, err)
	require.Len(t, snapshots, 1)

	// merged_at wins over the raw closed state.
	assert.Equal(t, "merged", snapshots[0].State)
}

func TestFetchPullRequestsPaginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") == "2" {
			fmt.Fprint(w, `[{"number": 2, "state": "open"}]`)
			return
		}
		w.Header().Set("Link", fmt.Sprintf(`<http://%s/repos/acme/widgets/pulls?page=2>; rel="next"`, r.Host))
		fmt.Fprint(w, `[{"number": 1, "state": "open"}]`)
	})

	client := newTestClient(t, mux)

	snapshots, err := client.FetchPullRequests(context.Background(), "acme/widgets")
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	assert.Equal(t, 1, snapshots[0].Number)
	assert.Equal(t, 2, snapshots[1].Number)
}

func TestFetchPullRequestsEmptyRepo(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/widgets/pulls", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	client := newTestClient(t, mux)

	snapshots, err := client.FetchPullRequests(context.Background(), "acme/widgets")
	require.NoError(t, err)
	assert.NotNil(t, snapshots)
	assert.Empty(t, snapshots)
}

func TestFetchPullRequestsInvalidRepoName(t *testing.T) {
	client := newTestClient(t, http.NewServeMux())

	_, err := client.FetchPullRequests(context.Background(), "not-a-full-name")

	assert.Error(t, err)
}
