// Package github implements the GitHubClient port using the go-github library.
package github

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/v82/github"
	"github.com/gregjones/httpcache"

	"github.com/gofri/go-github-ratelimit/v2/github_ratelimit"

	"github.com/prsentry/prsentry/internal/domain/discovery"
	"github.com/prsentry/prsentry/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.GitHubClient = (*Client)(nil)

// Client implements the driven.GitHubClient port using the go-github library.
type Client struct {
	gh *gh.Client
}

// NewClient creates a new GitHub API client with the following transport stack:
//  1. httpcache (ETag-based conditional request caching)
//  2. go-github-ratelimit (secondary rate limit middleware, sleeps on 429)
//  3. go-github (GitHub REST API client with PAT auth)
func NewClient(token string) *Client {
	cacheTransport := httpcache.NewMemoryCacheTransport()
	rateLimitClient := github_ratelimit.NewClient(cacheTransport)
	client := gh.NewClient(rateLimitClient).WithAuthToken(token)

	return &Client{gh: client}
}

// NewClientWithHTTPClient creates a Client with a custom http.Client and base
// URL. This constructor is intended for testing, allowing injection of an
// httptest server.
func NewClientWithHTTPClient(httpClient *http.Client, baseURL string) (*Client, error) {
	client := gh.NewClient(httpClient)

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	client.BaseURL = u

	return &Client{gh: client}, nil
}

// FetchPullRequests retrieves all open pull requests for the repository and,
// for each, the check runs attached to its head commit. It handles
// pagination automatically and maps go-github types to discovery snapshots.
func (c *Client) FetchPullRequests(ctx context.Context, repoFullName string) ([]discovery.PRSnapshot, error) {
	owner, repo, err := splitRepo(repoFullName)
	if err != nil {
		return nil, err
	}

	opts := &gh.PullRequestListOptions{
		State:     "all",
		Sort:      "updated",
		Direction: "desc",
		ListOptions: gh.ListOptions{
			PerPage: 100,
		},
	}

	var snapshots []discovery.PRSnapshot

	// One observation time per fetch; all snapshots of a pass share it.
	observedAt := time.Now().UTC()

	for {
		prs, resp, err := c.gh.PullRequests.List(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing pull requests for %s (page %d): %w", repoFullName, opts.Page, err)
		}

		logRateLimit(resp, repoFullName, opts.Page, len(prs))

		for _, pr := range prs {
			snap := mapPullRequest(pr, observedAt)

			if sha := pr.GetHead().GetSHA(); sha != "" {
				runs, err := c.fetchCheckRuns(ctx, owner, repo, sha, observedAt)
				if err != nil {
					return nil, fmt.Errorf("listing check runs for %s#%d: %w", repoFullName, snap.Number, err)
				}
				snap.CheckRuns = runs
			}

			snapshots = append(snapshots, snap)
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	if snapshots == nil {
		snapshots = []discovery.PRSnapshot{}
	}

	return snapshots, nil
}

// fetchCheckRuns retrieves all check runs for a commit, handling pagination.
func (c *Client) fetchCheckRuns(ctx context.Context, owner, repo, sha string, observedAt time.Time) ([]discovery.CheckRunSnapshot, error) {
	opts := &gh.ListCheckRunsOptions{
		ListOptions: gh.ListOptions{PerPage: 100},
	}

	var runs []discovery.CheckRunSnapshot

	for {
		result, resp, err := c.gh.Checks.ListCheckRunsForRef(ctx, owner, repo, sha, opts)
		if err != nil {
			return nil, err
		}

		for _, run := range result.CheckRuns {
			runs = append(runs, mapCheckRun(run, observedAt))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return runs, nil
}

// splitRepo splits "owner/name" into its components.
func splitRepo(repoFullName string) (owner, repo string, err error) {
	parts := strings.Split(repoFullName, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository name %q, expected owner/name", repoFullName)
	}
	return parts[0], parts[1], nil
}

// logRateLimit logs remaining API quota at debug level after each page fetch.
func logRateLimit(resp *gh.Response, repoFullName string, page, count int) {
	if resp == nil {
		return
	}
	slog.Debug("github page fetched",
		"repo", repoFullName,
		"page", page,
		"items", count,
		"rate_remaining", resp.Rate.Remaining,
		"rate_reset", resp.Rate.Reset.Time,
	)
}

// mapPullRequest converts a go-github pull request into a discovery snapshot.
func mapPullRequest(pr *gh.PullRequest, observedAt time.Time) discovery.PRSnapshot {
	return discovery.PRSnapshot{
		Number:     pr.GetNumber(),
		Title:      pr.GetTitle(),
		Author:     pr.GetUser().GetLogin(),
		State:      mapPRState(pr),
		IsDraft:    pr.GetDraft(),
		Body:       pr.GetBody(),
		URL:        pr.GetHTMLURL(),
		Branch:     pr.GetHead().GetRef(),
		BaseBranch: pr.GetBase().GetRef(),
		HeadSHA:    pr.GetHead().GetSHA(),
		BaseSHA:    pr.GetBase().GetSHA(),
		OpenedAt:   pr.GetCreatedAt().Time,
		UpdatedAt:  pr.GetUpdatedAt().Time,
		ObservedAt: observedAt,
	}
}

// mapPRState folds GitHub's two-field state representation (state + merged_at)
// into the single tracked state value.
func mapPRState(pr *gh.PullRequest) string {
	if pr.MergedAt != nil {
		return "merged"
	}
	if pr.GetState() == "open" {
		return "opened"
	}
	return pr.GetState()
}

// mapCheckRun converts a go-github check run into a discovery snapshot.
func mapCheckRun(run *gh.CheckRun, observedAt time.Time) discovery.CheckRunSnapshot {
	return discovery.CheckRunSnapshot{
		ExternalID:    strconv.FormatInt(run.GetID(), 10),
		Name:          run.GetName(),
		Status:        mapCheckStatus(run.GetStatus()),
		Conclusion:    run.GetConclusion(),
		OutputText:    run.GetOutput().GetText(),
		OutputSummary: run.GetOutput().GetSummary(),
		DetailsURL:    run.GetDetailsURL(),
		StartedAt:     run.GetStartedAt().Time,
		CompletedAt:   run.GetCompletedAt().Time,
		ObservedAt:    observedAt,
	}
}

// mapCheckStatus normalizes GitHub's pre-start statuses (waiting, requested,
// pending) to queued; the tracked lifecycle begins at queued.
func mapCheckStatus(status string) string {
	switch status {
	case "waiting", "requested", "pending":
		return "queued"
	}
	return status
}
