// Package discovery holds the ephemeral observation types produced by the
// external fetcher and the pure change detection logic that compares them
// against persisted state. Nothing in this package touches storage.
package discovery

import (
	"time"

	"github.com/prsentry/prsentry/internal/domain/model"
)

// PRSnapshot is an immutable, source-agnostic observation of a pull request
// and its check runs at a single point in time. Snapshots are detector and
// synchronizer input only; they are discarded after processing.
type PRSnapshot struct {
	Number     int
	Title      string
	Author     string
	State      string // Raw source value, validated on conversion to model.
	IsDraft    bool
	Body       string
	URL        string
	Branch     string
	BaseBranch string
	HeadSHA    string
	BaseSHA    string
	CheckRuns  []CheckRunSnapshot
	OpenedAt   time.Time
	UpdatedAt  time.Time
	ObservedAt time.Time
}

// CheckRunSnapshot is an observation of a single check run, correlated to
// persisted state by the source system's globally unique external id.
type CheckRunSnapshot struct {
	ExternalID    string
	Name          string
	Status        string // Raw source value.
	Conclusion    string // Raw source value, empty until completed.
	OutputText    string
	OutputSummary string
	DetailsURL    string
	StartedAt     time.Time
	CompletedAt   time.Time
	ObservedAt    time.Time
}

// Result is one repository's discovery pass: everything the fetcher observed
// for that repository in a single poll.
type Result struct {
	RepositoryID int64
	RepoURL      string
	RepoFullName string
	PRs          []PRSnapshot
	FetchedAt    time.Time
}

// ToModel converts the snapshot into a persistable pull request owned by the
// given repository. Every discovered field overwrites the corresponding
// stored field on update, so the conversion is total. Returns an
// UnknownEnumValueError for state values outside the closed set.
func (s PRSnapshot) ToModel(repositoryID int64) (model.PullRequest, error) {
	state, err := model.ParsePRState(s.State)
	if err != nil {
		return model.PullRequest{}, err
	}

	return model.PullRequest{
		RepositoryID: repositoryID,
		Number:       s.Number,
		Title:        s.Title,
		Author:       s.Author,
		State:        state,
		IsDraft:      s.IsDraft,
		Body:         s.Body,
		URL:          s.URL,
		Branch:       s.Branch,
		BaseBranch:   s.BaseBranch,
		HeadSHA:      s.HeadSHA,
		BaseSHA:      s.BaseSHA,
		Metadata:     model.Metadata{},
		OpenedAt:     s.OpenedAt,
		UpdatedAt:    s.UpdatedAt,
	}, nil
}

// ToModel converts the snapshot into a persistable check run owned by the
// given pull request row. Returns an UnknownEnumValueError for status or
// conclusion values outside their closed sets.
func (s CheckRunSnapshot) ToModel(prID int64) (model.CheckRun, error) {
	status, err := model.ParseCheckStatus(s.Status)
	if err != nil {
		return model.CheckRun{}, err
	}

	conclusion, err := model.ParseCheckConclusion(s.Conclusion)
	if err != nil {
		return model.CheckRun{}, err
	}

	return model.CheckRun{
		PRID:          prID,
		ExternalID:    s.ExternalID,
		CheckName:     s.Name,
		Status:        status,
		Conclusion:    conclusion,
		OutputText:    s.OutputText,
		OutputSummary: s.OutputSummary,
		DetailsURL:    s.DetailsURL,
		Metadata:      model.Metadata{},
		StartedAt:     s.StartedAt,
		CompletedAt:   s.CompletedAt,
	}, nil
}
