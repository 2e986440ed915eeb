package model

import "time"

// prTransitions is the legal state transition table. States absent from the
// allow-set are rejected, including self-transitions.
var prTransitions = map[PRState][]PRState{
	PRStateOpened: {PRStateClosed, PRStateMerged},
	PRStateClosed: {PRStateOpened},
	PRStateMerged: {}, // Terminal.
}

// PullRequest represents a GitHub pull request tracked by prsentry.
// Identity is the (RepositoryID, Number) pair, unique per repository.
type PullRequest struct {
	ID           int64
	RepositoryID int64
	Number       int
	Title        string
	Author       string
	State        PRState
	IsDraft      bool
	Body         string
	URL          string
	Branch       string
	BaseBranch   string
	HeadSHA      string
	BaseSHA      string
	Metadata     Metadata
	OpenedAt     time.Time
	UpdatedAt    time.Time
}

// CanTransitionTo reports whether the pull request may legally move to the
// given state. No-op transitions (same state) are never permitted.
func (pr *PullRequest) CanTransitionTo(newState PRState) bool {
	for _, allowed := range prTransitions[pr.State] {
		if allowed == newState {
			return true
		}
	}
	return false
}

// UpdateState transitions the pull request to newState, recording the trigger
// event and shallow-merging metadata. Returns an InvalidTransitionError when
// the transition is not in the allow-table.
func (pr *PullRequest) UpdateState(newState PRState, triggerEvent string, metadata Metadata) error {
	if !pr.CanTransitionTo(newState) {
		return &InvalidTransitionError{
			Entity: "pull_request",
			From:   string(pr.State),
			To:     string(newState),
		}
	}

	pr.State = newState
	pr.Metadata = pr.Metadata.Merge(metadata)
	if triggerEvent != "" {
		pr.Metadata = pr.Metadata.Merge(Metadata{"last_trigger_event": triggerEvent})
	}

	return nil
}

// IsOpen returns true while the pull request has not been closed or merged.
func (pr *PullRequest) IsOpen() bool {
	return pr.State == PRStateOpened
}
