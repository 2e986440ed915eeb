package model

import "time"

// MaxConsecutiveFailures is the number of consecutive poll failures after
// which a repository is automatically moved to the error status.
const MaxConsecutiveFailures = 10

// Repository represents a GitHub repository tracked by prsentry.
type Repository struct {
	ID                  int64
	URL                 string // Globally unique.
	FullName            string // "owner/name".
	Owner               string
	Name                string
	Status              RepoStatus
	PollInterval        time.Duration
	ConsecutiveFailures int
	AddedAt             time.Time
	LastPolledAt        time.Time
}

// RecordPollFailure increments the consecutive failure counter and moves the
// repository to the error status once the auto-suspend threshold is reached.
func (r *Repository) RecordPollFailure(now time.Time) {
	r.ConsecutiveFailures++
	r.LastPolledAt = now
	if r.ConsecutiveFailures >= MaxConsecutiveFailures {
		r.Status = RepoStatusError
	}
}

// RecordPollSuccess resets the failure counter and restores an errored
// repository to active. An explicitly suspended repository stays suspended.
func (r *Repository) RecordPollSuccess(now time.Time) {
	r.ConsecutiveFailures = 0
	r.LastPolledAt = now
	if r.Status == RepoStatusError {
		r.Status = RepoStatusActive
	}
}

// IsPollable returns true when the repository should be included in a poll cycle.
func (r *Repository) IsPollable() bool {
	return r.Status == RepoStatusActive
}
