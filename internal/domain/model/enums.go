package model

// RepoStatus represents the polling lifecycle state of a tracked repository.
type RepoStatus string

const (
	RepoStatusActive    RepoStatus = "active"
	RepoStatusSuspended RepoStatus = "suspended"
	RepoStatusError     RepoStatus = "error"
)

// PRState represents the state of a pull request.
type PRState string

const (
	PRStateOpened PRState = "opened"
	PRStateClosed PRState = "closed"
	PRStateMerged PRState = "merged"
)

// CheckStatus represents the lifecycle phase of a check run.
type CheckStatus string

const (
	CheckStatusQueued     CheckStatus = "queued"
	CheckStatusInProgress CheckStatus = "in_progress"
	CheckStatusCompleted  CheckStatus = "completed"
	CheckStatusCancelled  CheckStatus = "cancelled"
)

// CheckConclusion represents the terminal outcome of a completed check run,
// distinct from its lifecycle status.
type CheckConclusion string

const (
	ConclusionSuccess        CheckConclusion = "success"
	ConclusionFailure        CheckConclusion = "failure"
	ConclusionNeutral        CheckConclusion = "neutral"
	ConclusionCancelled      CheckConclusion = "cancelled"
	ConclusionTimedOut       CheckConclusion = "timed_out"
	ConclusionActionRequired CheckConclusion = "action_required"
	ConclusionStale          CheckConclusion = "stale"
	ConclusionSkipped        CheckConclusion = "skipped"
)

// ParsePRState validates a raw state string from an external source.
// Unknown values return an UnknownEnumValueError instead of defaulting,
// so bad upstream data surfaces as a recoverable sync error.
func ParsePRState(raw string) (PRState, error) {
	switch PRState(raw) {
	case PRStateOpened, PRStateClosed, PRStateMerged:
		return PRState(raw), nil
	}
	return "", &UnknownEnumValueError{Enum: "pr_state", Value: raw}
}

// ParseCheckStatus validates a raw check run status string.
func ParseCheckStatus(raw string) (CheckStatus, error) {
	switch CheckStatus(raw) {
	case CheckStatusQueued, CheckStatusInProgress, CheckStatusCompleted, CheckStatusCancelled:
		return CheckStatus(raw), nil
	}
	return "", &UnknownEnumValueError{Enum: "check_status", Value: raw}
}

// ParseCheckConclusion validates a raw check run conclusion string. The empty
// string is legal and means "no conclusion yet" (check not completed).
func ParseCheckConclusion(raw string) (CheckConclusion, error) {
	if raw == "" {
		return "", nil
	}
	switch CheckConclusion(raw) {
	case ConclusionSuccess, ConclusionFailure, ConclusionNeutral, ConclusionCancelled,
		ConclusionTimedOut, ConclusionActionRequired, ConclusionStale, ConclusionSkipped:
		return CheckConclusion(raw), nil
	}
	return "", &UnknownEnumValueError{Enum: "check_conclusion", Value: raw}
}
