package discovery

// ChangeType classifies what kind of change a StateChangeEvent describes.
type ChangeType string

const (
	ChangePRCreated             ChangeType = "pr_created"
	ChangePRStateChanged        ChangeType = "pr_state_changed"
	ChangePRUpdated             ChangeType = "pr_updated"
	ChangeCheckRunCreated       ChangeType = "check_run_created"
	ChangeCheckRunStatusChanged ChangeType = "check_run_status_changed"
)

// Severity is a three-level classification of a detected change's importance
// to downstream consumers.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

var severityRank = map[Severity]int{
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// AtLeast reports whether s ranks at or above other.
func (s Severity) AtLeast(other Severity) bool {
	return severityRank[s] >= severityRank[other]
}

// PendingEntityID is the EntityID sentinel for changes detected before the
// pull request row existed. History recording skips these; the creation
// itself is the record.
const PendingEntityID int64 = 0

// StateChangeEvent is the detector's output: one typed, classified change.
// Events are ephemeral; they are consumed by the synchronizer and never
// persisted verbatim, except as a PRStateHistory derivative.
//
// OldState and NewState are small attribute bags ("state", "status",
// "conclusion", "draft") describing the entity before and after the change.
// OldState is nil for creations.
type StateChangeEvent struct {
	Type               ChangeType
	EntityID           int64 // PR row id, or PendingEntityID for not-yet-created PRs.
	PRNumber           int
	OldState           map[string]string
	NewState           map[string]string
	ChangedFields      []string
	Severity           Severity
	CheckRunName       string // Set for check run events only.
	CheckRunExternalID string // Set for check run events only.
}

// HasChangedField reports whether the named field is in the change set.
func (e StateChangeEvent) HasChangedField(name string) bool {
	for _, f := range e.ChangedFields {
		if f == name {
			return true
		}
	}
	return false
}
