package discovery

import (
	"log/slog"
	"strconv"

	"github.com/prsentry/prsentry/internal/domain/model"
)

// prTrackedFields lists the attributes compared field-wise during PR change
// detection, in the order they appear in ChangedFields.
var prTrackedFields = []string{
	"title", "author", "state", "draft", "head_sha", "base_sha", "body", "branch", "base_branch",
}

// DetectPRChanges compares the last persisted state of a pull request against
// a freshly discovered snapshot and returns at most one change event.
//
// A state change dominates: when the state changed alongside other fields,
// only the state-change event is emitted. A merge or close is the dominant
// signal for downstream consumers; a second low-priority event for the same
// transition adds noise without new information.
//
// A malformed snapshot is logged and yields an empty change list; detection
// never fails for a single entity.
func DetectPRChanges(old *model.PullRequest, snap PRSnapshot) []StateChangeEvent {
	if snap.Number <= 0 {
		slog.Warn("malformed PR snapshot, skipping detection", "number", snap.Number, "title", snap.Title)
		return nil
	}

	if old == nil {
		severity := SeverityMedium
		if snap.IsDraft {
			severity = SeverityLow
		}
		return []StateChangeEvent{{
			Type:          ChangePRCreated,
			EntityID:      PendingEntityID,
			PRNumber:      snap.Number,
			NewState:      prStateBag(snap.State, snap.IsDraft),
			ChangedFields: []string{"created"},
			Severity:      severity,
		}}
	}

	var changed []string
	for _, field := range prTrackedFields {
		if prFieldDiffers(old, snap, field) {
			changed = append(changed, field)
		}
	}
	if len(changed) == 0 {
		return nil
	}

	event := StateChangeEvent{
		EntityID: old.ID,
		PRNumber: snap.Number,
		OldState: prStateBag(string(old.State), old.IsDraft),
		NewState: prStateBag(snap.State, snap.IsDraft),
	}

	switch {
	case contains(changed, "state"):
		event.Type = ChangePRStateChanged
		event.ChangedFields = []string{"state"}
		event.Severity = SeverityHigh
	case contains(changed, "head_sha"):
		// New commits pushed.
		event.Type = ChangePRUpdated
		event.ChangedFields = changed
		event.Severity = SeverityMedium
	default:
		event.Type = ChangePRUpdated
		event.ChangedFields = changed
		event.Severity = SeverityLow
	}

	return []StateChangeEvent{event}
}

// DetectCheckRunChanges compares persisted check runs against discovered
// snapshots for one pull request. Matching is by external id, never by name:
// names can repeat across runs, external ids cannot. The old list is indexed
// once so detection is linear in the number of check runs.
func DetectCheckRunChanges(old []model.CheckRun, snaps []CheckRunSnapshot, prID int64, prNumber int) []StateChangeEvent {
	oldByID := make(map[string]model.CheckRun, len(old))
	for _, run := range old {
		oldByID[run.ExternalID] = run
	}

	var events []StateChangeEvent
	for _, snap := range snaps {
		if snap.ExternalID == "" {
			slog.Warn("malformed check run snapshot, skipping detection", "pr_number", prNumber, "name", snap.Name)
			continue
		}

		prev, exists := oldByID[snap.ExternalID]
		if !exists {
			severity := SeverityLow
			if snap.Status == string(model.CheckStatusCompleted) && snap.Conclusion == string(model.ConclusionFailure) {
				// A check can be discovered already failed.
				severity = SeverityHigh
			}
			events = append(events, StateChangeEvent{
				Type:               ChangeCheckRunCreated,
				EntityID:           prID,
				PRNumber:           prNumber,
				NewState:           checkStateBag(snap.Status, snap.Conclusion),
				ChangedFields:      []string{"created"},
				Severity:           severity,
				CheckRunName:       snap.Name,
				CheckRunExternalID: snap.ExternalID,
			})
			continue
		}

		changed := diffCheckRun(prev, snap)
		if len(changed) == 0 {
			continue
		}

		severity := SeverityLow
		switch {
		case contains(changed, "conclusion") && snap.Conclusion == string(model.ConclusionFailure):
			severity = SeverityHigh
		case contains(changed, "status") && snap.Status == string(model.CheckStatusCompleted):
			// A completion, regardless of outcome.
			severity = SeverityMedium
		}

		events = append(events, StateChangeEvent{
			Type:               ChangeCheckRunStatusChanged,
			EntityID:           prID,
			PRNumber:           prNumber,
			OldState:           checkStateBag(string(prev.Status), string(prev.Conclusion)),
			NewState:           checkStateBag(snap.Status, snap.Conclusion),
			ChangedFields:      changed,
			Severity:           severity,
			CheckRunName:       snap.Name,
			CheckRunExternalID: snap.ExternalID,
		})
	}

	// Check runs present only in the old list are deliberately ignored:
	// disappearance from a discovery snapshot is not itself a change signal.

	return events
}

// AnalyzeSignificance applies cross-cutting severity upgrades independent of
// how an event was first classified. Severities are only ever raised, never
// lowered, so applying the pass twice yields the same result as once.
func AnalyzeSignificance(events []StateChangeEvent) []StateChangeEvent {
	out := make([]StateChangeEvent, len(events))
	copy(out, events)

	for i := range out {
		if out[i].NewState == nil {
			continue
		}
		if out[i].NewState["state"] == string(model.PRStateMerged) ||
			out[i].NewState["conclusion"] == string(model.ConclusionFailure) {
			if !out[i].Severity.AtLeast(SeverityHigh) {
				out[i].Severity = SeverityHigh
			}
		}
	}

	return out
}

// FilterActionable selects events that should trigger downstream automation:
// every high-severity event, plus creations of non-draft pull requests. High
// severity always wins, even when the event carries no new-state bag; the
// new-state requirement guards only the draft check on creations.
func FilterActionable(events []StateChangeEvent) []StateChangeEvent {
	var actionable []StateChangeEvent
	for _, e := range events {
		if e.Severity == SeverityHigh {
			actionable = append(actionable, e)
			continue
		}
		if e.Type == ChangePRCreated && e.NewState != nil && e.NewState["draft"] != "true" {
			actionable = append(actionable, e)
		}
	}
	return actionable
}

func prFieldDiffers(old *model.PullRequest, snap PRSnapshot, field string) bool {
	switch field {
	case "title":
		return old.Title != snap.Title
	case "author":
		return old.Author != snap.Author
	case "state":
		return string(old.State) != snap.State
	case "draft":
		return old.IsDraft != snap.IsDraft
	case "head_sha":
		return old.HeadSHA != snap.HeadSHA
	case "base_sha":
		return old.BaseSHA != snap.BaseSHA
	case "body":
		return old.Body != snap.Body
	case "branch":
		return old.Branch != snap.Branch
	case "base_branch":
		return old.BaseBranch != snap.BaseBranch
	}
	return false
}

func diffCheckRun(prev model.CheckRun, snap CheckRunSnapshot) []string {
	var changed []string
	if string(prev.Status) != snap.Status {
		changed = append(changed, "status")
	}
	if string(prev.Conclusion) != snap.Conclusion {
		changed = append(changed, "conclusion")
	}
	if prev.CheckName != snap.Name {
		changed = append(changed, "check_name")
	}
	if prev.OutputText != snap.OutputText {
		changed = append(changed, "output_text")
	}
	if prev.OutputSummary != snap.OutputSummary {
		changed = append(changed, "output_summary")
	}
	return changed
}

func prStateBag(state string, draft bool) map[string]string {
	return map[string]string{
		"state": state,
		"draft": strconv.FormatBool(draft),
	}
}

func checkStateBag(status, conclusion string) map[string]string {
	bag := map[string]string{"status": status}
	if conclusion != "" {
		bag["conclusion"] = conclusion
	}
	return bag
}

func contains(fields []string, name string) bool {
	for _, f := range fields {
		if f == name {
			return true
		}
	}
	return false
}
