package model

import (
	"strings"
	"time"
)

// checkStatusTransitions is the legal status transition table for check runs.
// A cancelled check may be restarted (re-queued); completed is terminal.
var checkStatusTransitions = map[CheckStatus][]CheckStatus{
	CheckStatusQueued:     {CheckStatusInProgress, CheckStatusCancelled},
	CheckStatusInProgress: {CheckStatusCompleted, CheckStatusCancelled},
	CheckStatusCompleted:  {},
	CheckStatusCancelled:  {CheckStatusQueued},
}

// failureCategories maps keywords in check names to failure categories.
// Order matters: the first matching category wins.
var failureCategories = []struct {
	category string
	keywords []string
}{
	{"lint", []string{"lint", "eslint", "golangci", "flake8", "rubocop"}},
	{"format", []string{"format", "fmt", "prettier", "style"}},
	{"test", []string{"test", "spec", "jest", "pytest", "coverage"}},
	{"build", []string{"build", "compile", "bundle"}},
	{"type", []string{"type", "typecheck", "mypy", "tsc"}},
	{"security", []string{"security", "audit", "snyk", "codeql", "trivy"}},
}

// errorSummaryPlaceholder is returned when a failed check carries no usable output.
const errorSummaryPlaceholder = "no error details available"

// CheckRun represents an individual CI check run. Identity is the ExternalID
// assigned by the source system, globally unique across repositories.
type CheckRun struct {
	ID            int64
	PRID          int64
	ExternalID    string
	CheckName     string
	Status        CheckStatus
	Conclusion    CheckConclusion // Set only when Status is completed.
	OutputText    string
	OutputSummary string
	DetailsURL    string
	Metadata      Metadata
	StartedAt     time.Time // Stamped on the first queued -> in_progress transition.
	CompletedAt   time.Time // Stamped on the first transition into completed.
}

// CanTransitionToStatus reports whether the check run may legally move to the
// given status. Self-transitions are never permitted.
func (c *CheckRun) CanTransitionToStatus(newStatus CheckStatus) bool {
	for _, allowed := range checkStatusTransitions[c.Status] {
		if allowed == newStatus {
			return true
		}
	}
	return false
}

// UpdateStatus transitions the check run to newStatus, auto-stamping StartedAt
// and CompletedAt as transition side effects. Returns an
// InvalidTransitionError when the transition is not in the allow-table.
func (c *CheckRun) UpdateStatus(newStatus CheckStatus, conclusion CheckConclusion, now time.Time) error {
	if !c.CanTransitionToStatus(newStatus) {
		return &InvalidTransitionError{
			Entity: "check_run",
			From:   string(c.Status),
			To:     string(newStatus),
		}
	}

	if c.Status == CheckStatusQueued && newStatus == CheckStatusInProgress && c.StartedAt.IsZero() {
		c.StartedAt = now
	}
	if newStatus == CheckStatusCompleted && c.CompletedAt.IsZero() {
		c.CompletedAt = now
	}

	c.Status = newStatus
	if newStatus == CheckStatusCompleted {
		c.Conclusion = conclusion
	}

	return nil
}

// IsFailed returns true for a completed check run that concluded in failure.
func (c *CheckRun) IsFailed() bool {
	return c.Status == CheckStatusCompleted && c.Conclusion == ConclusionFailure
}

// FailureCategory classifies a failed check run by keyword-matching its name
// against ordered categories. Returns the empty string when the check run is
// not a terminal failure, and "other" for failures matching no category.
func (c *CheckRun) FailureCategory() string {
	if !c.IsFailed() {
		return ""
	}

	name := strings.ToLower(c.CheckName)
	for _, fc := range failureCategories {
		for _, kw := range fc.keywords {
			if strings.Contains(name, kw) {
				return fc.category
			}
		}
	}

	return "other"
}

// ExtractErrorSummary scans the check run output for error-bearing lines and
// returns a compact summary. Lines containing "error:", "failed:", or
// "exception:" (case-insensitive) are collected; the first three are joined
// with " | " and truncated to 500 characters. Falls back to the output
// summary truncated to 200 characters, then to a fixed placeholder.
func (c *CheckRun) ExtractErrorSummary() string {
	var matches []string
	for _, line := range strings.Split(c.OutputText, "\n") {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "error:") ||
			strings.Contains(lower, "failed:") ||
			strings.Contains(lower, "exception:") {
			matches = append(matches, strings.TrimSpace(line))
			if len(matches) == 3 {
				break
			}
		}
	}

	if len(matches) > 0 {
		return truncate(strings.Join(matches, " | "), 500)
	}

	if c.OutputSummary != "" {
		return truncate(c.OutputSummary, 200)
	}

	return errorSummaryPlaceholder
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
