package model_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prsentry/prsentry/internal/domain/model"
)

func TestCheckRunCanTransitionToStatus(t *testing.T) {
	allStatuses := []model.CheckStatus{
		model.CheckStatusQueued, model.CheckStatusInProgress,
		model.CheckStatusCompleted, model.CheckStatusCancelled,
	}

	allowed := map[model.CheckStatus][]model.CheckStatus{
		model.CheckStatusQueued:     {model.CheckStatusInProgress, model.CheckStatusCancelled},
		model.CheckStatusInProgress: {model.CheckStatusCompleted, model.CheckStatusCancelled},
		model.CheckStatusCompleted:  {},
		model.CheckStatusCancelled:  {model.CheckStatusQueued},
	}

	for _, from := range allStatuses {
		for _, to := range allStatuses {
			run := model.CheckRun{Status: from}

			var want bool
			for _, a := range allowed[from] {
				if a == to {
					want = true
				}
			}

			assert.Equal(t, want, run.CanTransitionToStatus(to), "transition %s -> %s", from, to)
		}
	}
}

func TestCheckRunUpdateStatusStampsTimestamps(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	run := model.CheckRun{Status: model.CheckStatusQueued}

	require.NoError(t, run.UpdateStatus(model.CheckStatusInProgress, "", now))
	assert.Equal(t, now, run.StartedAt)
	assert.True(t, run.CompletedAt.IsZero())

	later := now.Add(5 * time.Minute)
	require.NoError(t, run.UpdateStatus(model.CheckStatusCompleted, model.ConclusionFailure, later))
	assert.Equal(t, later, run.CompletedAt)
	assert.Equal(t, model.ConclusionFailure, run.Conclusion)

	// StartedAt is stamped once, on the first queued -> in_progress transition.
	assert.Equal(t, now, run.StartedAt)
}

func TestCheckRunUpdateStatusRestartAfterCancel(t *testing.T) {
	now := time.Now().UTC()
	run := model.CheckRun{Status: model.CheckStatusQueued}

	require.NoError(t, run.UpdateStatus(model.CheckStatusCancelled, "", now))
	require.NoError(t, run.UpdateStatus(model.CheckStatusQueued, "", now))
	assert.Equal(t, model.CheckStatusQueued, run.Status)
}

func TestCheckRunUpdateStatusInvalid(t *testing.T) {
	now := time.Now().UTC()
	run := model.CheckRun{Status: model.CheckStatusCompleted}

	err := run.UpdateStatus(model.CheckStatusQueued, "", now)

	var invalidErr *model.InvalidTransitionError
	require.True(t, errors.As(err, &invalidErr))
	assert.Equal(t, "check_run", invalidErr.Entity)
}

func TestCheckRunFailureCategory(t *testing.T) {
	tests := []struct {
		name     string
		status   model.CheckStatus
		concl    model.CheckConclusion
		expected string
	}{
		{"eslint-ci", model.CheckStatusCompleted, model.ConclusionFailure, "lint"},
		{"prettier-check", model.CheckStatusCompleted, model.ConclusionFailure, "format"},
		{"unit-tests", model.CheckStatusCompleted, model.ConclusionFailure, "test"},
		{"docker-build", model.CheckStatusCompleted, model.ConclusionFailure, "build"},
		{"mypy", model.CheckStatusCompleted, model.ConclusionFailure, "type"},
		{"codeql-analysis", model.CheckStatusCompleted, model.ConclusionFailure, "security"},
		{"mystery-job", model.CheckStatusCompleted, model.ConclusionFailure, "other"},
		{"unit-tests", model.CheckStatusCompleted, model.ConclusionSuccess, ""},
		{"unit-tests", model.CheckStatusInProgress, "", ""},
	}

	for _, tt := range tests {
		run := model.CheckRun{CheckName: tt.name, Status: tt.status, Conclusion: tt.concl}
		assert.Equal(t, tt.expected, run.FailureCategory(), "check %q %s/%s", tt.name, tt.status, tt.concl)
	}
}

func TestCheckRunFailureCategoryFirstMatchWins(t *testing.T) {
	// "lint-tests" matches both lint and test keywords; lint is ordered first.
	run := model.CheckRun{
		CheckName:  "lint-tests",
		Status:     model.CheckStatusCompleted,
		Conclusion: model.ConclusionFailure,
	}
	assert.Equal(t, "lint", run.FailureCategory())
}

func TestExtractErrorSummary(t *testing.T) {
	run := model.CheckRun{
		OutputText: "INFO: starting\nERROR: module not found\nFAILED: step 2",
	}

	assert.Equal(t, "ERROR: module not found | FAILED: step 2", run.ExtractErrorSummary())
}

func TestExtractErrorSummaryLimitsToThreeMatches(t *testing.T) {
	run := model.CheckRun{
		OutputText: "error: one\nerror: two\nerror: three\nerror: four",
	}

	assert.Equal(t, "error: one | error: two | error: three", run.ExtractErrorSummary())
}

func TestExtractErrorSummaryTruncates(t *testing.T) {
	run := model.CheckRun{
		OutputText: "error: " + strings.Repeat("x", 600),
	}

	assert.Len(t, run.ExtractErrorSummary(), 500)
}

func TestExtractErrorSummaryFallsBackToSummary(t *testing.T) {
	run := model.CheckRun{
		OutputText:    "all lines are fine",
		OutputSummary: strings.Repeat("s", 300),
	}

	assert.Equal(t, strings.Repeat("s", 200), run.ExtractErrorSummary())
}

func TestExtractErrorSummaryPlaceholder(t *testing.T) {
	run := model.CheckRun{}

	assert.Equal(t, "no error details available", run.ExtractErrorSummary())
}
