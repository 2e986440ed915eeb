package model

import "time"

// PRStateHistory is an append-only audit record of a pull request state
// transition. Rows are never mutated after creation; the initial creation of
// a pull request is recorded with a nil OldState.
type PRStateHistory struct {
	ID           int64
	PRID         int64
	OldState     *PRState // Nil for the initial creation record.
	NewState     PRState
	TriggerEvent string
	TriggeredBy  string
	Metadata     Metadata
	CreatedAt    time.Time
}
