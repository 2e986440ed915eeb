package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/prsentry/prsentry/internal/domain/model"
	"github.com/prsentry/prsentry/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HistoryStore = (*HistoryRepo)(nil)

// HistoryRepo is the SQLite implementation of the read-side HistoryStore
// port. Rows are written through the sync unit of work and never mutated.
type HistoryRepo struct {
	db *DB
}

// NewHistoryRepo creates a new HistoryRepo backed by the given DB.
func NewHistoryRepo(db *DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// ListByPR returns the full transition history for a pull request, oldest first.
func (r *HistoryRepo) ListByPR(ctx context.Context, prID int64) ([]model.PRStateHistory, error) {
	const query = `
		SELECT id, pr_id, old_state, new_state, trigger_event, triggered_by, metadata, created_at
		FROM pr_state_history
		WHERE pr_id = ?
		ORDER BY id
	`

	rows, err := r.db.Reader.QueryContext(ctx, query, prID)
	if err != nil {
		return nil, fmt.Errorf("query state history for PR %d: %w", prID, err)
	}
	defer rows.Close()

	var records []model.PRStateHistory
	for rows.Next() {
		rec, err := scanHistory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan state history: %w", err)
		}
		records = append(records, *rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate state history: %w", err)
	}

	return records, nil
}

func scanHistory(s scanner) (*model.PRStateHistory, error) {
	var rec model.PRStateHistory
	var oldState sql.NullString
	var newState string
	var metadataJSON string
	var createdAt string

	err := s.Scan(
		&rec.ID, &rec.PRID, &oldState, &newState,
		&rec.TriggerEvent, &rec.TriggeredBy, &metadataJSON, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	if oldState.Valid {
		state := model.PRState(oldState.String)
		rec.OldState = &state
	}
	rec.NewState = model.PRState(newState)

	rec.Metadata, err = model.ParseMetadata(metadataJSON)
	if err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}

	rec.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}

	return &rec, nil
}
