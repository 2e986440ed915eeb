package driven

import (
	"context"

	"github.com/prsentry/prsentry/internal/domain/model"
)

// HistoryStore defines the read-side driven port for the append-only pull
// request state history audit log.
type HistoryStore interface {
	ListByPR(ctx context.Context, prID int64) ([]model.PRStateHistory, error)
}
