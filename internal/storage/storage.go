package storage

import (
	"context"
	"time"
)

// OutcomeRecord is the terminal outcome of one feed item in one run.
type OutcomeRecord struct {
	ID         int64     `db:"id"`
	Feed       string    `db:"feed"`
	MessageID  int64     `db:"message_id"`
	Outcome    string    `db:"outcome"`
	Path       string    `db:"path"`
	Error      string    `db:"error"`
	RecordedAt time.Time `db:"recorded_at"`
}

// HistoryRepository keeps an audit trail of item outcomes. It complements the
// per-feed ledger and is never consulted to decide whether to download.
type HistoryRepository interface {
	RecordOutcome(ctx context.Context, rec OutcomeRecord) error
	GetOutcomes(ctx context.Context, feed string, limit int) ([]OutcomeRecord, error)
}
