package sqlite

import (
	"context"
	"time"

	"github.com/italolelis/telegroup_downloader/internal/storage"
	"github.com/jmoiron/sqlx"
)

type HistoryRepository struct {
	db *sqlx.DB
}

func NewHistoryRepository(db *sqlx.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// RecordOutcome inserts rec. A zero RecordedAt is stamped with the current time.
func (r *HistoryRepository) RecordOutcome(ctx context.Context, rec storage.OutcomeRecord) error {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = time.Now().UTC()
	}

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO outcomes (feed, message_id, outcome, path, error, recorded_at)
		VALUES (:feed, :message_id, :outcome, :path, :error, :recorded_at)
	`, rec)

	return err
}

// GetOutcomes returns up to limit outcomes of feed, most recent first.
// An empty feed matches every feed.
func (r *HistoryRepository) GetOutcomes(ctx context.Context, feed string, limit int) ([]storage.OutcomeRecord, error) {
	var records []storage.OutcomeRecord

	err := r.db.SelectContext(ctx, &records, `
		SELECT id, feed, message_id, outcome, path, error, recorded_at
		FROM outcomes
		WHERE (? = '' OR feed = ?)
		ORDER BY recorded_at DESC, id DESC
		LIMIT ?
	`, feed, feed, limit)
	if err != nil {
		return nil, err
	}

	return records, nil
}
