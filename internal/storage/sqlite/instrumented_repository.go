package sqlite

import (
	"context"

	"github.com/italolelis/telegroup_downloader/internal/storage"
	"github.com/italolelis/telegroup_downloader/internal/telemetry"
	"github.com/jmoiron/sqlx"
)

// InstrumentedHistoryRepository wraps HistoryRepository with telemetry.
type InstrumentedHistoryRepository struct {
	repo      *HistoryRepository
	telemetry *telemetry.Telemetry
}

// NewInstrumentedHistoryRepository creates a new instrumented history repository.
func NewInstrumentedHistoryRepository(db *sqlx.DB, tel *telemetry.Telemetry) *InstrumentedHistoryRepository {
	return &InstrumentedHistoryRepository{
		repo:      NewHistoryRepository(db),
		telemetry: tel,
	}
}

// RecordOutcome records an item outcome with telemetry.
func (r *InstrumentedHistoryRepository) RecordOutcome(ctx context.Context, rec storage.OutcomeRecord) error {
	return r.telemetry.InstrumentDBOperation(ctx, "record_outcome", func(ctx context.Context) error {
		return r.repo.RecordOutcome(ctx, rec)
	})
}

// GetOutcomes retrieves outcomes with telemetry.
func (r *InstrumentedHistoryRepository) GetOutcomes(ctx context.Context, feed string, limit int) ([]storage.OutcomeRecord, error) {
	var result []storage.OutcomeRecord

	err := r.telemetry.InstrumentDBOperation(ctx, "get_outcomes", func(ctx context.Context) error {
		var err error
		result, err = r.repo.GetOutcomes(ctx, feed, limit)

		return err
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
