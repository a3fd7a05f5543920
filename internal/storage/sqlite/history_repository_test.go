package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/italolelis/telegroup_downloader/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepo(t *testing.T) *InstrumentedHistoryRepository {
	t.Helper()

	db, err := InitDB(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewInstrumentedHistoryRepository(db, nil)
}

func TestInitDB_MigrationsAreIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	first, err := InitDB(path)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := InitDB(path)
	require.NoError(t, err)
	require.NoError(t, second.Close())
}

func TestHistoryRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, repo.RecordOutcome(ctx, storage.OutcomeRecord{
		Feed: "books", MessageID: 1, Outcome: "downloaded", Path: "/dl/books/a.pdf", RecordedAt: base,
	}))
	require.NoError(t, repo.RecordOutcome(ctx, storage.OutcomeRecord{
		Feed: "books", MessageID: 2, Outcome: "skipped_no_space", RecordedAt: base.Add(time.Minute),
	}))
	require.NoError(t, repo.RecordOutcome(ctx, storage.OutcomeRecord{
		Feed: "music", MessageID: 3, Outcome: "skipped_failed", Error: "boom", RecordedAt: base.Add(2 * time.Minute),
	}))

	books, err := repo.GetOutcomes(ctx, "books", 10)
	require.NoError(t, err)
	require.Len(t, books, 2)

	assert.Equal(t, int64(2), books[0].MessageID)
	assert.Equal(t, "skipped_no_space", books[0].Outcome)
	assert.Equal(t, int64(1), books[1].MessageID)
	assert.Equal(t, "/dl/books/a.pdf", books[1].Path)
	assert.True(t, base.Equal(books[1].RecordedAt))

	all, err := repo.GetOutcomes(ctx, "", 2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "music", all[0].Feed)
	assert.Equal(t, "boom", all[0].Error)
}

func TestHistoryRepository_StampsRecordedAt(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepo(t)

	require.NoError(t, repo.RecordOutcome(ctx, storage.OutcomeRecord{Feed: "f", MessageID: 9, Outcome: "downloaded"}))

	got, err := repo.GetOutcomes(ctx, "f", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.False(t, got[0].RecordedAt.IsZero())
}
