package downloader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/italolelis/telegroup_downloader/internal/downloader/progress"
	"github.com/italolelis/telegroup_downloader/internal/feed"
	"github.com/italolelis/telegroup_downloader/internal/logctx"
	"github.com/italolelis/telegroup_downloader/internal/secret"
	"github.com/italolelis/telegroup_downloader/internal/storage"
	"github.com/italolelis/telegroup_downloader/internal/storage/ledger"
	"github.com/italolelis/telegroup_downloader/internal/telemetry"
	"github.com/italolelis/telegroup_downloader/internal/transfer"
)

const (
	dirPerm = 0755
)

// ErrNotGroupLike is returned for feeds that resolve to something other than a
// group or channel.
var ErrNotGroupLike = errors.New("feed is not a group or channel")

// AdmissionGuard decides whether another transfer may start.
type AdmissionGuard interface {
	HasCapacity(ctx context.Context) (bool, error)
}

type Downloader struct {
	downloadDir string
	source      feed.Source
	fetcher     *transfer.Fetcher
	guard       AdmissionGuard
	history     storage.HistoryRepository
	reporter    progress.Reporter
	telemetry   *telemetry.Telemetry
}

// NewDownloader wires the feed pipeline. history may be nil; a nil reporter
// falls back to logging.
func NewDownloader(
	downloadDir string,
	source feed.Source,
	fetcher *transfer.Fetcher,
	guard AdmissionGuard,
	history storage.HistoryRepository,
	reporter progress.Reporter,
	tel *telemetry.Telemetry,
) *Downloader {
	if reporter == nil {
		reporter = progress.NewLogReporter()
	}

	return &Downloader{
		downloadDir: downloadDir,
		source:      source,
		fetcher:     fetcher,
		guard:       guard,
		history:     history,
		reporter:    reporter,
		telemetry:   tel,
	}
}

// Run processes feeds in order. A feed that aborts is logged and the run moves
// on to the next one; only a cancelled context stops the batch early.
func (d *Downloader) Run(ctx context.Context, session *transfer.Session, feeds []string) []*FeedReport {
	ctx, logger := logctx.WithAttrs(ctx, "run_id", GenerateRunID())

	reports := make([]*FeedReport, 0, len(feeds))

	for _, name := range feeds {
		if err := ctx.Err(); err != nil {
			logger.Warn("run interrupted", "remaining_feeds", len(feeds)-len(reports), "err", err)

			break
		}

		report, err := d.ProcessFeed(ctx, session, name)
		if err != nil {
			logger.Error("failed to process feed", "feed", name, "err", err)
		}

		reports = append(reports, report)
	}

	logger.Info("all feeds processed", "feeds", len(reports))

	return reports
}

// ProcessFeed runs one pass over a feed: resolve it, prepare its directory and
// ledger, count pending documents, then download them one by one. The returned
// report is never nil; the error is set only when the feed was aborted.
func (d *Downloader) ProcessFeed(ctx context.Context, session *transfer.Session, name string) (*FeedReport, error) {
	ctx, logger := logctx.WithAttrs(ctx, "feed", name)

	report := &FeedReport{Feed: name, Status: FeedDone, StartedAt: time.Now()}

	logger.Info("processing feed")

	err := d.telemetry.InstrumentOperation(ctx, "process_feed", "downloader", func(ctx context.Context) error {
		return d.processFeed(ctx, session, name, report)
	})

	report.FinishedAt = time.Now()

	if err != nil {
		report.abort(err)
	}

	d.telemetry.RecordFeed(ctx, string(report.Status))

	logger.Info("feed processed",
		"status", report.Status,
		"total", report.Total,
		"downloaded", report.Downloaded,
		"skipped", report.Skipped(),
	)

	return report, err
}

func (d *Downloader) processFeed(ctx context.Context, session *transfer.Session, name string, report *FeedReport) error {
	logger := logctx.LoggerFromContext(ctx)

	entity, err := d.source.Resolve(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to resolve feed: %w", err)
	}

	if !entity.IsGroupLike() {
		return fmt.Errorf("%w: %s resolves to a %s", ErrNotGroupLike, name, entity.Kind)
	}

	dir := filepath.Join(d.downloadDir, name)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create feed directory: %w", err)
	}

	led, err := ledger.Load(dir)
	if err != nil {
		return fmt.Errorf("failed to load ledger: %w", err)
	}

	total, err := d.countPending(ctx, entity, led)
	if err != nil {
		return err
	}

	report.Total = total

	logger.Info("new files found", "total", total, "already_downloaded", led.Len())

	if total == 0 {
		logger.Info("no new files to download")

		return nil
	}

	d.reporter.Start(ctx, name, total)
	defer d.reporter.Finish(ctx)

	for msg, err := range d.source.Messages(ctx, entity) {
		if err != nil {
			return fmt.Errorf("failed to list messages: %w", err)
		}

		if !msg.HasDocument() || led.Contains(msg.Key()) {
			continue
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := d.processItem(ctx, session, dir, led, msg)
		if err != nil {
			return err
		}

		report.count(result.outcome)
		d.reporter.Advance(ctx, string(result.outcome))
		d.telemetry.RecordItem(ctx, string(result.outcome))
		d.recordHistory(ctx, name, msg, result)
	}

	return nil
}

// countPending counts document-bearing messages that are not in the ledger.
func (d *Downloader) countPending(ctx context.Context, entity feed.Entity, led *ledger.Ledger) (int, error) {
	total := 0

	for msg, err := range d.source.Messages(ctx, entity) {
		if err != nil {
			return 0, fmt.Errorf("failed to count messages: %w", err)
		}

		if msg.HasDocument() && !led.Contains(msg.Key()) {
			total++
		}
	}

	return total, nil
}

type itemResult struct {
	outcome Outcome
	path    string
	err     error
}

// processItem takes one pending message to a terminal outcome. Only a failed
// capacity query is returned as an error; it stops the whole feed.
func (d *Downloader) processItem(
	ctx context.Context,
	session *transfer.Session,
	dir string,
	led *ledger.Ledger,
	msg feed.Message,
) (itemResult, error) {
	ctx, logger := logctx.WithAttrs(ctx, "message_id", msg.ID)

	ok, err := d.guard.HasCapacity(ctx)
	if err != nil {
		return itemResult{}, fmt.Errorf("failed to check disk capacity: %w", err)
	}

	if !ok {
		logger.Info("insufficient disk space, skipping download")

		return itemResult{outcome: OutcomeSkippedNoSpace}, nil
	}

	path, fetched, err := d.fetcher.Fetch(ctx, session, msg, dir)

	switch fetched {
	case transfer.Success:
	case transfer.ExhaustedRetries:
		logger.Warn("failed to download file after max retries, skipping", "err", err)

		return itemResult{outcome: OutcomeSkippedExhausted, err: err}, nil
	default:
		logger.Error("failed to download file, skipping", "err", err)

		return itemResult{outcome: OutcomeSkippedFailed, err: err}, nil
	}

	pass, hasPass := secret.Extract(msg.Caption)

	finalPath, err := secret.Apply(path, pass, hasPass)
	if err != nil {
		logger.Error("failed to rename downloaded file", "path", path, "err", err)

		return itemResult{outcome: OutcomeSkippedFailed, path: path, err: err}, nil
	}

	if err := led.Record(msg.Key()); err != nil {
		logger.Error("failed to record download", "path", finalPath, "err", err)

		return itemResult{outcome: OutcomeSkippedFailed, path: finalPath, err: err}, nil
	}

	logger.Info("downloaded file", "path", finalPath, "renamed", hasPass)

	return itemResult{outcome: OutcomeDownloaded, path: finalPath}, nil
}

func (d *Downloader) recordHistory(ctx context.Context, name string, msg feed.Message, result itemResult) {
	if d.history == nil {
		return
	}

	rec := storage.OutcomeRecord{
		Feed:      name,
		MessageID: msg.ID,
		Outcome:   string(result.outcome),
		Path:      result.path,
	}

	if result.err != nil {
		rec.Error = result.err.Error()
	}

	if err := d.history.RecordOutcome(ctx, rec); err != nil {
		logctx.LoggerFromContext(ctx).Warn("failed to record outcome history", "message_id", msg.ID, "err", err)
	}
}
