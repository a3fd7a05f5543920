// Package transfer fetches single documents and handles data center
// relocations by rebinding the session and retrying, up to a fixed bound.
package transfer

import (
	"context"

	"github.com/italolelis/telegroup_downloader/internal/feed"
	"github.com/italolelis/telegroup_downloader/internal/logctx"
	"github.com/italolelis/telegroup_downloader/internal/telemetry"
)

// DefaultMaxRetries bounds relocation retries for a single item.
const DefaultMaxRetries = 5

// Transferer materializes a message's document into dir and returns the
// resulting local path. A document stored in another data center is reported
// as a *RelocatedError.
type Transferer interface {
	Download(ctx context.Context, msg feed.Message, dir string) (string, error)
}

// Outcome is the terminal result of Fetch.
type Outcome int

const (
	Success Outcome = iota
	ExhaustedRetries
	FatalError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case ExhaustedRetries:
		return "exhausted_retries"
	case FatalError:
		return "fatal_error"
	default:
		return "unknown"
	}
}

type Fetcher struct {
	transferer Transferer
	maxRetries int
	telemetry  *telemetry.Telemetry
}

// NewFetcher returns a Fetcher allowing maxRetries relocations per item.
// A non-positive maxRetries falls back to DefaultMaxRetries.
func NewFetcher(t Transferer, maxRetries int, tel *telemetry.Telemetry) *Fetcher {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}

	return &Fetcher{transferer: t, maxRetries: maxRetries, telemetry: tel}
}

// Fetch transfers msg's document into dir.
//
// A relocation failure counts one attempt; once the count exceeds the bound
// the item is ExhaustedRetries, otherwise the session is relocated and the
// transfer retried. The count is never reset between relocations of the same
// item. Any other failure, including a failed relocation, is FatalError.
// The returned error is non-nil for every outcome but Success.
func (f *Fetcher) Fetch(ctx context.Context, session *Session, msg feed.Message, dir string) (string, Outcome, error) {
	logger := logctx.LoggerFromContext(ctx)

	transfers := 0
	attempts := 0

	for {
		transfers++

		path, err := f.transferer.Download(ctx, msg, dir)
		if err == nil {
			return path, Success, nil
		}

		relocated, ok := AsRelocated(err)
		if !ok {
			return "", FatalError, &ItemError{MessageID: msg.ID, Attempts: transfers, Err: err}
		}

		attempts++
		if attempts > f.maxRetries {
			return "", ExhaustedRetries, &ItemError{MessageID: msg.ID, Attempts: transfers, Err: err}
		}

		logger.Info("file is in another data center, reconnecting",
			"dc", relocated.DC,
			"attempt", attempts,
			"max_retries", f.maxRetries,
		)

		if err := session.Relocate(ctx, relocated.DC); err != nil {
			return "", FatalError, &ItemError{MessageID: msg.ID, Attempts: transfers, Err: err}
		}

		f.telemetry.RecordRelocation(ctx, relocated.DC)
	}
}
