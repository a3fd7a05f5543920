package downloader

import (
	"fmt"
	"strings"
	"time"
)

// Outcome is the terminal result of one feed item.
type Outcome string

const (
	OutcomeDownloaded       Outcome = "downloaded"
	OutcomeSkippedNoSpace   Outcome = "skipped_no_space"
	OutcomeSkippedExhausted Outcome = "skipped_exhausted"
	OutcomeSkippedFailed    Outcome = "skipped_failed"
)

// FeedStatus is the terminal state of a feed.
type FeedStatus string

const (
	FeedDone    FeedStatus = "done"
	FeedAborted FeedStatus = "aborted"
)

// FeedReport summarizes one pass over a feed.
type FeedReport struct {
	Feed       string     `json:"feed"`
	Status     FeedStatus `json:"status"`
	Total      int        `json:"total"`
	Downloaded int        `json:"downloaded"`
	NoSpace    int        `json:"skipped_no_space"`
	Exhausted  int        `json:"skipped_exhausted"`
	Failed     int        `json:"skipped_failed"`
	Error      string     `json:"error,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt time.Time  `json:"finished_at"`

	Err error `json:"-"`
}

// Processed is the number of items that reached a terminal outcome.
func (r *FeedReport) Processed() int {
	return r.Downloaded + r.Skipped()
}

// Skipped is the number of items that were not materialized.
func (r *FeedReport) Skipped() int {
	return r.NoSpace + r.Exhausted + r.Failed
}

func (r *FeedReport) count(o Outcome) {
	switch o {
	case OutcomeDownloaded:
		r.Downloaded++
	case OutcomeSkippedNoSpace:
		r.NoSpace++
	case OutcomeSkippedExhausted:
		r.Exhausted++
	case OutcomeSkippedFailed:
		r.Failed++
	}
}

func (r *FeedReport) abort(err error) {
	r.Status = FeedAborted
	r.Err = err
	r.Error = err.Error()
}

// Summary renders reports as a short human-readable text.
func Summary(reports []*FeedReport) string {
	var b strings.Builder

	for _, r := range reports {
		if r.Status == FeedAborted {
			fmt.Fprintf(&b, "❌ %s: aborted (%s)\n", r.Feed, r.Error)

			continue
		}

		fmt.Fprintf(&b, "✅ %s: %d/%d downloaded", r.Feed, r.Downloaded, r.Total)

		if r.Skipped() > 0 {
			fmt.Fprintf(&b, ", %d skipped (no space %d, retries exhausted %d, failed %d)",
				r.Skipped(), r.NoSpace, r.Exhausted, r.Failed)
		}

		b.WriteString("\n")
	}

	return strings.TrimRight(b.String(), "\n")
}
