// Package progress reports how far a harvest has come, per feed in items and
// per transfer in bytes.
package progress

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/lipgloss"
	"github.com/italolelis/telegroup_downloader/internal/logctx"
)

// Reporter follows the items of one feed. Advance is called once for every
// item that reaches a terminal outcome, so the count always reaches total.
type Reporter interface {
	Start(ctx context.Context, feed string, total int)
	Advance(ctx context.Context, outcome string)
	Finish(ctx context.Context)
}

// LogReporter reports progress through the context logger.
type LogReporter struct {
	feed  string
	total int
	done  int
}

func NewLogReporter() *LogReporter {
	return &LogReporter{}
}

func (r *LogReporter) Start(ctx context.Context, feed string, total int) {
	r.feed, r.total, r.done = feed, total, 0

	logctx.LoggerFromContext(ctx).Info("downloading files", "feed", feed, "total", total)
}

func (r *LogReporter) Advance(ctx context.Context, outcome string) {
	r.done++

	logctx.LoggerFromContext(ctx).Debug("feed progress",
		"feed", r.feed,
		"done", r.done,
		"total", r.total,
		"outcome", outcome,
	)
}

func (r *LogReporter) Finish(ctx context.Context) {
	logctx.LoggerFromContext(ctx).Info("feed progress finished", "feed", r.feed, "done", r.done, "total", r.total)
}

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4ECDC4"))
	countStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C757D"))
)

// ConsoleReporter draws a single progress bar line per feed.
type ConsoleReporter struct {
	mu    sync.Mutex
	out   io.Writer
	bar   progress.Model
	total int
	done  int
}

func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{
		out: out,
		bar: progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
	}
}

func (r *ConsoleReporter) Start(_ context.Context, feed string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.total, r.done = total, 0

	fmt.Fprintln(r.out, titleStyle.Render("Downloading files from "+feed))
	r.draw()
}

func (r *ConsoleReporter) Advance(context.Context, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.done++
	r.draw()
}

func (r *ConsoleReporter) Finish(context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintln(r.out)
}

func (r *ConsoleReporter) draw() {
	percent := 0.0
	if r.total > 0 {
		percent = float64(r.done) / float64(r.total)
	}

	fmt.Fprintf(r.out, "\r%s %s", r.bar.ViewAs(percent), countStyle.Render(fmt.Sprintf("%d/%d file", r.done, r.total)))
}
