// Package diskguard decides whether there is enough free space on the
// download volume to start another transfer.
package diskguard

import (
	"context"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/italolelis/telegroup_downloader/internal/logctx"
	"github.com/italolelis/telegroup_downloader/internal/telemetry"
)

// DefaultMinFree is the free space required when no threshold is configured.
const DefaultMinFree = 100 * humanize.MiByte

// FreeBytesFunc reports the bytes available to an unprivileged user on the
// volume backing path.
type FreeBytesFunc func(path string) (uint64, error)

type Guard struct {
	root      string
	minFree   uint64
	freeBytes FreeBytesFunc
	telemetry *telemetry.Telemetry
}

// NewGuard returns a guard for the volume backing root. A zero minFree falls
// back to DefaultMinFree.
func NewGuard(root string, minFree uint64, tel *telemetry.Telemetry) *Guard {
	if minFree == 0 {
		minFree = DefaultMinFree
	}

	return &Guard{
		root:      root,
		minFree:   minFree,
		freeBytes: freeBytes,
		telemetry: tel,
	}
}

// WithFreeBytesFunc replaces the filesystem query, mostly for tests.
func (g *Guard) WithFreeBytesFunc(fn FreeBytesFunc) *Guard {
	g.freeBytes = fn

	return g
}

// MinFree returns the configured threshold in bytes.
func (g *Guard) MinFree() uint64 {
	return g.minFree
}

// HasCapacity reports whether at least MinFree bytes are available. A failed
// query is returned as an error and never counts as capacity.
func (g *Guard) HasCapacity(ctx context.Context) (bool, error) {
	free, err := g.freeBytes(g.root)
	if err != nil {
		return false, fmt.Errorf("failed to query free space on %s: %w", g.root, err)
	}

	g.telemetry.RecordDiskFree(ctx, free)

	if free < g.minFree {
		logctx.LoggerFromContext(ctx).Info("insufficient disk space",
			"free", humanize.IBytes(free),
			"required", humanize.IBytes(g.minFree),
		)

		return false, nil
	}

	return true, nil
}
