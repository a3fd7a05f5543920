package transfer

import (
	"context"

	"github.com/italolelis/telegroup_downloader/internal/feed"
	"github.com/italolelis/telegroup_downloader/internal/telemetry"
)

// InstrumentedTransferer wraps Transferer with telemetry.
type InstrumentedTransferer struct {
	transferer Transferer
	telemetry  *telemetry.Telemetry
}

// NewInstrumentedTransferer creates a new instrumented transferer.
func NewInstrumentedTransferer(t Transferer, tel *telemetry.Telemetry) *InstrumentedTransferer {
	return &InstrumentedTransferer{transferer: t, telemetry: tel}
}

// Download downloads a document with telemetry.
func (t *InstrumentedTransferer) Download(ctx context.Context, msg feed.Message, dir string) (string, error) {
	var path string

	err := t.telemetry.InstrumentTransfer(ctx, func(ctx context.Context) error {
		var err error
		path, err = t.transferer.Download(ctx, msg, dir)

		return err
	})

	return path, err
}

// InstrumentedLink wraps Link with telemetry.
type InstrumentedLink struct {
	link       Link
	telemetry  *telemetry.Telemetry
	clientType string
}

// NewInstrumentedLink creates a new instrumented link.
func NewInstrumentedLink(link Link, tel *telemetry.Telemetry, clientType string) *InstrumentedLink {
	return &InstrumentedLink{link: link, telemetry: tel, clientType: clientType}
}

func (l *InstrumentedLink) Disconnect(ctx context.Context) error {
	return l.telemetry.InstrumentClientOperation(ctx, l.clientType, "disconnect", l.link.Disconnect)
}

func (l *InstrumentedLink) Bind(ctx context.Context, dc int) error {
	return l.telemetry.InstrumentClientOperation(ctx, l.clientType, "bind", func(ctx context.Context) error {
		return l.link.Bind(ctx, dc)
	})
}

func (l *InstrumentedLink) Connect(ctx context.Context) error {
	return l.telemetry.InstrumentClientOperation(ctx, l.clientType, "connect", l.link.Connect)
}

func (l *InstrumentedLink) Reset(ctx context.Context) (int, error) {
	var dc int

	err := l.telemetry.InstrumentClientOperation(ctx, l.clientType, "reset", func(ctx context.Context) error {
		var err error
		dc, err = l.link.Reset(ctx)

		return err
	})

	return dc, err
}
