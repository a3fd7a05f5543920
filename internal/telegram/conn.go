package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/downloader"
	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/italolelis/telegroup_downloader/internal/downloader/progress"
	"github.com/italolelis/telegroup_downloader/internal/feed"
	"github.com/italolelis/telegroup_downloader/internal/logctx"
	"github.com/italolelis/telegroup_downloader/internal/transfer"
)

const (
	fileMigrate      = "FILE_MIGRATE"
	dcMaxConnections = 1
	filePerm         = 0644

	progressInterval = 8 * humanize.MiByte
)

// dialer opens an invoker bound to a data center.
type dialer interface {
	DC(ctx context.Context, id int, max int64) (telegram.CloseInvoker, error)
}

// Conn is the connection transfers go through. It starts on the home data
// center and is moved by transfer.Session when a file lives elsewhere.
type Conn struct {
	dialer     dialer
	home       *tg.Client
	homeDC     int
	api        *tg.Client
	invoker    telegram.CloseInvoker
	target     int
	downloader *downloader.Downloader
}

func NewConn(d dialer, home *tg.Client, homeDC int) *Conn {
	return &Conn{
		dialer:     d,
		home:       home,
		homeDC:     homeDC,
		api:        home,
		target:     homeDC,
		downloader: downloader.NewDownloader(),
	}
}

// Disconnect drops the current binding. Until the next Connect, transfers go
// through the home data center.
func (c *Conn) Disconnect(context.Context) error {
	c.api = c.home

	return c.closeInvoker()
}

// Reset binds back to the home data center.
func (c *Conn) Reset(context.Context) (int, error) {
	c.api = c.home
	c.target = c.homeDC

	// the home binding holds even when the old connection fails to close
	_ = c.closeInvoker()

	return c.homeDC, nil
}

func (c *Conn) closeInvoker() error {
	if c.invoker == nil {
		return nil
	}

	err := c.invoker.Close()
	c.invoker = nil

	if err != nil {
		return fmt.Errorf("failed to close data center connection: %w", err)
	}

	return nil
}

// Bind selects the data center the next Connect dials.
func (c *Conn) Bind(_ context.Context, dc int) error {
	if dc <= 0 {
		return fmt.Errorf("invalid data center %d", dc)
	}

	c.target = dc

	return nil
}

// Connect opens the bound data center. The home data center reuses the main
// connection.
func (c *Conn) Connect(ctx context.Context) error {
	if c.target == c.homeDC {
		c.api = c.home

		return nil
	}

	inv, err := c.dialer.DC(ctx, c.target, dcMaxConnections)
	if err != nil {
		return fmt.Errorf("failed to connect to data center %d: %w", c.target, err)
	}

	c.invoker = inv
	c.api = tg.NewClient(inv)

	return nil
}

// Close releases any data center connection other than the home one.
func (c *Conn) Close() error {
	return c.Disconnect(context.Background())
}

// Download streams the message's document into dir. A partially written file
// is removed on failure.
func (c *Conn) Download(ctx context.Context, msg feed.Message, dir string) (string, error) {
	logger := logctx.LoggerFromContext(ctx)

	if c.api == nil {
		return "", transfer.ErrSessionClosed
	}

	if msg.Document == nil {
		return "", fmt.Errorf("message %d carries no document", msg.ID)
	}

	loc, ok := msg.Document.Location.(tg.InputFileLocationClass)
	if !ok {
		return "", fmt.Errorf("message %d has no file location", msg.ID)
	}

	path, err := uniquePath(dir, msg.Document.FileName)
	if err != nil {
		return "", err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	w := progress.NewWriter(f, msg.Document.Size, progressInterval, func(written, total int64) {
		logger.Debug("download progress",
			"path", path,
			"written", humanize.IBytes(uint64(written)),
			"total", humanize.IBytes(uint64(total)),
		)
	})

	_, err = c.downloader.Download(c.api, loc).Stream(ctx, w)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close file: %w", cerr)
	}

	if err != nil {
		_ = os.Remove(path)

		return "", mapError(err)
	}

	logger.Debug("file written", "path", path, "size", humanize.IBytes(uint64(w.Written())))

	return path, nil
}

// mapError turns FILE_MIGRATE_N into a transfer.RelocatedError.
func mapError(err error) error {
	if rpcErr, ok := tgerr.AsType(err, fileMigrate); ok {
		return &transfer.RelocatedError{DC: rpcErr.Argument, Err: err}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return fmt.Errorf("failed to download document: %w", err)
}
