// Package telegram adapts an MTProto user session to the feed and transfer
// contracts of the harvester.
package telegram

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"

	"github.com/italolelis/telegroup_downloader/internal/logctx"
	"github.com/italolelis/telegroup_downloader/internal/telemetry"
)

const clientType = "telegram"

// Credentials identify the application and the user account.
type Credentials struct {
	APIID       int
	APIHash     string
	Phone       string
	Password    string
	SessionPath string
}

// Client owns the MTProto connection. The session is persisted to disk so a
// login code is only requested on the first run.
type Client struct {
	client    *telegram.Client
	creds     Credentials
	prompt    io.Reader
	out       io.Writer
	telemetry *telemetry.Telemetry
}

// NewClient creates a client. The login code, when needed, is read from
// prompt after a hint is written to out.
func NewClient(creds Credentials, prompt io.Reader, out io.Writer, tel *telemetry.Telemetry) *Client {
	client := telegram.NewClient(creds.APIID, creds.APIHash, telegram.Options{
		SessionStorage: &session.FileStorage{Path: creds.SessionPath},
	})

	return &Client{
		client:    client,
		creds:     creds,
		prompt:    prompt,
		out:       out,
		telemetry: tel,
	}
}

// Run connects, signs in if necessary and calls fn. The connection is closed
// when fn returns.
func (c *Client) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	return c.client.Run(ctx, func(ctx context.Context) error {
		logger := logctx.LoggerFromContext(ctx)

		err := c.telemetry.InstrumentClientOperation(ctx, clientType, "authenticate", func(ctx context.Context) error {
			return c.client.Auth().IfNecessary(ctx, c.authFlow())
		})
		if err != nil {
			return fmt.Errorf("failed to authenticate: %w", err)
		}

		logger.Info("connected to telegram", "dc", c.HomeDC())

		return fn(ctx)
	})
}

func (c *Client) authFlow() auth.Flow {
	return auth.NewFlow(
		auth.Constant(c.creds.Phone, c.creds.Password, auth.CodeAuthenticatorFunc(c.readCode)),
		auth.SendCodeOptions{},
	)
}

func (c *Client) readCode(ctx context.Context, _ *tg.AuthSentCode) (string, error) {
	fmt.Fprintf(c.out, "Enter the login code sent to %s: ", c.creds.Phone)

	line, err := bufio.NewReader(c.prompt).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read login code: %w", err)
	}

	return strings.TrimSpace(line), ctx.Err()
}

// HomeDC is the data center the account is registered in.
func (c *Client) HomeDC() int {
	return c.client.Config().ThisDC
}

// API returns the raw API bound to the home data center.
func (c *Client) API() *tg.Client {
	return c.client.API()
}

// Source returns a feed source backed by this client.
func (c *Client) Source() *Source {
	return NewSource(c.API(), c.telemetry)
}

// Conn returns the transfer connection, bound to the home data center.
func (c *Client) Conn() *Conn {
	return NewConn(c.client, c.API(), c.HomeDC())
}
