package telegram

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/gotd/td/tg"
	"github.com/gotd/td/tgerr"

	"github.com/italolelis/telegroup_downloader/internal/feed"
	"github.com/italolelis/telegroup_downloader/internal/logctx"
	"github.com/italolelis/telegroup_downloader/internal/telemetry"
)

const (
	historyBatchSize = 100
	maxFloodWaits    = 3
)

// ErrPeerNotFound is returned when a resolved username carries no usable peer.
var ErrPeerNotFound = errors.New("resolved peer not found")

// Source reads feeds through the raw API. Message history is returned newest
// first, paging backwards by message ID.
type Source struct {
	api       *tg.Client
	telemetry *telemetry.Telemetry
}

func NewSource(api *tg.Client, tel *telemetry.Telemetry) *Source {
	return &Source{api: api, telemetry: tel}
}

// Resolve looks a public username up and classifies the peer it points to.
func (s *Source) Resolve(ctx context.Context, username string) (feed.Entity, error) {
	var resolved *tg.ContactsResolvedPeer

	err := s.telemetry.InstrumentClientOperation(ctx, clientType, "resolve", func(ctx context.Context) error {
		var err error
		resolved, err = s.api.ContactsResolveUsername(ctx, &tg.ContactsResolveUsernameRequest{Username: username})

		return err
	})
	if err != nil {
		return feed.Entity{}, fmt.Errorf("failed to resolve username %s: %w", username, err)
	}

	return entityFromResolved(username, resolved)
}

// entityFromResolved picks the chat or user the resolved peer refers to.
func entityFromResolved(username string, resolved *tg.ContactsResolvedPeer) (feed.Entity, error) {
	switch p := resolved.Peer.(type) {
	case *tg.PeerChannel:
		for _, c := range resolved.Chats {
			if ch, ok := c.(*tg.Channel); ok && ch.ID == p.ChannelID {
				return channelEntity(username, ch), nil
			}
		}
	case *tg.PeerChat:
		for _, c := range resolved.Chats {
			if ch, ok := c.(*tg.Chat); ok && ch.ID == p.ChatID {
				return feed.Entity{
					Username: username,
					Title:    ch.Title,
					Kind:     feed.KindGroup,
					Peer:     &tg.InputPeerChat{ChatID: ch.ID},
				}, nil
			}
		}
	case *tg.PeerUser:
		for _, u := range resolved.Users {
			if user, ok := u.(*tg.User); ok && user.ID == p.UserID {
				kind := feed.KindUser
				if user.Bot {
					kind = feed.KindBot
				}

				return feed.Entity{
					Username: username,
					Title:    user.FirstName,
					Kind:     kind,
					Peer:     &tg.InputPeerUser{UserID: user.ID, AccessHash: user.AccessHash},
				}, nil
			}
		}
	}

	return feed.Entity{}, fmt.Errorf("%w: %s", ErrPeerNotFound, username)
}

func channelEntity(username string, ch *tg.Channel) feed.Entity {
	kind := feed.KindChannel
	if ch.Megagroup || ch.Gigagroup {
		kind = feed.KindGroup
	}

	return feed.Entity{
		Username: username,
		Title:    ch.Title,
		Kind:     kind,
		Peer:     &tg.InputPeerChannel{ChannelID: ch.ID, AccessHash: ch.AccessHash},
	}
}

// Messages pages the whole history of entity. Every call starts from the
// newest message again.
func (s *Source) Messages(ctx context.Context, entity feed.Entity) iter.Seq2[feed.Message, error] {
	return func(yield func(feed.Message, error) bool) {
		peer, ok := entity.Peer.(tg.InputPeerClass)
		if !ok {
			yield(feed.Message{}, fmt.Errorf("%w: %s", ErrPeerNotFound, entity.Username))

			return
		}

		offsetID := 0

		for {
			batch, last, err := s.history(ctx, peer, offsetID)
			if err != nil {
				yield(feed.Message{}, err)

				return
			}

			for _, m := range batch {
				if !yield(m, nil) {
					return
				}
			}

			if last == 0 {
				return
			}

			offsetID = last
		}
	}
}

// history fetches one page older than offsetID. last is the ID to continue
// from, or zero when the history is exhausted.
func (s *Source) history(ctx context.Context, peer tg.InputPeerClass, offsetID int) ([]feed.Message, int, error) {
	logger := logctx.LoggerFromContext(ctx)

	req := &tg.MessagesGetHistoryRequest{
		Peer:     peer,
		OffsetID: offsetID,
		Limit:    historyBatchSize,
	}

	for waits := 0; ; waits++ {
		var res tg.MessagesMessagesClass

		err := s.telemetry.InstrumentClientOperation(ctx, clientType, "get_history", func(ctx context.Context) error {
			var err error
			res, err = s.api.MessagesGetHistory(ctx, req)

			return err
		})

		if d, ok := tgerr.AsFloodWait(err); ok && waits < maxFloodWaits {
			logger.Warn("rate limited while reading history, waiting", "wait", d)

			if err := sleep(ctx, d); err != nil {
				return nil, 0, err
			}

			continue
		}

		if err != nil {
			return nil, 0, fmt.Errorf("failed to get history: %w", err)
		}

		return page(res)
	}
}

func page(res tg.MessagesMessagesClass) ([]feed.Message, int, error) {
	var (
		raw      []tg.MessageClass
		complete bool
	)

	switch r := res.(type) {
	case *tg.MessagesMessages:
		raw, complete = r.Messages, true
	case *tg.MessagesMessagesSlice:
		raw = r.Messages
	case *tg.MessagesChannelMessages:
		raw = r.Messages
	default:
		return nil, 0, fmt.Errorf("unexpected history response %T", res)
	}

	msgs := make([]feed.Message, 0, len(raw))
	last := 0

	for _, m := range raw {
		if m.GetID() > 0 {
			last = m.GetID()
		}

		if msg, ok := m.(*tg.Message); ok {
			msgs = append(msgs, toMessage(msg))
		}
	}

	if complete || len(raw) == 0 {
		last = 0
	}

	return msgs, last, nil
}

// toMessage keeps the text and, for document media, the document location.
func toMessage(m *tg.Message) feed.Message {
	msg := feed.Message{ID: int64(m.ID), Caption: m.Message}

	media, ok := m.Media.(*tg.MessageMediaDocument)
	if !ok {
		return msg
	}

	doc, ok := media.Document.(*tg.Document)
	if !ok {
		return msg
	}

	msg.Document = &feed.Document{
		FileName: documentName(doc),
		MIMEType: doc.MimeType,
		Size:     doc.Size,
		Location: &tg.InputDocumentFileLocation{
			ID:            doc.ID,
			AccessHash:    doc.AccessHash,
			FileReference: doc.FileReference,
		},
	}

	return msg
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
