// Package feed holds the entities and messages a harvest works on and the
// contract a message source has to satisfy.
package feed

import (
	"context"
	"iter"
	"strconv"
)

// Kind classifies a resolved entity.
type Kind int

const (
	KindUnknown Kind = iota
	KindUser
	KindBot
	KindGroup
	KindChannel
)

func (k Kind) String() string {
	switch k {
	case KindUser:
		return "user"
	case KindBot:
		return "bot"
	case KindGroup:
		return "group"
	case KindChannel:
		return "channel"
	default:
		return "unknown"
	}
}

// Entity is a resolved feed identifier.
type Entity struct {
	Username string
	Title    string
	Kind     Kind

	// Peer is owned by the source that resolved the entity.
	Peer any
}

// IsGroupLike reports whether the entity is a container of messages we can
// harvest from. Only groups and channels qualify.
func (e Entity) IsGroupLike() bool {
	return e.Kind == KindGroup || e.Kind == KindChannel
}

// Document is the downloadable payload of a message.
type Document struct {
	FileName string
	MIMEType string
	Size     int64

	// Location is owned by the source that produced the message.
	Location any
}

// Message is an immutable record read from a feed.
type Message struct {
	ID       int64
	Caption  string
	Document *Document
}

// HasDocument reports whether the message carries a downloadable document.
func (m Message) HasDocument() bool {
	return m.Document != nil
}

// Key is the identifier used by the download ledger.
func (m Message) Key() string {
	return strconv.FormatInt(m.ID, 10)
}

// Source resolves feeds and enumerates their messages.
//
// Messages must be restartable: every call yields the same finite sequence in
// the same order for an unchanged feed.
type Source interface {
	Resolve(ctx context.Context, username string) (Entity, error)
	Messages(ctx context.Context, entity Entity) iter.Seq2[Message, error]
}
