package telegram

import (
	"testing"

	"github.com/gotd/td/tg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/italolelis/telegroup_downloader/internal/feed"
)

func TestEntityFromResolved(t *testing.T) {
	tests := []struct {
		name     string
		resolved *tg.ContactsResolvedPeer
		wantKind feed.Kind
		wantPeer tg.InputPeerClass
	}{
		{
			name: "megagroup",
			resolved: &tg.ContactsResolvedPeer{
				Peer:  &tg.PeerChannel{ChannelID: 10},
				Chats: []tg.ChatClass{&tg.Channel{ID: 10, AccessHash: 99, Megagroup: true, Title: "Books"}},
			},
			wantKind: feed.KindGroup,
			wantPeer: &tg.InputPeerChannel{ChannelID: 10, AccessHash: 99},
		},
		{
			name: "broadcast channel",
			resolved: &tg.ContactsResolvedPeer{
				Peer:  &tg.PeerChannel{ChannelID: 11},
				Chats: []tg.ChatClass{&tg.Channel{ID: 11, AccessHash: 7, Broadcast: true}},
			},
			wantKind: feed.KindChannel,
			wantPeer: &tg.InputPeerChannel{ChannelID: 11, AccessHash: 7},
		},
		{
			name: "basic group",
			resolved: &tg.ContactsResolvedPeer{
				Peer:  &tg.PeerChat{ChatID: 12},
				Chats: []tg.ChatClass{&tg.Chat{ID: 12}},
			},
			wantKind: feed.KindGroup,
			wantPeer: &tg.InputPeerChat{ChatID: 12},
		},
		{
			name: "user",
			resolved: &tg.ContactsResolvedPeer{
				Peer:  &tg.PeerUser{UserID: 13},
				Users: []tg.UserClass{&tg.User{ID: 13, AccessHash: 5}},
			},
			wantKind: feed.KindUser,
			wantPeer: &tg.InputPeerUser{UserID: 13, AccessHash: 5},
		},
		{
			name: "bot",
			resolved: &tg.ContactsResolvedPeer{
				Peer:  &tg.PeerUser{UserID: 14},
				Users: []tg.UserClass{&tg.User{ID: 14, Bot: true}},
			},
			wantKind: feed.KindBot,
			wantPeer: &tg.InputPeerUser{UserID: 14},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := entityFromResolved("name", tt.resolved)
			require.NoError(t, err)

			assert.Equal(t, "name", e.Username)
			assert.Equal(t, tt.wantKind, e.Kind)
			assert.Equal(t, tt.wantPeer, e.Peer)
		})
	}
}

func TestEntityFromResolved_MissingPeer(t *testing.T) {
	_, err := entityFromResolved("ghost", &tg.ContactsResolvedPeer{
		Peer:  &tg.PeerChannel{ChannelID: 1},
		Chats: []tg.ChatClass{&tg.Channel{ID: 2}},
	})

	assert.ErrorIs(t, err, ErrPeerNotFound)
}

func TestToMessage(t *testing.T) {
	withDoc := &tg.Message{
		ID:      42,
		Message: "password: hunter2",
		Media: &tg.MessageMediaDocument{
			Document: &tg.Document{
				ID:            7,
				AccessHash:    8,
				FileReference: []byte{1, 2},
				MimeType:      "application/pdf",
				Size:          2048,
				Attributes:    []tg.DocumentAttributeClass{&tg.DocumentAttributeFilename{FileName: "book.pdf"}},
			},
		},
	}

	msg := toMessage(withDoc)
	require.True(t, msg.HasDocument())
	assert.Equal(t, int64(42), msg.ID)
	assert.Equal(t, "password: hunter2", msg.Caption)
	assert.Equal(t, "book.pdf", msg.Document.FileName)
	assert.Equal(t, int64(2048), msg.Document.Size)
	assert.Equal(t, &tg.InputDocumentFileLocation{ID: 7, AccessHash: 8, FileReference: []byte{1, 2}}, msg.Document.Location)

	assert.False(t, toMessage(&tg.Message{ID: 1, Message: "hello"}).HasDocument())
	assert.False(t, toMessage(&tg.Message{ID: 2, Media: &tg.MessageMediaPhoto{}}).HasDocument())
	assert.False(t, toMessage(&tg.Message{ID: 3, Media: &tg.MessageMediaDocument{Document: &tg.DocumentEmpty{ID: 1}}}).HasDocument())
}

func TestPage(t *testing.T) {
	raw := []tg.MessageClass{
		&tg.Message{ID: 30},
		&tg.MessageService{ID: 29},
		&tg.Message{ID: 28},
	}

	tests := []struct {
		name     string
		res      tg.MessagesMessagesClass
		wantLast int
	}{
		{name: "complete", res: &tg.MessagesMessages{Messages: raw}, wantLast: 0},
		{name: "slice", res: &tg.MessagesMessagesSlice{Messages: raw}, wantLast: 28},
		{name: "channel", res: &tg.MessagesChannelMessages{Messages: raw}, wantLast: 28},
		{name: "empty", res: &tg.MessagesChannelMessages{}, wantLast: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, last, err := page(tt.res)
			require.NoError(t, err)

			assert.Equal(t, tt.wantLast, last)

			if tt.name != "empty" {
				require.Len(t, msgs, 2)
				assert.Equal(t, int64(30), msgs[0].ID)
				assert.Equal(t, int64(28), msgs[1].ID)
			}
		})
	}

	_, _, err := page(&tg.MessagesMessagesNotModified{})
	assert.Error(t, err)
}
