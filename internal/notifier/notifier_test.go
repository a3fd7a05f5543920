package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordNotifier(t *testing.T) {
	var got map[string]string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := &DiscordNotifier{WebhookURL: srv.URL}
	require.NoError(t, n.Notify(context.Background(), "books: 2/3 downloaded"))

	assert.Equal(t, "books: 2/3 downloaded", got["content"])
}

func TestDiscordNotifier_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	err := (&DiscordNotifier{WebhookURL: srv.URL}).Notify(context.Background(), "x")
	assert.ErrorContains(t, err, "429")

	err = (&DiscordNotifier{}).Notify(context.Background(), "x")
	assert.Error(t, err)
}

func TestTelegramNotifier(t *testing.T) {
	var chatID, text string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/sendMessage"), r.URL.Path)

		chatID = r.FormValue("chat_id")
		text = r.FormValue("text")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":-100,"type":"group"}}}`))
	}))
	defer srv.Close()

	n, err := NewTelegramNotifier("123:abc", -100, bot.WithServerURL(srv.URL))
	require.NoError(t, err)

	require.NoError(t, n.Notify(context.Background(), "harvest finished"))

	assert.Equal(t, "-100", chatID)
	assert.Equal(t, "harvest finished", text)
}

type stubNotifier struct {
	err   error
	calls int
}

func (s *stubNotifier) Notify(context.Context, string) error {
	s.calls++

	return s.err
}

func TestMulti(t *testing.T) {
	boom := errors.New("boom")
	a, b := &stubNotifier{err: boom}, &stubNotifier{}

	err := Multi{a, b}.Notify(context.Background(), "x")

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)
	assert.NoError(t, Multi{}.Notify(context.Background(), "x"))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
