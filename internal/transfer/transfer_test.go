package transfer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/italolelis/telegroup_downloader/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedTransferer returns the queued errors in order, then succeeds.
type scriptedTransferer struct {
	errs  []error
	calls int
}

func (s *scriptedTransferer) Download(_ context.Context, msg feed.Message, dir string) (string, error) {
	s.calls++

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]

		return "", err
	}

	return fmt.Sprintf("%s/%d.bin", dir, msg.ID), nil
}

// alwaysRelocated fails every call with a relocation to dc.
type alwaysRelocated struct {
	dc    int
	calls int
}

func (a *alwaysRelocated) Download(context.Context, feed.Message, string) (string, error) {
	a.calls++

	return "", &RelocatedError{DC: a.dc}
}

type recordingLink struct {
	calls      []string
	home       int
	bindErr    error
	connectErr error
	resetErr   error
}

func (l *recordingLink) Reset(context.Context) (int, error) {
	l.calls = append(l.calls, "reset")

	return l.home, l.resetErr
}

func (l *recordingLink) Disconnect(context.Context) error {
	l.calls = append(l.calls, "disconnect")

	return nil
}

func (l *recordingLink) Bind(_ context.Context, dc int) error {
	l.calls = append(l.calls, fmt.Sprintf("bind:%d", dc))

	return l.bindErr
}

func (l *recordingLink) Connect(context.Context) error {
	l.calls = append(l.calls, "connect")

	return l.connectErr
}

var doc = feed.Message{ID: 11, Document: &feed.Document{FileName: "a.pdf"}}

func TestFetch_SuccessFirstTry(t *testing.T) {
	tr := &scriptedTransferer{}
	link := &recordingLink{}

	path, outcome, err := NewFetcher(tr, 5, nil).Fetch(context.Background(), NewSession(link, 2), doc, "/dl")

	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
	assert.Equal(t, "/dl/11.bin", path)
	assert.Equal(t, 1, tr.calls)
	assert.Empty(t, link.calls)
}

func TestFetch_RelocatesThenSucceeds(t *testing.T) {
	tr := &scriptedTransferer{errs: []error{
		&RelocatedError{DC: 4},
		&RelocatedError{DC: 5},
	}}
	link := &recordingLink{}
	session := NewSession(link, 2)

	path, outcome, err := NewFetcher(tr, 5, nil).Fetch(context.Background(), session, doc, "/dl")

	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
	assert.Equal(t, "/dl/11.bin", path)
	assert.Equal(t, 3, tr.calls)
	assert.Equal(t, []string{
		"disconnect", "bind:4", "connect",
		"disconnect", "bind:5", "connect",
	}, link.calls)
	assert.Equal(t, 5, session.DC())
	assert.Equal(t, StateConnected, session.State())
}

func TestFetch_RetryBound(t *testing.T) {
	for _, maxRetries := range []int{1, 3, 5} {
		t.Run(fmt.Sprintf("max_%d", maxRetries), func(t *testing.T) {
			tr := &alwaysRelocated{dc: 3}
			link := &recordingLink{}

			_, outcome, err := NewFetcher(tr, maxRetries, nil).Fetch(context.Background(), NewSession(link, 1), doc, "/dl")

			assert.Equal(t, ExhaustedRetries, outcome)

			var itemErr *ItemError
			require.ErrorAs(t, err, &itemErr)
			assert.Equal(t, maxRetries+1, itemErr.Attempts)

			_, relocated := AsRelocated(err)
			assert.True(t, relocated)

			relocations := 0
			for _, c := range link.calls {
				if c == "bind:3" {
					relocations++
				}
			}

			assert.Equal(t, maxRetries, relocations)
			assert.Equal(t, maxRetries+1, tr.calls)
		})
	}
}

func TestFetch_DefaultRetryBound(t *testing.T) {
	tr := &alwaysRelocated{dc: 2}

	_, outcome, _ := NewFetcher(tr, 0, nil).Fetch(context.Background(), NewSession(&recordingLink{}, 1), doc, "/dl")

	assert.Equal(t, ExhaustedRetries, outcome)
	assert.Equal(t, DefaultMaxRetries+1, tr.calls)
}

func TestFetch_NonRelocationErrorIsFatal(t *testing.T) {
	denied := errors.New("CHANNEL_PRIVATE")
	tr := &scriptedTransferer{errs: []error{denied}}
	link := &recordingLink{}

	_, outcome, err := NewFetcher(tr, 5, nil).Fetch(context.Background(), NewSession(link, 1), doc, "/dl")

	assert.Equal(t, FatalError, outcome)
	assert.ErrorIs(t, err, denied)
	assert.Equal(t, 1, tr.calls)
	assert.Empty(t, link.calls)
}

func TestFetch_FailedRelocationIsFatal(t *testing.T) {
	connectErr := errors.New("dial timeout")
	tr := &alwaysRelocated{dc: 4}
	link := &recordingLink{connectErr: connectErr}

	_, outcome, err := NewFetcher(tr, 5, nil).Fetch(context.Background(), NewSession(link, 1), doc, "/dl")

	assert.Equal(t, FatalError, outcome)
	assert.ErrorIs(t, err, connectErr)

	var relocErr *RelocationError
	require.ErrorAs(t, err, &relocErr)
	assert.Equal(t, "connect", relocErr.Stage)
	assert.Equal(t, 1, tr.calls)
}

func TestSession_RelocateFromBoundSkipsDisconnect(t *testing.T) {
	link := &recordingLink{connectErr: errors.New("refused"), resetErr: errors.New("home unreachable")}
	s := NewSession(link, 1)

	require.Error(t, s.Relocate(context.Background(), 3))
	assert.Equal(t, StateBound, s.State())

	link.connectErr = nil
	link.calls = nil

	require.NoError(t, s.Relocate(context.Background(), 4))
	assert.Equal(t, []string{"bind:4", "connect"}, link.calls)
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, 4, s.DC())
}

func TestSession_BindFailure(t *testing.T) {
	link := &recordingLink{home: 1, bindErr: errors.New("unknown dc")}
	s := NewSession(link, 1)

	err := s.Relocate(context.Background(), 99)

	var relocErr *RelocationError
	require.ErrorAs(t, err, &relocErr)
	assert.Equal(t, "bind", relocErr.Stage)
	assert.Equal(t, []string{"disconnect", "bind:99", "reset"}, link.calls)
	assert.Equal(t, StateConnected, s.State())
	assert.Equal(t, 1, s.DC())
}

func TestSession_BindAndResetFailure(t *testing.T) {
	link := &recordingLink{bindErr: errors.New("unknown dc"), resetErr: errors.New("offline")}
	s := NewSession(link, 1)

	require.Error(t, s.Relocate(context.Background(), 99))
	assert.Equal(t, StateDisconnected, s.State())
	assert.Equal(t, 1, s.DC())
}

func TestFetch_NextItemAfterFailedRelocation(t *testing.T) {
	link := &recordingLink{home: 2, connectErr: errors.New("dial timeout")}
	session := NewSession(link, 2)
	fetcher := NewFetcher(&scriptedTransferer{errs: []error{&RelocatedError{DC: 4}}}, 5, nil)

	_, outcome, err := fetcher.Fetch(context.Background(), session, doc, "/dl")
	require.Error(t, err)
	assert.Equal(t, FatalError, outcome)
	assert.Equal(t, StateConnected, session.State())
	assert.Equal(t, 2, session.DC())

	next := feed.Message{ID: 12, Document: &feed.Document{FileName: "b.pdf"}}

	path, outcome, err := fetcher.Fetch(context.Background(), session, next, "/dl")
	require.NoError(t, err)
	assert.Equal(t, Success, outcome)
	assert.Equal(t, "/dl/12.bin", path)
}

func TestSession_NilIsClosed(t *testing.T) {
	var s *Session

	assert.ErrorIs(t, s.Relocate(context.Background(), 1), ErrSessionClosed)
}

func TestInstrumentedWrappersDelegate(t *testing.T) {
	tr := NewInstrumentedTransferer(&scriptedTransferer{}, nil)

	path, err := tr.Download(context.Background(), doc, "/x")
	require.NoError(t, err)
	assert.Equal(t, "/x/11.bin", path)

	inner := &recordingLink{}
	link := NewInstrumentedLink(inner, nil, "telegram")

	require.NoError(t, NewSession(link, 1).Relocate(context.Background(), 2))
	assert.Equal(t, []string{"disconnect", "bind:2", "connect"}, inner.calls)
}

func TestInstrumentedLink_ResetDelegates(t *testing.T) {
	inner := &recordingLink{home: 2}
	link := NewInstrumentedLink(inner, nil, "telegram")

	dc, err := link.Reset(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, dc)
	assert.Equal(t, []string{"reset"}, inner.calls)
}
