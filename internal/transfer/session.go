package transfer

import (
	"context"
	"fmt"
)

// State is the connection state of a Session.
type State int

const (
	StateConnected State = iota
	StateDisconnected
	StateBound
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateDisconnected:
		return "disconnected"
	case StateBound:
		return "bound"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Link is the remote connection a Session drives through a relocation.
// Reset returns the link to its home data center and reports which one that
// is; it is used when a relocation fails halfway.
type Link interface {
	Disconnect(ctx context.Context) error
	Bind(ctx context.Context, dc int) error
	Connect(ctx context.Context) error
	Reset(ctx context.Context) (int, error)
}

// Session is the single connection handle of a harvest run. It is owned by
// one goroutine and passed down explicitly; relocation mutates it in place.
type Session struct {
	link  Link
	state State
	dc    int
}

// NewSession wraps an already connected link whose current data center is dc.
func NewSession(link Link, dc int) *Session {
	return &Session{link: link, state: StateConnected, dc: dc}
}

// State returns the current connection state.
func (s *Session) State() State {
	return s.state
}

// DC returns the data center the session is bound to.
func (s *Session) DC() int {
	return s.dc
}

// Relocate moves the session to data center dc:
// Connected -> Disconnected -> Bound(dc) -> Connected.
// It returns only once the session is connected again or a stage failed.
func (s *Session) Relocate(ctx context.Context, dc int) error {
	if s == nil || s.link == nil {
		return ErrSessionClosed
	}

	if s.state == StateConnected {
		if err := s.link.Disconnect(ctx); err != nil {
			s.restore(ctx)

			return &RelocationError{DC: dc, Stage: "disconnect", Err: err}
		}

		s.state = StateDisconnected
	}

	if err := s.link.Bind(ctx, dc); err != nil {
		s.restore(ctx)

		return &RelocationError{DC: dc, Stage: "bind", Err: err}
	}

	s.state = StateBound
	s.dc = dc

	if err := s.link.Connect(ctx); err != nil {
		s.restore(ctx)

		return &RelocationError{DC: dc, Stage: "connect", Err: err}
	}

	s.state = StateConnected

	return nil
}

// restore moves the link back home after a failed relocation so the session
// stays usable for the next item. When that fails too the session keeps its
// intermediate state and the next Relocate starts from there.
func (s *Session) restore(ctx context.Context) {
	dc, err := s.link.Reset(ctx)
	if err != nil {
		return
	}

	s.state = StateConnected
	s.dc = dc
}
