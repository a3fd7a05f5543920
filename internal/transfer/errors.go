package transfer

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned when a relocation is requested on a session
// that was never connected or has been closed for good.
var ErrSessionClosed = errors.New("session closed")

// RelocatedError reports that the requested file lives in another data center.
// The transfer can only succeed after the session is rebound to DC.
type RelocatedError struct {
	DC  int   // Data center holding the file
	Err error // Underlying error, if any
}

func (e *RelocatedError) Error() string {
	return fmt.Sprintf("file relocated to data center %d", e.DC)
}

func (e *RelocatedError) Unwrap() error {
	return e.Err
}

// AsRelocated extracts a RelocatedError from err's chain.
func AsRelocated(err error) (*RelocatedError, bool) {
	var relocated *RelocatedError
	if errors.As(err, &relocated) {
		return relocated, true
	}

	return nil, false
}

// RelocationError reports a failure while moving the session to another data
// center.
type RelocationError struct {
	DC    int    // Target data center
	Stage string // "disconnect", "bind" or "connect"
	Err   error  // Underlying error, if any
}

func (e *RelocationError) Error() string {
	return fmt.Sprintf("relocation to data center %d failed during %s: %v", e.DC, e.Stage, e.Err)
}

func (e *RelocationError) Unwrap() error {
	return e.Err
}

// ItemError describes why a single item could not be fetched. It never aborts
// the enclosing feed.
type ItemError struct {
	MessageID int64 // Message the item belongs to
	Attempts  int   // Transfer attempts made
	Err       error // Underlying error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("message %d failed after %d attempt(s): %v", e.MessageID, e.Attempts, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}
