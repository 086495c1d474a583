package blocking

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthenticated means no usable API credential was supplied. No
	// request is sent and the control stays in its pre-action state.
	ErrUnauthenticated = errors.New("not authenticated")
	// ErrBusy is returned while a block or unblock request is in flight.
	ErrBusy = errors.New("a request is already in progress")
	// ErrInvalidTransition is returned for actions the current state does not offer.
	ErrInvalidTransition = errors.New("action not available in current state")
)

const (
	unauthenticatedMessage = "You need to be logged in to block or unblock users."
	genericBlockMessage    = "Failed to block user. Please try again."
	genericUnblockMessage  = "Failed to unblock user. Please try again."
	genericRefreshMessage  = "Could not load block status. Please try again."
)

// Op names the remote operation a Failure belongs to.
type Op string

const (
	OpBlock   Op = "block"
	OpUnblock Op = "unblock"
	OpRefresh Op = "refresh"
)

func (op Op) genericMessage() string {
	switch op {
	case OpBlock:
		return genericBlockMessage
	case OpUnblock:
		return genericUnblockMessage
	default:
		return genericRefreshMessage
	}
}

type FailureKind int

const (
	// RequestFailed is a non-2xx response from the archive API.
	RequestFailed FailureKind = iota
	// TransportFailed is a network-level failure; the user sees the same
	// message as RequestFailed.
	TransportFailed
)

func (k FailureKind) String() string {
	if k == TransportFailed {
		return "transport_failed"
	}
	return "request_failed"
}

// Failure is a failed remote call. Message is the text shown to the user.
type Failure struct {
	Op      Op
	Kind    FailureKind
	Status  int
	Message string
	Err     error
}

func (f *Failure) Error() string {
	if f.Status != 0 {
		return fmt.Sprintf("%s %s (%d): %s", f.Op, f.Kind, f.Status, f.Message)
	}
	return fmt.Sprintf("%s %s: %s", f.Op, f.Kind, f.Message)
}

func (f *Failure) Unwrap() error {
	return f.Err
}
