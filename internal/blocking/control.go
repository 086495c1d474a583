// Package blocking implements the user-blocking control: a per-mount state
// machine that opens a choice dialog, submits block or unblock requests to
// the archive API and reports the outcome.
package blocking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/HammerMeetNail/ficarchive-web/internal/blockapi"
	"github.com/HammerMeetNail/ficarchive-web/internal/logging"
	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

// State is a position in the control's lifecycle.
//
//	Idle -> ChoosingKind -> Submitting -> Blocked -> Unsubmitting -> Idle
//
// Failed submissions fall back to ChoosingKind (block) or Blocked (unblock).
type State int

const (
	Idle State = iota
	ChoosingKind
	Submitting
	Blocked
	Unsubmitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case ChoosingKind:
		return "choosing_kind"
	case Submitting:
		return "submitting"
	case Blocked:
		return "blocked"
	case Unsubmitting:
		return "unsubmitting"
	default:
		return "unknown"
	}
}

func (s State) pending() bool {
	return s == Submitting || s == Unsubmitting
}

// Status is the coarse block status of a session.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusBlocked Status = "blocked"
)

// Session is a point-in-time copy of the control's local state.
type Session struct {
	Status     Status
	ModalOpen  bool
	Pending    bool
	ActiveKind models.BlockKind
	Alert      string
}

// API is the subset of the archive client the control needs.
type API interface {
	Block(ctx context.Context, token string, target models.BlockTarget, kind models.BlockKind, reason string) error
	Unblock(ctx context.Context, token string, target models.BlockTarget) error
	Status(ctx context.Context, token string, target models.BlockTarget) (models.BlockStatus, error)
}

// Options configure one mounted control.
type Options struct {
	Size    Size
	Variant Variant
	Class   string

	// DefaultReason is sent when the user supplies none. Empty omits the field.
	DefaultReason string

	// OnOutcome fires once per successful block or unblock with the target's username.
	OnOutcome func(username string)

	Now func() time.Time
}

// Control is one mounted blocking control. Methods are safe for concurrent
// use; a second action while a request is in flight gets ErrBusy.
type Control struct {
	api    API
	target models.BlockTarget
	opts   Options

	mu         sync.Mutex
	state      State
	refreshing bool
	activeKind models.BlockKind
	alert      string
}

// New mounts a control in the Idle state. Block status is not fetched;
// call Refresh explicitly to sync with the archive.
func New(api API, target models.BlockTarget, opts Options) (*Control, error) {
	if api == nil {
		return nil, errors.New("blocking: nil API")
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	opts.Size = opts.Size.orDefault()
	opts.Variant = opts.Variant.orDefault()
	return &Control{
		api:    api,
		target: target,
		opts:   opts,
		state:  Idle,
	}, nil
}

// Target returns the user this control blocks.
func (c *Control) Target() models.BlockTarget {
	return c.target
}

// State returns the current lifecycle position.
func (c *Control) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Session returns a snapshot of the local state. Pending is true while any
// archive request, including a status refresh, is in flight.
func (c *Control) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionLocked()
}

func (c *Control) sessionLocked() Session {
	s := Session{
		Status:     StatusIdle,
		ModalOpen:  c.state == ChoosingKind || c.state == Submitting,
		Pending:    c.busyLocked(),
		ActiveKind: c.activeKind,
		Alert:      c.alert,
	}
	if c.state == Blocked || c.state == Unsubmitting {
		s.Status = StatusBlocked
	}
	return s
}

func (c *Control) busyLocked() bool {
	return c.refreshing || c.state.pending()
}

// Trigger handles the always-visible affordance: it opens the choice dialog
// when not blocked and unblocks immediately when blocked. unblocked reports
// whether an unblock request completed successfully.
func (c *Control) Trigger(ctx context.Context, cred *models.Credential) (unblocked bool, err error) {
	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		return false, ErrBusy
	}
	switch c.state {
	case Idle:
		c.state = ChoosingKind
		c.alert = ""
		c.mu.Unlock()
		return false, nil
	case ChoosingKind:
		c.mu.Unlock()
		return false, nil
	case Blocked:
		c.mu.Unlock()
		if err := c.unblock(ctx, cred); err != nil {
			return false, err
		}
		return true, nil
	default:
		c.mu.Unlock()
		return false, ErrBusy
	}
}

// Cancel closes the dialog without blocking.
func (c *Control) Cancel() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshing {
		return ErrBusy
	}
	switch c.state {
	case ChoosingKind:
		c.state = Idle
		c.alert = ""
		return nil
	case Submitting, Unsubmitting:
		return ErrBusy
	default:
		return ErrInvalidTransition
	}
}

// Select submits a block of the chosen kind. Exactly one request is sent;
// on failure the dialog stays open with an alert so the user can retry.
func (c *Control) Select(ctx context.Context, cred *models.Credential, kind models.BlockKind, reason string) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidBlockKind, kind)
	}

	c.mu.Lock()
	if c.refreshing {
		c.mu.Unlock()
		return ErrBusy
	}
	switch c.state {
	case ChoosingKind:
	case Submitting, Unsubmitting:
		c.mu.Unlock()
		return ErrBusy
	default:
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	token, ok := usableToken(cred, c.opts.Now())
	if !ok {
		c.alert = unauthenticatedMessage
		c.mu.Unlock()
		return ErrUnauthenticated
	}
	c.state = Submitting
	c.alert = ""
	c.mu.Unlock()

	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = c.opts.DefaultReason
	}
	// Once sent, a request runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	err := c.api.Block(ctx, token, c.target, kind, reason)

	c.mu.Lock()
	if err != nil {
		failure := c.failure(ctx, OpBlock, err)
		c.state = ChoosingKind
		c.alert = failure.Message
		c.mu.Unlock()
		return failure
	}
	c.state = Blocked
	c.activeKind = kind
	c.mu.Unlock()

	c.fireOutcome()
	return nil
}

func (c *Control) unblock(ctx context.Context, cred *models.Credential) error {
	c.mu.Lock()
	if c.state != Blocked || c.refreshing {
		c.mu.Unlock()
		return ErrBusy
	}
	token, ok := usableToken(cred, c.opts.Now())
	if !ok {
		c.alert = unauthenticatedMessage
		c.mu.Unlock()
		return ErrUnauthenticated
	}
	c.state = Unsubmitting
	c.alert = ""
	c.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	err := c.api.Unblock(ctx, token, c.target)

	c.mu.Lock()
	if err != nil {
		failure := c.failure(ctx, OpUnblock, err)
		c.state = Blocked
		c.alert = failure.Message
		c.mu.Unlock()
		return failure
	}
	c.state = Idle
	c.activeKind = ""
	c.mu.Unlock()

	c.fireOutcome()
	return nil
}

// Refresh reads the block record from the archive and adopts it. It is only
// available while the dialog is closed and nothing is in flight, and it does
// not fire OnOutcome. The control counts as pending until the read returns.
func (c *Control) Refresh(ctx context.Context, cred *models.Credential) error {
	c.mu.Lock()
	if c.busyLocked() {
		c.mu.Unlock()
		return ErrBusy
	}
	if c.state != Idle && c.state != Blocked {
		c.mu.Unlock()
		return ErrInvalidTransition
	}
	token, ok := usableToken(cred, c.opts.Now())
	if !ok {
		c.alert = unauthenticatedMessage
		c.mu.Unlock()
		return ErrUnauthenticated
	}
	c.refreshing = true
	c.alert = ""
	c.mu.Unlock()

	status, err := c.api.Status(context.WithoutCancel(ctx), token, c.target)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshing = false
	if err != nil {
		failure := c.failure(ctx, OpRefresh, err)
		c.alert = failure.Message
		return failure
	}
	if status.Blocked {
		c.state = Blocked
		c.activeKind = status.Kind
	} else {
		c.state = Idle
		c.activeKind = ""
	}
	return nil
}

// DismissAlert clears the user-facing message.
func (c *Control) DismissAlert() {
	c.mu.Lock()
	c.alert = ""
	c.mu.Unlock()
}

func (c *Control) fireOutcome() {
	if c.opts.OnOutcome != nil {
		c.opts.OnOutcome(c.target.Username)
	}
}

// failure classifies err from the API client. Callers hold c.mu.
func (c *Control) failure(ctx context.Context, op Op, err error) *Failure {
	f := &Failure{Op: op, Kind: RequestFailed, Message: op.genericMessage(), Err: err}

	var statusErr *blockapi.StatusError
	switch {
	case errors.As(err, &statusErr):
		f.Status = statusErr.Code
		if statusErr.Message != "" {
			f.Message = statusErr.Message
		}
		logging.FromContext(ctx).Warn("Block API request failed", map[string]interface{}{
			"op":     string(op),
			"status": statusErr.Code,
			"target": c.target.Username,
		})
	case errors.Is(err, blockapi.ErrTransport):
		f.Kind = TransportFailed
		logging.FromContext(ctx).Error("Block API transport failure", map[string]interface{}{
			"op":     string(op),
			"target": c.target.Username,
			"error":  err.Error(),
		})
	default:
		logging.FromContext(ctx).Error("Block API call failed", map[string]interface{}{
			"op":     string(op),
			"target": c.target.Username,
			"error":  err.Error(),
		})
	}
	return f
}
