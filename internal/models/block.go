package models

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// BlockKind is the strength of a block. Exactly one kind is active per target.
type BlockKind string

const (
	// BlockContent hides the target's works from the blocker's views.
	BlockContent BlockKind = "content"
	// BlockInteraction also stops the target contacting or commenting on the blocker.
	BlockInteraction BlockKind = "interaction"
	// BlockComplete is content and interaction together.
	BlockComplete BlockKind = "complete"
)

var ErrInvalidBlockKind = errors.New("invalid block kind")

// BlockKinds lists the kinds in the order the choice dialog offers them.
var BlockKinds = []BlockKind{BlockContent, BlockInteraction, BlockComplete}

// ParseBlockKind accepts only the exact wire strings.
func ParseBlockKind(s string) (BlockKind, error) {
	for _, k := range BlockKinds {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidBlockKind, s)
}

func (k BlockKind) Valid() bool {
	_, err := ParseBlockKind(string(k))
	return err == nil
}

func (k BlockKind) Label() string {
	switch k {
	case BlockContent:
		return "Hide their works"
	case BlockInteraction:
		return "Block interaction"
	case BlockComplete:
		return "Block completely"
	default:
		return string(k)
	}
}

func (k BlockKind) Description() string {
	switch k {
	case BlockContent:
		return "Their works will no longer appear in your searches, feeds or recommendations."
	case BlockInteraction:
		return "They will not be able to message you or comment on your works."
	case BlockComplete:
		return "Hide their works and prevent all interaction."
	default:
		return ""
	}
}

var (
	ErrMissingUsername = errors.New("block target requires a username")
	ErrInvalidTarget   = errors.New("block target is not addressable")
)

// BlockTarget identifies the user to block. UserID is preferred for
// addressing because usernames can change.
type BlockTarget struct {
	Username string `json:"username"`
	UserID   string `json:"user_id,omitempty"`
}

func (t BlockTarget) Validate() error {
	if strings.TrimSpace(t.Username) == "" {
		return ErrMissingUsername
	}
	// Escaping leaves dot segments intact and they would change the endpoint.
	for _, seg := range []string{t.UserID, t.Username} {
		if seg == "." || seg == ".." {
			return fmt.Errorf("%w: %q", ErrInvalidTarget, seg)
		}
	}
	return nil
}

// PathSegment is the user segment of /users/{segment}/block.
func (t BlockTarget) PathSegment() string {
	if t.UserID != "" {
		return url.PathEscape(t.UserID)
	}
	return url.PathEscape(t.Username)
}

// BlockStatus is what the remote service reports for a target.
type BlockStatus struct {
	Blocked bool      `json:"blocked"`
	Kind    BlockKind `json:"block_type,omitempty"`
}
