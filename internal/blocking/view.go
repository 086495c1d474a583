package blocking

import (
	"strings"

	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

// Variant is how the trigger affordance is drawn.
type Variant string

const (
	VariantText   Variant = "text"
	VariantIcon   Variant = "icon"
	VariantButton Variant = "button"
)

func ParseVariant(s string) (Variant, bool) {
	switch Variant(s) {
	case VariantText, VariantIcon, VariantButton:
		return Variant(s), true
	case "":
		return VariantButton, true
	default:
		return "", false
	}
}

func (v Variant) orDefault() Variant {
	if v == "" {
		return VariantButton
	}
	return v
}

type Size string

const (
	SizeSmall  Size = "small"
	SizeMedium Size = "medium"
	SizeLarge  Size = "large"
)

func ParseSize(s string) (Size, bool) {
	switch Size(s) {
	case SizeSmall, SizeMedium, SizeLarge:
		return Size(s), true
	case "":
		return SizeMedium, true
	default:
		return "", false
	}
}

func (s Size) orDefault() Size {
	if s == "" {
		return SizeMedium
	}
	return s
}

const (
	actionBlock   = "block"
	actionUnblock = "unblock"

	iconBlock   = "user-x"
	iconUnblock = "user-check"
)

// Affordance is the trigger element.
type Affordance struct {
	Action    string `json:"action"`
	Label     string `json:"label"`
	Icon      string `json:"icon"`
	ShowLabel bool   `json:"show_label"`
	ShowIcon  bool   `json:"show_icon"`
	AriaLabel string `json:"aria_label"`
	Disabled  bool   `json:"disabled"`
}

// KindOption is one choice in the dialog.
type KindOption struct {
	Kind        models.BlockKind `json:"kind"`
	Label       string           `json:"label"`
	Description string           `json:"description"`
	Disabled    bool             `json:"disabled"`
}

// Dialog is the block-kind choice modal.
type Dialog struct {
	Title             string       `json:"title"`
	Options           []KindOption `json:"options"`
	ReasonPlaceholder string       `json:"reason_placeholder"`
	CancelLabel       string       `json:"cancel_label"`
	Disabled          bool         `json:"disabled"`
}

// View is everything a template needs to draw the control.
type View struct {
	Username   string           `json:"username"`
	State      string           `json:"state"`
	Blocked    bool             `json:"blocked"`
	Pending    bool             `json:"pending"`
	ActiveKind models.BlockKind `json:"active_kind,omitempty"`
	Trigger    Affordance       `json:"trigger"`
	Dialog     *Dialog          `json:"dialog,omitempty"`
	Alert      string           `json:"alert,omitempty"`
	Class      string           `json:"class"`
}

// View renders the current state.
func (c *Control) View() View {
	c.mu.Lock()
	state := c.state
	session := c.sessionLocked()
	c.mu.Unlock()
	return render(c.target, c.opts, state, session)
}

func render(target models.BlockTarget, opts Options, state State, session Session) View {
	v := View{
		Username:   target.Username,
		State:      state.String(),
		Blocked:    session.Status == StatusBlocked,
		Pending:    session.Pending,
		ActiveKind: session.ActiveKind,
		Alert:      session.Alert,
		Class:      classes(opts),
	}

	if v.Blocked {
		v.Trigger = Affordance{
			Action:    actionUnblock,
			Label:     "Unblock",
			Icon:      iconUnblock,
			AriaLabel: "Unblock " + target.Username,
		}
	} else {
		v.Trigger = Affordance{
			Action:    actionBlock,
			Label:     "Block",
			Icon:      iconBlock,
			AriaLabel: "Block " + target.Username,
		}
	}
	switch opts.Variant {
	case VariantText:
		v.Trigger.ShowLabel = true
	case VariantIcon:
		v.Trigger.ShowIcon = true
	default:
		v.Trigger.ShowLabel = true
		v.Trigger.ShowIcon = true
	}
	v.Trigger.Disabled = session.Pending

	if session.ModalOpen {
		d := &Dialog{
			Title:             "Block " + target.Username,
			ReasonPlaceholder: "Reason (optional)",
			CancelLabel:       "Cancel",
			Disabled:          session.Pending,
		}
		for _, k := range models.BlockKinds {
			d.Options = append(d.Options, KindOption{
				Kind:        k,
				Label:       k.Label(),
				Description: k.Description(),
				Disabled:    session.Pending,
			})
		}
		v.Dialog = d
	}
	return v
}

func classes(opts Options) string {
	parts := []string{
		"block-control",
		"block-control--" + string(opts.Size.orDefault()),
		"block-control--" + string(opts.Variant.orDefault()),
	}
	if extra := strings.TrimSpace(opts.Class); extra != "" {
		parts = append(parts, extra)
	}
	return strings.Join(parts, " ")
}
