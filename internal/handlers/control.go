package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/HammerMeetNail/ficarchive-web/internal/blocking"
	"github.com/HammerMeetNail/ficarchive-web/internal/logging"
	"github.com/HammerMeetNail/ficarchive-web/internal/models"
)

const controlFragmentTemplate = "block_control.html"

// FragmentRenderer is satisfied by *template.Template.
type FragmentRenderer interface {
	ExecuteTemplate(w io.Writer, name string, data any) error
}

// ControlFragment is the data block_control.html renders.
type ControlFragment struct {
	ID   string
	View blocking.View
}

type ControlHandler struct {
	registry  *blocking.Registry
	fragments FragmentRenderer
}

func NewControlHandler(registry *blocking.Registry, fragments FragmentRenderer) *ControlHandler {
	return &ControlHandler{registry: registry, fragments: fragments}
}

type MountRequest struct {
	Username string `json:"username"`
	UserID   string `json:"user_id,omitempty"`
	Variant  string `json:"variant,omitempty"`
	Size     string `json:"size,omitempty"`
	Class    string `json:"class,omitempty"`
}

type SelectRequest struct {
	BlockType string `json:"block_type"`
	Reason    string `json:"reason,omitempty"`
}

// ControlResponse is returned by every control endpoint. Outcome carries the
// target's username when the action completed a block or unblock.
type ControlResponse struct {
	ID      string        `json:"id"`
	State   string        `json:"state"`
	View    blocking.View `json:"view"`
	HTML    string        `json:"html"`
	Outcome string        `json:"outcome,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// Mount creates a control for the requesting browser.
func (h *ControlHandler) Mount(w http.ResponseWriter, r *http.Request) {
	owner := GetOwnerFromContext(r.Context())
	if owner == "" {
		writeError(w, http.StatusBadRequest, "Missing browser identity")
		return
	}

	var req MountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	opts, msg := controlOptions(req.Variant, req.Size, req.Class)
	if msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	id, control, err := mountControl(h.registry, owner, models.BlockTarget{
		Username: strings.TrimSpace(req.Username),
		UserID:   strings.TrimSpace(req.UserID),
	}, opts)
	if errors.Is(err, models.ErrMissingUsername) {
		writeError(w, http.StatusBadRequest, "Username is required")
		return
	}
	if errors.Is(err, models.ErrInvalidTarget) {
		writeError(w, http.StatusBadRequest, "Invalid user")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("Mounting block control failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.respond(w, r, http.StatusCreated, id, control, "", nil)
}

func mountControl(registry *blocking.Registry, owner string, target models.BlockTarget, opts blocking.Options) (string, *blocking.Control, error) {
	opts.OnOutcome = func(username string) {
		logging.Info("Block status changed", map[string]interface{}{
			"target": username,
		})
	}
	return registry.Mount(owner, target, opts)
}

// controlOptions returns a client-facing message when a parameter is invalid.
func controlOptions(variant, size, class string) (blocking.Options, string) {
	v, ok := blocking.ParseVariant(variant)
	if !ok {
		return blocking.Options{}, "Invalid variant"
	}
	s, ok := blocking.ParseSize(size)
	if !ok {
		return blocking.Options{}, "Invalid size"
	}
	return blocking.Options{Variant: v, Size: s, Class: strings.TrimSpace(class)}, ""
}

func (h *ControlHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, control, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusOK, id, control, "", nil)
}

// Trigger opens the dialog, or unblocks when the target is already blocked.
func (h *ControlHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	id, control, ok := h.lookup(w, r)
	if !ok {
		return
	}
	unblocked, err := control.Trigger(r.Context(), GetCredentialFromContext(r.Context()))

	outcome := ""
	if unblocked {
		outcome = control.Target().Username
	}
	h.respond(w, r, http.StatusOK, id, control, outcome, err)
}

// OpensDialog reports whether a trigger request would only open the dialog.
// Such requests never reach the archive API.
func (h *ControlHandler) OpensDialog(r *http.Request) bool {
	control, err := h.registry.Get(GetOwnerFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		return true
	}
	return control.State() != blocking.Blocked
}

func (h *ControlHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, control, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.respond(w, r, http.StatusOK, id, control, "", control.Cancel())
}

// Select submits a block of the chosen kind. JSON and form bodies are accepted.
func (h *ControlHandler) Select(w http.ResponseWriter, r *http.Request) {
	id, control, ok := h.lookup(w, r)
	if !ok {
		return
	}

	req, err := decodeSelect(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	kind, err := models.ParseBlockKind(req.BlockType)
	if err != nil {
		h.respond(w, r, http.StatusOK, id, control, "", err)
		return
	}

	err = control.Select(r.Context(), GetCredentialFromContext(r.Context()), kind, req.Reason)
	outcome := ""
	if err == nil {
		outcome = control.Target().Username
	}
	h.respond(w, r, http.StatusOK, id, control, outcome, err)
}

func decodeSelect(r *http.Request) (SelectRequest, error) {
	var req SelectRequest
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseForm(); err != nil {
			return req, err
		}
		req.BlockType = r.PostFormValue("block_type")
		req.Reason = r.PostFormValue("reason")
		return req, nil
	default:
		err := json.NewDecoder(r.Body).Decode(&req)
		return req, err
	}
}

// Refresh reads the block record from the archive on explicit request.
func (h *ControlHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, control, ok := h.lookup(w, r)
	if !ok {
		return
	}
	err := control.Refresh(r.Context(), GetCredentialFromContext(r.Context()))
	h.respond(w, r, http.StatusOK, id, control, "", err)
}

func (h *ControlHandler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	id, control, ok := h.lookup(w, r)
	if !ok {
		return
	}
	control.DismissAlert()
	h.respond(w, r, http.StatusOK, id, control, "", nil)
}

func (h *ControlHandler) Unmount(w http.ResponseWriter, r *http.Request) {
	owner := GetOwnerFromContext(r.Context())
	if err := h.registry.Unmount(owner, r.PathValue("id")); err != nil {
		writeError(w, http.StatusNotFound, "Control not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ControlHandler) lookup(w http.ResponseWriter, r *http.Request) (string, *blocking.Control, bool) {
	id := r.PathValue("id")
	control, err := h.registry.Get(GetOwnerFromContext(r.Context()), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "Control not found")
		return "", nil, false
	}
	return id, control, true
}

// respond writes the control's current view. A non-nil actionErr picks the
// status code and fills Error.
func (h *ControlHandler) respond(w http.ResponseWriter, r *http.Request, status int, id string, control *blocking.Control, outcome string, actionErr error) {
	view := control.View()
	resp := ControlResponse{
		ID:      id,
		State:   view.State,
		View:    view,
		Outcome: outcome,
	}

	if actionErr != nil {
		status, resp.Error = controlErrorStatus(actionErr, view)
	}

	html, err := h.renderFragment(id, view)
	if err != nil {
		logging.FromContext(r.Context()).Error("Rendering block control failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	resp.HTML = html

	writeJSON(w, status, resp)
}

func controlErrorStatus(err error, view blocking.View) (int, string) {
	var failure *blocking.Failure
	switch {
	case errors.Is(err, blocking.ErrUnauthenticated):
		return http.StatusUnauthorized, view.Alert
	case errors.Is(err, blocking.ErrBusy):
		return http.StatusConflict, "A request is already in progress"
	case errors.Is(err, blocking.ErrInvalidTransition):
		return http.StatusConflict, "That action is not available right now"
	case errors.Is(err, models.ErrInvalidBlockKind):
		return http.StatusBadRequest, "Invalid block type"
	case errors.As(err, &failure):
		return http.StatusBadGateway, failure.Message
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

func (h *ControlHandler) renderFragment(id string, view blocking.View) (string, error) {
	if h.fragments == nil {
		return "", nil
	}
	var buf bytes.Buffer
	if err := h.fragments.ExecuteTemplate(&buf, controlFragmentTemplate, ControlFragment{ID: id, View: view}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
