package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/HammerMeetNail/ficarchive-web/internal/logging"
	"github.com/HammerMeetNail/ficarchive-web/internal/models"
	"github.com/HammerMeetNail/ficarchive-web/internal/services"
)

const sessionCookieName = "session_token"

// SessionHandler binds an archive API token to the browser so controls can
// act on the user's behalf.
type SessionHandler struct {
	sessions services.SessionServiceInterface
	secure   bool
	ttl      time.Duration
}

func NewSessionHandler(sessions services.SessionServiceInterface, secure bool, ttl time.Duration) *SessionHandler {
	return &SessionHandler{sessions: sessions, secure: secure, ttl: ttl}
}

type CreateSessionRequest struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

type SessionResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
	Message       string `json:"message,omitempty"`
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	// Replace any session this browser already had.
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		_ = h.sessions.Delete(r.Context(), cookie.Value)
	}

	username := strings.TrimSpace(req.Username)
	token, err := h.sessions.Create(r.Context(), models.Credential{Token: req.Token, Username: username})
	if errors.Is(err, services.ErrMissingAPIToken) {
		writeError(w, http.StatusBadRequest, "API token is required")
		return
	}
	if err != nil {
		logging.FromContext(r.Context()).Error("Creating session failed", map[string]interface{}{
			"error": err.Error(),
		})
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	h.setSessionCookie(w, token)
	writeJSON(w, http.StatusCreated, SessionResponse{Authenticated: true, Username: username})
}

func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	cred := GetCredentialFromContext(r.Context())
	if cred == nil {
		writeJSON(w, http.StatusOK, SessionResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, SessionResponse{Authenticated: true, Username: cred.Username})
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		if err := h.sessions.Delete(r.Context(), cookie.Value); err != nil {
			logging.FromContext(r.Context()).Warn("Deleting session failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}

	h.clearSessionCookie(w)
	writeJSON(w, http.StatusOK, SessionResponse{Message: "Logged out"})
}

func (h *SessionHandler) setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(h.ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *SessionHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Unix(0, 0),
	})
}
