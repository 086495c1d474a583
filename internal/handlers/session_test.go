package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/HammerMeetNail/ficarchive-web/internal/models"
	"github.com/HammerMeetNail/ficarchive-web/internal/services"
	"github.com/HammerMeetNail/ficarchive-web/internal/testutil"
)

func TestSessionHandler_Create(t *testing.T) {
	var got models.Credential
	var deleted string
	svc := &mockSessionService{
		CreateFunc: func(ctx context.Context, cred models.Credential) (string, error) {
			got = cred
			return "browser-session", nil
		},
		DeleteFunc: func(ctx context.Context, token string) error {
			deleted = token
			return nil
		},
	}
	h := NewSessionHandler(svc, true, time.Hour)

	req := testutil.NewJSONRequest(t, http.MethodPost, "/api/session", CreateSessionRequest{Token: "api-token", Username: " quill "})
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "old-session"})
	rr := httptest.NewRecorder()
	h.Create(rr, req)

	testutil.AssertStatusCode(t, rr, http.StatusCreated)
	if got.Token != "api-token" || got.Username != "quill" {
		t.Fatalf("unexpected credential %+v", got)
	}
	if deleted != "old-session" {
		t.Fatalf("expected previous session to be replaced, deleted %q", deleted)
	}

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("expected one cookie, got %d", len(cookies))
	}
	c := cookies[0]
	if c.Value != "browser-session" || !c.HttpOnly || !c.Secure || c.MaxAge != 3600 {
		t.Fatalf("unexpected cookie %+v", c)
	}

	resp := testutil.DecodeJSON[SessionResponse](t, rr)
	if !resp.Authenticated || resp.Username != "quill" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSessionHandler_Create_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		err     error
		status  int
		message string
	}{
		{"bad json", `{`, nil, http.StatusBadRequest, "Invalid request body"},
		{"missing token", `{"token":""}`, services.ErrMissingAPIToken, http.StatusBadRequest, "API token is required"},
		{"store down", `{"token":"t"}`, errors.New("redis and postgres down"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockSessionService{
				CreateFunc: func(ctx context.Context, cred models.Credential) (string, error) {
					return "", tt.err
				},
			}
			rr := httptest.NewRecorder()
			NewSessionHandler(svc, false, time.Hour).Create(rr, httptest.NewRequest(http.MethodPost, "/api/session", strings.NewReader(tt.body)))
			assertErrorResponse(t, rr, tt.status, tt.message)
		})
	}
}

func TestSessionHandler_Current(t *testing.T) {
	h := NewSessionHandler(&mockSessionService{}, false, time.Hour)

	rr := httptest.NewRecorder()
	h.Current(rr, httptest.NewRequest(http.MethodGet, "/api/session", nil))
	var resp SessionResponse
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if resp.Authenticated {
		t.Fatal("expected anonymous session")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req = req.WithContext(SetCredentialInContext(req.Context(), &models.Credential{Token: "t", Username: "quill"}))
	rr = httptest.NewRecorder()
	h.Current(rr, req)
	_ = json.Unmarshal(rr.Body.Bytes(), &resp)
	if !resp.Authenticated || resp.Username != "quill" {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestSessionHandler_Delete(t *testing.T) {
	var deleted string
	svc := &mockSessionService{
		DeleteFunc: func(ctx context.Context, token string) error {
			deleted = token
			return errors.New("db down")
		},
	}
	h := NewSessionHandler(svc, false, time.Hour)

	req := httptest.NewRequest(http.MethodDelete, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "browser-session"})
	rr := httptest.NewRecorder()
	h.Delete(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("logout should succeed even if the store fails, got %d", rr.Code)
	}
	if deleted != "browser-session" {
		t.Fatalf("expected session delete, got %q", deleted)
	}
	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].MaxAge != -1 {
		t.Fatalf("expected cleared cookie, got %+v", cookies)
	}
}
