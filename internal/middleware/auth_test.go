package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HammerMeetNail/ficarchive-web/internal/handlers"
	"github.com/HammerMeetNail/ficarchive-web/internal/models"
	"github.com/HammerMeetNail/ficarchive-web/internal/services"
)

type mockResolver struct {
	ResolveFunc func(ctx context.Context, token string) (*models.Credential, error)
	calls       int
}

func (m *mockResolver) Resolve(ctx context.Context, token string) (*models.Credential, error) {
	m.calls++
	return m.ResolveFunc(ctx, token)
}

func captureContext(t *testing.T, mw func(http.Handler) http.Handler, req *http.Request) (*models.Credential, string) {
	t.Helper()
	var cred *models.Credential
	var owner string
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cred = handlers.GetCredentialFromContext(r.Context())
		owner = handlers.GetOwnerFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected request to pass through, got %d", rr.Code)
	}
	return cred, owner
}

func TestAuthenticate_BearerHeader(t *testing.T) {
	resolver := &mockResolver{}
	am := NewAuthMiddleware(resolver)

	req := httptest.NewRequest(http.MethodPost, "/api/controls", nil)
	req.Header.Set("Authorization", "Bearer api-token")
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "ignored"})

	cred, owner := captureContext(t, am.Authenticate, req)
	if cred == nil || cred.Token != "api-token" {
		t.Fatalf("expected bearer credential, got %+v", cred)
	}
	if owner != "bearer:"+services.HashToken("api-token") {
		t.Fatalf("unexpected owner %q", owner)
	}
	if resolver.calls != 0 {
		t.Fatal("session store should not be consulted when a bearer header is present")
	}
}

func TestAuthenticate_SessionCookie(t *testing.T) {
	resolver := &mockResolver{
		ResolveFunc: func(ctx context.Context, token string) (*models.Credential, error) {
			if token != "browser-session" {
				t.Fatalf("unexpected token %q", token)
			}
			return &models.Credential{Token: "api-token", Username: "quill"}, nil
		},
	}
	am := NewAuthMiddleware(resolver)

	req := httptest.NewRequest(http.MethodGet, "/users/quill", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "browser-session"})
	req.AddCookie(&http.Cookie{Name: csrfCookieName, Value: "csrf-value"})

	cred, owner := captureContext(t, am.Authenticate, req)
	if cred == nil || cred.Username != "quill" {
		t.Fatalf("expected session credential, got %+v", cred)
	}
	if owner != "browser:"+services.HashToken("csrf-value") {
		t.Fatalf("unexpected owner %q", owner)
	}
}

func TestAuthenticate_InvalidSessionPassesThrough(t *testing.T) {
	for _, resolveErr := range []error{services.ErrSessionNotFound, errors.New("db down")} {
		resolver := &mockResolver{
			ResolveFunc: func(ctx context.Context, token string) (*models.Credential, error) {
				return nil, resolveErr
			},
		}
		am := NewAuthMiddleware(resolver)

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "stale"})

		cred, _ := captureContext(t, am.Authenticate, req)
		if cred != nil {
			t.Fatalf("expected no credential for %v", resolveErr)
		}
	}
}

func TestAuthenticate_Anonymous(t *testing.T) {
	am := NewAuthMiddleware(nil)
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	cred, owner := captureContext(t, am.Authenticate, req)
	if cred != nil || owner != "" {
		t.Fatalf("expected anonymous request, got %+v %q", cred, owner)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   ", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := bearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = %q, %v", tt.header, got, ok)
		}
	}
}
