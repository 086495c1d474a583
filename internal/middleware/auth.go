package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/HammerMeetNail/ficarchive-web/internal/handlers"
	"github.com/HammerMeetNail/ficarchive-web/internal/logging"
	"github.com/HammerMeetNail/ficarchive-web/internal/models"
	"github.com/HammerMeetNail/ficarchive-web/internal/services"
)

const SessionCookieName = "session_token"

type credentialResolver interface {
	Resolve(ctx context.Context, token string) (*models.Credential, error)
}

type AuthMiddleware struct {
	sessions credentialResolver
}

func NewAuthMiddleware(sessions credentialResolver) *AuthMiddleware {
	return &AuthMiddleware{sessions: sessions}
}

// Authenticate attaches the archive API credential and the control owner to
// the request context. A bearer header wins over the session cookie.
// Requests without a credential are passed through; controls report
// Unauthenticated themselves.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if token, ok := bearerToken(r); ok {
			ctx = handlers.SetCredentialInContext(ctx, &models.Credential{Token: token})
			ctx = handlers.SetOwnerInContext(ctx, "bearer:"+services.HashToken(token))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		if cookie, err := r.Cookie(csrfCookieName); err == nil && cookie.Value != "" {
			ctx = handlers.SetOwnerInContext(ctx, "browser:"+services.HashToken(cookie.Value))
		}

		cookie, err := r.Cookie(SessionCookieName)
		if err != nil || cookie.Value == "" || m.sessions == nil {
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		cred, err := m.sessions.Resolve(ctx, cookie.Value)
		if err != nil {
			if !errors.Is(err, services.ErrSessionNotFound) && !errors.Is(err, services.ErrSessionExpired) {
				logging.FromContext(ctx).Warn("Session lookup failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		ctx = handlers.SetCredentialInContext(ctx, cred)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	if len(h) < 7 || !strings.EqualFold(h[:7], "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(h[7:])
	return token, token != ""
}
