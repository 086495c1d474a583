package middleware

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"
)

const (
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
	csrfFormField  = "csrf_token"
	csrfTokenLen   = 32
	csrfTTL        = 12 * time.Hour
)

var safeMethods = map[string]bool{
	http.MethodGet:     true,
	http.MethodHead:    true,
	http.MethodOptions: true,
}

// CSRFMiddleware implements the double-submit cookie pattern. The token also
// identifies the browser that owns mounted controls, so a fresh token is made
// visible to the rest of the chain on the request that creates it.
type CSRFMiddleware struct {
	secure bool
}

func NewCSRFMiddleware(secure bool) *CSRFMiddleware {
	return &CSRFMiddleware{secure: secure}
}

func (m *CSRFMiddleware) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if safeMethods[r.Method] {
			next.ServeHTTP(w, m.ensureToken(w, r))
			return
		}

		// Bearer clients do not rely on ambient cookies.
		if _, ok := bearerToken(r); ok {
			next.ServeHTTP(w, r)
			return
		}

		expected := cookieToken(r)
		if expected == "" {
			csrfReject(w, "CSRF token missing")
			return
		}

		submitted := r.Header.Get(csrfHeaderName)
		if submitted == "" {
			submitted = r.PostFormValue(csrfFormField)
		}
		if submitted == "" {
			csrfReject(w, "CSRF token header missing")
			return
		}

		if subtle.ConstantTimeCompare([]byte(expected), []byte(submitted)) != 1 {
			csrfReject(w, "CSRF token mismatch")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func csrfReject(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusForbidden, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func cookieToken(r *http.Request) string {
	if c, err := r.Cookie(csrfCookieName); err == nil {
		return c.Value
	}
	return ""
}

func (m *CSRFMiddleware) ensureToken(w http.ResponseWriter, r *http.Request) *http.Request {
	if existing := cookieToken(r); existing != "" {
		w.Header().Set(csrfHeaderName, existing)
		return r
	}

	token, err := generateCSRFToken()
	if err != nil {
		return r
	}
	m.setCookie(w, token)
	w.Header().Set(csrfHeaderName, token)

	r = r.Clone(r.Context())
	r.AddCookie(&http.Cookie{Name: csrfCookieName, Value: token})
	return r
}

func (m *CSRFMiddleware) setCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     csrfCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(csrfTTL.Seconds()),
		HttpOnly: false, // read by block-control.js
		Secure:   m.secure,
		SameSite: http.SameSiteStrictMode,
		Expires:  time.Now().Add(csrfTTL),
	})
}

func generateCSRFToken() (string, error) {
	buf := make([]byte, csrfTokenLen)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GetToken returns the current CSRF token, issuing one if needed.
func (m *CSRFMiddleware) GetToken(w http.ResponseWriter, r *http.Request) {
	token := cookieToken(r)
	if token == "" {
		var err error
		if token, err = generateCSRFToken(); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to generate CSRF token"})
			return
		}
		m.setCookie(w, token)
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}
