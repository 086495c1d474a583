package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCacheControl_Apply(t *testing.T) {
	tests := []struct {
		path   string
		want   string
		pragma bool
	}{
		{"/api/controls/abc", "no-store, no-cache, must-revalidate", true},
		{"/users/quill", "no-store, no-cache, must-revalidate", false},
		{"/", "no-cache, must-revalidate", false},
		{"/static/css/archive.css", "public, max-age=86400, must-revalidate", false},
		{"/static/js/block-control.js", "public, max-age=86400, must-revalidate", false},
		{"/static/icons/user-x.SVG", "public, max-age=31536000, immutable", false},
		{"/static/robots.txt", "public, max-age=3600", false},
		{"/health", "no-store", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

			rr := httptest.NewRecorder()
			NewCacheControl().Apply(handler).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if !called {
				t.Fatal("handler not called")
			}
			if got := rr.Header().Get("Cache-Control"); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
			if (rr.Header().Get("Pragma") == "no-cache") != tt.pragma {
				t.Errorf("unexpected Pragma %q", rr.Header().Get("Pragma"))
			}
		})
	}
}
