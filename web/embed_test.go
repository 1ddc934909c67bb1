package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandler(t *testing.T) {
	t.Parallel()

	h := Handler()

	tests := []struct {
		path     string
		contains string
	}{
		{"/", `id="send-button"`},
		{"/app.js", "confirm_reply"},
		{"/style.css", ".log-agent-confirm"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			if w.Code != http.StatusOK {
				t.Fatalf("Expected 200, got %d", w.Code)
			}
			if !strings.Contains(w.Body.String(), tt.contains) {
				t.Errorf("Expected body of %s to contain %q", tt.path, tt.contains)
			}
		})
	}
}

func TestHandlerUnknownPath(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/some/deep/link", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown path, got %d", w.Code)
	}
}

func TestHandlerIndexNotCached(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	if got := w.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Expected no-cache on the page, got %q", got)
	}
}
