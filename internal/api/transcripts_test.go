package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/agentchat/internal/store"
	"github.com/ashureev/agentchat/internal/transcript"
	"github.com/go-chi/chi/v5"
)

type staticCounter int

func (c staticCounter) Count() int { return int(c) }

// brokenRepo fails every ping; other methods are never reached.
type brokenRepo struct {
	store.Repository
}

func (brokenRepo) Ping(context.Context) error { return errors.New("disk gone") }

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "api.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func get(t *testing.T, h http.Handler, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if out != nil {
		if err := json.NewDecoder(w.Body).Decode(out); err != nil {
			t.Fatalf("Failed to decode %s: %v", path, err)
		}
	}
	return w.Code
}

func TestHealth(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		repo       store.Repository
		wantCode   int
		wantStatus string
		wantDB     string
	}{
		{"transcripts disabled", nil, http.StatusOK, "ok", "disabled"},
		{"database ok", newTestStore(t), http.StatusOK, "ok", "ok"},
		{"database down", brokenRepo{}, http.StatusServiceUnavailable, "degraded", "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newRouter(NewHandler(tt.repo, staticCounter(3), "http://agent:8000"))

			var got healthResponse
			code := get(t, router, "/api/health", &got)
			if code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, code)
			}
			if got.Status != tt.wantStatus || got.Database != tt.wantDB {
				t.Errorf("Unexpected health: %+v", got)
			}
			if got.OpenPages != 3 || got.AgentAPIURL != "http://agent:8000" {
				t.Errorf("Unexpected health details: %+v", got)
			}
		})
	}
}

func TestGetTranscript(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now()
	if err := s.OpenPage(ctx, "page-1", "web", now); err != nil {
		t.Fatalf("OpenPage failed: %v", err)
	}
	if err := s.SetAgentSession(ctx, "page-1", "sess-9"); err != nil {
		t.Fatalf("SetAgentSession failed: %v", err)
	}
	for i, msg := range []string{"You: hi", "Agent: hello"} {
		entry := transcript.Entry{Seq: int64(i + 1), Time: now, Category: transcript.CategoryUser, Message: msg}
		if err := s.AppendEntry(ctx, "page-1", entry); err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
	}

	router := newRouter(NewHandler(s, staticCounter(0), ""))

	var got transcriptResponse
	if code := get(t, router, "/api/transcripts/page-1", &got); code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", code)
	}
	if got.Page == nil || got.Page.AgentSessionID != "sess-9" {
		t.Errorf("Unexpected page: %+v", got.Page)
	}
	if len(got.Entries) != 2 || got.Entries[1].Message != "Agent: hello" {
		t.Errorf("Unexpected entries: %+v", got.Entries)
	}
}

func TestGetTranscriptNotFound(t *testing.T) {
	t.Parallel()

	var body map[string]string

	router := newRouter(NewHandler(newTestStore(t), nil, ""))
	if code := get(t, router, "/api/transcripts/missing", &body); code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", code)
	}
	if body["error"] != "page not found" {
		t.Errorf("Unexpected body: %v", body)
	}

	router = newRouter(NewHandler(nil, nil, ""))
	if code := get(t, router, "/api/transcripts/page-1", &body); code != http.StatusNotFound {
		t.Errorf("Expected 404 when disabled, got %d", code)
	}
	if body["error"] != "transcripts_disabled" {
		t.Errorf("Unexpected body: %v", body)
	}
}
