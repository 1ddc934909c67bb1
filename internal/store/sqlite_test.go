package store

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ashureev/agentchat/internal/transcript"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "nested", "agentchat.db"))
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPageLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	opened := time.UnixMilli(1_700_000_000_000)

	if err := s.OpenPage(ctx, "page-1", "web", opened); err != nil {
		t.Fatalf("OpenPage failed: %v", err)
	}
	if err := s.SetAgentSession(ctx, "page-1", "sess-9"); err != nil {
		t.Fatalf("SetAgentSession failed: %v", err)
	}
	if err := s.ClosePage(ctx, "page-1", opened.Add(time.Minute)); err != nil {
		t.Fatalf("ClosePage failed: %v", err)
	}

	page, err := s.GetPage(ctx, "page-1")
	if err != nil || page == nil {
		t.Fatalf("GetPage failed: %v", err)
	}
	if page.Frontend != "web" || page.AgentSessionID != "sess-9" {
		t.Errorf("Unexpected page: %+v", page)
	}
	if !page.OpenedAt.Equal(opened) || page.ClosedAt.Sub(page.OpenedAt) != time.Minute {
		t.Errorf("Unexpected timestamps: %+v", page)
	}

	missing, err := s.GetPage(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil page without error, got %+v, %v", missing, err)
	}
	if err := s.SetAgentSession(ctx, "nope", "x"); !errors.Is(err, ErrPageNotFound) {
		t.Errorf("Expected ErrPageNotFound, got %v", err)
	}
}

func TestEntriesOrderedAndPruned(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	old := time.Now().Add(-48 * time.Hour)

	if err := s.OpenPage(ctx, "old", "web", old); err != nil {
		t.Fatalf("OpenPage failed: %v", err)
	}
	if err := s.OpenPage(ctx, "new", "console", time.Now()); err != nil {
		t.Fatalf("OpenPage failed: %v", err)
	}

	for _, seq := range []int64{2, 1, 3} {
		e := transcript.Entry{Seq: seq, Time: time.Now(), Category: transcript.CategoryStatus, Message: fmt.Sprintf("m%d", seq)}
		if err := s.AppendEntry(ctx, "old", e); err != nil {
			t.Fatalf("AppendEntry failed: %v", err)
		}
	}

	entries, err := s.ListEntries(ctx, "old")
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 3 || entries[0].Message != "m1" || entries[2].Message != "m3" {
		t.Fatalf("Unexpected entries: %+v", entries)
	}

	if err := s.AppendEntry(ctx, "old", entries[0]); err == nil {
		t.Error("Expected duplicate sequence to be rejected")
	}

	if err := s.ClosePage(ctx, "old", old.Add(time.Hour)); err != nil {
		t.Fatalf("ClosePage failed: %v", err)
	}

	n, err := s.PruneBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore failed: %v", err)
	}
	if n != 1 {
		t.Errorf("Expected 1 page pruned, got %d", n)
	}
	entries, err = s.ListEntries(ctx, "old")
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected entries to cascade, got %d", len(entries))
	}
}

func TestPruneKeepsOpenPages(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	old := time.Now().Add(-48 * time.Hour)

	if err := s.OpenPage(ctx, "long-lived", "web", old); err != nil {
		t.Fatalf("OpenPage failed: %v", err)
	}

	n, err := s.PruneBefore(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("PruneBefore failed: %v", err)
	}
	if n != 0 {
		t.Errorf("Expected open page to survive, got %d pruned", n)
	}

	e := transcript.Entry{Seq: 1, Time: time.Now(), Category: transcript.CategoryUser, Message: "You: still here"}
	if err := s.AppendEntry(ctx, "long-lived", e); err != nil {
		t.Fatalf("AppendEntry after prune failed: %v", err)
	}
	entries, err := s.ListEntries(ctx, "long-lived")
	if err != nil {
		t.Fatalf("ListEntries failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("Expected 1 entry, got %d", len(entries))
	}
}

func TestIsConflictError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY: busy"), true},
		{fmt.Errorf("insert: %w", errors.New("database is locked")), true},
		{errors.New("constraint failed"), false},
	}
	for _, tt := range tests {
		if got := IsConflictError(tt.err); got != tt.want {
			t.Errorf("IsConflictError(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}
