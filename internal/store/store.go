// Package store persists page transcripts for operators to audit.
package store

import (
	"context"
	"time"

	"github.com/ashureev/agentchat/internal/transcript"
)

// Page is one browser or terminal page that talked to the agent.
type Page struct {
	PageID         string    `json:"page_id"`
	Frontend       string    `json:"frontend"`
	AgentSessionID string    `json:"agent_session_id,omitempty"`
	OpenedAt       time.Time `json:"opened_at"`
	ClosedAt       time.Time `json:"closed_at,omitzero"`
}

// Repository defines the interface for persisting transcripts.
type Repository interface {
	// OpenPage records a new page.
	OpenPage(ctx context.Context, pageID, frontend string, openedAt time.Time) error

	// SetAgentSession records the agent session a page is bound to.
	SetAgentSession(ctx context.Context, pageID, sessionID string) error

	// ClosePage stamps the page as closed.
	ClosePage(ctx context.Context, pageID string, closedAt time.Time) error

	// GetPage returns the page or nil if unknown.
	GetPage(ctx context.Context, pageID string) (*Page, error)

	// AppendEntry stores one transcript entry for a page.
	AppendEntry(ctx context.Context, pageID string, entry transcript.Entry) error

	// ListEntries returns a page's entries ordered by sequence.
	ListEntries(ctx context.Context, pageID string) ([]transcript.Entry, error)

	// PruneBefore deletes closed pages (and their entries) opened before
	// cutoff. Pages that are still open are never pruned.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
