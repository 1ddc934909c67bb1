package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/ashureev/agentchat/internal/transcript"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL lets the audit view read while the recorder writes.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(ON)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

var _ Repository = (*SQLiteStore)(nil)

func (s *SQLiteStore) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS pages (
		page_id TEXT PRIMARY KEY,
		frontend TEXT NOT NULL,
		agent_session_id TEXT,
		opened_at INTEGER NOT NULL,
		closed_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_pages_opened ON pages(opened_at);

	CREATE TABLE IF NOT EXISTS transcript_entries (
		page_id TEXT NOT NULL REFERENCES pages(page_id) ON DELETE CASCADE,
		seq INTEGER NOT NULL,
		ts INTEGER NOT NULL,
		category TEXT NOT NULL,
		message TEXT NOT NULL,
		PRIMARY KEY (page_id, seq)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// OpenPage records a new page.
func (s *SQLiteStore) OpenPage(ctx context.Context, pageID, frontend string, openedAt time.Time) error {
	query := `INSERT INTO pages (page_id, frontend, opened_at) VALUES (?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query, pageID, frontend, openedAt.UnixMilli()); err != nil {
		return fmt.Errorf("insert page: %w", err)
	}
	return nil
}

// SetAgentSession records the agent session a page is bound to.
func (s *SQLiteStore) SetAgentSession(ctx context.Context, pageID, sessionID string) error {
	query := `UPDATE pages SET agent_session_id = ? WHERE page_id = ?`
	return s.updatePage(ctx, query, pageID, sessionID, pageID)
}

// ClosePage stamps the page as closed.
func (s *SQLiteStore) ClosePage(ctx context.Context, pageID string, closedAt time.Time) error {
	query := `UPDATE pages SET closed_at = ? WHERE page_id = ?`
	return s.updatePage(ctx, query, pageID, closedAt.UnixMilli(), pageID)
}

func (s *SQLiteStore) updatePage(ctx context.Context, query, pageID string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		slog.Warn("page update affected 0 rows", "page_id", pageID)
		return ErrPageNotFound
	}
	return nil
}

// GetPage returns the page or nil if unknown.
func (s *SQLiteStore) GetPage(ctx context.Context, pageID string) (*Page, error) {
	query := `
		SELECT page_id, frontend, agent_session_id, opened_at, closed_at
		FROM pages WHERE page_id = ?`

	var page Page
	var sessionID sql.NullString
	var openedAt int64
	var closedAt sql.NullInt64

	err := s.db.QueryRowContext(ctx, query, pageID).Scan(
		&page.PageID, &page.Frontend, &sessionID, &openedAt, &closedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan page row: %w", err)
	}

	page.AgentSessionID = sessionID.String
	page.OpenedAt = time.UnixMilli(openedAt)
	if closedAt.Valid {
		page.ClosedAt = time.UnixMilli(closedAt.Int64)
	}
	return &page, nil
}

// AppendEntry stores one transcript entry for a page.
func (s *SQLiteStore) AppendEntry(ctx context.Context, pageID string, entry transcript.Entry) error {
	query := `
	INSERT INTO transcript_entries (page_id, seq, ts, category, message)
	VALUES (?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		pageID, entry.Seq, entry.Time.UnixMilli(), string(entry.Category), entry.Message,
	)
	if err != nil {
		return fmt.Errorf("insert transcript entry: %w", err)
	}
	return nil
}

// ListEntries returns a page's entries ordered by sequence.
func (s *SQLiteStore) ListEntries(ctx context.Context, pageID string) ([]transcript.Entry, error) {
	query := `
		SELECT seq, ts, category, message
		FROM transcript_entries WHERE page_id = ? ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, pageID)
	if err != nil {
		return nil, fmt.Errorf("query transcript entries: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			slog.Warn("failed to close transcript rows", "error", closeErr)
		}
	}()

	var entries []transcript.Entry
	for rows.Next() {
		var e transcript.Entry
		var ts int64
		var category string
		if err := rows.Scan(&e.Seq, &ts, &category, &e.Message); err != nil {
			return nil, fmt.Errorf("scan transcript row: %w", err)
		}
		e.Time = time.UnixMilli(ts)
		e.Category = transcript.Category(category)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transcript entries: %w", err)
	}
	return entries, nil
}

// PruneBefore deletes closed pages (and their entries) opened before
// cutoff. Open pages are kept so their recorder can keep appending.
func (s *SQLiteStore) PruneBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM pages WHERE closed_at IS NOT NULL AND opened_at < ?`,
		cutoff.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("prune pages: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("get rows affected: %w", err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
