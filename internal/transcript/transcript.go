// Package transcript holds the append-only, timestamped log shown next to
// the chat output.
package transcript

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Category classifies a log entry for presentation.
type Category string

const (
	CategoryStatus       Category = "status"
	CategoryUser         Category = "user"
	CategoryAgent        Category = "agent"
	CategoryAgentConfirm Category = "agent-confirm"
	CategoryError        Category = "error"
)

// Entry is a single log line.
type Entry struct {
	Seq      int64     `json:"seq"`
	Time     time.Time `json:"ts"`
	Category Category  `json:"category"`
	Message  string    `json:"message"`
}

// Sink receives every appended entry, in order.
type Sink interface {
	Write(Entry)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(Entry)

// Write calls f(e).
func (f SinkFunc) Write(e Entry) { f(e) }

// Log is an ordered, append-only sequence of entries. It is safe for
// concurrent use; sinks are invoked under the log's lock so they observe
// entries in sequence order.
type Log struct {
	mu      sync.Mutex
	entries []Entry
	sinks   []Sink
	now     func() time.Time
}

// New creates an empty log fanning out to sinks.
func New(sinks ...Sink) *Log {
	return &Log{sinks: sinks, now: time.Now}
}

// AddSink registers another sink. Entries appended earlier are not replayed.
func (l *Log) AddSink(s Sink) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sinks = append(l.sinks, s)
}

// Append records a new entry and returns it.
func (l *Log) Append(category Category, message string) Entry {
	l.mu.Lock()
	defer l.mu.Unlock()

	e := Entry{
		Seq:      int64(len(l.entries)) + 1,
		Time:     l.now(),
		Category: category,
		Message:  message,
	}
	l.entries = append(l.entries, e)
	for _, s := range l.sinks {
		s.Write(e)
	}
	return e
}

// Entries returns a snapshot of all entries.
func (l *Log) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// SlogSink mirrors entries to a structured logger.
type SlogSink struct {
	Logger *slog.Logger
}

// Write logs the entry; error entries are logged at warn level.
func (s SlogSink) Write(e Entry) {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	level := slog.LevelDebug
	if e.Category == CategoryError {
		level = slog.LevelWarn
	}
	logger.Log(context.Background(), level, "transcript entry",
		"seq", e.Seq,
		"category", string(e.Category),
		"message", e.Message,
	)
}
