package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/agentchat/internal/transcript"
)

const writeTimeout = 5 * time.Second

// ErrRecorderClosed is returned when recording after Close.
var ErrRecorderClosed = errors.New("recorder closed")

type recordKind int

const (
	recordOpen recordKind = iota
	recordSession
	recordEntry
	recordClose
)

type record struct {
	kind     recordKind
	pageID   string
	frontend string
	value    string
	at       time.Time
	entry    transcript.Entry
}

// Recorder writes page transcripts to a Repository off the caller's path.
// Records are queued in order; when the queue is full new records are
// dropped and counted rather than blocking a page.
type Recorder struct {
	repo    Repository
	logger  *slog.Logger
	queue   chan record
	dropped atomic.Int64

	mu     sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewRecorder starts a recorder with a bounded queue.
func NewRecorder(repo Repository, queueSize int, logger *slog.Logger) *Recorder {
	if queueSize <= 0 {
		queueSize = 256
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Recorder{
		repo:   repo,
		logger: logger,
		queue:  make(chan record, queueSize),
		done:   make(chan struct{}),
	}
	go r.run()
	return r
}

// OpenPage queues the creation of a page record.
func (r *Recorder) OpenPage(pageID, frontend string) {
	r.enqueue(record{kind: recordOpen, pageID: pageID, frontend: frontend, at: time.Now()})
}

// SetAgentSession queues binding a page to its agent session.
func (r *Recorder) SetAgentSession(pageID, sessionID string) {
	r.enqueue(record{kind: recordSession, pageID: pageID, value: sessionID})
}

// ClosePage queues stamping a page as closed.
func (r *Recorder) ClosePage(pageID string) {
	r.enqueue(record{kind: recordClose, pageID: pageID, at: time.Now()})
}

// Sink returns a transcript sink recording entries for pageID.
func (r *Recorder) Sink(pageID string) transcript.Sink {
	return transcript.SinkFunc(func(e transcript.Entry) {
		r.enqueue(record{kind: recordEntry, pageID: pageID, entry: e})
	})
}

// Dropped returns how many records were discarded because the queue was
// full or the recorder was closed.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// Close stops accepting records and waits for queued ones to be written.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return ErrRecorderClosed
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	<-r.done
	if n := r.dropped.Load(); n > 0 {
		r.logger.Warn("transcript records dropped", "count", n)
	}
	return nil
}

func (r *Recorder) enqueue(rec record) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.queue <- rec:
	default:
		r.dropped.Add(1)
		r.logger.Debug("transcript queue full, record dropped", "page_id", rec.pageID)
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for rec := range r.queue {
		if err := r.write(rec); err != nil {
			level := slog.LevelError
			if IsConflictError(err) {
				level = slog.LevelWarn
			}
			r.logger.Log(context.Background(), level, "failed to record transcript",
				"page_id", rec.pageID,
				"error", err,
			)
		}
	}
}

func (r *Recorder) write(rec record) error {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	switch rec.kind {
	case recordOpen:
		return r.repo.OpenPage(ctx, rec.pageID, rec.frontend, rec.at)
	case recordSession:
		return r.repo.SetAgentSession(ctx, rec.pageID, rec.value)
	case recordClose:
		return r.repo.ClosePage(ctx, rec.pageID, rec.at)
	default:
		return r.repo.AppendEntry(ctx, rec.pageID, rec.entry)
	}
}
