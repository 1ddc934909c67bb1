package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// RetentionInterval is how often the retention worker sweeps.
const RetentionInterval = time.Hour

// pruneWithRetry deletes pages opened before cutoff, retrying with
// exponential backoff while the database is busy.
func pruneWithRetry(ctx context.Context, repo Repository, cutoff time.Time) (int64, error) {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		var n int64
		n, err = repo.PruneBefore(ctx, cutoff)
		if err == nil {
			return n, nil
		}
		if !IsConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms
		slog.Debug("Retention prune hit a busy database, retrying", "attempt", i+1, "delay", delay)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	return 0, fmt.Errorf("prune transcripts before %s: %w", cutoff.Format(time.RFC3339), err)
}

// PruneExpired removes transcripts older than retention. A zero retention
// keeps everything.
func PruneExpired(ctx context.Context, repo Repository, retention time.Duration, now time.Time) {
	if retention <= 0 {
		return
	}
	deleted, err := pruneWithRetry(ctx, repo, now.Add(-retention))
	if err != nil {
		slog.Error("Retention worker failed to prune transcripts", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Retention worker pruned transcripts", "pages", deleted)
	}
}

// StartRetentionWorker prunes once immediately and then every interval
// until ctx is done.
func StartRetentionWorker(ctx context.Context, repo Repository, retention, interval time.Duration) {
	if retention <= 0 {
		slog.Info("Transcript retention disabled")
		return
	}

	PruneExpired(ctx, repo, retention, time.Now())

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Retention worker started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				PruneExpired(ctx, repo, retention, time.Now())
			case <-ctx.Done():
				slog.Info("Retention worker shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}
