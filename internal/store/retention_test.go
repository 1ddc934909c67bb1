package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// flakyRepo fails PruneBefore with the queued errors before succeeding.
type flakyRepo struct {
	Repository

	mu      sync.Mutex
	errs    []error
	calls   int
	cutoffs []time.Time
}

func (f *flakyRepo) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.cutoffs = append(f.cutoffs, cutoff)
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return 0, err
	}
	return 2, nil
}

func TestPruneWithRetry(t *testing.T) {
	t.Parallel()

	busy := errors.New("database is locked (5) (SQLITE_BUSY)")

	tests := []struct {
		name      string
		errs      []error
		wantCalls int
		wantErr   bool
	}{
		{"first try", nil, 1, false},
		{"busy then ok", []error{busy}, 2, false},
		{"busy forever", []error{busy, busy, busy}, 3, true},
		{"hard failure", []error{errors.New("disk I/O error")}, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			repo := &flakyRepo{errs: tt.errs}
			n, err := pruneWithRetry(context.Background(), repo, time.Now())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Expected error=%v, got %v", tt.wantErr, err)
			}
			if !tt.wantErr && n != 2 {
				t.Errorf("Expected 2 pruned, got %d", n)
			}
			if repo.calls != tt.wantCalls {
				t.Errorf("Expected %d calls, got %d", tt.wantCalls, repo.calls)
			}
		})
	}
}

func TestPruneExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

	repo := &flakyRepo{}
	PruneExpired(context.Background(), repo, 0, now)
	if repo.calls != 0 {
		t.Fatalf("Expected zero retention to skip pruning, got %d calls", repo.calls)
	}

	PruneExpired(context.Background(), repo, 24*time.Hour, now)
	if repo.calls != 1 || !repo.cutoffs[0].Equal(now.Add(-24*time.Hour)) {
		t.Errorf("Unexpected prune calls: %d %v", repo.calls, repo.cutoffs)
	}
}

func TestStartRetentionWorkerPrunesImmediately(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	repo := &flakyRepo{}
	StartRetentionWorker(ctx, repo, time.Hour, time.Hour)

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if repo.calls != 1 {
		t.Errorf("Expected an initial prune, got %d calls", repo.calls)
	}
}
