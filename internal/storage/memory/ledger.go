package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/brightdata-go/internal/storage"
)

// Ledger is an in-memory run ledger for development and tests.
type Ledger struct {
	mu    sync.RWMutex
	runs  map[string]storage.Run
	order []string
}

// NewLedger constructs an empty Ledger.
func NewLedger() *Ledger {
	return &Ledger{runs: make(map[string]storage.Run)}
}

// RecordRun stores a run. Recording the same run ID again replaces the row.
func (l *Ledger) RecordRun(_ context.Context, run storage.Run) error {
	if run.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.runs[run.RunID]; !exists {
		l.order = append(l.order, run.RunID)
	}
	l.runs[run.RunID] = run
	return nil
}

// GetRun fetches a run by ID.
func (l *Ledger) GetRun(_ context.Context, runID string) (storage.Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	run, ok := l.runs[runID]
	if !ok {
		return storage.Run{}, fmt.Errorf("%w: %s", storage.ErrRunNotFound, runID)
	}
	return run, nil
}

// ListRuns returns up to limit runs, newest first. A non-positive limit returns all.
func (l *Ledger) ListRuns(_ context.Context, limit int) ([]storage.Run, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.order)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]storage.Run, 0, n)
	for i := len(l.order) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, l.runs[l.order[i]])
	}
	return out, nil
}
