package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/brightdata-go/internal/storage"
)

func TestLedgerRecordAndGet(t *testing.T) {
	t.Parallel()
	l := NewLedger()
	ctx := context.Background()

	require.NoError(t, l.RecordRun(ctx, storage.Run{RunID: "r1", Kind: "scrape", Success: true}))
	got, err := l.GetRun(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, "scrape", got.Kind)

	_, err = l.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrRunNotFound))
}

func TestLedgerRejectsEmptyID(t *testing.T) {
	t.Parallel()
	require.Error(t, NewLedger().RecordRun(context.Background(), storage.Run{}))
}

func TestLedgerListNewestFirst(t *testing.T) {
	t.Parallel()
	l := NewLedger()
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, l.RecordRun(ctx, storage.Run{RunID: id}))
	}
	// Re-recording keeps the original position.
	require.NoError(t, l.RecordRun(ctx, storage.Run{RunID: "a", Error: "retry"}))

	runs, err := l.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{runs[0].RunID, runs[1].RunID, runs[2].RunID})
	assert.Equal(t, "retry", runs[2].Error)

	runs, err = l.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
	assert.Equal(t, "c", runs[0].RunID)
}

func TestLedgerConcurrentRecords(t *testing.T) {
	t.Parallel()
	l := NewLedger()
	ctx := context.Background()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = l.RecordRun(ctx, storage.Run{RunID: string(rune('A' + i))})
		}(i)
	}
	wg.Wait()
	runs, err := l.ListRuns(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, runs, 50)
}

func TestLedgerRecordAndList(t *testing.T) {
	t.Parallel()

	ledger := NewLedger()
	ctx := context.Background()
	require.NoError(t, ledger.RecordRun(ctx, storage.Run{RunID: "a", Kind: "scrape"}))
	require.NoError(t, ledger.RecordRun(ctx, storage.Run{RunID: "b", Kind: "search"}))
	require.NoError(t, ledger.RecordRun(ctx, storage.Run{RunID: "a", Kind: "scrape", Success: true}))
	assert.Error(t, ledger.RecordRun(ctx, storage.Run{}))

	run, err := ledger.GetRun(ctx, "a")
	require.NoError(t, err)
	assert.True(t, run.Success)

	_, err = ledger.GetRun(ctx, "missing")
	assert.True(t, errors.Is(err, storage.ErrRunNotFound))

	runs, err := ledger.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].RunID)

	runs, err = ledger.ListRuns(ctx, 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
}
