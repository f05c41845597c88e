package memory

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherRecordsMessages(t *testing.T) {
	t.Parallel()

	p := New()
	id, err := p.Publish(context.Background(), "search", map[string]any{"run_id": "r1"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id)

	msgs := p.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "search", msgs[0].Kind)
	assert.Equal(t, id, msgs[0].ID)

	msgs[0].Kind = "mutated"
	assert.Equal(t, "search", p.Messages()[0].Kind)
	assert.NoError(t, p.Close())
}

func TestBoundedPublisherKeepsNewest(t *testing.T) {
	t.Parallel()

	p := NewBounded(2)
	for _, kind := range []string{"scrape", "search", "crawl"} {
		_, err := p.Publish(context.Background(), kind, nil)
		require.NoError(t, err)
	}
	msgs := p.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "search", msgs[0].Kind)
	assert.Equal(t, "memory-3", msgs[1].ID)
	assert.Empty(t, p.ByKind("scrape"))
	assert.Len(t, p.ByKind("crawl"), 1)
}

func TestPublisherConcurrent(t *testing.T) {
	t.Parallel()

	p := New()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = p.Publish(context.Background(), "scrape", i)
		}()
	}
	wg.Wait()
	assert.Len(t, p.Messages(), 20)
	assert.Len(t, p.ByKind("scrape"), 20)
}
