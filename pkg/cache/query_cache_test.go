package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat-be/pkg/search"
	"datachat-be/pkg/store"
)

func TestQueryCacheKeyNormalization(t *testing.T) {
	c := NewQueryCache(5 * time.Minute)

	assert.Equal(t, c.Key("Top 5 products", "sample-sales"), c.Key("  top 5 products  ", "sample-sales"))
	assert.NotEqual(t, c.Key("top 5 products", "sample-sales"), c.Key("top 5 products", "sample-logs"))
}

func TestQueryCacheHitReturnsStoredQuery(t *testing.T) {
	c := NewQueryCache(5 * time.Minute)
	query := &search.StructuredQuery{
		Index: "sample-sales",
		Body:  map[string]interface{}{"size": 5},
	}

	key := c.Key("top 5 products by revenue", "sample-sales")
	c.Put(key, query)

	got, found := c.Get(key)
	require.True(t, found)
	assert.Same(t, query, got)
}

func TestQueryCacheExpiry(t *testing.T) {
	c := NewQueryCache(20 * time.Millisecond)
	key := c.Key("total revenue", "sample-sales")
	c.Put(key, &search.StructuredQuery{Index: "sample-sales"})

	_, found := c.Get(key)
	require.True(t, found)

	time.Sleep(40 * time.Millisecond)

	_, found = c.Get(key)
	assert.False(t, found)
}

func TestQueryCacheStats(t *testing.T) {
	c := NewQueryCache(5 * time.Minute)
	key := c.Key("count orders", "sample-sales")
	c.Put(key, &search.StructuredQuery{Index: "sample-sales"})

	_, _ = c.Get(key)
	_, _ = c.Get("missing")

	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 0.001)
}

func TestMemorySessionStoreRoundTrip(t *testing.T) {
	s := NewMemorySessionStore(time.Hour)
	ctx := context.Background()

	session := store.NewSession("sess-1", "user-1")
	session.AppendTurn(store.Turn{Role: "user", Content: "show sales by month"}, 10)

	require.NoError(t, s.Save(ctx, session))

	got, found, err := s.Get(ctx, "sess-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "show sales by month", got.Turns[0].Content)

	require.NoError(t, s.Delete(ctx, "sess-1"))
	_, found, err = s.Get(ctx, "sess-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestSessionHistoryWindow(t *testing.T) {
	session := store.NewSession("sess-2", "user-1")
	for i := 0; i < 15; i++ {
		session.AppendTurn(store.Turn{Role: "user", Content: "q"}, 10)
	}
	assert.Len(t, session.Turns, 10)
}
