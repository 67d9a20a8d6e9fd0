package cache

import (
	"testing"
	"time"

	"github.com/JustJay7/courtlight/internal/database"
	"github.com/stretchr/testify/require"
)

func TestCacheHitsAndMisses(t *testing.T) {
	c := NewCache(10, time.Minute)

	_, ok := c.Get(JudgementKey(1))
	require.False(t, ok)

	j := &database.Judgement{ID: 1, PDFLink: "http://p/1.pdf"}
	c.Set(JudgementKey(1), j)

	got, ok := c.Get(JudgementKey(1))
	require.True(t, ok)
	require.Same(t, j, got)

	stats := c.Stats()
	require.EqualValues(t, 1, stats.Hits)
	require.EqualValues(t, 1, stats.Misses)
	require.Equal(t, 1, stats.Size)

	c.Delete(JudgementKey(1))
	_, ok = c.Get(JudgementKey(1))
	require.False(t, ok)

	c.Clear()
	require.Equal(t, CacheStats{}, c.Stats())
}

func TestCacheIsBounded(t *testing.T) {
	c := NewCache(2, time.Minute)
	for id := uint(1); id <= 3; id++ {
		c.Set(JudgementKey(id), &database.Judgement{ID: id})
		time.Sleep(2 * time.Millisecond)
	}

	require.Equal(t, 2, c.Stats().Size)
	_, ok := c.Get(JudgementKey(1))
	require.False(t, ok, "the entry closest to expiry is evicted first")
	_, ok = c.Get(JudgementKey(3))
	require.True(t, ok)
}

func TestCacheExpires(t *testing.T) {
	c := NewCache(10, 20*time.Millisecond)
	c.Set(JudgementKey(1), &database.Judgement{ID: 1})

	time.Sleep(40 * time.Millisecond)
	_, ok := c.Get(JudgementKey(1))
	require.False(t, ok)
}
