package versioning

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c, err := New(1024)
	require.NoError(t, err)
	return c
}

func TestCache_AddAndGet(t *testing.T) {
	c := newTestCache(t)

	assert.True(t, c.Add("orders", "doc-1", 1))

	cell, ok := c.Get("orders", "doc-1")
	require.True(t, ok)
	assert.Equal(t, 1, cell.Version)
	assert.NotZero(t, cell.Timestamp)
}

func TestCache_AddRejectsDuplicate(t *testing.T) {
	c := newTestCache(t)

	require.True(t, c.Add("orders", "doc-1", 1))
	assert.False(t, c.Add("orders", "doc-1", 1))
}

func TestCache_IndexKeyIsCaseInsensitive(t *testing.T) {
	c := newTestCache(t)

	c.Add("Orders", "doc-1", 1)
	_, ok := c.Get("ORDERS", "doc-1")
	assert.True(t, ok)
}

func TestCache_DocIdIsCaseSensitive(t *testing.T) {
	c := newTestCache(t)

	c.Add("orders", "Doc-1", 1)
	_, ok := c.Get("orders", "doc-1")
	assert.False(t, ok)
}

func TestCache_UpdateCAS(t *testing.T) {
	c := newTestCache(t)
	c.Add("orders", "doc-1", 1)
	cell, _ := c.Get("orders", "doc-1")

	require.True(t, c.Update("orders", "doc-1", cell.Version, cell.Timestamp, 2))

	got, _ := c.Get("orders", "doc-1")
	assert.Equal(t, 2, got.Version)

	// A second swap against the stale observation must fail.
	assert.False(t, c.Update("orders", "doc-1", cell.Version, cell.Timestamp, 3))
}

func TestCache_UpdateMissingCellFails(t *testing.T) {
	c := newTestCache(t)
	assert.False(t, c.Update("orders", "ghost", 1, 42, 2))
}

func TestCache_ConcurrentCAS_ExactlyOneWins(t *testing.T) {
	c := newTestCache(t)
	c.Add("orders", "doc-1", 1)
	cell, _ := c.Get("orders", "doc-1")

	const racers = 32
	var wins atomic.Int32
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if c.Update("orders", "doc-1", cell.Version, cell.Timestamp, 2) {
				wins.Add(1)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
	got, _ := c.Get("orders", "doc-1")
	assert.Equal(t, 2, got.Version)
}

func TestCache_Delete(t *testing.T) {
	c := newTestCache(t)
	c.Add("orders", "doc-1", 1)

	c.Delete("orders", "doc-1")
	_, ok := c.Get("orders", "doc-1")
	assert.False(t, ok)

	// Deleting again is a no-op.
	c.Delete("orders", "doc-1")
}

func TestCache_PurgeIndex(t *testing.T) {
	c := newTestCache(t)
	for _, id := range []string{"a", "b", "c"} {
		c.Add("orders", id, 1)
	}
	c.Add("people", "a", 1)

	c.PurgeIndex("orders")

	for _, id := range []string{"a", "b", "c"} {
		_, ok := c.Get("orders", id)
		assert.False(t, ok, id)
	}
	_, ok := c.Get("people", "a")
	assert.True(t, ok)
}
