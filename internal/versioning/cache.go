// Package versioning tracks per-document version counters for optimistic
// concurrency. The cache is write-through in memory only: it is not a
// system of record, and a miss is answered by a point query on the index.
package versioning

import (
	"hash/fnv"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const numStripes = 16

// Cell is one versioning entry: the current version (>= 1) and the
// timestamp of the last update.
type Cell struct {
	Version   int
	Timestamp int64
}

// Cache is a striped, bounded version cache keyed by (index name, doc id).
// Updates are per-key atomic compare-and-swap.
type Cache struct {
	stripes [numStripes]*stripe
}

type stripe struct {
	mu      sync.Mutex
	entries *lru.Cache[string, Cell]
}

// New creates a cache holding up to capacity entries per stripe.
func New(capacity int) (*Cache, error) {
	c := &Cache{}
	for i := range c.stripes {
		entries, err := lru.New[string, Cell](capacity)
		if err != nil {
			return nil, err
		}
		c.stripes[i] = &stripe{entries: entries}
	}
	return c, nil
}

// Get returns the cell for (index, id) if cached.
func (c *Cache) Get(index, id string) (Cell, bool) {
	k := key(index, id)
	s := c.stripe(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries.Get(k)
}

// Add inserts a fresh cell for (index, id). Returns false when a cell is
// already present.
func (c *Cache) Add(index, id string, version int) bool {
	k := key(index, id)
	s := c.stripe(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries.Get(k); ok {
		return false
	}
	s.entries.Add(k, Cell{Version: version, Timestamp: now()})
	return true
}

// Update performs an atomic compare-and-swap: the cell advances to
// newVersion only if the current (version, timestamp) pair matches the
// expectation. Returns false on mismatch or absence.
func (c *Cache) Update(index, id string, expectedVersion int, expectedTs int64, newVersion int) bool {
	k := key(index, id)
	s := c.stripe(k)
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.entries.Get(k)
	if !ok || cur.Version != expectedVersion || cur.Timestamp != expectedTs {
		return false
	}
	s.entries.Add(k, Cell{Version: newVersion, Timestamp: now()})
	return true
}

// Delete removes the cell for (index, id). Removing an absent cell is a
// no-op.
func (c *Cache) Delete(index, id string) {
	k := key(index, id)
	s := c.stripe(k)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries.Remove(k)
}

// PurgeIndex drops every cell belonging to index. Called on index delete.
func (c *Cache) PurgeIndex(index string) {
	prefix := strings.ToLower(index) + "\x00"
	for _, s := range c.stripes {
		s.mu.Lock()
		for _, k := range s.entries.Keys() {
			if strings.HasPrefix(k, prefix) {
				s.entries.Remove(k)
			}
		}
		s.mu.Unlock()
	}
}

func (c *Cache) stripe(k string) *stripe {
	h := fnv.New32a()
	_, _ = h.Write([]byte(k))
	return c.stripes[h.Sum32()%numStripes]
}

func key(index, id string) string {
	return strings.ToLower(index) + "\x00" + id
}

func now() int64 {
	return time.Now().UnixNano()
}
