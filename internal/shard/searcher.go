package shard

import (
	"fmt"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	index "github.com/blevesearch/bleve_index_api"
)

// Searcher is a reference-counted handle on a shard's search view. Every
// Acquire must pair with exactly one Release on all exit paths; Close waits
// for outstanding handles before releasing the writer.
type Searcher struct {
	shard *Shard
	gen   uint64
	once  sync.Once
}

// AcquireSearcher returns a handle reflecting the shard's currently visible
// generation. Fails once the shard is closed. The refcount moves under the
// shard lock: Close flips closed before it waits, so the counter never
// rises concurrently with the wait.
func (s *Shard) AcquireSearcher() (*Searcher, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("shard %d is closed", s.number)
	}
	s.refs.Add(1)
	return &Searcher{shard: s, gen: s.visibleGen}, nil
}

// Index exposes the underlying search view.
func (h *Searcher) Index() bleve.Index { return h.shard.idx }

// Shard returns the owning shard's number.
func (h *Searcher) Shard() int { return h.shard.number }

// Generation returns the visible generation at acquire time.
func (h *Searcher) Generation() uint64 { return h.gen }

// Document fetches the internal document for id, used for highlight
// fragment extraction.
func (h *Searcher) Document(id string) (index.Document, error) {
	return h.shard.idx.Document(id)
}

// Release returns the handle. Releasing more than once is a no-op.
func (h *Searcher) Release() {
	h.once.Do(h.shard.refs.Done)
}

// ReopenWorker periodically refreshes its shard so that buffered mutations
// become searchable within the stale tolerance. It holds a back-reference
// to the shard (relation, not ownership); Stop terminates it.
type ReopenWorker struct {
	shard    *Shard
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewReopenWorker creates a worker for s. Start must be called to run it.
func NewReopenWorker(s *Shard) *ReopenWorker {
	return &ReopenWorker{
		shard: s,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
}

// Start launches the refresh loop.
func (w *ReopenWorker) Start() {
	go w.run()
}

func (w *ReopenWorker) run() {
	defer close(w.done)

	ticker := time.NewTicker(reopenInterval * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-w.stop:
			return
		case <-ticker.C:
			// Refresh errors are swallowed; the next tick retries.
			_, _ = w.shard.MaybeRefresh()
		}
	}
}

// Stop terminates the loop and waits for it to exit. Idempotent.
func (w *ReopenWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stop) })
	<-w.done
}
