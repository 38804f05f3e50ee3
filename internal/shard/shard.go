// Package shard implements one horizontal partition of an index: a bleve
// index plus the buffered mutation batch, generation tracking, reopen
// worker, and reference-counted searcher handles that give it near-real-time
// semantics.
package shard

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/flexsearch/flexsearch/internal/analysis"
	"github.com/flexsearch/flexsearch/internal/errors"
	"github.com/flexsearch/flexsearch/internal/schema"
)

// reopenInterval is the stale tolerance of the reopen worker: buffered
// mutations become searchable at most this long after the write.
const reopenInterval = 25 // milliseconds; see NewReopenWorker

// Shard owns one bleve index holding a fraction of an index's documents.
//
// Mutations buffer into a batch and are invisible to searchers until the
// next refresh. The generation counter increases on every buffered
// mutation; the visible generation advances when the batch executes.
type Shard struct {
	number int
	path   string
	idx    bleve.Index

	mu         sync.Mutex
	batch      *bleve.Batch
	pending    int
	gen        uint64
	visibleGen uint64
	dirty      bool
	closed     bool

	// refs counts outstanding searcher handles; Close waits on it.
	refs sync.WaitGroup

	reopen *ReopenWorker
}

// Open creates or opens shard number under the setting's directory layout
// (<base>/<index>/shards/<n>). A corrupted on-disk shard is cleared and
// recreated.
func Open(setting *schema.IndexSetting, number int) (*Shard, error) {
	im, err := analysis.BuildMapping(setting)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeOpeningIndexWriter, err)
	}

	s := &Shard{number: number}

	if setting.DirKind == schema.DirRam {
		idx, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeOpeningIndexWriter, err)
		}
		s.idx = idx
	} else {
		path := filepath.Join(setting.BaseDir, setting.Name, "shards", strconv.Itoa(number))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, errors.Wrap(errors.ErrCodeOpeningIndexWriter, err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("shard_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.Wrap(errors.ErrCodeCorruptIndex, removeErr)
			}
			slog.Info("shard_cleared", slog.String("path", path))
		}

		idx, err := bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, im)
		} else if err != nil && isCorruptionError(err) {
			slog.Warn("shard_open_failed",
				slog.String("path", path),
				slog.String("error", err.Error()))
			if removeErr := os.RemoveAll(path); removeErr != nil {
				return nil, errors.Wrap(errors.ErrCodeCorruptIndex, removeErr)
			}
			idx, err = bleve.New(path, im)
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeOpeningIndexWriter, err)
		}
		s.idx = idx
		s.path = path
	}

	s.batch = s.idx.NewBatch()
	s.reopen = NewReopenWorker(s)
	s.reopen.Start()
	return s, nil
}

// Number returns the shard's position within its index.
func (s *Shard) Number() int { return s.number }

// Add buffers a new document. It becomes searchable after the next refresh.
func (s *Shard) Add(id string, fields map[string]any) error {
	return s.mutate(func() error { return s.batch.Index(id, fields) })
}

// Update buffers a replacement for the document addressed by id. The
// document id is the index's native term, so replacement is by-id.
func (s *Shard) Update(id string, fields map[string]any) error {
	return s.mutate(func() error { return s.batch.Index(id, fields) })
}

// Delete buffers the removal of the document addressed by id.
func (s *Shard) Delete(id string) error {
	return s.mutate(func() error {
		s.batch.Delete(id)
		return nil
	})
}

func (s *Shard) mutate(apply func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("shard %d is closed", s.number)
	}
	if err := apply(); err != nil {
		return err
	}
	s.pending++
	s.gen++
	s.dirty = true
	return nil
}

// DeleteAll removes every document in the shard.
func (s *Shard) DeleteAll() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("shard %d is closed", s.number)
	}
	if err := s.flushLocked(); err != nil {
		return err
	}

	ids, err := s.allIDsLocked()
	if err != nil {
		return err
	}
	for _, id := range ids {
		s.batch.Delete(id)
		s.pending++
		s.gen++
	}
	s.dirty = true
	return s.flushLocked()
}

// allIDsLocked enumerates every document id with a match-all query.
func (s *Shard) allIDsLocked() ([]string, error) {
	count, err := s.idx.DocCount()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
	res, err := s.idx.Search(req)
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(res.Hits))
	for i, hit := range res.Hits {
		ids[i] = hit.ID
	}
	return ids, nil
}

// MaybeRefresh executes the buffered batch when there are pending
// mutations, making them searchable. Returns whether a refresh happened.
func (s *Shard) MaybeRefresh() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.pending == 0 {
		return false, nil
	}
	return true, s.flushLocked()
}

// Commit durably applies all buffered mutations and marks the shard clean.
// Durability past the flush is the responsibility of the underlying
// persister.
func (s *Shard) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("shard %d is closed", s.number)
	}
	if err := s.flushLocked(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

// HasUncommitted reports whether mutations happened since the last Commit.
func (s *Shard) HasUncommitted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty || s.pending > 0
}

func (s *Shard) flushLocked() error {
	if s.pending == 0 {
		return nil
	}
	if err := s.idx.Batch(s.batch); err != nil {
		return err
	}
	s.batch.Reset()
	s.pending = 0
	s.visibleGen = s.gen
	return nil
}

// Generation returns the tracking generation (increments per mutation).
func (s *Shard) Generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// VisibleGeneration returns the generation reflected by searchers.
func (s *Shard) VisibleGeneration() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visibleGen
}

// StoredVersion runs a point query for id and returns the stored version
// field of the most recent hit. Used by the write pipeline when the
// versioning cache misses.
func (s *Shard) StoredVersion(id string) (int, bool, error) {
	q := query.NewTermQuery(strings.ToLower(id))
	q.SetField(schema.FieldId)

	req := bleve.NewSearchRequestOptions(q, 1, 0, false)
	req.Fields = []string{schema.FieldVersion}

	res, err := s.idx.Search(req)
	if err != nil {
		return 0, false, err
	}
	if len(res.Hits) == 0 {
		return 0, false, nil
	}
	if v, ok := res.Hits[0].Fields[schema.FieldVersion].(float64); ok {
		return int(v), true, nil
	}
	return 0, false, nil
}

// Close stops the reopen worker, commits, waits for outstanding searcher
// handles, and releases the writer.
func (s *Shard) Close() error {
	s.reopen.Stop()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	flushErr := s.flushLocked()
	s.dirty = false
	s.closed = true
	s.mu.Unlock()

	s.refs.Wait()

	if err := s.idx.Close(); err != nil {
		return err
	}
	return flushErr
}

// validateIntegrity checks a bleve shard directory before opening.
// Returns nil when the directory is absent (it will be created).
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	metaPath := filepath.Join(path, "index_meta.json")
	info, err := os.Stat(metaPath)
	if os.IsNotExist(err) {
		return fmt.Errorf("index_meta.json missing (corrupted shard)")
	}
	if err != nil {
		return fmt.Errorf("cannot stat index_meta.json: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("index_meta.json is empty (corrupted)")
	}

	data, err := os.ReadFile(metaPath)
	if err != nil {
		return fmt.Errorf("cannot read index_meta.json: %w", err)
	}
	var meta map[string]interface{}
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("index_meta.json is corrupt: %w", err)
	}
	return nil
}

// isCorruptionError checks if an error indicates bleve index corruption.
func isCorruptionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "unexpected end of JSON") ||
		strings.Contains(errStr, "error parsing mapping JSON") ||
		strings.Contains(errStr, "failed to load segment") ||
		strings.Contains(errStr, "error opening bolt") ||
		err == bleve.ErrorIndexMetaCorrupt
}
