// Package index manages the lifecycle of FlexSearch indexes: building shard
// runtimes from settings, the per-index state machine, the process-wide
// registries, and the commit/refresh schedulers.
package index

import (
	"context"

	"github.com/flexsearch/flexsearch/internal/analysis"
	"github.com/flexsearch/flexsearch/internal/errors"
	"github.com/flexsearch/flexsearch/internal/schema"
	"github.com/flexsearch/flexsearch/internal/shard"
)

// State is the lifecycle state of an index.
type State int

const (
	StateOpening State = iota
	StateOnline
	StateClosing
	StateOffline
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOnline:
		return "online"
	case StateClosing:
		return "closing"
	case StateOffline:
		return "offline"
	}
	return "unknown"
}

// Runtime is one online index: its immutable setting, its shards, the
// analyzer resolver shared by query compilation, and the cancellation
// token driving the schedulers.
type Runtime struct {
	setting  *schema.IndexSetting
	shards   []*shard.Shard
	resolver *analysis.Resolver

	ctx    context.Context
	cancel context.CancelFunc
}

// OpenRuntime opens all shards for setting. On any failure the already
// opened shards are closed before returning.
func OpenRuntime(setting *schema.IndexSetting) (*Runtime, error) {
	im, err := analysis.BuildMapping(setting)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeOpeningIndexWriter, err)
	}

	shards := make([]*shard.Shard, 0, setting.ShardCount)
	for i := 0; i < setting.ShardCount; i++ {
		s, err := shard.Open(setting, i)
		if err != nil {
			for _, open := range shards {
				_ = open.Close()
			}
			return nil, err
		}
		shards = append(shards, s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runtime{
		setting:  setting,
		shards:   shards,
		resolver: analysis.NewResolver(im),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Setting returns the immutable index setting.
func (r *Runtime) Setting() *schema.IndexSetting { return r.setting }

// Shards returns the ordered shard list.
func (r *Runtime) Shards() []*shard.Shard { return r.shards }

// ShardFor routes a document id to its owning shard.
func (r *Runtime) ShardFor(id string) *shard.Shard {
	return r.shards[ShardOf(id, len(r.shards))]
}

// Resolver returns the analyzer resolver for query compilation.
func (r *Runtime) Resolver() *analysis.Resolver { return r.resolver }

// Close cancels the schedulers, commits and closes every shard. Shard close
// errors are collected but do not stop the remaining shards from closing.
func (r *Runtime) Close() error {
	r.cancel()

	var firstErr error
	for _, s := range r.shards {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
