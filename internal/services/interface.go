// Package services exposes the FlexSearch engine as two service contracts:
// index lifecycle plus writes, and search. An embedding process (the CLI
// server, or another Go program) talks to the engine exclusively through
// these interfaces.
package services

import (
	"context"

	"github.com/flexsearch/flexsearch/internal/index"
	"github.com/flexsearch/flexsearch/internal/query"
	"github.com/flexsearch/flexsearch/internal/schema"
	"github.com/flexsearch/flexsearch/internal/search"
	"github.com/flexsearch/flexsearch/internal/writer"
)

// IndexService manages index lifecycles and the write command stream.
//
// Implementations must be thread-safe for concurrent use. Lifecycle
// operations are synchronous; commands go through the bounded write
// pipeline and apply backpressure when it is full.
type IndexService interface {
	// AddIndex persists a new index definition and, when the definition
	// is marked online, builds its runtime.
	AddIndex(def *schema.Index) error

	// UpdateIndex replaces an index definition. An online index is
	// closed and re-opened under the new setting.
	UpdateIndex(def *schema.Index) error

	// DeleteIndex closes the index if open and removes its definition,
	// version cells, and data directory.
	DeleteIndex(name string) error

	// OpenIndex builds the runtime for a persisted offline index.
	OpenIndex(name string) error

	// CloseIndex commits and releases all shards of an online index.
	CloseIndex(name string) error

	// GetIndex returns the persisted definition.
	GetIndex(name string) (*schema.Index, error)

	// IndexExists reports whether the index is known in any state.
	IndexExists(name string) bool

	// IndexStatus returns the lifecycle state.
	IndexStatus(name string) (index.State, error)

	// PerformCommand applies a write command and waits for its result.
	PerformCommand(name string, cmd writer.Command) writer.Result

	// PerformCommandAsync applies a write command without waiting.
	// The result is delivered on reply when non-nil; reply must have
	// capacity for one send.
	PerformCommandAsync(name string, cmd writer.Command, reply chan<- writer.Result)

	// CommandQueueLen reports how many commands are waiting in the
	// write pipeline.
	CommandQueueLen() int

	// ShutDown drains the write pipeline and closes every online index.
	ShutDown()
}

// SearchService executes searches against online indexes.
type SearchService interface {
	// Search compiles the filter tree and runs it, shaped by sq.
	Search(ctx context.Context, name string, filter *schema.SearchFilter, sq *search.SearchQuery) (*search.Results, error)

	// SearchProfile resolves a stored profile, binds the request fields
	// into it, and runs the compiled query.
	SearchProfile(ctx context.Context, name string, pq *query.ProfileQuery, sq *search.SearchQuery) (*search.Results, error)
}
