package services

import (
	"context"
	"os"

	"github.com/flexsearch/flexsearch/internal/analysis"
	"github.com/flexsearch/flexsearch/internal/config"
	"github.com/flexsearch/flexsearch/internal/errors"
	"github.com/flexsearch/flexsearch/internal/index"
	"github.com/flexsearch/flexsearch/internal/query"
	"github.com/flexsearch/flexsearch/internal/schema"
	"github.com/flexsearch/flexsearch/internal/script"
	"github.com/flexsearch/flexsearch/internal/search"
	"github.com/flexsearch/flexsearch/internal/store"
	"github.com/flexsearch/flexsearch/internal/versioning"
	"github.com/flexsearch/flexsearch/internal/writer"
)

// Engine wires the FlexSearch components into the service contracts.
type Engine struct {
	manager    *index.Manager
	pipeline   *writer.Pipeline
	settings   store.Store
	scripts    *script.Registry
	strategies *query.Strategies
}

// Compile-time conformance checks.
var (
	_ IndexService  = (*Engine)(nil)
	_ SearchService = (*Engine)(nil)
)

// NewEngine boots the engine: opens the settings store, restores persisted
// indexes, and starts the write pipeline.
func NewEngine(cfg *config.Config, scripts *script.Registry) (*Engine, error) {
	if scripts == nil {
		scripts = script.NewRegistry()
	}

	if err := os.MkdirAll(cfg.Paths.DataRoot, 0o755); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStoreFailed, err)
	}
	settings, err := store.OpenSQLite(cfg.Paths.SettingsPath)
	if err != nil {
		return nil, err
	}

	versions, err := versioning.New(cfg.Write.VersionCacheSize)
	if err != nil {
		_ = settings.Close()
		return nil, errors.Wrap(errors.ErrCodeInternal, err)
	}

	builder := schema.NewSettingsBuilder(scripts, analysis.BuiltinAnalyzer)
	manager := index.NewManager(cfg.Paths.DataRoot, builder, settings, versions)
	if err := manager.LoadAll(); err != nil {
		_ = settings.Close()
		return nil, err
	}

	return &Engine{
		manager:    manager,
		pipeline:   writer.NewPipeline(manager, versions, cfg.Write.QueueCapacity, cfg.Write.Workers),
		settings:   settings,
		scripts:    scripts,
		strategies: query.NewStrategies(),
	}, nil
}

func (e *Engine) AddIndex(def *schema.Index) error    { return e.manager.AddIndex(def) }
func (e *Engine) UpdateIndex(def *schema.Index) error { return e.manager.UpdateIndex(def) }
func (e *Engine) DeleteIndex(name string) error       { return e.manager.DeleteIndex(name) }
func (e *Engine) OpenIndex(name string) error         { return e.manager.OpenIndex(name) }
func (e *Engine) CloseIndex(name string) error        { return e.manager.CloseIndex(name) }

func (e *Engine) GetIndex(name string) (*schema.Index, error) { return e.manager.GetIndex(name) }
func (e *Engine) IndexExists(name string) bool                { return e.manager.IndexExists(name) }

func (e *Engine) IndexStatus(name string) (index.State, error) {
	return e.manager.IndexStatus(name)
}

func (e *Engine) PerformCommand(name string, cmd writer.Command) writer.Result {
	return e.pipeline.Perform(name, cmd)
}

func (e *Engine) PerformCommandAsync(name string, cmd writer.Command, reply chan<- writer.Result) {
	e.pipeline.PerformAsync(name, cmd, reply)
}

func (e *Engine) CommandQueueLen() int { return e.pipeline.QueueLen() }

// ShutDown drains the pipeline, closes every online index, and releases the
// settings store. Idempotent in effect; later service calls fail cleanly.
func (e *Engine) ShutDown() {
	e.pipeline.Close()
	e.manager.ShutDown()
	_ = e.settings.Close()
}

// Search compiles filter against the index and executes it.
func (e *Engine) Search(ctx context.Context, name string, filter *schema.SearchFilter, sq *search.SearchQuery) (*search.Results, error) {
	rt, err := e.manager.Runtime(name)
	if err != nil {
		return nil, err
	}
	compiler := query.NewCompiler(rt.Setting(), rt.Resolver(), e.strategies, e.scripts)
	q, err := compiler.Compile(filter)
	if err != nil {
		return nil, err
	}
	return search.Execute(ctx, rt, q, sq)
}

// SearchProfile resolves and executes a stored search profile.
func (e *Engine) SearchProfile(ctx context.Context, name string, pq *query.ProfileQuery, sq *search.SearchQuery) (*search.Results, error) {
	rt, err := e.manager.Runtime(name)
	if err != nil {
		return nil, err
	}
	compiler := query.NewCompiler(rt.Setting(), rt.Resolver(), e.strategies, e.scripts)
	q, err := compiler.CompileProfile(pq)
	if err != nil {
		return nil, err
	}
	return search.Execute(ctx, rt, q, sq)
}
