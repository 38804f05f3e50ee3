// Package writer implements the write pipeline: a bounded command queue
// served by a worker set, per-worker document templates, optimistic
// versioning, and deterministic routing into shard writers.
package writer

import (
	"strings"
	"sync"

	"github.com/flexsearch/flexsearch/internal/errors"
	"github.com/flexsearch/flexsearch/internal/index"
	"github.com/flexsearch/flexsearch/internal/versioning"
)

// CommandKind enumerates the write commands.
type CommandKind int

const (
	// CmdCreate inserts a document at version 1.
	CmdCreate CommandKind = iota
	// CmdUpdate replaces a document under optimistic concurrency.
	CmdUpdate
	// CmdDelete removes a document by id.
	CmdDelete
	// CmdDeleteByIndex removes every document of the index.
	CmdDeleteByIndex
	// CmdCommit durably flushes every shard of the index.
	CmdCommit
)

func (k CommandKind) String() string {
	switch k {
	case CmdCreate:
		return "create"
	case CmdUpdate:
		return "update"
	case CmdDelete:
		return "delete"
	case CmdDeleteByIndex:
		return "delete_by_index"
	case CmdCommit:
		return "commit"
	}
	return "unknown"
}

// Command is one write instruction for an index.
type Command struct {
	Kind   CommandKind
	Id     string
	Fields map[string]string
}

// Result is the outcome reported for a command.
type Result struct {
	Ok      bool
	Message string
}

type request struct {
	index string
	cmd   Command
	reply chan<- Result
}

// Runtimes resolves the live runtime of an online index. The index manager
// satisfies this.
type Runtimes interface {
	Runtime(name string) (*index.Runtime, error)
}

// Pipeline is the write pipeline. Producers enqueue (index, command) pairs;
// a fixed worker set drains them. Each worker owns one bounded queue and
// commands route onto a worker by document id, so commands for the same id
// are applied in submission order. A full queue applies backpressure on the
// producer.
type Pipeline struct {
	runtimes Runtimes
	versions *versioning.Cache

	queues []chan request
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewPipeline starts a pipeline with the given total queue capacity and
// worker count. Both must be positive; the capacity is split across the
// per-worker queues.
func NewPipeline(runtimes Runtimes, versions *versioning.Cache, capacity, workers int) *Pipeline {
	if workers < 1 {
		workers = 1
	}
	perWorker := capacity / workers
	if perWorker < 1 {
		perWorker = 1
	}

	p := &Pipeline{
		runtimes: runtimes,
		versions: versions,
		queues:   make([]chan request, workers),
	}
	for i := range p.queues {
		p.queues[i] = make(chan request, perWorker)
		p.wg.Add(1)
		go p.worker(p.queues[i])
	}
	return p
}

// Perform submits a command and waits for its result. A closed pipeline
// reports failure instead of accepting the command.
func (p *Pipeline) Perform(indexName string, cmd Command) Result {
	reply := make(chan Result, 1)
	if !p.submit(indexName, cmd, reply) {
		return closedResult()
	}
	return <-reply
}

// PerformAsync submits a command without waiting. The result is delivered
// on reply when non-nil; reply must have capacity for one send. A closed
// pipeline delivers a failure result.
func (p *Pipeline) PerformAsync(indexName string, cmd Command, reply chan<- Result) {
	if !p.submit(indexName, cmd, reply) && reply != nil {
		reply <- closedResult()
	}
}

// submit routes the command onto its worker queue. Returns false once the
// pipeline is closed; submissions must fail then, never panic.
func (p *Pipeline) submit(indexName string, cmd Command, reply chan<- Result) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return false
	}
	p.queues[p.route(cmd)] <- request{index: indexName, cmd: cmd, reply: reply}
	return true
}

// route picks the worker for a command: by id for document commands, worker
// zero for the id-less ones (commit, delete by index).
func (p *Pipeline) route(cmd Command) int {
	if cmd.Id == "" {
		return 0
	}
	return index.ShardOf(cmd.Id, len(p.queues))
}

// QueueLen reports how many commands are waiting across all workers.
func (p *Pipeline) QueueLen() int {
	n := 0
	for _, q := range p.queues {
		n += len(q)
	}
	return n
}

// Close stops accepting commands and waits for the workers to drain their
// queues. Idempotent.
func (p *Pipeline) Close() {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		for _, q := range p.queues {
			close(q)
		}
	}
	p.mu.Unlock()
	p.wg.Wait()
}

// worker drains one queue. Templates are confined to this goroutine: one
// per index, rebuilt when the index re-opens under a new setting.
func (p *Pipeline) worker(queue <-chan request) {
	defer p.wg.Done()

	templates := make(map[string]*Template)
	for req := range queue {
		err := p.apply(templates, req.index, req.cmd)
		if req.reply != nil {
			req.reply <- toResult(err)
		}
	}
}

func closedResult() Result {
	return toResult(errors.Newf(errors.ErrCodePipelineClosed, "write pipeline is closed"))
}

func toResult(err error) Result {
	if err != nil {
		return Result{Ok: false, Message: err.Error()}
	}
	return Result{Ok: true}
}

// apply executes one command. Errors are reported in the result; the worker
// never terminates on a command failure.
func (p *Pipeline) apply(templates map[string]*Template, indexName string, cmd Command) error {
	rt, err := p.runtimes.Runtime(indexName)
	if err != nil {
		return err
	}

	switch cmd.Kind {
	case CmdCreate:
		return p.create(template(templates, rt), rt, cmd)
	case CmdUpdate:
		return p.update(template(templates, rt), rt, cmd)
	case CmdDelete:
		return p.delete(rt, cmd)
	case CmdDeleteByIndex:
		return p.deleteByIndex(rt)
	case CmdCommit:
		return p.commit(rt)
	}
	return errors.Newf(errors.ErrCodeValidationFailed, "unknown command kind %d", cmd.Kind)
}

// template returns the worker's cached template for the runtime's index,
// building or rebuilding it when the setting changed.
func template(templates map[string]*Template, rt *index.Runtime) *Template {
	key := strings.ToLower(rt.Setting().Name)
	t, ok := templates[key]
	if !ok || t.Setting() != rt.Setting() {
		t = NewTemplate(rt.Setting())
		templates[key] = t
	}
	return t
}

// create pins the document at version 1 and pushes it via shard add.
func (p *Pipeline) create(t *Template, rt *index.Runtime, cmd Command) error {
	if cmd.Id == "" {
		return errors.MissingId()
	}
	indexName := rt.Setting().Name
	doc := t.Render(cmd.Id, 1, cmd.Fields)
	p.versions.Add(indexName, cmd.Id, 1)
	return rt.ShardFor(cmd.Id).Add(cmd.Id, doc)
}

// update advances the document version under compare-and-swap. A cache miss
// falls back to a point query on the owning shard; an unknown id degrades
// to create.
func (p *Pipeline) update(t *Template, rt *index.Runtime, cmd Command) error {
	if cmd.Id == "" {
		return errors.MissingId()
	}
	indexName := rt.Setting().Name
	shard := rt.ShardFor(cmd.Id)

	if cell, ok := p.versions.Get(indexName, cmd.Id); ok {
		next := cell.Version + 1
		if !p.versions.Update(indexName, cmd.Id, cell.Version, cell.Timestamp, next) {
			return errors.VersionMismatch(cmd.Id)
		}
		return shard.Update(cmd.Id, t.Render(cmd.Id, next, cmd.Fields))
	}

	stored, found, err := shard.StoredVersion(cmd.Id)
	if err != nil {
		return errors.Wrap(errors.ErrCodeSearchFailed, err)
	}
	if !found {
		return p.create(t, rt, cmd)
	}
	next := stored + 1
	p.versions.Add(indexName, cmd.Id, next)
	return shard.Add(cmd.Id, t.Render(cmd.Id, next, cmd.Fields))
}

func (p *Pipeline) delete(rt *index.Runtime, cmd Command) error {
	if cmd.Id == "" {
		return errors.MissingId()
	}
	p.versions.Delete(rt.Setting().Name, cmd.Id)
	return rt.ShardFor(cmd.Id).Delete(cmd.Id)
}

func (p *Pipeline) deleteByIndex(rt *index.Runtime) error {
	p.versions.PurgeIndex(rt.Setting().Name)
	var firstErr error
	for _, s := range rt.Shards() {
		if err := s.DeleteAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (p *Pipeline) commit(rt *index.Runtime) error {
	var firstErr error
	for _, s := range rt.Shards() {
		if err := s.Commit(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
