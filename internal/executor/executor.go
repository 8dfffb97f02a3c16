package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/hclfunc"
	"github.com/vk/gridseed/internal/model"
)

const (
	DefaultBatchSize = 100000
	DefaultChunkSize = 200
)

// Source is the query surface a run reads its target and parameters from.
type Source interface {
	Count(ctx context.Context, q string) (int, error)
	Exec(ctx context.Context, q string, page, size int) ([]model.Record, error)
}

// Stager persists one generated batch and returns the staged file path.
type Stager interface {
	Dump(batch int, records []model.Record) (string, error)
}

// Options configures batching and parallelism.
type Options struct {
	BatchSize int
	ChunkSize int
	Workers   int
	// Seed is the base seed every chunk seed is derived from.
	Seed uint64
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.ChunkSize <= 0 {
		o.ChunkSize = DefaultChunkSize
	}
	if o.Workers <= 0 {
		o.Workers = 1
	}
	return o
}

// State is the lifecycle position of an executor.
type State int

const (
	Pending State = iota
	Prepared
	Running
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Prepared:
		return "prepared"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Stats summarizes an execution.
type Stats struct {
	Target    int
	Generated int
	Batches   int
	Chunks    int
	Elapsed   time.Duration
}

// Executor generates the records of a single run.
type Executor struct {
	run   *model.Run
	src   Source
	stage Stager
	opts  Options
	pool  *Pool

	state State
	stats Stats
	files []string
}

// New creates an executor in the Pending state.
func New(run *model.Run, src Source, stage Stager, opts Options) *Executor {
	opts = opts.withDefaults()
	return &Executor{
		run:   run,
		src:   src,
		stage: stage,
		opts:  opts,
		pool:  NewPool(opts.Workers),
	}
}

// State returns the current lifecycle state.
func (e *Executor) State() State { return e.state }

// Stats returns the statistics collected so far.
func (e *Executor) Stats() Stats { return e.stats }

// Files returns the staged files written so far, in batch order.
func (e *Executor) Files() []string { return append([]string(nil), e.files...) }

// Prepare resolves the target count from the run's source query.
func (e *Executor) Prepare(ctx context.Context) error {
	if e.state != Pending {
		return fmt.Errorf("executor for %s cannot prepare in state %s", e.run.Key, e.state)
	}
	n, err := e.src.Count(ctx, e.run.Source)
	if err != nil {
		e.state = Failed
		return err
	}
	if n < 0 {
		e.state = Failed
		return &model.QueryError{Query: e.run.Source, Err: fmt.Errorf("negative target count %d", n)}
	}
	e.stats.Target = n
	e.state = Prepared
	return nil
}

// Exec generates every batch and stages it. It returns the staged files in
// batch order. Items whose function returned no value are dropped.
func (e *Executor) Exec(ctx context.Context) ([]string, error) {
	if e.state != Prepared {
		return nil, fmt.Errorf("executor for %s cannot execute in state %s", e.run.Key, e.state)
	}
	e.state = Running
	start := time.Now()
	defer func() { e.stats.Elapsed = time.Since(start) }()

	logger := ctxlog.FromContext(ctx)

	plan := Plan(e.stats.Target, e.opts.BatchSize, e.opts.ChunkSize)
	for _, b := range plan {
		if err := e.batch(ctx, b); err != nil {
			e.state = Failed
			return nil, err
		}
		logger.Debug("Batch staged.", "batch", b.Index, "of", len(plan), "size", b.Size())
	}

	e.state = Completed
	return e.Files(), nil
}

func (e *Executor) batch(ctx context.Context, b Batch) error {
	params, err := e.src.Exec(ctx, e.run.Source, b.Index, e.opts.BatchSize)
	if err != nil {
		return err
	}
	if len(params) < b.Size() {
		return &model.QueryError{
			Query: e.run.Source,
			Err:   fmt.Errorf("batch %d returned %d rows, expected %d", b.Index, len(params), b.Size()),
		}
	}

	tasks := make([]Task, len(b.Chunks))
	for i, c := range b.Chunks {
		args := make([]model.Args, 0, c.Size())
		for idx := c.From; idx < c.To; idx++ {
			args = append(args, model.Args{Index: idx, ID: idx + 1, Params: params[idx-b.From]})
		}
		tasks[i] = Task{Seed: hclfunc.DeriveSeed(e.opts.Seed, e.run.Key, c.From), Args: args}
	}

	results, err := e.pool.Run(ctx, e.run.Key, e.run.Func, tasks)
	if err != nil {
		return err
	}

	records := make([]model.Record, 0, b.Size())
	for _, chunk := range results {
		for _, r := range chunk {
			if r != nil {
				records = append(records, r)
			}
		}
	}

	path, err := e.stage.Dump(b.Index, records)
	if err != nil {
		return fmt.Errorf("failed to stage batch %d of %s: %w", b.Index, e.run.Key, err)
	}
	e.files = append(e.files, path)
	e.stats.Generated += len(records)
	e.stats.Batches++
	e.stats.Chunks += len(b.Chunks)
	return nil
}
