package executor

import (
	"bytes"
	"context"
	"fmt"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/model"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

// Task is one chunk of work: the arguments to evaluate and the seed the
// generation function is bound with.
type Task struct {
	Seed uint64
	Args []model.Args
}

// Pool evaluates tasks on a fixed number of workers. Tasks and results cross
// the worker boundary only as msgpack-encoded messages, so workers never share
// mutable state with the driver or with each other.
type Pool struct {
	workers int
}

// NewPool returns a pool with the given number of workers (at least one).
func NewPool(workers int) *Pool {
	return &Pool{workers: max(workers, 1)}
}

// Workers returns the pool size.
func (p *Pool) Workers() int { return p.workers }

type message struct {
	index   int
	seed    uint64
	payload []byte
}

// Run evaluates every task with fn and blocks until all of them return. The
// results keep task order, and within a task they keep argument order; nil
// entries are "no value". The first failure cancels the remaining tasks.
func (p *Pool) Run(ctx context.Context, runKey string, fn model.Func, tasks []Task) ([][]model.Record, error) {
	msgs := make([]message, len(tasks))
	for i, t := range tasks {
		payload, err := msgpack.Marshal(t.Args)
		if err != nil {
			return nil, fmt.Errorf("failed to encode chunk %d: %w", i, err)
		}
		msgs[i] = message{index: i, seed: t.Seed, payload: payload}
	}

	replies := make([][]byte, len(tasks))
	g, gctx := errgroup.WithContext(ctx)
	queue := make(chan message)

	g.Go(func() error {
		defer close(queue)
		for _, m := range msgs {
			select {
			case queue <- m:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < min(p.workers, len(tasks)); w++ {
		g.Go(func() error {
			return p.worker(gctx, w, runKey, fn, queue, replies)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([][]model.Record, len(replies))
	for i, r := range replies {
		recs, err := decodeRecords(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decode results of chunk %d: %w", i, err)
		}
		out[i] = recs
	}
	return out, nil
}

// worker is the processing loop for a single worker. Each worker writes only
// to the reply slots of the messages it received.
func (p *Pool) worker(ctx context.Context, id int, runKey string, fn model.Func, queue <-chan message, replies [][]byte) error {
	logger := ctxlog.FromContext(ctx).With("workerID", id)
	logger.Debug("Worker started.")
	defer logger.Debug("Worker finished.")

	for m := range queue {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		reply, err := evaluate(runKey, fn, m)
		if err != nil {
			logger.Error("Chunk evaluation failed.", "chunk", m.index, "error", err)
			return err
		}
		replies[m.index] = reply
	}
	return nil
}

// evaluate decodes a message, runs fn over it and encodes the results.
func evaluate(runKey string, fn model.Func, m message) (reply []byte, err error) {
	var args []model.Args
	dec := msgpack.NewDecoder(bytes.NewReader(m.payload))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&args); err != nil {
		return nil, fmt.Errorf("failed to decode chunk %d: %w", m.index, err)
	}

	index := -1
	defer func() {
		if r := recover(); r != nil {
			err = &model.GenerationError{RunKey: runKey, Index: index, Err: fmt.Errorf("panic: %v", r)}
		}
	}()

	call := fn.Bind(m.seed)
	results := make([]map[string]any, len(args))
	for i, a := range args {
		index = a.Index
		rec, err := call(a)
		if err != nil {
			return nil, &model.GenerationError{RunKey: runKey, Index: a.Index, Err: err}
		}
		results[i] = rec
	}
	return msgpack.Marshal(results)
}

func decodeRecords(b []byte) ([]model.Record, error) {
	var raw []map[string]any
	dec := msgpack.NewDecoder(bytes.NewReader(b))
	dec.UseLooseInterfaceDecoding(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	out := make([]model.Record, len(raw))
	for i, r := range raw {
		if r != nil {
			out[i] = model.Record(r)
		}
	}
	return out, nil
}
