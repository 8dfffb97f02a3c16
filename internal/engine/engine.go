package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/dag"
	"github.com/vk/gridseed/internal/executor"
	"github.com/vk/gridseed/internal/model"
	"github.com/vk/gridseed/internal/storage"
)

// Store is the storage surface a generation needs.
type Store interface {
	executor.Source
	Deps(q string) ([]string, error)
	Insert(ctx context.Context, name string, files []string) error
	SaveMeta(ctx context.Context, genID, runKey, version string) error
	LoadMeta(ctx context.Context, runKeys []string) ([]model.Metadata, error)
	StagingDir() string
}

// Options configures an Engine.
type Options struct {
	Executor executor.Options
	// KeepStaging leaves staged batch files on disk after a run is persisted.
	KeepStaging bool
	// NewID mints generation ids. Defaults to random UUIDs.
	NewID func() string
}

// Summary describes a finished generation.
type Summary struct {
	GenerationID string
	// Generated and Skipped hold run keys in execution order.
	Generated   []string
	Skipped     []string
	TargetCount int
	ItemCount   int
	Elapsed     time.Duration
}

// Engine executes projects against a store.
type Engine struct {
	store Store
	opts  Options
}

// New creates an engine.
func New(store Store, opts Options) *Engine {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Engine{store: store, opts: opts}
}

// Generate brings every run of p up to date. Nothing is executed when the
// dependency graph is invalid or cyclic.
func (e *Engine) Generate(ctx context.Context, p *model.Project) (*Summary, error) {
	start := time.Now()
	logger := ctxlog.FromContext(ctx)

	g, err := dag.BuildRunGraph(ctx, p, e.store.Deps)
	if err != nil {
		return nil, err
	}
	order, err := g.Order()
	if err != nil {
		return nil, err
	}

	sum := &Summary{GenerationID: e.opts.NewID()}
	logger.Info("🚀 Generation started.", "generation_id", sum.GenerationID, "runs", len(order))

	for _, key := range order {
		run := p.Runs[key]
		runCtx := ctxlog.With(ctx, "run_key", key)

		ancestors, err := g.Ancestors(key)
		if err != nil {
			return nil, err
		}
		metas, err := e.store.LoadMeta(runCtx, append(ancestors, key))
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", key, err)
		}
		if isFresh(sum.GenerationID, run, ancestors, metas, p) {
			ctxlog.FromContext(runCtx).Info("⏭️ Run is up to date, skipping.")
			sum.Skipped = append(sum.Skipped, key)
			continue
		}

		if desc, err := g.Descendants(key); err == nil && len(desc) > 0 {
			ctxlog.FromContext(runCtx).Debug("Run is stale, descendants will regenerate.", "descendants", desc)
		}
		stats, err := e.execute(runCtx, sum.GenerationID, run)
		if err != nil {
			ctxlog.FromContext(runCtx).Error("Run failed.", "error", err)
			return nil, fmt.Errorf("run %s: %w", key, err)
		}
		sum.Generated = append(sum.Generated, key)
		sum.TargetCount += stats.Target
		sum.ItemCount += stats.Generated
	}

	sum.Elapsed = time.Since(start)
	logger.Info("🏁 Generation finished.",
		"generation_id", sum.GenerationID,
		"generated", len(sum.Generated),
		"skipped", len(sum.Skipped),
		"items", sum.ItemCount,
		"elapsed", sum.Elapsed,
	)
	return sum, nil
}

// execute generates, persists and records a single run.
func (e *Engine) execute(ctx context.Context, genID string, run *model.Run) (executor.Stats, error) {
	logger := ctxlog.FromContext(ctx)
	staging := storage.NewStaging(e.store.StagingDir(), run.Key)
	ex := executor.New(run, e.store, staging, e.opts.Executor)

	if err := ex.Prepare(ctx); err != nil {
		return ex.Stats(), err
	}
	logger.Info("🚀 Generating run.", "target", ex.Stats().Target)

	files, err := ex.Exec(ctx)
	if err != nil {
		return ex.Stats(), err
	}
	if err := e.store.Insert(ctx, run.NodeName, files); err != nil {
		return ex.Stats(), err
	}
	if err := e.store.SaveMeta(ctx, genID, run.Key, run.NodeVersion); err != nil {
		return ex.Stats(), err
	}
	if !e.opts.KeepStaging {
		if err := staging.Clean(); err != nil {
			logger.Warn("Failed to remove staged batches.", "error", err)
		}
	}

	stats := ex.Stats()
	logger.Info("✅ Run generated.", "items", stats.Generated, "batches", stats.Batches, "elapsed", stats.Elapsed)
	return stats, nil
}

// isFresh reports whether run can be skipped given the metadata loaded for
// it and its ancestors.
func isFresh(genID string, run *model.Run, ancestors []string, metas []model.Metadata, p *model.Project) bool {
	byKey := make(map[string]model.Metadata, len(metas))
	for _, m := range metas {
		byKey[m.RunKey] = m
	}

	own, ok := byKey[run.Key]
	if !ok || own.Version != run.NodeVersion {
		return false
	}
	for _, key := range ancestors {
		m, ok := byKey[key]
		if !ok || m.GenerationID == genID {
			return false
		}
		if a, known := p.Runs[key]; known && m.Version != a.NodeVersion {
			return false
		}
	}
	return true
}
