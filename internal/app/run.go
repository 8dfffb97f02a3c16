package app

import (
	"context"
	"fmt"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/engine"
	"github.com/vk/gridseed/internal/executor"
	"github.com/vk/gridseed/internal/group"
	"github.com/vk/gridseed/internal/parser"
	"github.com/vk/gridseed/internal/storage"
	"github.com/vk/gridseed/internal/tabular"
)

// Run executes the main application logic. With Watch set it blocks until
// ctx is cancelled, regenerating whenever a definition file changes.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.", "source", a.config.Source)

	if a.config.Watch {
		return a.watch(ctx)
	}
	_, err := a.Generate(ctx)
	return err
}

// Generate runs one full pipeline: parse, generate, group export and table
// export.
func (a *App) Generate(ctx context.Context) (*engine.Summary, error) {
	cfg := a.config
	logger := ctxlog.FromContext(ctx)

	if cfg.Purge && !a.purged {
		logger.Info("Purging store.", "path", cfg.TempDir)
		if err := storage.Purge(cfg.TempDir); err != nil {
			return nil, err
		}
		a.purged = true
	}

	project, err := parser.ParseNodes(ctx, cfg.Source, cfg.NodeExt)
	if err != nil {
		return nil, fmt.Errorf("failed to load nodes: %w", err)
	}
	groups, err := parser.ParseGroups(ctx, cfg.Source, cfg.GroupExt, a.registry)
	if err != nil {
		return nil, fmt.Errorf("failed to load groups: %w", err)
	}
	project.Groups = groups
	logger.Debug("Definitions loaded.", "nodes", len(project.Nodes), "runs", len(project.Keys), "groups", len(groups))

	store, err := storage.Open(ctx, cfg.TempDir)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	eng := engine.New(store, engine.Options{
		Executor: executor.Options{
			BatchSize: cfg.BatchSize,
			ChunkSize: cfg.ChunkSize,
			Workers:   cfg.Concurrency,
			Seed:      cfg.Seed,
		},
		KeepStaging: cfg.KeepTemp,
	})
	sum, err := eng.Generate(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("generation failed: %w", err)
	}

	if cfg.Export {
		if err := group.New(store, groups, project.Nodes, cfg.PageSize).Run(ctx); err != nil {
			return nil, fmt.Errorf("group export failed: %w", err)
		}
	}
	if cfg.Format != tabular.None {
		if err := store.Export(ctx, cfg.Out, cfg.Format, cfg.PageSize); err != nil {
			return nil, fmt.Errorf("export failed: %w", err)
		}
	}

	logger.Info("✅ Done.",
		"generated", len(sum.Generated),
		"skipped", len(sum.Skipped),
		"items", sum.ItemCount,
		"elapsed", sum.Elapsed,
	)
	return sum, nil
}
