// Package testutil provides the harness used by the integration tests: a
// project folder on disk and an app configured to generate it.
package testutil

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/gridseed/internal/app"
	"github.com/vk/gridseed/internal/engine"
	"github.com/vk/gridseed/internal/registry"
)

// Project is a definition folder together with its store and output folders.
// Generating the same Project repeatedly reuses the store, so incremental
// behavior can be observed across runs.
type Project struct {
	t    *testing.T
	Dir  string
	Temp string
	Out  string
}

// NewProject writes files (slash separated paths relative to the project
// root) into a fresh temporary folder.
func NewProject(t *testing.T, files map[string]string) *Project {
	t.Helper()
	root := t.TempDir()
	p := &Project{
		t:    t,
		Dir:  filepath.Join(root, "defs"),
		Temp: filepath.Join(root, "temp"),
		Out:  filepath.Join(root, "out"),
	}
	require.NoError(t, os.MkdirAll(p.Dir, 0o755))
	p.Write(files)
	return p
}

// Write creates or replaces files in the project.
func (p *Project) Write(files map[string]string) {
	p.t.Helper()
	for name, content := range files {
		path := filepath.Join(p.Dir, filepath.FromSlash(name))
		require.NoError(p.t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(p.t, os.WriteFile(path, []byte(content), 0o644))
	}
}

// Remove deletes a file from the project.
func (p *Project) Remove(name string) {
	p.t.Helper()
	require.NoError(p.t, os.Remove(filepath.Join(p.Dir, filepath.FromSlash(name))))
}

// HarnessResult holds the outcomes of an integration test run.
type HarnessResult struct {
	LogOutput string
	Summary   *engine.Summary
	Err       error
	App       *app.App
}

// Options adjusts the configuration of a single run.
type Options struct {
	Mutate  func(*app.Config)
	Modules []registry.Module
}

// Run generates the project with small batches and a fixed seed.
func (p *Project) Run(opts Options) *HarnessResult {
	p.t.Helper()
	return p.RunWithContext(context.Background(), opts)
}

// RunWithContext is Run with a caller provided context.
func (p *Project) RunWithContext(ctx context.Context, opts Options) *HarnessResult {
	p.t.Helper()

	cfg := app.DefaultConfig()
	cfg.Source = p.Dir
	cfg.TempDir = p.Temp
	cfg.Out = p.Out
	cfg.BatchSize = 10
	cfg.ChunkSize = 3
	cfg.Concurrency = 4
	cfg.Seed = 1
	cfg.LogLevel = "debug"
	if opts.Mutate != nil {
		opts.Mutate(&cfg)
	}
	valid, err := app.NewConfig(cfg)
	require.NoError(p.t, err)

	logBuffer := &app.SafeBuffer{}
	var appOpts []app.Option
	if opts.Modules != nil {
		appOpts = append(appOpts, app.WithModules(opts.Modules...))
	}
	testApp, err := app.New(logBuffer, valid, appOpts...)
	if err != nil {
		return &HarnessResult{LogOutput: logBuffer.String(), Err: err}
	}

	sum, runErr := testApp.Generate(ctx)

	if os.Getenv("GRIDSEED_TEST_LOGS") == "true" {
		p.t.Logf("--- Full Log Output for %s ---\n%s", p.t.Name(), logBuffer.String())
	}
	return &HarnessResult{
		LogOutput: logBuffer.String(),
		Summary:   sum,
		Err:       runErr,
		App:       testApp,
	}
}
