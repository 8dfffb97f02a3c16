package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/http"
	"sync"

	"github.com/vk/gridseed/internal/ctxlog"
	"github.com/vk/gridseed/internal/registry"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	registry *registry.Registry

	httpServer *http.Server
	purged     bool

	mu      sync.Mutex
	lastErr error
}

// Option customizes an App.
type Option func(*appOptions)

type appOptions struct {
	modules []registry.Module
}

// WithModules replaces the core hook action modules.
func WithModules(modules ...registry.Module) Option {
	return func(o *appOptions) { o.modules = modules }
}

// New is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and registry.
func New(outW io.Writer, cfg *Config, opts ...Option) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	o := appOptions{modules: coreModules(outW)}
	for _, opt := range opts {
		opt(&o)
	}

	reg := registry.New(o.modules...)
	if err := reg.Validate(ctx); err != nil {
		return nil, fmt.Errorf("invalid action registry: %w", err)
	}
	logger.Debug("Hook actions registered.", "actions", reg.Names())

	c := *cfg
	if c.Seed == 0 {
		c.Seed = rand.Uint64()
		logger.Debug("Random seed picked.", "seed", c.Seed)
	}

	return &App{
		outW:     outW,
		logger:   logger,
		config:   &c,
		registry: reg,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Config returns the effective configuration.
func (a *App) Config() Config {
	return *a.config
}

func (a *App) setLastErr(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastErr = err
}

func (a *App) getLastErr() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastErr
}
