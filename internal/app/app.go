package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"

	"github.com/spf13/afero"

	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/modelfs"
	"github.com/specialistvlad/hydrogrid/internal/registry"
	"github.com/specialistvlad/hydrogrid/internal/simulation"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	fs       afero.Fs
	logger   *slog.Logger
	registry *registry.Registry
	config   *Config
	source   *modelfs.Source

	httpServer *http.Server
	progress   atomic.Pointer[simulation.Progress]
}

// NewApp is the constructor for the main application. Results and plans are
// written to outW, logs to logW. The model is loaded from fs here, so a
// malformed model fails before Run is ever called.
func NewApp(outW, logW io.Writer, cfg *Config, fs afero.Fs, modules ...registry.Module) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	reg := registry.New()
	if len(modules) == 0 {
		modules = coreModules
	}
	if err := reg.Use(modules...); err != nil {
		// A broken module list is a programmer error, so we panic.
		panic(err)
	}
	logger.Debug("All Go modules registered.", "count", len(modules), "types", reg.Types())

	src, err := modelfs.New(fs).Load(ctx, cfg.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model: %w", err)
	}
	logger.Info("Model loaded.", "model", src.Model.Name, "files", len(src.Files), "nodes", len(src.Model.Nodes), "drivers", len(src.Model.Drivers))

	return &App{
		outW:     outW,
		fs:       fs,
		logger:   logger,
		registry: reg,
		config:   cfg,
		source:   src,
	}, nil
}

// Registry returns the application's registry. This is primarily for testing.
func (a *App) Registry() *registry.Registry {
	return a.registry
}

// Progress returns the progress of the current run, or nil before a run
// has been prepared.
func (a *App) Progress() *simulation.Progress {
	return a.progress.Load()
}
