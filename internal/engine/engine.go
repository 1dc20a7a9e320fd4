// Package engine assembles a runnable simulation from a loaded model: it
// builds the drivers, the node graph, the execution plan and the transfer
// stage, in that order, and fails before any timestep if any of them is
// invalid.
package engine

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/graph"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
	"github.com/specialistvlad/hydrogrid/internal/scheduler"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
	"github.com/specialistvlad/hydrogrid/internal/simulation"
	"github.com/specialistvlad/hydrogrid/internal/transfer"
)

// Options tune Prepare.
type Options struct {
	// Fs is used for driver files and node tables. Defaults to the OS filesystem.
	Fs afero.Fs
	// BaseDir resolves relative file paths.
	BaseDir string
}

// Engine is a prepared, single-use simulation.
type Engine struct {
	model   *config.Model
	drivers *drivers.Registry
	plan    *scheduler.Plan
	loop    *simulation.Loop
}

// Prepare builds everything a run needs. Every error returned here is
// structural; no node has stepped.
func Prepare(ctx context.Context, model *config.Model, reg *registry.Registry, opts Options) (*Engine, error) {
	logger := ctxlog.FromContext(ctx)
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}

	if err := model.Settings.Validate(); err != nil {
		return nil, err
	}

	drv, err := drivers.FromModel(ctx, opts.Fs, opts.BaseDir, model.Drivers)
	if err != nil {
		return nil, err
	}
	g, err := graph.Build(ctx, model, reg)
	if err != nil {
		return nil, err
	}
	if err := loadNodeFiles(g, opts.Fs, opts.BaseDir); err != nil {
		return nil, err
	}
	if err := checkDriverRefs(g, drv); err != nil {
		return nil, err
	}
	plan, err := scheduler.Schedule(ctx, g)
	if err != nil {
		return nil, err
	}

	logger.Debug("Engine prepared.", "node_count", g.Len(), "edge_count", len(g.Edges()), "driver_count", len(drv.Names()))
	return &Engine{
		model:   model,
		drivers: drv,
		plan:    plan,
		loop:    simulation.New(plan, drv, transfer.New(g), model.Settings),
	}, nil
}

func loadNodeFiles(g *graph.Graph, fs afero.Fs, baseDir string) error {
	var errs *multierror.Error
	for _, e := range g.Nodes() {
		if fl, ok := e.Node.(node.FileLoader); ok {
			if err := fl.LoadFiles(fs, baseDir); err != nil {
				errs = multierror.Append(errs, simerr.Configf(e.Name(), "params", "%v", err))
			}
		}
	}
	return errs.ErrorOrNil()
}

// checkDriverRefs makes sure every driver a node reads is declared.
func checkDriverRefs(g *graph.Graph, drv *drivers.Registry) error {
	var errs *multierror.Error
	for _, e := range g.Nodes() {
		dep, ok := e.Node.(drivers.Dependent)
		if !ok {
			continue
		}
		for _, ref := range dep.DriverRefs() {
			if err := drv.Check(ref); err != nil {
				errs = multierror.Append(errs, simerr.Configf(e.Name(), "drivers", "%v", err))
			}
		}
	}
	return errs.ErrorOrNil()
}

// Plan returns the execution plan.
func (e *Engine) Plan() *scheduler.Plan {
	return e.plan
}

// Progress returns the live progress of the run.
func (e *Engine) Progress() *simulation.Progress {
	return e.loop.Progress()
}

// Run executes the simulation. The run id only labels the results; it plays
// no part in the computation.
func (e *Engine) Run(ctx context.Context) (*simulation.Results, error) {
	runID := uuid.NewString()
	logger := ctxlog.FromContext(ctx).With("run_id", runID)
	ctx = ctxlog.WithLogger(ctx, logger)

	started := time.Now()
	res, err := e.loop.Run(ctx)
	if err != nil {
		return nil, err
	}
	res.Meta = simulation.Metadata{
		RunID: runID,
		Model: e.model.Name,
		Start: e.model.Settings.Start,
		End:   e.model.Settings.End,
		Order: e.plan.Names(),
		Seeds: e.drivers.Seeds(),
	}
	logger.Debug("Run complete.", "rows", res.Len(), "duration", time.Since(started))
	return res, nil
}
