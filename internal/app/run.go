package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/engine"
	"github.com/specialistvlad/hydrogrid/internal/simulation"
)

// Run executes the main application logic based on the App's configuration.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(ctx, a.config.HealthcheckPort)
		defer a.closeHealthcheckServer(ctx)
	}

	model := a.source.Model
	if err := applyDateOverrides(&model.Settings, a.config.Start, a.config.End); err != nil {
		return err
	}

	eng, err := engine.Prepare(ctx, model, a.registry, engine.Options{Fs: a.fs, BaseDir: a.source.BaseDir})
	if err != nil {
		return fmt.Errorf("failed to prepare simulation: %w", err)
	}
	a.progress.Store(eng.Progress())

	if a.config.PlanOnly {
		a.logger.Debug("Printing execution plan.")
		_, err := fmt.Fprintln(a.outW, eng.Plan().Tree())
		return err
	}

	a.logger.Info("Starting simulation.",
		"start", model.Settings.Start.Format(config.DateLayout),
		"end", model.Settings.End.Format(config.DateLayout),
		"days", model.Settings.Days(),
		"nodes", len(eng.Plan().Order()),
	)
	res, err := eng.Run(ctx)
	if err != nil {
		return fmt.Errorf("simulation failed: %w", err)
	}
	a.logger.Info("Simulation finished.", "run_id", res.Meta.RunID, "rows", res.Len(), "columns", len(res.Columns()))

	if err := a.writeResults(res); err != nil {
		return fmt.Errorf("failed to write results: %w", err)
	}
	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) writeResults(res *simulation.Results) error {
	if a.config.writesToStdout() {
		return res.WriteCSV(a.outW)
	}
	f, err := a.fs.Create(a.config.OutputPath)
	if err != nil {
		return err
	}
	if err := res.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	a.logger.Info("Results written.", "path", a.config.OutputPath)
	return f.Close()
}

// applyDateOverrides replaces the model's dates with the non-empty overrides.
func applyDateOverrides(s *config.Settings, start, end string) error {
	if start != "" {
		d, err := config.ParseDate(start)
		if err != nil {
			return err
		}
		s.Start = d
	}
	if end != "" {
		d, err := config.ParseDate(end)
		if err != nil {
			return err
		}
		s.End = d
	}
	return nil
}
