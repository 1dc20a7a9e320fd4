// Package simulation runs a scheduled graph over a range of days.
//
// Each day the loop refreshes the drivers, clears every input buffer, then
// fills and steps the nodes in schedule order. Only when every node has
// stepped successfully are the nodes committed and the day's row appended.
// Any failure aborts the run: nothing of the failing day is committed or
// recorded, and no partial results are returned.
package simulation

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/graph"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/scheduler"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
	"github.com/specialistvlad/hydrogrid/internal/transfer"
)

// Loop owns the per-day execution of a plan.
type Loop struct {
	plan     *scheduler.Plan
	drivers  *drivers.Registry
	stage    *transfer.Stage
	settings config.Settings
	progress *Progress
}

// New returns a loop. The plan's nodes must be freshly built: the loop does
// not reset node state.
func New(plan *scheduler.Plan, d *drivers.Registry, stage *transfer.Stage, settings config.Settings) *Loop {
	return &Loop{
		plan:     plan,
		drivers:  d,
		stage:    stage,
		settings: settings,
		progress: &Progress{},
	}
}

// Progress returns the live progress counters.
func (l *Loop) Progress() *Progress {
	return l.progress
}

// Run steps every day from the start date to the end date, inclusive.
func (l *Loop) Run(ctx context.Context) (*Results, error) {
	logger := ctxlog.FromContext(ctx)
	if err := l.settings.Validate(); err != nil {
		return nil, err
	}

	order := l.plan.Order()
	var columns []string
	var owners []columnOwner
	for _, e := range order {
		for _, out := range e.Node.Outputs() {
			columns = append(columns, e.Name()+"."+out)
			owners = append(owners, columnOwner{node: e.Name(), output: out})
		}
	}
	results := newResults(columns)

	days := l.settings.Days()
	l.progress.start(days)
	logger.Debug("Simulation starting.", "days", days, "node_count", len(order), "column_count", len(columns))

	var previous transfer.Snapshots
	for date := l.settings.Start; !date.After(l.settings.End); date = date.AddDate(0, 0, 1) {
		if err := ctx.Err(); err != nil {
			l.progress.fail()
			return nil, fmt.Errorf("simulation cancelled before %s: %w", date.Format(time.DateOnly), err)
		}

		current, err := l.step(ctx, order, date, previous)
		if err != nil {
			l.progress.fail()
			return nil, err
		}
		for _, e := range order {
			e.Node.Commit()
		}
		results.append(date, current, owners)
		previous = current
		l.progress.advance(date)
	}

	logger.Debug("Simulation finished.", "rows", results.Len())
	return results, nil
}

// step runs one day and returns the snapshots of every node. Nothing is
// committed here.
func (l *Loop) step(ctx context.Context, order []*graph.Entry, date time.Time, previous transfer.Snapshots) (transfer.Snapshots, error) {
	logger := ctxlog.FromContext(ctx).With("date", date.Format(time.DateOnly))

	if err := l.drivers.Refresh(date); err != nil {
		return nil, err
	}
	l.stage.Reset()

	current := make(transfer.Snapshots, len(order))
	for _, e := range order {
		fail := func(err error) error {
			return &simerr.KernelError{Node: e.Name(), Type: e.Spec.Type, Date: date, Err: err}
		}
		if err := l.stage.Fill(ctx, e, current, previous); err != nil {
			return nil, fail(err)
		}
		out, err := safeStep(ctx, e.Node, date, l.drivers)
		if err != nil {
			return nil, fail(err)
		}
		if err := checkOutputs(e.Node, out); err != nil {
			return nil, fail(err)
		}
		current[e.Name()] = out
	}
	logger.Debug("Timestep complete.")
	return current, nil
}

func safeStep(ctx context.Context, n node.Node, date time.Time, d drivers.Reader) (out node.Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("panic: %v", r)
		}
	}()
	return n.Step(ctx, date, d)
}

// checkOutputs makes sure a snapshot carries every declared output, so that
// downstream edges never read a hole.
func checkOutputs(n node.Node, out node.Outputs) error {
	for _, name := range n.Outputs() {
		if _, ok := out[name]; !ok {
			return fmt.Errorf("step returned no value for declared output %q", name)
		}
	}
	return nil
}
