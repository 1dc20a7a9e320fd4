// Package scheduler computes the execution order of a graph once, at build
// time.
//
// The order is a topological sort over every edge except lagged ones: a
// lagged edge reads its source's previous-timestep snapshot, so it places no
// constraint on the current timestep. Ties are broken by declaration order,
// which makes the order a pure function of the model. A cycle that survives
// once lagged edges are removed is reported with its full path.
package scheduler

import (
	"context"
	"fmt"

	"github.com/xlab/treeprint"

	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/dag"
	"github.com/specialistvlad/hydrogrid/internal/graph"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
)

// Plan is a graph together with its cached execution order.
type Plan struct {
	graph *graph.Graph
	order []*graph.Entry
}

// Schedule orders g.
func Schedule(ctx context.Context, g *graph.Graph) (*Plan, error) {
	logger := ctxlog.FromContext(ctx)

	d := dag.New()
	for _, name := range g.Names() {
		if err := d.AddNode(name); err != nil {
			return nil, fmt.Errorf("scheduler: %w", err)
		}
	}
	lagged := 0
	for _, e := range g.Edges() {
		if e.Lagged {
			lagged++
			continue
		}
		if err := d.AddEdge(e.Source, e.Target); err != nil {
			return nil, fmt.Errorf("scheduler: %w", err)
		}
	}

	names, blocked := d.TopologicalSort()
	if len(blocked) > 0 {
		cycles := d.DetectCycles()
		logger.Debug("Schedule: cycles detected.", "blocked", blocked, "cycle_count", len(cycles))
		return nil, &simerr.CircularDependencyError{Cycles: cycles}
	}

	order := make([]*graph.Entry, len(names))
	for i, name := range names {
		order[i], _ = g.Node(name)
	}
	logger.Debug("Schedule: order computed.", "order", names, "lagged_edges", lagged)
	return &Plan{graph: g, order: order}, nil
}

// Graph returns the scheduled graph.
func (p *Plan) Graph() *graph.Graph {
	return p.graph
}

// Order returns the entries in execution order.
func (p *Plan) Order() []*graph.Entry {
	return append([]*graph.Entry(nil), p.order...)
}

// Names returns the node names in execution order.
func (p *Plan) Names() []string {
	out := make([]string, len(p.order))
	for i, e := range p.order {
		out[i] = e.Name()
	}
	return out
}

// Tree renders the plan: one branch per node in execution order, listing the
// edges that feed it.
func (p *Plan) Tree() string {
	tree := treeprint.NewWithRoot(fmt.Sprintf("execution plan (%d nodes)", len(p.order)))
	for i, e := range p.order {
		branch := tree.AddBranch(fmt.Sprintf("%d. %s (%s)", i+1, e.Name(), e.Spec.Type))
		for _, in := range p.graph.Incoming(e.Name()) {
			label := fmt.Sprintf("%s <- %s.%s [%s]", in.TargetInput, in.Source, in.SourceOutput, in.Kind)
			if in.Lagged {
				label += " (previous timestep)"
			}
			branch.AddNode(label)
		}
	}
	return tree.String()
}
