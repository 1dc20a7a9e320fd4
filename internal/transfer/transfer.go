// Package transfer moves values along graph edges into node input buffers.
//
// The simulation loop clears every buffer once at the start of a timestep
// (Reset) and fills each node's buffer just before that node steps (Fill).
// Because nodes step in schedule order, a non-lagged edge always finds its
// source's snapshot from the current timestep. Lagged edges read the previous
// timestep's row instead; on the first timestep there is none, and the input
// is left absent so the lagged node falls back to its seed.
package transfer

import (
	"context"
	"fmt"

	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/graph"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// Snapshots are node output snapshots keyed by node name.
type Snapshots map[string]node.Outputs

// Stage applies a graph's edges.
type Stage struct {
	graph *graph.Graph
}

// New returns a stage for g.
func New(g *graph.Graph) *Stage {
	return &Stage{graph: g}
}

// Reset clears the input buffer of every node.
func (s *Stage) Reset() {
	for _, e := range s.graph.Nodes() {
		e.Node.Inputs().Reset()
	}
}

// Fill writes every incoming edge of target into its input buffer, in
// declaration order. current holds the snapshots produced so far in this
// timestep; previous is the last committed row, or nil on the first timestep.
func (s *Stage) Fill(ctx context.Context, target *graph.Entry, current, previous Snapshots) error {
	logger := ctxlog.FromContext(ctx).With("node", target.Name())
	in := target.Node.Inputs()

	for _, e := range s.graph.Incoming(target.Name()) {
		src := current
		if e.Lagged {
			if previous == nil {
				logger.Debug("Lagged input left unset on first timestep.", "edge", e.String())
				continue
			}
			src = previous
		}

		snap, ok := src[e.Source]
		if !ok {
			return fmt.Errorf("edge %s: source has no snapshot", e)
		}
		v, ok := snap[e.SourceOutput]
		if !ok {
			return fmt.Errorf("edge %s: source snapshot has no output %q", e, e.SourceOutput)
		}
		v = node.Copy(v)

		if e.Kind == graph.Aggregated && e.Policy == registry.Sum {
			if err := in.Add(e.TargetInput, v); err != nil {
				return fmt.Errorf("edge %s: %w", e, err)
			}
			continue
		}
		in.Set(e.TargetInput, v)
	}

	logger.Debug("Inputs filled.", "inputs", in.Names())
	return nil
}
