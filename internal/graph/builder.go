package graph

import (
	"context"
	"fmt"
	"slices"

	"github.com/hashicorp/go-multierror"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/nodeid"
	"github.com/specialistvlad/hydrogrid/internal/registry"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
)

// Builder accumulates nodes and edges into a Graph.
type Builder struct {
	reg   *registry.Registry
	graph *Graph
	// fed tracks explicit and single inputs already claimed per node.
	fed map[string]map[string]string
}

// NewBuilder returns a builder backed by the given node type registry.
func NewBuilder(reg *registry.Registry) *Builder {
	return &Builder{reg: reg, graph: newGraph(), fed: map[string]map[string]string{}}
}

// Graph returns the graph built so far.
func (b *Builder) Graph() *Graph {
	return b.graph
}

// RegisterNode builds a node of the given type and adds it to the graph.
func (b *Builder) RegisterNode(ctx context.Context, id, typ string, params map[string]any) error {
	logger := ctxlog.FromContext(ctx)

	if !nodeid.ValidName(id) {
		return simerr.Configf(id, "name", "invalid node name %q", id)
	}
	if _, exists := b.graph.byName[id]; exists {
		return simerr.Configf(id, "name", "duplicate node name %q", id)
	}
	n, spec, err := b.reg.Build(id, typ, params)
	if err != nil {
		return err
	}
	if n.Name() != id {
		return simerr.Configf(id, "name", "factory for %q returned a node named %q", typ, n.Name())
	}
	if len(n.Outputs()) == 0 {
		return simerr.Configf(id, "type", "node type %q declares no outputs", typ)
	}

	b.graph.addEntry(&Entry{Node: n, Spec: spec})
	logger.Debug("Node registered.", "node", id, "type", typ, "index", b.graph.Len()-1)
	return nil
}

// RegisterEdgesFromDeclaration resolves the dependency declaration of a
// registered node into edges. Every problem found is returned, joined.
func (b *Builder) RegisterEdgesFromDeclaration(ctx context.Context, nodeID string, decl config.Dependencies) error {
	logger := ctxlog.FromContext(ctx).With("node", nodeID)

	target, ok := b.graph.byName[nodeID]
	if !ok {
		return simerr.Configf(nodeID, "", "edges declared for unregistered node %q", nodeID)
	}
	spec := target.Spec

	var errs *multierror.Error
	var edges []*Edge
	declared := map[string]bool{}

	if len(decl.Inflows) > 0 {
		declared[spec.Aggregation.Input] = true
		if !spec.Aggregation.Accepts() {
			errs = multierror.Append(errs, simerr.Configf(nodeID, "inflows", "node type %q does not accept inflows", spec.Type))
		} else {
			for i, raw := range decl.Inflows {
				ref, err := b.resolve(nodeID, "inflows", raw)
				if err != nil {
					errs = multierror.Append(errs, err)
					continue
				}
				input := spec.Aggregation.Input
				if spec.Aggregation.Policy == registry.Indexed {
					input = fmt.Sprintf("%s_%d", input, i+1)
				}
				edges = append(edges, &Edge{
					Source: ref.Node, SourceOutput: ref.Output,
					Target: nodeID, TargetInput: input,
					Kind: Aggregated, Policy: spec.Aggregation.Policy,
				})
			}
		}
	}

	if decl.Source != "" {
		declared[spec.Single] = true
		if spec.Single == "" {
			errs = multierror.Append(errs, simerr.Configf(nodeID, "source", "node type %q does not accept a source", spec.Type))
		} else if ref, err := b.resolve(nodeID, "source", decl.Source); err != nil {
			errs = multierror.Append(errs, err)
		} else {
			edges = append(edges, &Edge{
				Source: ref.Node, SourceOutput: ref.Output,
				Target: nodeID, TargetInput: spec.Single,
				Kind: Single,
			})
		}
	}

	for _, c := range decl.Connections {
		declared[c.Input] = true
		if !spec.AcceptsInput(c.Input) {
			errs = multierror.Append(errs, simerr.Configf(nodeID, "connection",
				"node type %q has no input %q (inputs: %v)", spec.Type, c.Input, spec.Inputs))
			continue
		}
		raw := c.Source
		if c.Output != "" {
			raw = c.Source + "." + c.Output
		}
		ref, err := b.resolve(nodeID, "connection", raw)
		if err != nil {
			errs = multierror.Append(errs, err)
			continue
		}
		edges = append(edges, &Edge{
			Source: ref.Node, SourceOutput: ref.Output,
			Target: nodeID, TargetInput: c.Input,
			Kind: Explicit,
		})
	}

	for _, in := range spec.Required {
		if !declared[in] {
			errs = multierror.Append(errs, simerr.Configf(nodeID, "connection",
				"required input %q of node type %q is not connected", in, spec.Type))
		}
	}

	for _, e := range edges {
		if e.Kind != Aggregated || e.Policy == registry.Indexed {
			if err := b.claim(e); err != nil {
				errs = multierror.Append(errs, err)
				continue
			}
		}
		e.Lagged = spec.LagBreaking
		b.graph.addEdge(e)
		logger.Debug("Edge registered.", "edge", e.String())
	}
	return errs.ErrorOrNil()
}

// resolve parses a reference and checks that the source node and output exist.
func (b *Builder) resolve(nodeID, field, raw string) (nodeid.Ref, error) {
	ref, err := nodeid.Parse(raw)
	if err != nil {
		return nodeid.Ref{}, simerr.Configf(nodeID, field, "%v", err)
	}
	src, ok := b.graph.byName[ref.Node]
	if !ok {
		return nodeid.Ref{}, simerr.NewUndefinedComponentError(nodeID, raw, ref.Node, b.graph.Names())
	}
	outputs := src.Node.Outputs()
	if ref.Output == "" {
		return ref.WithOutput(outputs[0]), nil
	}
	if !slices.Contains(outputs, ref.Output) {
		return nodeid.Ref{}, simerr.Configf(nodeID, field,
			"reference to undeclared output %q on node %q (outputs: %v)", ref.Output, ref.Node, outputs)
	}
	return ref, nil
}

// claim makes sure an input slot is fed by at most one edge.
func (b *Builder) claim(e *Edge) error {
	slots, ok := b.fed[e.Target]
	if !ok {
		slots = map[string]string{}
		b.fed[e.Target] = slots
	}
	if prev, taken := slots[e.TargetInput]; taken {
		return simerr.Configf(e.Target, "connection", "input %q is fed by both %s and %s.%s",
			e.TargetInput, prev, e.Source, e.SourceOutput)
	}
	slots[e.TargetInput] = e.Source + "." + e.SourceOutput
	return nil
}

// Build registers every node of the model, then every edge.
func Build(ctx context.Context, model *config.Model, reg *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: creating nodes.", "node_count", len(model.Nodes))

	b := NewBuilder(reg)

	var nodeErrs *multierror.Error
	for _, decl := range model.Nodes {
		if err := b.RegisterNode(ctx, decl.Name, decl.Type, decl.Params); err != nil {
			nodeErrs = multierror.Append(nodeErrs, err)
		}
	}
	if err := nodeErrs.ErrorOrNil(); err != nil {
		return nil, err
	}

	logger.Debug("Build: linking nodes.")
	var edgeErrs *multierror.Error
	for _, decl := range model.Nodes {
		if err := b.RegisterEdgesFromDeclaration(ctx, decl.Name, decl.Deps); err != nil {
			edgeErrs = multierror.Append(edgeErrs, err)
		}
	}
	if err := edgeErrs.ErrorOrNil(); err != nil {
		return nil, err
	}

	logger.Debug("Build: graph complete.", "node_count", b.graph.Len(), "edge_count", len(b.graph.edges))
	return b.graph, nil
}
