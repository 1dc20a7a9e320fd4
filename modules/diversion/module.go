// Package diversion provides the "diversion" node type: a river offtake that
// allocates flow by priority.
//
// Each day the instream requirement is met first. Up to max_diversion of what
// is left is then offered to the outflows in priority order (lowest number
// first, ties in declaration order), each taking at most its demand. Without
// outflows the whole divertible amount is diverted. Everything not diverted
// continues downstream as remaining_flow.
package diversion

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/nodeid"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// Type is the type tag used in model files.
const Type = "diversion"

var fixedOutputs = []string{"remaining_flow", "diverted_flow", "instream_release"}

// Module implements the registry.Module interface for this package.
type Module struct{}

// Outflow is one priority-ranked destination.
type Outflow struct {
	Name     string  `mapstructure:"name"`
	Priority int     `mapstructure:"priority"`
	Demand   float64 `mapstructure:"demand"`
}

// Params of a diversion. Flows are m3/day.
type Params struct {
	MaxDiversion float64   `mapstructure:"max_diversion"`
	InstreamFlow float64   `mapstructure:"instream_flow"`
	Outflows     []Outflow `mapstructure:"outflows"`
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.MaxDiversion < 0 {
		return fmt.Errorf("max_diversion must be non-negative, got %g", p.MaxDiversion)
	}
	if p.InstreamFlow < 0 {
		return fmt.Errorf("instream_flow must be non-negative, got %g", p.InstreamFlow)
	}
	seen := map[string]bool{}
	for _, o := range p.Outflows {
		switch {
		case !nodeid.ValidName(o.Name):
			return fmt.Errorf("invalid outflow name %q", o.Name)
		case slices.Contains(fixedOutputs, o.Name):
			return fmt.Errorf("outflow name %q is reserved", o.Name)
		case seen[o.Name]:
			return fmt.Errorf("outflow %q declared twice", o.Name)
		case o.Priority < 1:
			return fmt.Errorf("outflow %q: priority must be at least 1, got %d", o.Name, o.Priority)
		case o.Demand < 0:
			return fmt.Errorf("outflow %q: demand must be non-negative, got %g", o.Name, o.Demand)
		}
		seen[o.Name] = true
	}
	return nil
}

// Node is a diversion.
type Node struct {
	node.Base
	p Params
	// ranked holds the outflows in allocation order.
	ranked []Outflow
}

// New builds a diversion. Each outflow adds two outputs, `<name>` and
// `<name>_deficit`.
func New(name string, params map[string]any) (node.Node, error) {
	var p Params
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	n := &Node{Base: node.NewBase(name, Type, fixedOutputs...), p: p}
	for _, o := range p.Outflows {
		n.Declare(o.Name)
		n.Declare(o.Name + "_deficit")
	}
	n.ranked = slices.Clone(p.Outflows)
	slices.SortStableFunc(n.ranked, func(a, b Outflow) int { return cmp.Compare(a.Priority, b.Priority) })
	return n, nil
}

func (n *Node) Step(context.Context, time.Time, drivers.Reader) (node.Outputs, error) {
	river, err := n.Inputs().FloatOr("river_flow", 0)
	if err != nil {
		return nil, err
	}
	river = max(river, 0)

	instream := min(river, n.p.InstreamFlow)
	divertible := min(river-instream, n.p.MaxDiversion)

	diverted := divertible
	if len(n.ranked) > 0 {
		diverted = 0
		for _, o := range n.ranked {
			got := min(divertible-diverted, o.Demand)
			n.Set(o.Name, got)
			n.Set(o.Name+"_deficit", o.Demand-got)
			diverted += got
		}
	}

	n.Set("remaining_flow", river-diverted)
	n.Set("diverted_flow", diverted)
	n.Set("instream_release", instream)
	return n.Publish(), nil
}

// Register registers the node type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Spec{Type: Type, Single: "river_flow", New: New})
}
