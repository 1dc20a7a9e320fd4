// Package junction provides the "junction" node type, a confluence that adds
// up its inflows. Inflows arrive as indexed inputs (input_1, input_2, ...) in
// declaration order.
package junction

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// Type is the type tag used in model files.
const Type = "junction"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Node sums its indexed inputs into `outflow`.
type Node struct {
	node.Base
}

// New builds a junction. It takes no parameters.
func New(name string, params map[string]any) (node.Node, error) {
	if err := registry.DecodeParams(params, &struct{}{}); err != nil {
		return nil, err
	}
	return &Node{Base: node.NewBase(name, Type, "outflow", "inflow_count")}, nil
}

func (n *Node) Step(context.Context, time.Time, drivers.Reader) (node.Outputs, error) {
	in := n.Inputs()
	total := 0.0
	count := 0
	for k := 1; ; k++ {
		name := fmt.Sprintf("input_%d", k)
		if !in.Has(name) {
			break
		}
		v, err := in.Float(name)
		if err != nil {
			return nil, err
		}
		total += v
		count++
	}
	n.Set("outflow", total)
	n.Set("inflow_count", float64(count))
	return n.Publish(), nil
}

// Register registers the node type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Spec{
		Type:        Type,
		Aggregation: registry.Aggregation{Policy: registry.Indexed, Input: "input"},
		New:         New,
	})
}
