// Package constant provides the "constant" node type, which emits the same
// value every timestep. It is mostly useful for fixed inflows and targets.
package constant

import (
	"context"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// Type is the type tag used in model files.
const Type = "constant"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params of a constant node.
type Params struct {
	Value float64 `mapstructure:"value"`
}

// Node emits Params.Value as `value`.
type Node struct {
	node.Base
	p Params
}

// New builds a constant node.
func New(name string, params map[string]any) (node.Node, error) {
	var p Params
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	return &Node{Base: node.NewBase(name, Type, "value"), p: p}, nil
}

func (n *Node) Step(context.Context, time.Time, drivers.Reader) (node.Outputs, error) {
	n.Set("value", n.p.Value)
	return n.Publish(), nil
}

// Register registers the node type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Spec{Type: Type, New: New})
}
