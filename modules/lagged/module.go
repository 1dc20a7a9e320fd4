// Package lagged provides the "lagged" node type, the way to close a feedback
// loop. Its single input is read from the previous timestep, so a cycle that
// passes through a lagged node can still be scheduled.
package lagged

import (
	"context"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// Type is the type tag used in model files.
const Type = "lagged"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params of a lagged node.
type Params struct {
	// InitialValue is emitted on the first timestep, before the source has a
	// previous value.
	InitialValue float64 `mapstructure:"initial_value"`
}

// Node re-emits the previous value of its source as `value`.
type Node struct {
	node.Base
	p Params
}

// New builds a lagged node.
func New(name string, params map[string]any) (node.Node, error) {
	var p Params
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	return &Node{Base: node.NewBase(name, Type, "value"), p: p}, nil
}

func (n *Node) Step(context.Context, time.Time, drivers.Reader) (node.Outputs, error) {
	v, err := n.Inputs().FloatOr("previous", n.p.InitialValue)
	if err != nil {
		return nil, err
	}
	n.Set("value", v)
	return n.Publish(), nil
}

// Register registers the node type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Spec{
		Type:        Type,
		Single:      "previous",
		LagBreaking: true,
		New:         New,
	})
}
