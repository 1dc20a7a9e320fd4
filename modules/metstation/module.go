// Package metstation provides the "met_station" node type. It reads a list of
// drivers each day and emits their values as outputs, so forcing can be
// recorded and checked next to the flows it produced.
package metstation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// Type is the type tag used in model files.
const Type = "met_station"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params of a met station.
type Params struct {
	// Drivers are the driver names to record. Each becomes an output of the
	// same name.
	Drivers []string `mapstructure:"drivers"`
}

// Node records driver values.
type Node struct {
	node.Base
	p Params
}

// New builds a met station.
func New(name string, params map[string]any) (node.Node, error) {
	var p Params
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if len(p.Drivers) == 0 {
		return nil, errors.New("drivers must name at least one driver")
	}
	seen := make(map[string]bool, len(p.Drivers))
	for _, d := range p.Drivers {
		if d == "" {
			return nil, errors.New("driver name must not be empty")
		}
		if seen[d] {
			return nil, fmt.Errorf("driver %q is listed twice", d)
		}
		seen[d] = true
	}
	return &Node{Base: node.NewBase(name, Type, p.Drivers...), p: p}, nil
}

// DriverRefs lists every recorded driver.
func (n *Node) DriverRefs() []drivers.Ref {
	refs := make([]drivers.Ref, len(n.p.Drivers))
	for i, d := range n.p.Drivers {
		refs[i] = drivers.Named(d)
	}
	return refs
}

func (n *Node) Step(_ context.Context, _ time.Time, d drivers.Reader) (node.Outputs, error) {
	for _, name := range n.p.Drivers {
		v, err := d.Get(name)
		if err != nil {
			return nil, err
		}
		n.Set(name, v)
	}
	return n.Publish(), nil
}

// Register registers the node type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Spec{Type: Type, New: New})
}
