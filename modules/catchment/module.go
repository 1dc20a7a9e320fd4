// Package catchment provides the "catchment" node type, which turns daily
// precipitation and PET into runoff with the AWBM rainfall-runoff model.
//
// Forcing comes from the climate view of the drivers by default
// (climate.precipitation and climate.et). Either can be overridden with the
// name of a specific driver, which lets several catchments sit under
// different gauges.
package catchment

import (
	"context"
	"fmt"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/kernel"
	"github.com/specialistvlad/hydrogrid/internal/kernel/awbm"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// Type is the type tag used in model files.
const Type = "catchment"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Stores are the initial AWBM store depths (mm).
type Stores struct {
	SS1     float64 `mapstructure:"ss1"`
	SS2     float64 `mapstructure:"ss2"`
	SS3     float64 `mapstructure:"ss3"`
	Surface float64 `mapstructure:"surface"`
	Base    float64 `mapstructure:"base"`
}

// Params of a catchment.
type Params struct {
	AreaKm2             float64     `mapstructure:"area_km2"`
	AWBM                awbm.Params `mapstructure:"awbm"`
	InitialStores       Stores      `mapstructure:"initial_stores"`
	PrecipitationDriver string      `mapstructure:"precipitation_driver"`
	PETDriver           string      `mapstructure:"pet_driver"`
}

// Node is a catchment.
type Node struct {
	node.Base
	p     Params
	state *kernel.Cell[awbm.State]
}

// New builds a catchment. Unset AWBM parameters take the AWBM2002 defaults.
func New(name string, params map[string]any) (node.Node, error) {
	p := Params{AWBM: awbm.DefaultParams()}
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.AreaKm2 <= 0 {
		return nil, fmt.Errorf("area_km2 must be positive, got %g", p.AreaKm2)
	}
	if err := p.AWBM.Validate(); err != nil {
		return nil, err
	}
	s := p.InitialStores
	initial := awbm.State{SS1: s.SS1, SS2: s.SS2, SS3: s.SS3, Surface: s.Surface, Base: s.Base}

	return &Node{
		Base:  node.NewBase(name, Type, "runoff", "runoff_mm", "baseflow_mm", "surface_mm", "excess_mm"),
		p:     p,
		state: kernel.NewCell(initial),
	}, nil
}

// DriverRefs lists the precipitation and PET sources the node reads.
func (n *Node) DriverRefs() []drivers.Ref {
	refs := []drivers.Ref{
		drivers.Signal(drivers.ClimateNamespace, drivers.SignalPrecipitation),
		drivers.Signal(drivers.ClimateNamespace, drivers.SignalET),
	}
	if n.p.PrecipitationDriver != "" {
		refs[0] = drivers.Named(n.p.PrecipitationDriver)
	}
	if n.p.PETDriver != "" {
		refs[1] = drivers.Named(n.p.PETDriver)
	}
	return refs
}

func (n *Node) forcing(d drivers.Reader) (awbm.Inputs, error) {
	var in awbm.Inputs
	var err error
	if n.p.PrecipitationDriver != "" {
		in.PrecipMM, err = d.Get(n.p.PrecipitationDriver)
	} else {
		in.PrecipMM, err = d.Climate().Precipitation()
	}
	if err != nil {
		return in, err
	}
	if n.p.PETDriver != "" {
		in.PETMM, err = d.Get(n.p.PETDriver)
	} else {
		in.PETMM, err = d.Climate().ET()
	}
	return in, err
}

func (n *Node) Step(_ context.Context, _ time.Time, d drivers.Reader) (node.Outputs, error) {
	in, err := n.forcing(d)
	if err != nil {
		return nil, err
	}
	out, err := kernel.Run(n.state, awbm.Step, in, n.p.AWBM)
	if err != nil {
		return nil, err
	}

	// 1 mm over 1 km2 is 1000 m3.
	n.Set("runoff", out.RunoffMM*n.p.AreaKm2*1000)
	n.Set("runoff_mm", out.RunoffMM)
	n.Set("baseflow_mm", out.BaseflowMM)
	n.Set("surface_mm", out.SurfaceFlowMM)
	n.Set("excess_mm", out.ExcessMM)
	return n.Publish(), nil
}

func (n *Node) Commit() { n.state.Commit() }

// Register registers the node type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Spec{Type: Type, New: New})
}
