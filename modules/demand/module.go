// Package demand provides the "demand" node type: a water user that takes
// what it can from its supply and reports the shortfall.
//
// Three modes compute the daily demand (m3/day):
//
//   - constant:     `demand`
//   - municipal:    population * per_capita_demand_lpd / 1000, plus an outdoor
//     part outdoor_area (ha) * outdoor_coefficient * ET0 (mm) * 10
//   - agricultural: irrigated_area (ha) * crop_coefficient * ET0 (mm) * 10
//
// ET0 is read from the climate view when the mode needs it.
package demand

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// Type is the type tag used in model files.
const Type = "demand"

// Modes.
const (
	Constant     = "constant"
	Municipal    = "municipal"
	Agricultural = "agricultural"
)

// haMM is the volume of 1 mm of water over 1 ha, in m3.
const haMM = 10.0

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params of a demand node.
type Params struct {
	Mode string `mapstructure:"mode"`

	Demand float64 `mapstructure:"demand"`

	Population         float64 `mapstructure:"population"`
	PerCapitaLPD       float64 `mapstructure:"per_capita_demand_lpd"`
	OutdoorArea        float64 `mapstructure:"outdoor_area"`
	OutdoorCoefficient float64 `mapstructure:"outdoor_coefficient"`

	IrrigatedArea   float64 `mapstructure:"irrigated_area"`
	CropCoefficient float64 `mapstructure:"crop_coefficient"`
}

// Validate checks that the mode is known and its parameters are usable.
func (p Params) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"demand", p.Demand},
		{"population", p.Population},
		{"per_capita_demand_lpd", p.PerCapitaLPD},
		{"outdoor_area", p.OutdoorArea},
		{"outdoor_coefficient", p.OutdoorCoefficient},
		{"irrigated_area", p.IrrigatedArea},
		{"crop_coefficient", p.CropCoefficient},
	} {
		if f.v < 0 {
			return fmt.Errorf("%s must be non-negative, got %g", f.name, f.v)
		}
	}
	switch p.Mode {
	case Constant, Municipal:
	case Agricultural:
		if p.IrrigatedArea == 0 || p.CropCoefficient == 0 {
			return fmt.Errorf("agricultural mode requires irrigated_area and crop_coefficient")
		}
	default:
		return fmt.Errorf("unknown mode %q (want %s, %s or %s)", p.Mode, Constant, Municipal, Agricultural)
	}
	return nil
}

// Node is a demand.
type Node struct {
	node.Base
	p Params
}

// New builds a demand node. The mode defaults to constant.
func New(name string, params map[string]any) (node.Node, error) {
	p := Params{Mode: Constant, OutdoorCoefficient: 0.8}
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	p.Mode = strings.ToLower(p.Mode)
	if err := p.Validate(); err != nil {
		return nil, err
	}

	outputs := []string{"demand", "supplied", "deficit"}
	if p.Mode == Municipal {
		outputs = append(outputs, "indoor_demand", "outdoor_demand")
	}
	return &Node{Base: node.NewBase(name, Type, outputs...), p: p}, nil
}

// DriverRefs lists the climate signals the mode reads.
func (n *Node) DriverRefs() []drivers.Ref {
	if n.p.Mode == Agricultural || (n.p.Mode == Municipal && n.p.OutdoorArea > 0) {
		return []drivers.Ref{drivers.Signal(drivers.ClimateNamespace, drivers.SignalET)}
	}
	return nil
}

func (n *Node) et0(d drivers.Reader) (float64, error) {
	v, err := d.Climate().ET()
	if err != nil {
		return 0, fmt.Errorf("%s demand needs reference ET: %w", n.p.Mode, err)
	}
	return max(v, 0), nil
}

func (n *Node) demand(d drivers.Reader) (float64, error) {
	switch n.p.Mode {
	case Municipal:
		indoor := n.p.Population * n.p.PerCapitaLPD / 1000
		outdoor := 0.0
		if n.p.OutdoorArea > 0 {
			et0, err := n.et0(d)
			if err != nil {
				return 0, err
			}
			outdoor = n.p.OutdoorArea * n.p.OutdoorCoefficient * et0 * haMM
		}
		n.Set("indoor_demand", indoor)
		n.Set("outdoor_demand", outdoor)
		return indoor + outdoor, nil
	case Agricultural:
		et0, err := n.et0(d)
		if err != nil {
			return 0, err
		}
		return n.p.IrrigatedArea * n.p.CropCoefficient * et0 * haMM, nil
	}
	return n.p.Demand, nil
}

func (n *Node) Step(_ context.Context, _ time.Time, d drivers.Reader) (node.Outputs, error) {
	demand, err := n.demand(d)
	if err != nil {
		return nil, err
	}
	available, err := n.Inputs().FloatOr("available_supply", 0)
	if err != nil {
		return nil, err
	}
	supplied := min(demand, max(available, 0))

	n.Set("demand", demand)
	n.Set("supplied", supplied)
	n.Set("deficit", demand-supplied)
	return n.Publish(), nil
}

// Register registers the node type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Spec{Type: Type, Single: "available_supply", New: New})
}
