// Package pump provides the "pump" node type, a feedback controller that
// drives a flow from the error between a target and a monitored value
// (typically a reservoir level read through a lagged node).
//
// In deadband mode the pump runs at capacity whenever the error exceeds the
// deadband and is off otherwise. In proportional mode the flow is kp * error,
// clamped to [0, capacity].
package pump

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
const Type = "pump"

// Control modes.
const (
	Deadband     = "deadband"
	Proportional = "proportional"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params of a pump.
type Params struct {
	ControlMode string  `mapstructure:"control_mode"`
	Capacity    float64 `mapstructure:"capacity"`
	// Target is a number or a table keyed by day of year.
	Target   any     `mapstructure:"target"`
	Deadband float64 `mapstructure:"deadband"`
	Kp       float64 `mapstructure:"kp"`
}

// Node is a pump.
type Node struct {
	node.Base
	p        Params
	target   float64
	schedule *Schedule
}

// New builds a pump.
func New(name string, params map[string]any) (node.Node, error) {
	var p Params
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	p.ControlMode = strings.ToLower(p.ControlMode)
	switch p.ControlMode {
	case Deadband:
		if p.Deadband < 0 {
			return nil, fmt.Errorf("deadband must be non-negative, got %g", p.Deadband)
		}
	case Proportional:
		if p.Kp <= 0 {
			return nil, fmt.Errorf("proportional mode requires a positive kp, got %g", p.Kp)
		}
	default:
		return nil, fmt.Errorf("control_mode must be %q or %q, got %q", Deadband, Proportional, p.ControlMode)
	}
	if p.Capacity < 0 {
		return nil, fmt.Errorf("capacity must be non-negative, got %g", p.Capacity)
	}
	target, schedule, err := parseTarget(p.Target)
	if err != nil {
		return nil, err
	}

	return &Node{
		Base:     node.NewBase(name, Type, "pumped_flow", "error", "target_value"),
		p:        p,
		target:   target,
		schedule: schedule,
	}, nil
}

// TargetOn returns the target for a date.
func (n *Node) TargetOn(date time.Time) float64 {
	if n.schedule == nil {
		return n.target
	}
	return n.schedule.At(date.YearDay())
}

func (n *Node) Step(_ context.Context, date time.Time, _ drivers.Reader) (node.Outputs, error) {
	current, err := n.Inputs().Float("process_variable")
	if err != nil {
		return nil, err
	}
	target := n.TargetOn(date)
	e := target - current

	flow := 0.0
	switch n.p.ControlMode {
	case Deadband:
		if e > n.p.Deadband {
			flow = n.p.Capacity
		}
	case Proportional:
		flow = min(max(n.p.Kp*e, 0), n.p.Capacity)
	}

	n.Set("pumped_flow", flow)
	n.Set("error", e)
	n.Set("target_value", target)
	return n.Publish(), nil
}

// Register registers the node type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Spec{
		Type:     Type,
		Inputs:   []string{"process_variable"},
		Required: []string{"process_variable"},
		New:      New,
	})
}
