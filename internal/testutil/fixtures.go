package testutil

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// Fixture node types, registered by FixtureModule:
//
//   - probe: emits `value` = series[step] (or `base`) plus every numeric input
//     it received, and `steps`, the number of committed steps. It accepts a
//     summed `inflow` group, a `source` into `upstream` and explicit `signal`
//     and `control` inputs.
//   - collector: indexed `input_1..n`; emits `total` and `count`.
//   - delay: lag-breaking; emits the previous value of its source, or
//     `initial` on the first day.
//   - faulty: fails on the date given by `fail_on`.
const (
	Probe     = "probe"
	Collector = "collector"
	Delay     = "delay"
	Faulty    = "faulty"
)

// FixtureModule registers the fixture node types.
type FixtureModule struct{}

func (FixtureModule) Register(r *registry.Registry) error {
	specs := []*registry.Spec{
		{
			Type:        Probe,
			Inputs:      []string{"signal", "control"},
			Aggregation: registry.Aggregation{Policy: registry.Sum, Input: "inflow"},
			Single:      "upstream",
			New:         newProbe,
		},
		{
			Type:        Collector,
			Aggregation: registry.Aggregation{Policy: registry.Indexed, Input: "input"},
			New:         newCollector,
		},
		{
			Type:        Delay,
			Single:      "previous",
			LagBreaking: true,
			New:         newDelay,
		},
		{
			Type:   Faulty,
			Inputs: []string{"signal"},
			New:    newFaulty,
		},
	}
	for _, s := range specs {
		if err := r.Register(s); err != nil {
			return err
		}
	}
	return nil
}

// Registry returns a registry holding only the fixture types.
func Registry() *registry.Registry {
	r := registry.New()
	if err := r.Use(FixtureModule{}); err != nil {
		panic(err)
	}
	return r
}

type probeParams struct {
	Base   float64   `mapstructure:"base"`
	Series []float64 `mapstructure:"series"`
	Driver string    `mapstructure:"driver"`
}

type probe struct {
	node.Base
	p       probeParams
	steps   int
	pending int
}

func newProbe(name string, params map[string]any) (node.Node, error) {
	var p probeParams
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	return &probe{Base: node.NewBase(name, Probe, "value", "steps"), p: p}, nil
}

func (n *probe) DriverRefs() []drivers.Ref {
	if n.p.Driver == "" {
		return nil
	}
	return []drivers.Ref{drivers.Named(n.p.Driver)}
}

func (n *probe) Step(_ context.Context, _ time.Time, d drivers.Reader) (node.Outputs, error) {
	v := n.p.Base
	if len(n.p.Series) > 0 {
		if n.steps >= len(n.p.Series) {
			return nil, fmt.Errorf("series exhausted after %d steps", len(n.p.Series))
		}
		v = n.p.Series[n.steps]
	}
	if n.p.Driver != "" {
		x, err := d.Get(n.p.Driver)
		if err != nil {
			return nil, err
		}
		v += x
	}
	in := n.Inputs()
	for _, name := range in.Names() {
		x, err := in.Float(name)
		if err != nil {
			return nil, err
		}
		v += x
	}
	n.pending = n.steps + 1
	n.Set("value", v)
	n.Set("steps", float64(n.pending))
	return n.Publish(), nil
}

func (n *probe) Commit() { n.steps = n.pending }

type collector struct {
	node.Base
}

func newCollector(name string, params map[string]any) (node.Node, error) {
	if err := registry.DecodeParams(params, &struct{}{}); err != nil {
		return nil, err
	}
	return &collector{Base: node.NewBase(name, Collector, "total", "count")}, nil
}

func (n *collector) Step(context.Context, time.Time, drivers.Reader) (node.Outputs, error) {
	total, count := 0.0, 0
	in := n.Inputs()
	for i := 1; ; i++ {
		name := fmt.Sprintf("input_%d", i)
		if !in.Has(name) {
			break
		}
		x, err := in.Float(name)
		if err != nil {
			return nil, err
		}
		total += x
		count++
	}
	if count != in.Len() {
		return nil, fmt.Errorf("unexpected inputs: %s", strings.Join(in.Names(), ", "))
	}
	n.Set("total", total)
	n.Set("count", float64(count))
	return n.Publish(), nil
}

type delayParams struct {
	Initial float64 `mapstructure:"initial"`
}

type delay struct {
	node.Base
	p delayParams
}

func newDelay(name string, params map[string]any) (node.Node, error) {
	var p delayParams
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	return &delay{Base: node.NewBase(name, Delay, "value"), p: p}, nil
}

func (n *delay) Step(context.Context, time.Time, drivers.Reader) (node.Outputs, error) {
	v, err := n.Inputs().FloatOr("previous", n.p.Initial)
	if err != nil {
		return nil, err
	}
	n.Set("value", v)
	return n.Publish(), nil
}

type faultyParams struct {
	FailOn string `mapstructure:"fail_on"`
	Panic  bool   `mapstructure:"panic"`
}

type faulty struct {
	node.Base
	p faultyParams
}

func newFaulty(name string, params map[string]any) (node.Node, error) {
	var p faultyParams
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	return &faulty{Base: node.NewBase(name, Faulty, "value"), p: p}, nil
}

func (n *faulty) Step(_ context.Context, date time.Time, _ drivers.Reader) (node.Outputs, error) {
	if date.Format(time.DateOnly) == n.p.FailOn {
		if n.p.Panic {
			panic("faulty node exploded")
		}
		return nil, fmt.Errorf("injected failure")
	}
	n.Set("value", 1.0)
	return n.Publish(), nil
}
