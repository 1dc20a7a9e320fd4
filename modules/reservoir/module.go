// Package reservoir provides the "reservoir" node type: a bounded store that
// receives summed inflows, releases on request and spills what it cannot hold.
//
// The basin is either prismatic (surface_area above bottom_elevation) or
// described by an elevation-area-volume table (eav_table, a CSV file with
// elevation, area and volume columns). Table mode adds an `area` output.
//
// The mass balance itself lives in kernel/storage; this package wires it to
// node inputs, driver values and the two-phase state cell.
package reservoir

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/afero"

	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/kernel"
	"github.com/specialistvlad/hydrogrid/internal/kernel/eav"
	"github.com/specialistvlad/hydrogrid/internal/kernel/storage"
	"github.com/specialistvlad/hydrogrid/internal/kernel/weir"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/registry"
)

// Type is the type tag used in model files.
const Type = "reservoir"

// Module implements the registry.Module interface for this package.
type Module struct{}

// Params of a reservoir. Volumes are m3, areas m2, elevations m.
type Params struct {
	InitialStorage  float64 `mapstructure:"initial_storage"`
	Capacity        float64 `mapstructure:"capacity"`
	SurfaceArea     float64 `mapstructure:"surface_area"`
	BottomElevation float64 `mapstructure:"bottom_elevation"`
	// EAVTable is the path of an elevation-area-volume CSV file. It replaces
	// surface_area and bottom_elevation.
	EAVTable string `mapstructure:"eav_table"`
	// EvaporationDriver names a driver giving open water evaporation in
	// mm/day. Ignored without a surface area or table.
	EvaporationDriver string       `mapstructure:"evaporation_driver"`
	Spillway          *weir.Params `mapstructure:"spillway"`
}

func (p Params) hasArea() bool {
	return p.SurfaceArea > 0 || p.EAVTable != ""
}

func (p Params) storage() storage.Params {
	return storage.Params{
		Capacity:        p.Capacity,
		SurfaceArea:     p.SurfaceArea,
		BottomElevation: p.BottomElevation,
		Spillway:        p.Spillway,
	}
}

// Validate checks the parameters. The table itself is checked when it is
// loaded.
func (p Params) Validate() error {
	if p.EAVTable != "" && (p.SurfaceArea > 0 || p.BottomElevation != 0) {
		return fmt.Errorf("eav_table replaces surface_area and bottom_elevation; set only one")
	}
	sp := p.storage()
	if p.EAVTable != "" && sp.Spillway != nil {
		if err := sp.Spillway.Validate(); err != nil {
			return err
		}
		sp.Spillway = nil
	}
	if err := sp.Validate(); err != nil {
		return err
	}
	if p.InitialStorage < 0 || p.InitialStorage > p.Capacity {
		return fmt.Errorf("initial_storage must be within [0, capacity], got %g", p.InitialStorage)
	}
	return nil
}

// Node is a reservoir.
type Node struct {
	node.Base
	p     Params
	sp    storage.Params
	state *kernel.Cell[storage.State]
}

// New builds a reservoir.
func New(name string, params map[string]any) (node.Node, error) {
	var p Params
	if err := registry.DecodeParams(params, &p); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	initial := storage.State{Storage: p.InitialStorage}
	switch {
	case p.InitialStorage == 0:
		initial.Phase = storage.Empty
	case p.InitialStorage == p.Capacity:
		initial.Phase = storage.Full
	}

	outputs := []string{"outflow", "storage", "release", "spill", "evaporation_loss", "elevation"}
	if p.EAVTable != "" {
		outputs = append(outputs, "area")
	}
	n := &Node{
		Base:  node.NewBase(name, Type, outputs...),
		p:     p,
		sp:    p.storage(),
		state: kernel.NewCell(initial),
	}
	n.Set("storage", p.InitialStorage)
	n.Set("elevation", storage.Level(n.sp, p.InitialStorage))
	return n, nil
}

// LoadFiles reads the EAV table, if one is configured.
func (n *Node) LoadFiles(fs afero.Fs, baseDir string) error {
	if n.p.EAVTable == "" {
		return nil
	}
	path := n.p.EAVTable
	if !filepath.IsAbs(path) && baseDir != "" {
		path = filepath.Join(baseDir, path)
	}
	tbl, err := eav.Load(fs, path)
	if err != nil {
		return err
	}
	if n.p.InitialStorage > tbl.MaxVolume() {
		return fmt.Errorf("initial_storage %g is above the largest volume in %s (%g)", n.p.InitialStorage, path, tbl.MaxVolume())
	}
	n.sp.Geometry = tbl
	n.Set("elevation", storage.Level(n.sp, n.p.InitialStorage))
	n.Set("area", storage.Area(n.sp, n.p.InitialStorage))
	return nil
}

// DriverRefs lists the evaporation driver when the basin has an area.
func (n *Node) DriverRefs() []drivers.Ref {
	if n.p.EvaporationDriver == "" || !n.p.hasArea() {
		return nil
	}
	return []drivers.Ref{drivers.Named(n.p.EvaporationDriver)}
}

// Storage is the committed volume.
func (n *Node) Storage() float64 {
	return n.state.State().Storage
}

// Phase is the committed phase.
func (n *Node) Phase() storage.Phase {
	return n.state.State().Phase
}

func (n *Node) Step(_ context.Context, _ time.Time, d drivers.Reader) (node.Outputs, error) {
	if n.p.EAVTable != "" && n.sp.Geometry == nil {
		return nil, fmt.Errorf("EAV table %s is not loaded", n.p.EAVTable)
	}
	in := n.Inputs()
	inflow, err := in.FloatOr("inflow", 0)
	if err != nil {
		return nil, err
	}
	release, err := in.FloatOr("release", 0)
	if err != nil {
		return nil, err
	}

	evap := 0.0
	if n.p.EvaporationDriver != "" && n.p.hasArea() {
		if evap, err = d.Get(n.p.EvaporationDriver); err != nil {
			return nil, err
		}
	}

	out, err := kernel.Run(n.state, storage.Step, storage.Inputs{
		Inflow:        inflow,
		Release:       release,
		EvaporationMM: max(evap, 0),
	}, n.sp)
	if err != nil {
		return nil, err
	}

	n.Set("outflow", out.Outflow)
	n.Set("storage", out.Storage)
	n.Set("release", out.Release)
	n.Set("spill", out.Spill)
	n.Set("evaporation_loss", out.EvaporationLoss)
	n.Set("elevation", out.Elevation)
	if n.p.EAVTable != "" {
		n.Set("area", out.Area)
	}
	return n.Publish(), nil
}

func (n *Node) Commit() { n.state.Commit() }

// Register registers the node type.
func (m *Module) Register(r *registry.Registry) error {
	return r.Register(&registry.Spec{
		Type:        Type,
		Inputs:      []string{"release"},
		Aggregation: registry.Aggregation{Policy: registry.Sum, Input: "inflow"},
		New:         New,
	})
}
