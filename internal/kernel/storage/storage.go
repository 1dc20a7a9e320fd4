// Package storage implements the mass balance of a bounded water store.
//
// The store moves between three phases: Empty, Normal and Full. Within one
// step the order of withdrawals is fixed: evaporation is taken first, then
// the requested release, then spill. Withdrawals are limited by the water
// available (storage plus inflow), so storage never goes negative. Storage
// never exceeds capacity; the surplus becomes spill.
//
// The water level and the evaporating area come from a Geometry when one is
// set (an elevation-area-volume table), otherwise from a prismatic basin of
// constant SurfaceArea above BottomElevation. With a spillway, the level
// drives the weir equation before the capacity limit applies. Evaporation
// uses the area at the start of the day.
package storage

import (
	"fmt"

	"github.com/specialistvlad/hydrogrid/internal/kernel"
	"github.com/specialistvlad/hydrogrid/internal/kernel/weir"
)

// Phase is the state machine position of the store.
type Phase int

const (
	Normal Phase = iota
	Empty
	Full
)

func (p Phase) String() string {
	switch p {
	case Empty:
		return "empty"
	case Full:
		return "full"
	default:
		return "normal"
	}
}

// Geometry maps a stored volume to a water surface elevation (m) and area
// (m2).
type Geometry interface {
	Elevation(volume float64) float64
	Area(volume float64) float64
}

// Params are fixed for the life of the store.
type Params struct {
	// Capacity is the maximum storage (m3).
	Capacity float64
	// SurfaceArea (m2) enables evaporation and level calculation for a
	// prismatic basin. Ignored when Geometry is set.
	SurfaceArea     float64
	BottomElevation float64
	Geometry        Geometry
	// Spillway is optional and requires SurfaceArea or Geometry.
	Spillway *weir.Params
}

// Validate checks the parameters.
func (p Params) Validate() error {
	if p.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive, got %g", p.Capacity)
	}
	if p.SurfaceArea < 0 {
		return fmt.Errorf("surface area must be non-negative, got %g", p.SurfaceArea)
	}
	if p.Spillway != nil {
		if p.SurfaceArea == 0 && p.Geometry == nil {
			return fmt.Errorf("a spillway requires a surface area or an EAV table")
		}
		if err := p.Spillway.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// State is the stored volume (m3) and phase.
type State struct {
	Storage float64
	Phase   Phase
}

// Inputs for one step. Volumes are m3, evaporation is a depth in mm.
type Inputs struct {
	Inflow        float64
	Release       float64
	EvaporationMM float64
}

// Outputs for one step.
type Outputs struct {
	Storage         float64
	Release         float64
	Spill           float64
	EvaporationLoss float64
	Outflow         float64
	Elevation       float64
	Area            float64
}

var _ kernel.Func[Inputs, Params, State, Outputs] = Step

// Step applies one day of inflow and withdrawals.
func Step(in Inputs, p Params, s State) (State, Outputs, error) {
	if in.Inflow < 0 {
		return s, Outputs{}, fmt.Errorf("inflow must be non-negative, got %g", in.Inflow)
	}
	if in.Release < 0 {
		return s, Outputs{}, fmt.Errorf("release must be non-negative, got %g", in.Release)
	}

	available := s.Storage + in.Inflow

	evap := 0.0
	if area := Area(p, s.Storage); area > 0 && in.EvaporationMM > 0 {
		evap = min(in.EvaporationMM*area/1000, available)
	}
	release := min(in.Release, available-evap)
	next := available - evap - release

	spill := 0.0
	if p.Spillway != nil {
		q := weir.Discharge(weir.Inputs{Elevation: Level(p, next)}, *p.Spillway)
		spill = min(q.DischargeM3D, next)
		next -= spill
	}
	if next > p.Capacity {
		spill += next - p.Capacity
		next = p.Capacity
	}

	phase := Normal
	switch {
	case next <= 0:
		next = 0
		phase = Empty
	case next >= p.Capacity || spill > 0:
		phase = Full
	}

	out := Outputs{
		Storage:         next,
		Release:         release,
		Spill:           spill,
		EvaporationLoss: evap,
		Outflow:         release + spill,
		Elevation:       Level(p, next),
		Area:            Area(p, next),
	}
	return State{Storage: next, Phase: phase}, out, nil
}

// Level returns the water surface elevation for a volume, or the bottom
// elevation when no geometry is configured.
func Level(p Params, volume float64) float64 {
	if p.Geometry != nil {
		return p.Geometry.Elevation(volume)
	}
	if p.SurfaceArea <= 0 {
		return p.BottomElevation
	}
	return p.BottomElevation + volume/p.SurfaceArea
}

// Area returns the water surface area for a volume.
func Area(p Params, volume float64) float64 {
	if p.Geometry != nil {
		return p.Geometry.Area(volume)
	}
	return p.SurfaceArea
}
