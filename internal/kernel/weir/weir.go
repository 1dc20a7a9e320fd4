// Package weir computes discharge over a rectangular sharp-crested weir,
// Q = C * L * H^1.5.
package weir

import (
	"fmt"
	"math"
)

// SecondsPerDay converts m3/s to m3/day.
const SecondsPerDay = 86400.0

// Params describe the weir.
type Params struct {
	Coefficient float64 `mapstructure:"coefficient"`
	Width       float64 `mapstructure:"width"`
	Crest       float64 `mapstructure:"crest"`
}

// Validate checks that the weir can discharge.
func (p Params) Validate() error {
	if p.Coefficient <= 0 {
		return fmt.Errorf("weir coefficient must be positive, got %g", p.Coefficient)
	}
	if p.Width <= 0 {
		return fmt.Errorf("weir width must be positive, got %g", p.Width)
	}
	return nil
}

// Inputs hold the water surface elevation (m).
type Inputs struct {
	Elevation float64
}

// Outputs hold the head over the crest (m) and the discharge.
type Outputs struct {
	HeadM        float64
	DischargeM3S float64
	DischargeM3D float64
}

// Discharge is stateless, so it does not take a state argument.
func Discharge(in Inputs, p Params) Outputs {
	head := max(0, in.Elevation-p.Crest)
	if head == 0 {
		return Outputs{}
	}
	q := p.Coefficient * p.Width * math.Pow(head, 1.5)
	return Outputs{HeadM: head, DischargeM3S: q, DischargeM3D: q * SecondsPerDay}
}
