// Package et estimates reference evapotranspiration.
package et

import (
	"fmt"
	"math"
)

// DefaultCoefficient is the Hargreaves-Samani coefficient.
const DefaultCoefficient = 0.0023

// solarConstant in MJ m-2 min-1.
const solarConstant = 0.0820

// Params for the Hargreaves-Samani method.
type Params struct {
	LatitudeDeg float64 `mapstructure:"latitude"`
	Coefficient float64 `mapstructure:"coefficient"`
}

// Validate checks the latitude range.
func (p Params) Validate() error {
	if p.LatitudeDeg < -90 || p.LatitudeDeg > 90 {
		return fmt.Errorf("latitude must be within [-90, 90], got %g", p.LatitudeDeg)
	}
	return nil
}

// Inputs for one day. Temperatures are in degrees Celsius.
type Inputs struct {
	TminC     float64
	TmaxC     float64
	DayOfYear int
}

// Hargreaves returns ET0 in mm/day, never negative.
func Hargreaves(in Inputs, p Params) float64 {
	c := p.Coefficient
	if c == 0 {
		c = DefaultCoefficient
	}
	tmean := (in.TminC + in.TmaxC) / 2
	trange := max(0, in.TmaxC-in.TminC)
	ra := ExtraterrestrialRadiation(in.DayOfYear, p.LatitudeDeg)
	return max(0, c*ra*(tmean+17.8)*math.Sqrt(trange))
}

// ExtraterrestrialRadiation is Ra in MJ m-2 day-1 (FAO-56, eq. 21).
func ExtraterrestrialRadiation(dayOfYear int, latitudeDeg float64) float64 {
	phi := latitudeDeg * math.Pi / 180
	j := float64(dayOfYear)
	dr := 1 + 0.033*math.Cos(2*math.Pi*j/365)
	delta := 0.409 * math.Sin(2*math.Pi*j/365-1.39)

	// Clamp for polar day and night.
	x := math.Max(-1, math.Min(1, -math.Tan(phi)*math.Tan(delta)))
	ws := math.Acos(x)

	ra := (24 * 60 / math.Pi) * solarConstant * dr *
		(ws*math.Sin(phi)*math.Sin(delta) + math.Cos(phi)*math.Cos(delta)*math.Sin(ws))
	return max(0, ra)
}
