// Package noise draws normally distributed values from a PCG generator whose
// state is a plain value carried by the caller, so a draw can be staged and
// discarded like any other kernel state.
package noise

import (
	"fmt"
	"math/rand/v2"

	"github.com/specialistvlad/hydrogrid/internal/kernel"
)

// Params of the distribution.
type Params struct {
	Mean float64 `mapstructure:"mean"`
	Std  float64 `mapstructure:"std"`
	// ClipAtZero replaces negative draws with zero, as for rainfall.
	ClipAtZero bool `mapstructure:"clip_at_zero"`
}

// Validate checks the spread.
func (p Params) Validate() error {
	if p.Std < 0 {
		return fmt.Errorf("std must be non-negative, got %g", p.Std)
	}
	return nil
}

// stream is the fixed second PCG seed word; a model only sets the first.
const stream = 0x9e3779b97f4a7c15

// State is the generator state. rand.PCG is a value type, so copying a State
// copies the generator.
type State struct {
	PCG rand.PCG
}

// Seed returns the state for a seed.
func Seed(seed uint64) State {
	return State{PCG: *rand.NewPCG(seed, stream)}
}

// Outputs hold one draw.
type Outputs struct {
	Value float64
}

var _ kernel.Func[struct{}, Params, State, Outputs] = Normal

// Normal draws one value. The state passed in is not modified.
func Normal(_ struct{}, p Params, s State) (State, Outputs, error) {
	pcg := s.PCG
	v := p.Mean + p.Std*rand.New(&pcg).NormFloat64()
	if p.ClipAtZero && v < 0 {
		v = 0
	}
	return State{PCG: pcg}, Outputs{Value: v}, nil
}
