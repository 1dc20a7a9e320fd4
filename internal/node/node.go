// Package node defines the contract every executable graph unit implements.
//
// # The step contract
//
// During a timestep the simulation loop fills a node's Inputs, calls Step
// once, and later calls Commit once every node of that timestep succeeded.
//
//   - Step reads Inputs and the driver view, computes the tentative next state
//     without touching committed state, and returns an Outputs snapshot.
//   - The returned snapshot is an independent deep copy. Mutating it, or
//     stepping the node again, never changes a snapshot returned earlier.
//   - Commit promotes the tentative state. A timestep that fails is never
//     committed.
//
// Nodes embed Base, which keeps the identity, the input buffer and the live
// output map, and produces snapshots through Publish.
package node

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"time"

	"github.com/mitchellh/copystructure"
	"github.com/spf13/afero"

	"github.com/specialistvlad/hydrogrid/internal/drivers"
)

// Outputs maps output names to values. Values are float64 for every built-in
// node type, but any copyable value is allowed.
type Outputs map[string]any

// Float returns a numeric output.
func (o Outputs) Float(name string) (float64, error) {
	v, ok := o[name]
	if !ok {
		return 0, fmt.Errorf("no output %q", name)
	}
	return AsFloat(v)
}

// Clone returns a deep copy of the outputs.
func (o Outputs) Clone() Outputs {
	if o == nil {
		return nil
	}
	return Outputs(Copy(map[string]any(o)).(map[string]any))
}

// Copy deep-copies a value. Values that cannot be copied are a programming
// error in the node that produced them.
func Copy(v any) any {
	out, err := copystructure.Copy(v)
	if err != nil {
		panic(fmt.Sprintf("node: value of type %T cannot be copied: %v", v, err))
	}
	return out
}

// Node is the uniform interface of every graph unit.
type Node interface {
	Name() string
	Type() string
	// Outputs lists the declared output names; the first is the default.
	Outputs() []string
	Inputs() *Inputs
	Step(ctx context.Context, date time.Time, d drivers.Reader) (Outputs, error)
	Commit()
}

// FileLoader is implemented by nodes that read auxiliary files, such as
// geometry tables. LoadFiles runs once after the graph is built; relative
// paths resolve against baseDir.
type FileLoader interface {
	LoadFiles(fs afero.Fs, baseDir string) error
}

// Base implements the bookkeeping part of Node.
type Base struct {
	name     string
	typ      string
	declared []string
	inputs   *Inputs
	outputs  Outputs
}

// NewBase returns a Base with every declared output initialised to zero.
func NewBase(name, typ string, outputs ...string) Base {
	out := make(Outputs, len(outputs))
	for _, o := range outputs {
		out[o] = 0.0
	}
	return Base{
		name:     name,
		typ:      typ,
		declared: slices.Clone(outputs),
		inputs:   NewInputs(),
		outputs:  out,
	}
}

func (b *Base) Name() string      { return b.name }
func (b *Base) Type() string      { return b.typ }
func (b *Base) Outputs() []string { return slices.Clone(b.declared) }
func (b *Base) Inputs() *Inputs   { return b.inputs }

// Commit is a no-op for stateless nodes.
func (b *Base) Commit() {}

// Set writes a live output value.
func (b *Base) Set(name string, v any) {
	b.outputs[name] = v
}

// Declare adds an output name after construction, for node types whose
// outputs depend on their parameters.
func (b *Base) Declare(name string) {
	if !slices.Contains(b.declared, name) {
		b.declared = append(b.declared, name)
		b.outputs[name] = 0.0
	}
}

// Publish returns an independent snapshot of the live outputs.
func (b *Base) Publish() Outputs {
	return b.outputs.Clone()
}

// Inputs is the per-timestep input buffer of a node.
type Inputs struct {
	values map[string]any
}

// NewInputs returns an empty buffer.
func NewInputs() *Inputs {
	return &Inputs{values: map[string]any{}}
}

// Reset removes every value.
func (in *Inputs) Reset() {
	clear(in.values)
}

// Set stores a value, replacing any previous one.
func (in *Inputs) Set(name string, v any) {
	in.values[name] = v
}

// Add sums a numeric value into name.
func (in *Inputs) Add(name string, v any) error {
	f, err := AsFloat(v)
	if err != nil {
		return fmt.Errorf("input %q: %w", name, err)
	}
	cur := 0.0
	if existing, ok := in.values[name]; ok {
		if cur, err = AsFloat(existing); err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
	}
	in.values[name] = cur + f
	return nil
}

// Has reports whether name holds a value this timestep.
func (in *Inputs) Has(name string) bool {
	_, ok := in.values[name]
	return ok
}

// Get returns the raw value.
func (in *Inputs) Get(name string) (any, bool) {
	v, ok := in.values[name]
	return v, ok
}

// Float returns a numeric input that must be present.
func (in *Inputs) Float(name string) (float64, error) {
	v, ok := in.values[name]
	if !ok {
		return 0, fmt.Errorf("input %q has no value", name)
	}
	f, err := AsFloat(v)
	if err != nil {
		return 0, fmt.Errorf("input %q: %w", name, err)
	}
	return f, nil
}

// FloatOr returns a numeric input, or def when it is absent.
func (in *Inputs) FloatOr(name string, def float64) (float64, error) {
	if !in.Has(name) {
		return def, nil
	}
	return in.Float(name)
}

// Names returns the present input names, sorted.
func (in *Inputs) Names() []string {
	names := slices.Collect(maps.Keys(in.values))
	sort.Strings(names)
	return names
}

// Len is the number of present inputs.
func (in *Inputs) Len() int {
	return len(in.values)
}

// AsFloat converts the numeric kinds a node may produce to float64.
func AsFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case bool:
		if x {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("value of type %T is not numeric", v)
}
