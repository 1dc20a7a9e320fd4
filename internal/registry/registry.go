// Package registry maps node type tags used in model files ("reservoir",
// "junction", ...) to the Go code that builds them, together with the static
// contract of each type: which inputs it accepts, how an aggregated edge group
// is applied to it, and whether it breaks cycles.
//
// Node types are contributed by modules. A Module registers one or more Specs;
// the registry rejects duplicates and incomplete specs at registration time.
package registry

import (
	"fmt"
	"slices"
	"sort"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/node"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
)

// Policy decides how an aggregated edge group reaches the target node.
type Policy int

const (
	// Sum adds every contributing value into one input.
	Sum Policy = iota + 1
	// Indexed writes each contribution into its own slot, <input>_1..<input>_n,
	// in declaration order.
	Indexed
)

func (p Policy) String() string {
	switch p {
	case Sum:
		return "sum"
	case Indexed:
		return "indexed"
	}
	return "none"
}

// Aggregation is the declared contract for aggregated edges.
type Aggregation struct {
	Policy Policy
	Input  string
}

// Accepts reports whether the type takes aggregated edges at all.
func (a Aggregation) Accepts() bool {
	return a.Policy != 0 && a.Input != ""
}

// Factory builds a node from its name and raw parameters.
type Factory func(name string, params map[string]any) (node.Node, error)

// Spec is the static contract of a node type.
type Spec struct {
	Type string
	// Inputs are the names explicit connections may target.
	Inputs []string
	// Aggregation applies to the `inflows` declaration.
	Aggregation Aggregation
	// Single is the input a `source` declaration feeds.
	Single string
	// Required inputs must be fed by some declaration.
	Required []string
	// LagBreaking types read every incoming edge from the previous timestep.
	LagBreaking bool
	New         Factory
}

// AcceptsInput reports whether an explicit connection may target name.
func (s *Spec) AcceptsInput(name string) bool {
	return slices.Contains(s.Inputs, name)
}

// Module contributes node types.
type Module interface {
	Register(r *Registry) error
}

// Registry holds the known node types.
type Registry struct {
	specs map[string]*Spec
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{specs: map[string]*Spec{}}
}

// Register adds a node type.
func (r *Registry) Register(spec *Spec) error {
	switch {
	case spec == nil || spec.Type == "":
		return fmt.Errorf("node type spec has no type tag")
	case spec.New == nil:
		return fmt.Errorf("node type %q has no factory", spec.Type)
	case spec.Aggregation.Policy != 0 && spec.Aggregation.Input == "":
		return fmt.Errorf("node type %q declares an aggregation policy without an input", spec.Type)
	}
	for _, in := range spec.Required {
		if !spec.AcceptsInput(in) && in != spec.Single && in != spec.Aggregation.Input {
			return fmt.Errorf("node type %q requires input %q it does not accept", spec.Type, in)
		}
	}
	if _, exists := r.specs[spec.Type]; exists {
		return fmt.Errorf("node type %q is already registered", spec.Type)
	}
	r.specs[spec.Type] = spec
	return nil
}

// Use registers every module in order.
func (r *Registry) Use(modules ...Module) error {
	for _, m := range modules {
		if err := m.Register(r); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the spec for a type tag.
func (r *Registry) Lookup(typ string) (*Spec, bool) {
	s, ok := r.specs[typ]
	return s, ok
}

// Types returns the registered type tags, sorted.
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.specs))
	for t := range r.specs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build creates a node of the given type. Unknown types and factory failures
// are configuration errors naming the node.
func (r *Registry) Build(name, typ string, params map[string]any) (node.Node, *Spec, error) {
	spec, ok := r.specs[typ]
	if !ok {
		return nil, nil, &simerr.ConfigurationError{
			Node:   name,
			Field:  "type",
			Reason: unknownTypeReason(typ, r.Types()),
		}
	}
	n, err := spec.New(name, params)
	if err != nil {
		return nil, nil, simerr.Configf(name, "params", "%v", err)
	}
	return n, spec, nil
}

func unknownTypeReason(typ string, known []string) string {
	reason := fmt.Sprintf("unknown node type %q", typ)
	if s := simerr.Suggest(typ, known); s != "" {
		reason += fmt.Sprintf("; did you mean %q?", s)
	}
	return reason
}

// DecodeParams decodes raw parameters into out. It is the helper node
// factories use.
func DecodeParams(params map[string]any, out any) error {
	if err := config.Decode(params, out); err != nil {
		return fmt.Errorf("invalid parameters: %w", err)
	}
	return nil
}
