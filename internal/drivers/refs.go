package drivers

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/specialistvlad/hydrogrid/internal/simerr"
)

// Ref names a driver value a node reads: either a driver by name or a
// namespace-qualified signal.
type Ref struct {
	Name      string
	Namespace string
	Signal    string
}

// Named refers to a driver by name.
func Named(name string) Ref { return Ref{Name: name} }

// Signal refers to a namespace-qualified signal.
func Signal(namespace, signal string) Ref {
	return Ref{Namespace: namespace, Signal: signal}
}

func (r Ref) String() string {
	if r.Name != "" {
		return r.Name
	}
	return r.Namespace + "." + r.Signal
}

// Dependent is implemented by nodes that read drivers. The refs are checked
// against the registry before the first timestep.
type Dependent interface {
	DriverRefs() []Ref
}

// Check reports whether ref resolves against the registered drivers.
func (r *Registry) Check(ref Ref) error {
	if ref.Name != "" {
		if _, ok := r.byName[ref.Name]; ok {
			return nil
		}
		names := r.sortedNames()
		msg := fmt.Sprintf("unknown driver %q", ref.Name)
		if s := simerr.Suggest(ref.Name, names); s != "" {
			msg += fmt.Sprintf("; did you mean %q?", s)
		}
		return fmt.Errorf("%s (available: %s)", msg, strings.Join(names, ", "))
	}
	if _, ok := r.qualified[ref.String()]; ok {
		return nil
	}
	known := slices.Sorted(maps.Keys(r.qualified))
	return fmt.Errorf("no driver bound to signal %q (bound: %s)", ref.String(), strings.Join(known, ", "))
}
