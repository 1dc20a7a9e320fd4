package drivers

import (
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/specialistvlad/hydrogrid/internal/nodeid"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
)

// ClimateNamespace is the namespace of the typed Climate view.
const ClimateNamespace = "climate"

// Canonical climate signals.
const (
	SignalPrecipitation = "precipitation"
	SignalTemperature   = "temperature"
	SignalET            = "et"
)

// Reader is the read-only view nodes receive.
type Reader interface {
	Date() time.Time
	Get(name string) (float64, error)
	Lookup(namespace, signal string) (float64, error)
	Climate() Climate
}

// Source produces one driver value per date.
type Source interface {
	// Evaluate computes the value for date. resolved holds the values of the
	// drivers registered before this one, for derived sources.
	Evaluate(date time.Time, resolved Values) (float64, error)
	// Commit is called after every source evaluated successfully for a date.
	Commit()
}

// Values is a read-only lookup of already resolved driver values.
type Values interface {
	Value(name string) (float64, bool)
}

// Binding attaches a source to a driver name and, optionally, to a
// namespace-qualified signal.
type Binding struct {
	Name      string
	Namespace string
	Signal    string
	Source    Source
}

func (b Binding) qualified() string {
	if b.Namespace == "" || b.Signal == "" {
		return ""
	}
	return b.Namespace + "." + b.Signal
}

// Snapshot is the immutable set of driver values for one date.
type Snapshot struct {
	date   time.Time
	values map[string]float64
}

// Date of the snapshot.
func (s *Snapshot) Date() time.Time { return s.date }

// Value implements Values.
func (s *Snapshot) Value(name string) (float64, bool) {
	v, ok := s.values[name]
	return v, ok
}

// Values returns a copy of every value in the snapshot.
func (s *Snapshot) Values() map[string]float64 {
	return maps.Clone(s.values)
}

// Registry holds the bound sources and the current snapshot.
type Registry struct {
	bindings  []Binding
	byName    map[string]int
	qualified map[string]string
	current   *Snapshot
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:    map[string]int{},
		qualified: map[string]string{},
	}
}

// Register adds a source. Driver names and qualified signals must be unique.
func (r *Registry) Register(b Binding) error {
	if !nodeid.ValidName(b.Name) {
		return fmt.Errorf("invalid driver name %q", b.Name)
	}
	if b.Source == nil {
		return fmt.Errorf("driver %q has no source", b.Name)
	}
	if _, exists := r.byName[b.Name]; exists {
		return fmt.Errorf("driver %q is registered twice", b.Name)
	}
	if q := b.qualified(); q != "" {
		if other, exists := r.qualified[q]; exists {
			return fmt.Errorf("signal %q is bound to both %q and %q", q, other, b.Name)
		}
		r.qualified[q] = b.Name
	}
	r.byName[b.Name] = len(r.bindings)
	r.bindings = append(r.bindings, b)
	return nil
}

// Names lists the registered drivers in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.bindings))
	for i, b := range r.bindings {
		out[i] = b.Name
	}
	return out
}

// resolving is the partial snapshot seen by derived sources.
type resolving map[string]float64

func (v resolving) Value(name string) (float64, bool) {
	x, ok := v[name]
	return x, ok
}

// Refresh builds the snapshot for date and replaces the current one. Dates
// must strictly increase between calls. A source that fails is reported as a
// KernelError naming the driver.
func (r *Registry) Refresh(date time.Time) error {
	if r.current != nil && !date.After(r.current.date) {
		return fmt.Errorf("driver refresh for %s after %s: dates must increase",
			date.Format(time.DateOnly), r.current.date.Format(time.DateOnly))
	}

	values := make(resolving, len(r.bindings))
	for _, b := range r.bindings {
		v, err := b.Source.Evaluate(date, values)
		if err != nil {
			return &simerr.KernelError{Node: b.Name, Type: "driver", Date: date, Err: err}
		}
		values[b.Name] = v
	}
	for _, b := range r.bindings {
		b.Source.Commit()
	}

	r.current = &Snapshot{date: date, values: values}
	return nil
}

// Snapshot returns the current snapshot, or nil before the first Refresh.
func (r *Registry) Snapshot() *Snapshot {
	return r.current
}

// Date returns the date of the current snapshot.
func (r *Registry) Date() time.Time {
	if r.current == nil {
		return time.Time{}
	}
	return r.current.date
}

// Get returns the value of a driver by name.
func (r *Registry) Get(name string) (float64, error) {
	if r.current == nil {
		return 0, fmt.Errorf("driver %q requested before the registry was refreshed", name)
	}
	v, ok := r.current.values[name]
	if !ok {
		return 0, fmt.Errorf("unknown driver %q (available: %s)", name, strings.Join(r.sortedNames(), ", "))
	}
	return v, nil
}

// Lookup returns the value bound to a namespace-qualified signal.
func (r *Registry) Lookup(namespace, signal string) (float64, error) {
	q := namespace + "." + signal
	name, ok := r.qualified[q]
	if !ok {
		known := slices.Sorted(maps.Keys(r.qualified))
		return 0, fmt.Errorf("no driver bound to signal %q (bound: %s)", q, strings.Join(known, ", "))
	}
	return r.Get(name)
}

// Climate returns the typed climate view.
func (r *Registry) Climate() Climate {
	return Climate{r: r}
}

func (r *Registry) sortedNames() []string {
	names := r.Names()
	sort.Strings(names)
	return names
}

var _ Reader = (*Registry)(nil)

// Climate is the typed view of the climate namespace.
type Climate struct {
	r Reader
}

// Precipitation in mm/day.
func (c Climate) Precipitation() (float64, error) {
	return c.r.Lookup(ClimateNamespace, SignalPrecipitation)
}

// Temperature in degrees Celsius.
func (c Climate) Temperature() (float64, error) {
	return c.r.Lookup(ClimateNamespace, SignalTemperature)
}

// ET is the reference evapotranspiration in mm/day.
func (c Climate) ET() (float64, error) {
	return c.r.Lookup(ClimateNamespace, SignalET)
}

// Signal returns any other climate signal.
func (c Climate) Signal(name string) (float64, error) {
	return c.r.Lookup(ClimateNamespace, name)
}
