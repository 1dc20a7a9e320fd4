// Package yaml_adapter loads models written in YAML. The document is parsed
// into a cty value by go-cty-yaml, converted to plain Go values, then decoded
// with mapstructure into the same config.Model the HCL loader produces.
//
//	name: basin
//	settings:
//	  start_date: "2020-01-01"
//	  end_date: "2020-12-31"
//	drivers:
//	  - name: precipitation
//	    mode: stochastic
//	    params: {mean: 4.5, std: 2, seed: 11}
//	components:
//	  main:
//	    type: reservoir
//	    inflows: [upper.runoff]
//	    params: {capacity: 1.0e6}
//
// `drivers` and `components` may be either a list of entries carrying a
// `name`, or a mapping keyed by name. A mapping has no order of its own, so
// its entries are declared in name order; use the list form when the order
// matters.
package yaml_adapter

import (
	"context"
	"fmt"
	"sort"

	"github.com/spf13/afero"
	ctyyaml "github.com/zclconf/go-cty-yaml"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
)

type document struct {
	Name        string         `mapstructure:"name"`
	Description string         `mapstructure:"description"`
	Settings    *settings      `mapstructure:"settings"`
	Drivers     any            `mapstructure:"drivers"`
	Components  any            `mapstructure:"components"`
	Extra       map[string]any `mapstructure:",remain"`
}

type settings struct {
	StartDate string `mapstructure:"start_date"`
	EndDate   string `mapstructure:"end_date"`
}

type driver struct {
	Name      string         `mapstructure:"name"`
	Mode      string         `mapstructure:"mode"`
	Namespace string         `mapstructure:"namespace"`
	Signal    string         `mapstructure:"signal"`
	Params    map[string]any `mapstructure:"params"`
}

type component struct {
	Name        string         `mapstructure:"name"`
	Type        string         `mapstructure:"type"`
	Inflows     any            `mapstructure:"inflows"`
	Source      string         `mapstructure:"source"`
	Connections []connection   `mapstructure:"connections"`
	Params      map[string]any `mapstructure:"params"`
}

type connection struct {
	Source string `mapstructure:"source"`
	Output string `mapstructure:"output"`
	Input  string `mapstructure:"input"`
}

// Loader is the YAML implementation of the config.Loader interface.
type Loader struct {
	fs afero.Fs
}

// NewLoader creates a new YAML loader reading from fs.
func NewLoader(fs afero.Fs) *Loader {
	return &Loader{fs: fs}
}

// Load parses every given file and merges them in order.
func (l *Loader) Load(ctx context.Context, paths ...string) (*config.Model, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("YAML loader started.", "path_count", len(paths))

	model := &config.Model{}
	for _, path := range paths {
		src, err := afero.ReadFile(l.fs, path)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML file %s: %w", path, err)
		}
		part, err := parse(src)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if err := model.Merge(part); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	}

	logger.Debug("YAML loading complete.", "drivers", len(model.Drivers), "nodes", len(model.Nodes))
	return model, nil
}

func parse(src []byte) (*config.Model, error) {
	ty, err := ctyyaml.ImpliedType(src)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	val, err := ctyyaml.Unmarshal(src, ty)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	raw, err := config.FromCty(val)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if raw == nil {
		return &config.Model{}, nil
	}
	top, ok := raw.(map[string]any)
	if !ok {
		return nil, simerr.Configf("", "", "a model document must be a mapping")
	}

	var doc document
	if err := config.Decode(top, &doc); err != nil {
		return nil, simerr.Configf("", "", "%v", err)
	}
	if len(doc.Extra) > 0 {
		keys := make([]string, 0, len(doc.Extra))
		for k := range doc.Extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return nil, simerr.Configf("", keys[0], "unknown top-level key (expected name, description, settings, drivers or components)")
	}

	m := &config.Model{Name: doc.Name, Description: doc.Description}
	if doc.Settings != nil {
		start, err := config.ParseDate(doc.Settings.StartDate)
		if err != nil {
			return nil, simerr.Configf("", "settings.start_date", "%v", err)
		}
		end, err := config.ParseDate(doc.Settings.EndDate)
		if err != nil {
			return nil, simerr.Configf("", "settings.end_date", "%v", err)
		}
		m.Settings = config.Settings{Start: start, End: end}
	}

	drivers, err := entries(doc.Drivers, "drivers")
	if err != nil {
		return nil, err
	}
	for _, e := range drivers {
		var d driver
		if err := config.Decode(e, &d); err != nil {
			return nil, simerr.Configf(fmt.Sprint(e["name"]), "driver", "%v", err)
		}
		m.Drivers = append(m.Drivers, &config.Driver{
			Name:      d.Name,
			Namespace: d.Namespace,
			Signal:    d.Signal,
			Mode:      d.Mode,
			Params:    orEmpty(d.Params),
		})
	}

	components, err := entries(doc.Components, "components")
	if err != nil {
		return nil, err
	}
	for _, e := range components {
		n, err := translateComponent(e)
		if err != nil {
			return nil, err
		}
		m.Nodes = append(m.Nodes, n)
	}
	return m, nil
}

func translateComponent(e map[string]any) (*config.Node, error) {
	var c component
	if err := config.Decode(e, &c); err != nil {
		return nil, simerr.Configf(fmt.Sprint(e["name"]), "component", "%v", err)
	}
	if c.Type == "" {
		return nil, simerr.Configf(c.Name, "type", "component has no type")
	}
	n := &config.Node{Name: c.Name, Type: c.Type, Params: orEmpty(c.Params)}

	switch v := c.Inflows.(type) {
	case nil:
	case string:
		n.Deps.Inflows = []string{v}
	case []any:
		for i, ref := range v {
			s, ok := ref.(string)
			if !ok {
				return nil, simerr.Configf(c.Name, "inflows", "entry %d is not a reference string", i)
			}
			n.Deps.Inflows = append(n.Deps.Inflows, s)
		}
	default:
		return nil, simerr.Configf(c.Name, "inflows", "expected a reference or a list of references")
	}

	n.Deps.Source = c.Source
	for _, conn := range c.Connections {
		n.Deps.Connections = append(n.Deps.Connections, config.Connection(conn))
	}
	return n, nil
}

// entries normalises a list or a mapping of named entries into a list. In
// the mapping form the key is the name.
func entries(raw any, field string) ([]map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, simerr.Configf("", field, "entry %d is not a mapping", i)
			}
			if _, named := m["name"]; !named {
				return nil, simerr.Configf("", field, "entry %d has no name", i)
			}
			out = append(out, m)
		}
		return out, nil
	case map[string]any:
		names := make([]string, 0, len(v))
		for name := range v {
			names = append(names, name)
		}
		sort.Strings(names)
		out := make([]map[string]any, 0, len(v))
		for _, name := range names {
			m, ok := v[name].(map[string]any)
			if !ok {
				return nil, simerr.Configf(name, field, "entry is not a mapping")
			}
			entry := make(map[string]any, len(m)+1)
			for k, x := range m {
				entry[k] = x
			}
			if existing, named := entry["name"]; named && existing != name {
				return nil, simerr.Configf(name, field, "entry is keyed %q but named %v", name, existing)
			}
			entry["name"] = name
			out = append(out, entry)
		}
		return out, nil
	}
	return nil, simerr.Configf("", field, "expected a list or a mapping")
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
