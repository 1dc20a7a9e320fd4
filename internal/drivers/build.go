package drivers

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/kernel/et"
	"github.com/specialistvlad/hydrogrid/internal/kernel/noise"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
)

// Driver modes accepted in model files.
const (
	ModeConstant   = "constant"
	ModeTimeseries = "timeseries"
	ModeStochastic = "stochastic"
	ModeHargreaves = "hargreaves"
)

type constantParams struct {
	Value float64 `mapstructure:"value"`
}

type timeseriesParams struct {
	File       string `mapstructure:"file"`
	Column     string `mapstructure:"column"`
	DateColumn string `mapstructure:"date_column"`
}

type stochasticParams struct {
	Mean       float64 `mapstructure:"mean"`
	Std        float64 `mapstructure:"std"`
	Seed       uint64  `mapstructure:"seed"`
	ClipAtZero *bool   `mapstructure:"clip_at_zero"`
}

type hargreavesParams struct {
	Tmin        string  `mapstructure:"tmin"`
	Tmax        string  `mapstructure:"tmax"`
	Latitude    float64 `mapstructure:"latitude"`
	Coefficient float64 `mapstructure:"coefficient"`
}

// FromModel builds a registry from the declared drivers. Relative timeseries
// paths are resolved against baseDir on fs.
func FromModel(ctx context.Context, fs afero.Fs, baseDir string, decls []*config.Driver) (*Registry, error) {
	logger := ctxlog.FromContext(ctx)
	reg := NewRegistry()

	for _, d := range decls {
		src, err := newSource(fs, baseDir, d)
		if err != nil {
			return nil, simerr.Configf(d.Name, "driver", "%v", err)
		}
		if h, ok := src.(*Hargreaves); ok {
			for _, dep := range []string{h.Tmin, h.Tmax} {
				if _, declared := reg.byName[dep]; !declared {
					return nil, simerr.Configf(d.Name, "params", "temperature driver %q must be declared before this one", dep)
				}
			}
		}
		ns, sig := d.Namespace, d.Signal
		if ns == "" {
			ns = ClimateNamespace
		}
		if sig == "" {
			sig = d.Name
		}
		if err := reg.Register(Binding{Name: d.Name, Namespace: ns, Signal: sig, Source: src}); err != nil {
			return nil, simerr.Configf(d.Name, "driver", "%v", err)
		}
		logger.Debug("Driver registered.", "driver", d.Name, "mode", d.Mode, "signal", ns+"."+sig)
	}
	return reg, nil
}

// Seeds returns the starting seeds of every stochastic driver.
func (r *Registry) Seeds() map[string]uint64 {
	seeds := map[string]uint64{}
	for _, b := range r.bindings {
		if s, ok := b.Source.(*Stochastic); ok {
			seeds[b.Name] = s.Seed()
		}
	}
	return seeds
}

func newSource(fs afero.Fs, baseDir string, d *config.Driver) (Source, error) {
	switch d.Mode {
	case ModeConstant, "":
		var p constantParams
		if err := config.Decode(d.Params, &p); err != nil {
			return nil, err
		}
		return &Constant{Value: p.Value}, nil

	case ModeTimeseries:
		p := timeseriesParams{DateColumn: "date"}
		if err := config.Decode(d.Params, &p); err != nil {
			return nil, err
		}
		if p.File == "" {
			return nil, fmt.Errorf("timeseries driver requires 'file'")
		}
		if p.Column == "" {
			p.Column = d.Name
		}
		path := p.File
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		return LoadTimeseries(fs, path, p.DateColumn, p.Column)

	case ModeStochastic:
		var p stochasticParams
		if err := config.Decode(d.Params, &p); err != nil {
			return nil, err
		}
		clip := true
		if p.ClipAtZero != nil {
			clip = *p.ClipAtZero
		}
		return NewStochastic(noise.Params{Mean: p.Mean, Std: p.Std, ClipAtZero: clip}, p.Seed)

	case ModeHargreaves:
		var p hargreavesParams
		if err := config.Decode(d.Params, &p); err != nil {
			return nil, err
		}
		if p.Tmin == "" || p.Tmax == "" {
			return nil, fmt.Errorf("hargreaves driver requires 'tmin' and 'tmax'")
		}
		ep := et.Params{LatitudeDeg: p.Latitude, Coefficient: p.Coefficient}
		if err := ep.Validate(); err != nil {
			return nil, err
		}
		return &Hargreaves{Tmin: p.Tmin, Tmax: p.Tmax, Params: ep}, nil
	}
	return nil, fmt.Errorf("unknown driver mode %q (expected constant, timeseries, stochastic or hargreaves)", d.Mode)
}
