package drivers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/ctxlog"
	"github.com/specialistvlad/hydrogrid/internal/kernel/noise"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
)

func day(n int) time.Time {
	return time.Date(2020, 1, n, 0, 0, 0, 0, time.UTC)
}

type failing struct{ on time.Time }

func (f *failing) Evaluate(date time.Time, _ Values) (float64, error) {
	if date.Equal(f.on) {
		return 0, errors.New("sensor offline")
	}
	return 1, nil
}
func (f *failing) Commit() {}

func TestRegistry_ViewsAgree(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Binding{Name: "rain", Namespace: ClimateNamespace, Signal: SignalPrecipitation, Source: &Constant{Value: 4.2}}))
	require.NoError(t, reg.Register(Binding{Name: "pet", Namespace: ClimateNamespace, Signal: SignalET, Source: &Constant{Value: 1.5}}))
	require.NoError(t, reg.Refresh(day(1)))

	byName, err := reg.Get("rain")
	require.NoError(t, err)
	qualified, err := reg.Lookup(ClimateNamespace, SignalPrecipitation)
	require.NoError(t, err)
	typed, err := reg.Climate().Precipitation()
	require.NoError(t, err)

	assert.Equal(t, 4.2, byName)
	assert.Equal(t, byName, qualified)
	assert.Equal(t, byName, typed)

	et0, err := reg.Climate().ET()
	require.NoError(t, err)
	assert.Equal(t, 1.5, et0)
}

func TestRegistry_Errors(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Binding{Name: "rain", Namespace: ClimateNamespace, Signal: SignalPrecipitation, Source: &Constant{Value: 1}}))

	t.Run("before refresh", func(t *testing.T) {
		_, err := reg.Get("rain")
		assert.ErrorContains(t, err, "before the registry was refreshed")
	})

	require.NoError(t, reg.Refresh(day(1)))

	t.Run("unknown name", func(t *testing.T) {
		_, err := reg.Get("snow")
		assert.ErrorContains(t, err, `unknown driver "snow"`)
	})

	t.Run("unbound signal", func(t *testing.T) {
		_, err := reg.Climate().Temperature()
		assert.ErrorContains(t, err, `"climate.temperature"`)
	})

	t.Run("duplicate name", func(t *testing.T) {
		err := reg.Register(Binding{Name: "rain", Source: &Constant{}})
		assert.ErrorContains(t, err, "registered twice")
	})

	t.Run("duplicate signal", func(t *testing.T) {
		err := reg.Register(Binding{Name: "rain2", Namespace: ClimateNamespace, Signal: SignalPrecipitation, Source: &Constant{}})
		assert.ErrorContains(t, err, "bound to both")
	})

	t.Run("dates must increase", func(t *testing.T) {
		assert.ErrorContains(t, reg.Refresh(day(1)), "dates must increase")
	})
}

func TestRegistry_FailedRefreshKeepsSnapshot(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Binding{Name: "a", Source: &Constant{Value: 7}}))
	require.NoError(t, reg.Register(Binding{Name: "b", Source: &failing{on: day(2)}}))

	require.NoError(t, reg.Refresh(day(1)))
	before := reg.Snapshot()

	err := reg.Refresh(day(2))
	var kerr *simerr.KernelError
	require.ErrorAs(t, err, &kerr)
	assert.Equal(t, "b", kerr.Node)
	assert.Equal(t, "driver", kerr.Type)
	assert.Equal(t, day(2), kerr.Date)
	assert.Same(t, before, reg.Snapshot())
	assert.Equal(t, day(1), reg.Date())
}

func TestRegistry_SnapshotIsImmutable(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Binding{Name: "a", Source: &Constant{Value: 7}}))
	require.NoError(t, reg.Refresh(day(1)))

	values := reg.Snapshot().Values()
	values["a"] = 99

	v, err := reg.Get("a")
	require.NoError(t, err)
	assert.Equal(t, 7.0, v)
}

func TestStochastic_AdvancesOnlyOnCommit(t *testing.T) {
	mk := func() *Registry {
		src, err := NewStochastic(noise.Params{Mean: 5, Std: 2}, 99)
		require.NoError(t, err)
		reg := NewRegistry()
		require.NoError(t, reg.Register(Binding{Name: "rain", Source: src}))
		require.NoError(t, reg.Register(Binding{Name: "gate", Source: &failing{on: day(2)}}))
		return reg
	}

	// A run whose second refresh fails and is retried with a later date must
	// see the same draw as a run that skipped the failing date entirely.
	a := mk()
	require.NoError(t, a.Refresh(day(1)))
	require.Error(t, a.Refresh(day(2)))
	require.NoError(t, a.Refresh(day(3)))

	b := mk()
	require.NoError(t, b.Refresh(day(1)))
	require.NoError(t, b.Refresh(day(3)))

	va, err := a.Get("rain")
	require.NoError(t, err)
	vb, err := b.Get("rain")
	require.NoError(t, err)
	assert.Equal(t, vb, va)
}

func TestFromModel(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/model/climate.csv", []byte("date,tmin,tmax\n2020-01-01,10,24\n2020-01-02,12,28\n"), 0o644))

	decls := []*config.Driver{
		{Name: "tmin", Mode: ModeTimeseries, Params: map[string]any{"file": "climate.csv"}},
		{Name: "tmax", Mode: ModeTimeseries, Params: map[string]any{"file": "/model/climate.csv", "column": "tmax"}},
		{Name: "pet", Signal: SignalET, Mode: ModeHargreaves, Params: map[string]any{"tmin": "tmin", "tmax": "tmax", "latitude": -33.9}},
		{Name: "rain", Signal: SignalPrecipitation, Mode: ModeStochastic, Params: map[string]any{"mean": 3.0, "std": 1.0, "seed": 42.0}},
		{Name: "evaporation", Params: map[string]any{"value": 4.0}},
	}

	reg, err := FromModel(ctx, fs, "/model", decls)
	require.NoError(t, err)
	assert.Equal(t, []string{"tmin", "tmax", "pet", "rain", "evaporation"}, reg.Names())
	assert.Equal(t, map[string]uint64{"rain": 42}, reg.Seeds())

	require.NoError(t, reg.Refresh(day(1)))
	et0, err := reg.Climate().ET()
	require.NoError(t, err)
	assert.Greater(t, et0, 0.0)

	rain, err := reg.Climate().Precipitation()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rain, 0.0)

	evap, err := reg.Climate().Signal("evaporation")
	require.NoError(t, err)
	assert.Equal(t, 4.0, evap)

	require.NoError(t, reg.Refresh(day(2)))
	_, err = reg.Get("tmin")
	require.NoError(t, err)

	err = reg.Refresh(day(3))
	assert.ErrorContains(t, err, "no value for 2020-01-03")
}

func TestFromModel_Errors(t *testing.T) {
	ctx := ctxlog.Discard(context.Background())
	fs := afero.NewMemMapFs()

	testCases := []struct {
		name    string
		decl    *config.Driver
		wantErr string
	}{
		{name: "unknown mode", decl: &config.Driver{Name: "x", Mode: "magic"}, wantErr: "unknown driver mode"},
		{name: "unknown param", decl: &config.Driver{Name: "x", Params: map[string]any{"valu": 1.0}}, wantErr: "valu"},
		{name: "missing file", decl: &config.Driver{Name: "x", Mode: ModeTimeseries, Params: map[string]any{"file": "nope.csv"}}, wantErr: "failed to open"},
		{name: "negative std", decl: &config.Driver{Name: "x", Mode: ModeStochastic, Params: map[string]any{"std": -1.0}}, wantErr: "std"},
		{name: "hargreaves inputs", decl: &config.Driver{Name: "x", Mode: ModeHargreaves}, wantErr: "requires 'tmin' and 'tmax'"},
		{
			name:    "hargreaves reads an undeclared driver",
			decl:    &config.Driver{Name: "pet", Mode: ModeHargreaves, Params: map[string]any{"tmin": "tmin", "tmax": "nope"}},
			wantErr: `temperature driver "nope" must be declared before this one`,
		},
		{
			name:    "hargreaves reads a later driver",
			decl:    &config.Driver{Name: "pet", Mode: ModeHargreaves, Params: map[string]any{"tmin": "tmin", "tmax": "tmax"}},
			wantErr: `temperature driver "tmax" must be declared before this one`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decls := []*config.Driver{
				{Name: "tmin", Params: map[string]any{"value": 10.0}},
				tc.decl,
				{Name: "tmax", Params: map[string]any{"value": 25.0}},
			}
			_, err := FromModel(ctx, fs, "", decls)
			require.Error(t, err)
			var cfg *simerr.ConfigurationError
			require.True(t, errors.As(err, &cfg))
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRegistry_Check(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(Binding{Name: "rain", Namespace: ClimateNamespace, Signal: SignalPrecipitation, Source: &Constant{Value: 1}}))
	require.NoError(t, reg.Register(Binding{Name: "pan", Source: &Constant{Value: 4}}))

	testCases := []struct {
		name    string
		ref     Ref
		wantErr string
	}{
		{name: "by name", ref: Named("pan")},
		{name: "by signal", ref: Signal(ClimateNamespace, SignalPrecipitation)},
		{name: "typo", ref: Named("rainn"), wantErr: `unknown driver "rainn"; did you mean "rain"?`},
		{name: "unbound signal", ref: Signal(ClimateNamespace, SignalET), wantErr: `no driver bound to signal "climate.et"`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := reg.Check(tc.ref)
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}
