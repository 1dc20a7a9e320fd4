package engine

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/registry"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
	"github.com/specialistvlad/hydrogrid/internal/simulation"
	"github.com/specialistvlad/hydrogrid/internal/testutil"
	"github.com/specialistvlad/hydrogrid/modules/constant"
	"github.com/specialistvlad/hydrogrid/modules/junction"
	"github.com/specialistvlad/hydrogrid/modules/lagged"
	"github.com/specialistvlad/hydrogrid/modules/pump"
	"github.com/specialistvlad/hydrogrid/modules/reservoir"
)

type deps = config.Dependencies

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	r := registry.New()
	require.NoError(t, r.Use(&constant.Module{}, &junction.Module{}, &lagged.Module{}, &pump.Module{}, &reservoir.Module{}))
	return r
}

func run(t *testing.T, m *config.Model) *simulation.Results {
	t.Helper()
	ctx := testutil.Context(t)
	e, err := Prepare(ctx, m, newRegistry(t), Options{Fs: afero.NewMemMapFs()})
	require.NoError(t, err)
	res, err := e.Run(ctx)
	require.NoError(t, err)
	return res
}

func floats(t *testing.T, r *simulation.Results, key string) []float64 {
	t.Helper()
	v, err := r.Floats(key)
	require.NoError(t, err)
	return v
}

func TestEngine_ReservoirMassBalance(t *testing.T) {
	m := testutil.Model(t, "2020-01-01", "2020-01-10",
		testutil.Node("res", reservoir.Type, map[string]any{"initial_storage": 1000.0, "capacity": 1e9}, deps{Inflows: []string{"x", "y"}}),
		testutil.Node("x", constant.Type, map[string]any{"value": 12.5}, deps{}),
		testutil.Node("y", constant.Type, map[string]any{"value": 7.25}, deps{}),
	)
	res := run(t, m)

	storage := floats(t, res, "res.storage")
	require.Len(t, storage, 10)
	prev := 1000.0
	for i, s := range storage {
		assert.Equal(t, prev+12.5+7.25, s, "day %d", i+1)
		prev = s
	}
	assert.Equal(t, []string{"x", "y", "res"}, res.Meta.Order)
}

func TestEngine_PumpFeedbackThroughLag(t *testing.T) {
	m := testutil.Model(t, "2020-01-01", "2020-01-15",
		testutil.Node("inflow", constant.Type, map[string]any{"value": 150.0}, deps{}),
		testutil.Node("res", reservoir.Type, map[string]any{"initial_storage": 1000.0, "capacity": 1e6}, deps{
			Inflows:     []string{"inflow"},
			Connections: []config.Connection{{Source: "pump.pumped_flow", Input: "release"}},
		}),
		testutil.Node("pump", pump.Type, map[string]any{"control_mode": "deadband", "capacity": 30.0, "target": 2000.0}, deps{
			Connections: []config.Connection{{Source: "level", Input: "process_variable"}},
		}),
		testutil.Node("level", lagged.Type, map[string]any{"initial_value": 1000.0}, deps{Source: "res.storage"}),
	)
	res := run(t, m)

	storage := floats(t, res, "res.storage")
	released := floats(t, res, "res.release")
	level := floats(t, res, "level.value")
	pumped := floats(t, res, "pump.pumped_flow")

	assert.Equal(t, 1000.0, level[0])
	prev := 1000.0
	for i := range storage {
		if i > 0 {
			assert.Equal(t, storage[i-1], level[i], "day %d sees yesterday's storage", i+1)
		}
		want := 0.0
		if 2000-level[i] > 0 {
			want = 30
		}
		assert.Equal(t, want, pumped[i], "day %d", i+1)
		assert.Equal(t, pumped[i], released[i])
		assert.Equal(t, prev+150-released[i], storage[i])
		prev = storage[i]
	}
	assert.Contains(t, pumped, 0.0, "the pump switches off once the target is passed")
}

func TestEngine_Deterministic(t *testing.T) {
	model := func() *config.Model {
		m := testutil.Model(t, "2020-01-01", "2020-06-30",
			testutil.Node("res", reservoir.Type, map[string]any{"initial_storage": 0.0, "capacity": 500.0}, deps{Inflows: []string{"mix"}}),
			testutil.Node("mix", junction.Type, nil, deps{Inflows: []string{"rain"}}),
			testutil.Node("rain", constant.Type, map[string]any{"value": 3.0}, deps{}),
		)
		m.Name = "determinism"
		m.Drivers = []*config.Driver{
			{Name: "noise", Mode: "stochastic", Params: map[string]any{"mean": 10, "std": 4, "seed": 42}},
		}
		return m
	}

	first := run(t, model())
	second := run(t, model())

	if diff := cmp.Diff(first.Rows(), second.Rows()); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff(first.Meta, second.Meta, cmpopts.IgnoreFields(simulation.Metadata{}, "RunID")); diff != "" {
		t.Fatalf("metadata differs (-first +second):\n%s", diff)
	}
	assert.NotEqual(t, first.Meta.RunID, second.Meta.RunID)
	_, err := uuid.Parse(first.Meta.RunID)
	assert.NoError(t, err)
	assert.Equal(t, map[string]uint64{"noise": 42}, first.Meta.Seeds)
	assert.Equal(t, "determinism", first.Meta.Model)
}

func TestPrepare_StructuralErrors(t *testing.T) {
	testCases := []struct {
		name  string
		model func(t *testing.T) *config.Model
		check func(t *testing.T, err error)
	}{
		{
			name: "cycle without lag",
			model: func(t *testing.T) *config.Model {
				return testutil.Model(t, "2020-01-01", "2020-01-02",
					testutil.Node("a", reservoir.Type, map[string]any{"capacity": 10.0}, deps{Inflows: []string{"b"}}),
					testutil.Node("b", reservoir.Type, map[string]any{"capacity": 10.0}, deps{Inflows: []string{"a"}}),
				)
			},
			check: func(t *testing.T, err error) {
				var cyc *simerr.CircularDependencyError
				require.True(t, errors.As(err, &cyc))
				assert.Contains(t, err.Error(), "a -> b -> a")
			},
		},
		{
			name: "unknown reference",
			model: func(t *testing.T) *config.Model {
				return testutil.Model(t, "2020-01-01", "2020-01-02",
					testutil.Node("res", reservoir.Type, map[string]any{"capacity": 10.0}, deps{Inflows: []string{"rivr"}}),
					testutil.Node("river", constant.Type, nil, deps{}),
				)
			},
			check: func(t *testing.T, err error) {
				var undef *simerr.UndefinedComponentError
				require.True(t, errors.As(err, &undef))
				assert.Contains(t, err.Error(), "river")
			},
		},
		{
			name: "bad driver",
			model: func(t *testing.T) *config.Model {
				m := testutil.Model(t, "2020-01-01", "2020-01-02", testutil.Node("c", constant.Type, nil, deps{}))
				m.Drivers = []*config.Driver{{Name: "rain", Mode: "telepathy"}}
				return m
			},
			check: func(t *testing.T, err error) {
				var cfg *simerr.ConfigurationError
				require.True(t, errors.As(err, &cfg))
				assert.Contains(t, err.Error(), "unknown driver mode")
			},
		},
		{
			name: "pump without a process variable",
			model: func(t *testing.T) *config.Model {
				return testutil.Model(t, "2020-01-01", "2020-01-02",
					testutil.Node("p", pump.Type, map[string]any{"control_mode": "deadband", "target": 1.0}, deps{}))
			},
			check: func(t *testing.T, err error) {
				var cfg *simerr.ConfigurationError
				require.True(t, errors.As(err, &cfg))
				assert.Equal(t, "p", cfg.Node)
				assert.Contains(t, err.Error(), `required input "process_variable"`)
			},
		},
		{
			name: "derived driver reads an undeclared driver",
			model: func(t *testing.T) *config.Model {
				m := testutil.Model(t, "2020-01-01", "2020-01-02", testutil.Node("c", constant.Type, nil, deps{}))
				m.Drivers = []*config.Driver{
					{Name: "tmin", Params: map[string]any{"value": 5.0}},
					{Name: "pet", Mode: "hargreaves", Params: map[string]any{"tmin": "tmin", "tmax": "nope"}},
				}
				return m
			},
			check: func(t *testing.T, err error) {
				var cfg *simerr.ConfigurationError
				require.True(t, errors.As(err, &cfg))
				assert.Equal(t, "pet", cfg.Node)
				assert.Contains(t, err.Error(), `temperature driver "nope" must be declared before this one`)
			},
		},
		{
			name: "node reads an undeclared driver",
			model: func(t *testing.T) *config.Model {
				m := testutil.Model(t, "2020-01-01", "2020-01-02",
					testutil.Node("res", reservoir.Type, map[string]any{
						"capacity": 10.0, "surface_area": 5.0, "evaporation_driver": "evaporaton",
					}, deps{}))
				m.Drivers = []*config.Driver{{Name: "evaporation", Params: map[string]any{"value": 4.0}}}
				return m
			},
			check: func(t *testing.T, err error) {
				var cfg *simerr.ConfigurationError
				require.True(t, errors.As(err, &cfg))
				assert.Equal(t, "res", cfg.Node)
				assert.Contains(t, err.Error(), `unknown driver "evaporaton"; did you mean "evaporation"?`)
			},
		},
		{
			name: "dates reversed",
			model: func(t *testing.T) *config.Model {
				return testutil.Model(t, "2020-02-01", "2020-01-02", testutil.Node("c", constant.Type, nil, deps{}))
			},
			check: func(t *testing.T, err error) {
				var cfg *simerr.ConfigurationError
				require.True(t, errors.As(err, &cfg))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e, err := Prepare(testutil.Context(t), tc.model(t), newRegistry(t), Options{Fs: afero.NewMemMapFs()})
			require.Error(t, err)
			assert.Nil(t, e)
			assert.True(t, simerr.IsStructural(err))
			tc.check(t, err)
		})
	}
}
