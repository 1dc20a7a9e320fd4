package transfer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/graph"
	"github.com/specialistvlad/hydrogrid/internal/testutil"
)

type deps = config.Dependencies

func build(t *testing.T, nodes ...*config.Node) *graph.Graph {
	t.Helper()
	m := testutil.Model(t, "2020-01-01", "2020-01-02", nodes...)
	g, err := graph.Build(testutil.Context(t), m, testutil.Registry())
	require.NoError(t, err)
	return g
}

func entry(t *testing.T, g *graph.Graph, name string) *graph.Entry {
	t.Helper()
	e, ok := g.Node(name)
	require.True(t, ok, "no node %q", name)
	return e
}

func TestFill_AggregationPolicies(t *testing.T) {
	g := build(t,
		testutil.Node("a", testutil.Probe, nil, deps{}),
		testutil.Node("b", testutil.Probe, nil, deps{}),
		testutil.Node("sum", testutil.Probe, nil, deps{Inflows: []string{"a", "b", "a.steps"}}),
		testutil.Node("idx", testutil.Collector, nil, deps{Inflows: []string{"b", "a"}}),
	)
	s := New(g)
	current := Snapshots{
		"a": {"value": 2.0, "steps": 1.0},
		"b": {"value": 5.0, "steps": 1.0},
	}
	ctx := testutil.Context(t)

	sum := entry(t, g, "sum")
	require.NoError(t, s.Fill(ctx, sum, current, nil))
	v, err := sum.Node.Inputs().Float("inflow")
	require.NoError(t, err)
	assert.Equal(t, 8.0, v)
	assert.Equal(t, []string{"inflow"}, sum.Node.Inputs().Names())

	idx := entry(t, g, "idx")
	require.NoError(t, s.Fill(ctx, idx, current, nil))
	in := idx.Node.Inputs()
	first, _ := in.Float("input_1")
	second, _ := in.Float("input_2")
	assert.Equal(t, 5.0, first)
	assert.Equal(t, 2.0, second)
}

func TestFill_SingleAndExplicit(t *testing.T) {
	g := build(t,
		testutil.Node("a", testutil.Probe, nil, deps{}),
		testutil.Node("t", testutil.Probe, nil, deps{
			Source:      "a.steps",
			Connections: []config.Connection{{Source: "a", Input: "signal"}},
		}),
	)
	s := New(g)
	tgt := entry(t, g, "t")
	require.NoError(t, s.Fill(testutil.Context(t), tgt, Snapshots{"a": {"value": 3.0, "steps": 7.0}}, nil))

	up, _ := tgt.Node.Inputs().Float("upstream")
	sig, _ := tgt.Node.Inputs().Float("signal")
	assert.Equal(t, 7.0, up)
	assert.Equal(t, 3.0, sig)
}

func TestFill_LaggedEdges(t *testing.T) {
	g := build(t,
		testutil.Node("a", testutil.Probe, nil, deps{}),
		testutil.Node("lag", testutil.Delay, nil, deps{Source: "a"}),
	)
	s := New(g)
	ctx := testutil.Context(t)
	lag := entry(t, g, "lag")
	current := Snapshots{"a": {"value": 10.0, "steps": 2.0}}

	t.Run("first timestep leaves the input absent", func(t *testing.T) {
		s.Reset()
		require.NoError(t, s.Fill(ctx, lag, current, nil))
		assert.False(t, lag.Node.Inputs().Has("previous"))
	})

	t.Run("later timesteps read the previous row", func(t *testing.T) {
		s.Reset()
		previous := Snapshots{"a": {"value": 4.0, "steps": 1.0}}
		require.NoError(t, s.Fill(ctx, lag, current, previous))
		v, err := lag.Node.Inputs().Float("previous")
		require.NoError(t, err)
		assert.Equal(t, 4.0, v)
	})
}

func TestFill_ValuesAreCopied(t *testing.T) {
	g := build(t,
		testutil.Node("a", testutil.Probe, nil, deps{}),
		testutil.Node("t", testutil.Probe, nil, deps{
			Connections: []config.Connection{{Source: "a", Input: "signal"}},
		}),
	)
	series := []float64{1, 2, 3}
	current := Snapshots{"a": {"value": series}}
	tgt := entry(t, g, "t")
	require.NoError(t, New(g).Fill(testutil.Context(t), tgt, current, nil))

	series[0] = 99
	got, ok := tgt.Node.Inputs().Get("signal")
	require.True(t, ok)
	assert.Equal(t, []float64{1, 2, 3}, got)
}

func TestFill_Errors(t *testing.T) {
	g := build(t,
		testutil.Node("a", testutil.Probe, nil, deps{}),
		testutil.Node("sum", testutil.Probe, nil, deps{Inflows: []string{"a"}}),
	)
	s := New(g)
	ctx := testutil.Context(t)
	sum := entry(t, g, "sum")

	tests := []struct {
		name    string
		current Snapshots
		want    string
	}{
		{"missing snapshot", Snapshots{}, "a.value -> sum.inflow (aggregated): source has no snapshot"},
		{"missing output", Snapshots{"a": {"steps": 1.0}}, `has no output "value"`},
		{"non-numeric sum", Snapshots{"a": {"value": "wet"}}, "not numeric"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s.Reset()
			err := s.Fill(ctx, sum, tt.current, nil)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestReset(t *testing.T) {
	g := build(t, testutil.Node("a", testutil.Probe, nil, deps{}))
	a := entry(t, g, "a")
	a.Node.Inputs().Set("signal", 1.0)
	New(g).Reset()
	assert.Equal(t, 0, a.Node.Inputs().Len())
}
