package simulation

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/hydrogrid/internal/config"
	"github.com/specialistvlad/hydrogrid/internal/drivers"
	"github.com/specialistvlad/hydrogrid/internal/graph"
	"github.com/specialistvlad/hydrogrid/internal/kernel/noise"
	"github.com/specialistvlad/hydrogrid/internal/scheduler"
	"github.com/specialistvlad/hydrogrid/internal/simerr"
	"github.com/specialistvlad/hydrogrid/internal/testutil"
	"github.com/specialistvlad/hydrogrid/internal/transfer"
)

type deps = config.Dependencies

func newLoop(t *testing.T, m *config.Model, d *drivers.Registry) *Loop {
	t.Helper()
	ctx := testutil.Context(t)
	g, err := graph.Build(ctx, m, testutil.Registry())
	require.NoError(t, err)
	plan, err := scheduler.Schedule(ctx, g)
	require.NoError(t, err)
	if d == nil {
		d = drivers.NewRegistry()
	}
	return New(plan, d, transfer.New(g), m.Settings)
}

func noiseParams() noise.Params {
	return noise.Params{Mean: 5, Std: 2, ClipAtZero: true}
}

func floats(t *testing.T, r *Results, key string) []float64 {
	t.Helper()
	v, err := r.Floats(key)
	require.NoError(t, err)
	return v
}

func TestRun_LinearChainReadsSameTimestep(t *testing.T) {
	// Declared in reverse so that declaration order cannot hide a lag.
	m := testutil.Model(t, "2020-01-01", "2020-01-05",
		testutil.Node("c", testutil.Probe, nil, deps{Source: "b"}),
		testutil.Node("b", testutil.Probe, map[string]any{"base": 100.0}, deps{Source: "a"}),
		testutil.Node("a", testutil.Probe, map[string]any{"series": []any{1, 2, 3, 4, 5}}, deps{}),
	)
	res, err := newLoop(t, m, nil).Run(testutil.Context(t))
	require.NoError(t, err)

	assert.Equal(t, 5, res.Len())
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, floats(t, res, "a.value"))
	assert.Equal(t, []float64{101, 102, 103, 104, 105}, floats(t, res, "b.value"))
	assert.Equal(t, []float64{101, 102, 103, 104, 105}, floats(t, res, "c.value"))
	assert.Equal(t, []string{"a.value", "a.steps", "b.value", "b.steps", "c.value", "c.steps"}, res.Columns())
}

func TestRun_FeedbackThroughLagReadsPreviousTimestep(t *testing.T) {
	// store accumulates 10 a day plus whatever control passes on; control
	// sees store only through the lag node.
	m := testutil.Model(t, "2020-01-01", "2020-01-05",
		testutil.Node("store", testutil.Probe, map[string]any{"base": 10.0}, deps{
			Connections: []config.Connection{{Source: "control", Input: "control"}},
		}),
		testutil.Node("control", testutil.Probe, nil, deps{
			Connections: []config.Connection{{Source: "lag", Input: "signal"}},
		}),
		testutil.Node("lag", testutil.Delay, map[string]any{"initial": -1.0}, deps{Source: "store"}),
	)
	res, err := newLoop(t, m, nil).Run(testutil.Context(t))
	require.NoError(t, err)

	store := floats(t, res, "store.value")
	lag := floats(t, res, "lag.value")
	control := floats(t, res, "control.value")

	assert.Equal(t, -1.0, lag[0], "first day sees the seed")
	for i := 1; i < len(store); i++ {
		assert.Equal(t, store[i-1], lag[i], "day %d must see the store of day %d", i, i-1)
		assert.NotEqual(t, store[i], lag[i])
	}
	for i := range store {
		assert.Equal(t, lag[i], control[i])
		assert.Equal(t, 10+control[i], store[i])
	}
}

func TestRun_AggregatedEdgesSumExactly(t *testing.T) {
	values := []float64{0.1, 0.2, 0.3, 1e-9, 12345.678}
	nodes := []*config.Node{}
	var inflows []string
	for i, v := range values {
		name := string(rune('a' + i))
		nodes = append(nodes, testutil.Node(name, testutil.Probe, map[string]any{"base": v}, deps{}))
		inflows = append(inflows, name)
	}
	nodes = append(nodes,
		testutil.Node("summed", testutil.Probe, nil, deps{Inflows: inflows}),
		testutil.Node("indexed", testutil.Collector, nil, deps{Inflows: inflows}),
	)
	m := testutil.Model(t, "2020-01-01", "2020-01-01", nodes...)
	res, err := newLoop(t, m, nil).Run(testutil.Context(t))
	require.NoError(t, err)

	want := 0.0
	for _, v := range values {
		want += v
	}
	assert.Equal(t, []float64{want}, floats(t, res, "summed.value"))
	assert.Equal(t, []float64{want}, floats(t, res, "indexed.total"))
	assert.Equal(t, []float64{float64(len(values))}, floats(t, res, "indexed.count"))
}

func TestRun_FailureDiscardsTheDay(t *testing.T) {
	m := testutil.Model(t, "2020-01-01", "2020-01-05",
		testutil.Node("counter", testutil.Probe, nil, deps{}),
		testutil.Node("bad", testutil.Faulty, map[string]any{"fail_on": "2020-01-03"}, deps{}),
	)
	loop := newLoop(t, m, nil)
	res, err := loop.Run(testutil.Context(t))

	require.Error(t, err)
	assert.Nil(t, res, "no partial results")

	var kerr *simerr.KernelError
	require.True(t, errors.As(err, &kerr))
	assert.Equal(t, "bad", kerr.Node)
	assert.Equal(t, testutil.Faulty, kerr.Type)
	assert.Equal(t, testutil.Date(t, "2020-01-03"), kerr.Date)
	assert.Contains(t, err.Error(), `node "bad" (faulty) failed on 2020-01-03: injected failure`)

	// counter stepped on the failing day but was never committed.
	counter, ok := loop.plan.Graph().Node("counter")
	require.True(t, ok)
	out, err := counter.Node.Step(testutil.Context(t), testutil.Date(t, "2020-01-06"), drivers.NewRegistry())
	require.NoError(t, err)
	assert.Equal(t, 3.0, out["steps"], "two committed days plus this step")

	p := loop.Progress().Snapshot()
	assert.Equal(t, int64(2), p.Done)
	assert.Equal(t, int64(5), p.Total)
	assert.Equal(t, "2020-01-02", p.Last)
	assert.True(t, p.Failed)
}

func TestRun_PanicBecomesKernelError(t *testing.T) {
	m := testutil.Model(t, "2020-01-01", "2020-01-02",
		testutil.Node("bad", testutil.Faulty, map[string]any{"fail_on": "2020-01-02", "panic": true}, deps{}),
	)
	_, err := newLoop(t, m, nil).Run(testutil.Context(t))
	var kerr *simerr.KernelError
	require.True(t, errors.As(err, &kerr))
	assert.Contains(t, err.Error(), "panic: faulty node exploded")
}

func TestRun_StepErrorNamesTheNode(t *testing.T) {
	m := testutil.Model(t, "2020-01-01", "2020-01-01",
		testutil.Node("a", testutil.Probe, map[string]any{"driver": "missing"}, deps{}),
	)
	_, err := newLoop(t, m, nil).Run(testutil.Context(t))
	assert.ErrorContains(t, err, `node "a" (probe) failed on 2020-01-01: unknown driver "missing"`)
}

func TestRun_Cancellation(t *testing.T) {
	m := testutil.Model(t, "2020-01-01", "2020-12-31", testutil.Node("a", testutil.Probe, nil, deps{}))
	ctx, cancel := context.WithCancel(testutil.Context(t))
	cancel()
	loop := newLoop(t, m, nil)
	res, err := loop.Run(ctx)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)

	snap := loop.Progress().Snapshot()
	assert.True(t, snap.Failed, "a cancelled run is reported as failed")
	assert.Zero(t, snap.Done)
}

func TestRun_InvalidSettings(t *testing.T) {
	m := testutil.Model(t, "2020-01-05", "2020-01-01", testutil.Node("a", testutil.Probe, nil, deps{}))
	_, err := newLoop(t, m, nil).Run(testutil.Context(t))
	var cfg *simerr.ConfigurationError
	assert.True(t, errors.As(err, &cfg))
}

func TestRun_Deterministic(t *testing.T) {
	build := func() *Loop {
		d := drivers.NewRegistry()
		src, err := drivers.NewStochastic(noiseParams(), 7)
		require.NoError(t, err)
		require.NoError(t, d.Register(drivers.Binding{Name: "rain", Source: src}))

		m := testutil.Model(t, "2020-01-01", "2020-03-01",
			testutil.Node("rain_probe", testutil.Probe, map[string]any{"driver": "rain"}, deps{}),
			testutil.Node("sum", testutil.Probe, nil, deps{Inflows: []string{"rain_probe", "lag"}}),
			testutil.Node("lag", testutil.Delay, nil, deps{Source: "sum"}),
		)
		return newLoop(t, m, d)
	}

	first, err := build().Run(testutil.Context(t))
	require.NoError(t, err)
	second, err := build().Run(testutil.Context(t))
	require.NoError(t, err)

	if diff := cmp.Diff(first.Rows(), second.Rows()); diff != "" {
		t.Fatalf("runs differ (-first +second):\n%s", diff)
	}

	var a, b bytes.Buffer
	require.NoError(t, first.WriteCSV(&a))
	require.NoError(t, second.WriteCSV(&b))
	assert.Equal(t, a.String(), b.String())
}
