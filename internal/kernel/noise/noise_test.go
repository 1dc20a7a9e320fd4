package noise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draw(t *testing.T, p Params, s State, n int) ([]float64, State) {
	t.Helper()
	out := make([]float64, n)
	for i := range out {
		var o Outputs
		var err error
		s, o, err = Normal(struct{}{}, p, s)
		require.NoError(t, err)
		out[i] = o.Value
	}
	return out, s
}

func TestNormal_SameSeedSameSequence(t *testing.T) {
	p := Params{Mean: 3, Std: 1}
	a, sa := draw(t, p, Seed(42), 50)
	b, sb := draw(t, p, Seed(42), 50)
	assert.Equal(t, a, b)
	assert.Equal(t, sa, sb)

	c, _ := draw(t, p, Seed(43), 50)
	assert.NotEqual(t, a, c)
}

func TestNormal_StateIsExplicit(t *testing.T) {
	p := Params{Mean: 0, Std: 1}
	s := Seed(7)

	next, o1, err := Normal(struct{}{}, p, s)
	require.NoError(t, err)
	_, o2, err := Normal(struct{}{}, p, s)
	require.NoError(t, err)
	assert.Equal(t, o1, o2, "the same state must give the same draw")
	assert.Equal(t, Seed(7), s, "drawing does not advance the caller's state")
	assert.NotEqual(t, s, next)
}

func TestNormal_Moments(t *testing.T) {
	p := Params{Mean: 10, Std: 2}
	values, _ := draw(t, p, Seed(2024), 20000)

	var sum, sq float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))
	for _, v := range values {
		sq += (v - mean) * (v - mean)
	}
	std := math.Sqrt(sq / float64(len(values)))

	assert.InDelta(t, 10, mean, 0.1)
	assert.InDelta(t, 2, std, 0.1)
}

func TestNormal_ClipAtZero(t *testing.T) {
	values, _ := draw(t, Params{Mean: 0, Std: 5, ClipAtZero: true}, Seed(1), 500)
	for _, v := range values {
		assert.GreaterOrEqual(t, v, 0.0)
	}
}

func TestParams_Validate(t *testing.T) {
	assert.Error(t, Params{Std: -1}.Validate())
	assert.NoError(t, Params{Std: 0}.Validate())
}
