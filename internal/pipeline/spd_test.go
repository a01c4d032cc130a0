package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func spd(vals ...float64) *mat.Dense {
	n := 2
	return mat.NewDense(n, n, vals)
}

func TestSymLogExpRoundTrip(t *testing.T) {
	a := spd(2, 0.5, 0.5, 1)

	l, err := symLog(a)
	require.NoError(t, err)
	back, err := symExp(l)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, a.At(i, j), back.At(i, j), 1e-9)
		}
	}
}

func TestSymPowIdentity(t *testing.T) {
	a := spd(3, 1, 1, 2)

	half, err := symPow(a, 0.5)
	require.NoError(t, err)
	var sq mat.Dense
	sq.Mul(half, half)
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			assert.InDelta(t, a.At(i, j), sq.At(i, j), 1e-9)
		}
	}
}

func TestDistancesZeroAtSamePoint(t *testing.T) {
	a := spd(2, 0.3, 0.3, 1.5)

	d, err := distRiemann(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-6)

	d, err = distLogEuclid(a, a)
	require.NoError(t, err)
	assert.InDelta(t, 0, d, 1e-6)
}

func TestDistancesPositive(t *testing.T) {
	a := spd(1, 0, 0, 1)
	b := spd(4, 0, 0, 0.25)

	d, err := distRiemann(a, b)
	require.NoError(t, err)
	assert.Greater(t, d, 1.0)

	d, err = distLogEuclid(a, b)
	require.NoError(t, err)
	assert.Greater(t, d, 1.0)
}

func TestMeanOfIdenticalMatrices(t *testing.T) {
	a := spd(2, 0.5, 0.5, 3)

	for _, fn := range []func([]*mat.Dense) (*mat.Dense, error){meanRiemann, meanLogEuclid} {
		m, err := fn([]*mat.Dense{a, a, a})
		require.NoError(t, err)
		for i := 0; i < 2; i++ {
			for j := 0; j < 2; j++ {
				assert.InDelta(t, a.At(i, j), m.At(i, j), 1e-6)
			}
		}
	}
}

func TestMeanRiemannOfDiagonals(t *testing.T) {
	// geometric mean of diag(1) and diag(4) is diag(2)
	a := spd(1, 0, 0, 1)
	b := spd(4, 0, 0, 4)

	m, err := meanRiemann([]*mat.Dense{a, b})
	require.NoError(t, err)
	assert.InDelta(t, 2, m.At(0, 0), 1e-6)
	assert.InDelta(t, 2, m.At(1, 1), 1e-6)
	assert.InDelta(t, 0, m.At(0, 1), 1e-6)
}

func TestMeanEmptyInput(t *testing.T) {
	_, err := meanRiemann(nil)
	require.Error(t, err)
	_, err = meanLogEuclid(nil)
	require.Error(t, err)
}
