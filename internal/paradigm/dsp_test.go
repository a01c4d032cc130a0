package paradigm

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func sine(freq, sfreq float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sfreq)
	}
	return out
}

func rms(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestBandpassKeepsInBandTone(t *testing.T) {
	const sfreq = 128.0
	x := sine(10, sfreq, 512)

	y := bandpassFFT(x, sfreq, 8, 12)
	require.Len(t, y, len(x))
	assert.InDelta(t, rms(x), rms(y), 0.01)
}

func TestBandpassRemovesOutOfBandTone(t *testing.T) {
	const sfreq = 128.0
	x := sine(30, sfreq, 512)

	y := bandpassFFT(x, sfreq, 8, 12)
	assert.Less(t, rms(y), 0.01)
}

func TestBandpassSeparatesMixture(t *testing.T) {
	const sfreq = 128.0
	lo := sine(10, sfreq, 512)
	hi := sine(40, sfreq, 512)
	x := make([]float64, len(lo))
	for i := range x {
		x[i] = lo[i] + hi[i]
	}

	y := bandpassFFT(x, sfreq, 8, 12)
	for i := range y {
		assert.InDelta(t, lo[i], y[i], 0.05)
	}
}

func TestResampleLength(t *testing.T) {
	x := sine(5, 256, 1024)

	y := resampleFFT(x, 256, 128)
	assert.Len(t, y, 512)

	up := resampleFFT(x, 256, 512)
	assert.Len(t, up, 2048)
}

func TestResamplePreservesTone(t *testing.T) {
	const from, to = 256.0, 128.0
	x := sine(5, from, 1024)

	y := resampleFFT(x, from, to)
	want := sine(5, to, 512)
	for i := range y {
		assert.InDelta(t, want[i], y[i], 0.01)
	}
}

func TestResampleNoOp(t *testing.T) {
	x := sine(5, 128, 256)
	y := resampleFFT(x, 128, 128)
	for i := range y {
		assert.InDelta(t, x[i], y[i], 1e-9)
	}
}

func TestFilterMatrixShape(t *testing.T) {
	m := mat.NewDense(2, 256, nil)
	for j := 0; j < 256; j++ {
		m.Set(0, j, math.Sin(2*math.Pi*10*float64(j)/128))
		m.Set(1, j, math.Sin(2*math.Pi*40*float64(j)/128))
	}

	out := filterMatrix(m, 128, 8, 12)
	r, c := out.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 256, c)
	// second row carries only the out-of-band tone
	assert.Less(t, rms(out.RawRowView(1)), 0.01)
	assert.Greater(t, rms(out.RawRowView(0)), 0.5)
}
