package paradigm

import (
	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/mat"
)

// bandpassFFT filters one channel to the [fmin, fmax] band by masking
// Fourier coefficients. Filtering runs over the whole continuous recording,
// before epoching, so window edges carry no filter transients.
func bandpassFFT(x []float64, sfreq, fmin, fmax float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, x)

	binHz := sfreq / float64(n)
	for k := range coeffs {
		f := float64(k) * binHz
		if f < fmin || f > fmax {
			coeffs[k] = 0
		}
	}

	out := fft.Sequence(nil, coeffs)
	scale := 1 / float64(n)
	for i := range out {
		out[i] *= scale
	}
	return out
}

// resampleFFT changes the sampling rate of one channel by truncating or
// zero-padding its spectrum.
func resampleFFT(x []float64, from, to float64) []float64 {
	n := len(x)
	if n == 0 || from == to {
		return x
	}

	n2 := int(float64(n)*to/from + 0.5)
	if n2 < 1 {
		n2 = 1
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, x)

	out := fourier.NewFFT(n2)
	coeffs2 := make([]complex128, n2/2+1)
	copy(coeffs2, coeffs[:min(len(coeffs), len(coeffs2))])

	res := out.Sequence(nil, coeffs2)
	scale := 1 / float64(n)
	for i := range res {
		res[i] *= scale
	}
	return res
}

// filterMatrix applies bandpassFFT row by row.
func filterMatrix(m *mat.Dense, sfreq, fmin, fmax float64) *mat.Dense {
	rows, cols := m.Dims()
	out := mat.NewDense(rows, cols, nil)
	for r := 0; r < rows; r++ {
		out.SetRow(r, bandpassFFT(m.RawRowView(r), sfreq, fmin, fmax))
	}
	return out
}

// resampleMatrix applies resampleFFT row by row.
func resampleMatrix(m *mat.Dense, from, to float64) *mat.Dense {
	rows, cols := m.Dims()
	if cols == 0 || from == to {
		return m
	}
	first := resampleFFT(m.RawRowView(0), from, to)
	out := mat.NewDense(rows, len(first), nil)
	out.SetRow(0, first)
	for r := 1; r < rows; r++ {
		out.SetRow(r, resampleFFT(m.RawRowView(r), from, to))
	}
	return out
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
