package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// symEig returns the eigendecomposition of a symmetric matrix.
func symEig(m *mat.Dense) (vals []float64, vecs *mat.Dense, err error) {
	n, _ := m.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(sym, true); !ok {
		return nil, nil, fmt.Errorf("eigendecomposition failed")
	}
	vals = eig.Values(nil)
	vecs = mat.NewDense(n, n, nil)
	var ev mat.Dense
	eig.VectorsTo(&ev)
	vecs.Copy(&ev)
	return vals, vecs, nil
}

// symFunc applies f to the eigenvalues of a symmetric matrix and
// reassembles it.
func symFunc(m *mat.Dense, f func(float64) float64) (*mat.Dense, error) {
	vals, vecs, err := symEig(m)
	if err != nil {
		return nil, err
	}
	n := len(vals)
	d := mat.NewDense(n, n, nil)
	for i, v := range vals {
		d.Set(i, i, f(v))
	}
	var tmp, out mat.Dense
	tmp.Mul(vecs, d)
	out.Mul(&tmp, vecs.T())
	return &out, nil
}

// eps floors eigenvalues so log and inverse powers stay finite on
// rank-deficient estimates.
const spdEps = 1e-10

func symLog(m *mat.Dense) (*mat.Dense, error) {
	return symFunc(m, func(v float64) float64 {
		if v < spdEps {
			v = spdEps
		}
		return math.Log(v)
	})
}

func symExp(m *mat.Dense) (*mat.Dense, error) {
	return symFunc(m, math.Exp)
}

func symPow(m *mat.Dense, p float64) (*mat.Dense, error) {
	return symFunc(m, func(v float64) float64 {
		if v < spdEps {
			v = spdEps
		}
		return math.Pow(v, p)
	})
}

// distLogEuclid is the log-Euclidean distance between two SPD matrices.
func distLogEuclid(a, b *mat.Dense) (float64, error) {
	la, err := symLog(a)
	if err != nil {
		return 0, err
	}
	lb, err := symLog(b)
	if err != nil {
		return 0, err
	}
	var diff mat.Dense
	diff.Sub(la, lb)
	return mat.Norm(&diff, 2), nil
}

// distRiemann is the affine-invariant Riemannian distance,
// sqrt(sum log^2 eigenvalues of A^-1 B).
func distRiemann(a, b *mat.Dense) (float64, error) {
	ainv, err := symPow(a, -0.5)
	if err != nil {
		return 0, err
	}
	var tmp, w mat.Dense
	tmp.Mul(ainv, b)
	w.Mul(&tmp, ainv)

	vals, _, err := symEig(&w)
	if err != nil {
		return 0, err
	}
	var sum float64
	for _, v := range vals {
		if v < spdEps {
			v = spdEps
		}
		l := math.Log(v)
		sum += l * l
	}
	return math.Sqrt(sum), nil
}

// meanLogEuclid is exp of the arithmetic mean of matrix logarithms.
func meanLogEuclid(ms []*mat.Dense) (*mat.Dense, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("no matrices to average")
	}
	n, _ := ms[0].Dims()
	acc := mat.NewDense(n, n, nil)
	for _, m := range ms {
		l, err := symLog(m)
		if err != nil {
			return nil, err
		}
		acc.Add(acc, l)
	}
	acc.Scale(1/float64(len(ms)), acc)
	return symExp(acc)
}

// meanRiemann iterates the Karcher mean under the affine-invariant metric,
// starting from the Euclidean mean.
func meanRiemann(ms []*mat.Dense) (*mat.Dense, error) {
	if len(ms) == 0 {
		return nil, fmt.Errorf("no matrices to average")
	}
	n, _ := ms[0].Dims()

	cur := mat.NewDense(n, n, nil)
	for _, m := range ms {
		cur.Add(cur, m)
	}
	cur.Scale(1/float64(len(ms)), cur)

	for iter := 0; iter < 50; iter++ {
		sqrt, err := symPow(cur, 0.5)
		if err != nil {
			return nil, err
		}
		isqrt, err := symPow(cur, -0.5)
		if err != nil {
			return nil, err
		}

		tangent := mat.NewDense(n, n, nil)
		for _, m := range ms {
			var tmp, w mat.Dense
			tmp.Mul(isqrt, m)
			w.Mul(&tmp, isqrt)
			l, err := symLog(&w)
			if err != nil {
				return nil, err
			}
			tangent.Add(tangent, l)
		}
		tangent.Scale(1/float64(len(ms)), tangent)

		step := mat.Norm(tangent, 2)
		e, err := symExp(tangent)
		if err != nil {
			return nil, err
		}
		var tmp, next mat.Dense
		tmp.Mul(sqrt, e)
		next.Mul(&tmp, sqrt)
		cur.Copy(&next)

		if step < 1e-8 {
			break
		}
	}
	return cur, nil
}
