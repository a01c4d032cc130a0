package pipeline

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Covariances estimates one spatial covariance matrix per band per trial.
// Estimator is "scm" (sample covariance) or "oas" (Oracle Approximating
// Shrinkage).
type Covariances struct {
	Estimator string
}

func (c *Covariances) Fit(b *Batch, y []string) error { return nil }

func (c *Covariances) Transform(b *Batch) (*Batch, error) {
	if b.Trials == nil {
		return nil, fmt.Errorf("covariances: input already vectorized")
	}
	est := c.Estimator
	if est == "" {
		est = "scm"
	}
	out := make([][]*mat.Dense, len(b.Trials))
	for i, bands := range b.Trials {
		out[i] = make([]*mat.Dense, len(bands))
		for j, x := range bands {
			cov, err := covariance(x, est)
			if err != nil {
				return nil, fmt.Errorf("covariances: trial %d: %w", i, err)
			}
			out[i][j] = cov
		}
	}
	return &Batch{Trials: out}, nil
}

func (c *Covariances) Clone() Transformer { return &Covariances{Estimator: c.Estimator} }

func covariance(x *mat.Dense, estimator string) (*mat.Dense, error) {
	p, n := x.Dims()
	if n < 2 {
		return nil, fmt.Errorf("%d samples is too few", n)
	}

	centered := mat.NewDense(p, n, nil)
	for r := 0; r < p; r++ {
		row := x.RawRowView(r)
		m := stat.Mean(row, nil)
		dst := centered.RawRowView(r)
		for i, v := range row {
			dst[i] = v - m
		}
	}

	s := mat.NewDense(p, p, nil)
	s.Mul(centered, centered.T())
	s.Scale(1/float64(n-1), s)

	switch estimator {
	case "scm":
		return s, nil
	case "oas":
		return oasShrink(s, p, n), nil
	default:
		return nil, fmt.Errorf("unknown estimator %q", estimator)
	}
}

// oasShrink applies Oracle Approximating Shrinkage toward mu*I.
func oasShrink(s *mat.Dense, p, n int) *mat.Dense {
	var trS, trS2 float64
	for i := 0; i < p; i++ {
		trS += s.At(i, i)
		for j := 0; j < p; j++ {
			v := s.At(i, j)
			trS2 += v * v
		}
	}
	mu := trS / float64(p)

	pf := float64(p)
	nf := float64(n)
	num := (1-2/pf)*trS2 + trS*trS
	den := (nf + 1 - 2/pf) * (trS2 - trS*trS/pf)
	rho := 1.0
	if den > 0 {
		rho = math.Min(1, num/den)
	}

	out := mat.NewDense(p, p, nil)
	out.Scale(1-rho, s)
	for i := 0; i < p; i++ {
		out.Set(i, i, out.At(i, i)+rho*mu)
	}
	return out
}

// CSP learns spatial filters from per-class covariance means and emits
// log-variance features, one block per band. Input trials must be
// covariance matrices.
type CSP struct {
	NFilter int

	filters [][]*mat.Dense // per band, per class slot
}

func (c *CSP) nfilter() int {
	if c.NFilter > 0 {
		return c.NFilter
	}
	return 4
}

func (c *CSP) Fit(b *Batch, y []string) error {
	if b.Trials == nil {
		return fmt.Errorf("csp: input already vectorized")
	}
	if len(b.Trials) == 0 {
		return fmt.Errorf("csp: no trials")
	}
	classes, _ := classIndex(y)
	if len(classes) < 2 {
		return fmt.Errorf("csp: need at least two classes, got %d", len(classes))
	}

	nbands := len(b.Trials[0])
	c.filters = make([][]*mat.Dense, nbands)
	for band := 0; band < nbands; band++ {
		w, err := cspBand(b.Trials, y, classes, band, c.nfilter())
		if err != nil {
			return fmt.Errorf("csp: band %d: %w", band, err)
		}
		c.filters[band] = w
	}
	return nil
}

// cspBand whitens with the grand mean covariance and picks, per class, the
// directions whose whitened class variance departs most from uniform.
func cspBand(trials [][]*mat.Dense, y []string, classes []string, band, nfilter int) ([]*mat.Dense, error) {
	p, _ := trials[0][band].Dims()

	byClass := make(map[string]*mat.Dense, len(classes))
	counts := make(map[string]int, len(classes))
	total := mat.NewDense(p, p, nil)
	for i, bands := range trials {
		cov := bands[band]
		acc, ok := byClass[y[i]]
		if !ok {
			acc = mat.NewDense(p, p, nil)
			byClass[y[i]] = acc
		}
		acc.Add(acc, cov)
		counts[y[i]]++
		total.Add(total, cov)
	}
	total.Scale(1/float64(len(trials)), total)
	for cl, acc := range byClass {
		acc.Scale(1/float64(counts[cl]), acc)
	}

	white, err := symPow(total, -0.5)
	if err != nil {
		return nil, err
	}

	type ranked struct {
		score float64
		w     []float64
	}
	var cand []ranked
	for _, cl := range classes {
		var tmp, s mat.Dense
		tmp.Mul(white, byClass[cl])
		s.Mul(&tmp, white)
		vals, vecs, err := symEig(&s)
		if err != nil {
			return nil, err
		}
		for k, v := range vals {
			// rotate the whitened eigenvector back to sensor space
			w := make([]float64, p)
			for r := 0; r < p; r++ {
				var sum float64
				for q := 0; q < p; q++ {
					sum += white.At(r, q) * vecs.At(q, k)
				}
				w[r] = sum
			}
			cand = append(cand, ranked{score: math.Abs(v - 1/float64(len(classes))), w: w})
		}
	}
	sort.Slice(cand, func(i, j int) bool { return cand[i].score > cand[j].score })

	if nfilter > len(cand) {
		nfilter = len(cand)
	}
	w := mat.NewDense(nfilter, p, nil)
	for i := 0; i < nfilter; i++ {
		w.SetRow(i, cand[i].w)
	}
	return []*mat.Dense{w}, nil
}

func (c *CSP) Transform(b *Batch) (*Batch, error) {
	if c.filters == nil {
		return nil, fmt.Errorf("csp: not fitted")
	}
	if b.Trials == nil {
		return nil, fmt.Errorf("csp: input already vectorized")
	}
	nbands := len(c.filters)

	// column layout follows the fitted filter rows, which can be fewer
	// than requested when a band yields few components
	offsets := make([]int, nbands)
	width := 0
	for band, fs := range c.filters {
		offsets[band] = width
		rows, _ := fs[0].Dims()
		width += rows
	}

	feats := mat.NewDense(len(b.Trials), width, nil)
	for i, bands := range b.Trials {
		if len(bands) != nbands {
			return nil, fmt.Errorf("csp: trial %d has %d bands, fitted on %d", i, len(bands), nbands)
		}
		for band, cov := range bands {
			w := c.filters[band][0]
			rows, _ := w.Dims()
			var tmp, proj mat.Dense
			tmp.Mul(w, cov)
			proj.Mul(&tmp, w.T())
			for k := 0; k < rows; k++ {
				v := proj.At(k, k)
				if v < spdEps {
					v = spdEps
				}
				feats.Set(i, offsets[band]+k, math.Log(v))
			}
		}
	}
	return &Batch{Feats: feats}, nil
}

func (c *CSP) Clone() Transformer { return &CSP{NFilter: c.NFilter} }

// LogVariance reduces each trial to the log variance of every channel,
// concatenated across bands. Works on raw time series trials.
type LogVariance struct{}

func (l *LogVariance) Fit(b *Batch, y []string) error { return nil }

func (l *LogVariance) Transform(b *Batch) (*Batch, error) {
	if b.Trials == nil {
		return nil, fmt.Errorf("logvariance: input already vectorized")
	}
	if len(b.Trials) == 0 {
		return &Batch{Feats: &mat.Dense{}}, nil
	}

	var width int
	for _, m := range b.Trials[0] {
		r, _ := m.Dims()
		width += r
	}
	feats := mat.NewDense(len(b.Trials), width, nil)
	for i, bands := range b.Trials {
		col := 0
		for _, m := range bands {
			rows, _ := m.Dims()
			for r := 0; r < rows; r++ {
				v := stat.Variance(m.RawRowView(r), nil)
				if v < spdEps {
					v = spdEps
				}
				feats.Set(i, col, math.Log(v))
				col++
			}
		}
	}
	return &Batch{Feats: feats}, nil
}

func (l *LogVariance) Clone() Transformer { return &LogVariance{} }

// Vectorizer flattens each trial's matrices into one feature row.
type Vectorizer struct{}

func (v *Vectorizer) Fit(b *Batch, y []string) error { return nil }

func (v *Vectorizer) Transform(b *Batch) (*Batch, error) {
	if b.Trials == nil {
		return b, nil
	}
	if len(b.Trials) == 0 {
		return &Batch{Feats: &mat.Dense{}}, nil
	}

	var width int
	for _, m := range b.Trials[0] {
		r, c := m.Dims()
		width += r * c
	}
	feats := mat.NewDense(len(b.Trials), width, nil)
	for i, bands := range b.Trials {
		col := 0
		for _, m := range bands {
			rows, cols := m.Dims()
			for r := 0; r < rows; r++ {
				for cIdx := 0; cIdx < cols; cIdx++ {
					feats.Set(i, col, m.At(r, cIdx))
					col++
				}
			}
		}
	}
	return &Batch{Feats: feats}, nil
}

func (v *Vectorizer) Clone() Transformer { return &Vectorizer{} }

// StandardScaler centers and scales feature columns to unit variance.
type StandardScaler struct {
	mean, scale []float64
}

func (s *StandardScaler) Fit(b *Batch, y []string) error {
	if b.Feats == nil {
		return fmt.Errorf("scaler: input is not vectorized")
	}
	rows, cols := b.Feats.Dims()
	s.mean = make([]float64, cols)
	s.scale = make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, b.Feats)
		s.mean[j] = stat.Mean(col, nil)
		sd := math.Sqrt(stat.Variance(col, nil))
		if sd < spdEps {
			sd = 1
		}
		s.scale[j] = sd
	}
	return nil
}

func (s *StandardScaler) Transform(b *Batch) (*Batch, error) {
	if s.mean == nil {
		return nil, fmt.Errorf("scaler: not fitted")
	}
	if b.Feats == nil {
		return nil, fmt.Errorf("scaler: input is not vectorized")
	}
	rows, cols := b.Feats.Dims()
	if cols != len(s.mean) {
		return nil, fmt.Errorf("scaler: %d features, fitted on %d", cols, len(s.mean))
	}
	out := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			out.Set(i, j, (b.Feats.At(i, j)-s.mean[j])/s.scale[j])
		}
	}
	return &Batch{Feats: out}, nil
}

func (s *StandardScaler) Clone() Transformer { return &StandardScaler{} }
