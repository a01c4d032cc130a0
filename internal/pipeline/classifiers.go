package pipeline

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// LDA is multi-class linear discriminant analysis with a pooled covariance
// estimate and empirical class priors.
type LDA struct {
	// Shrinkage mixes the pooled covariance toward a scaled identity.
	Shrinkage float64

	classes []string
	weights *mat.Dense // k x p
	bias    []float64
}

func (l *LDA) Fit(b *Batch, y []string) error {
	if b.Feats == nil {
		return fmt.Errorf("lda: input is not vectorized")
	}
	rows, cols := b.Feats.Dims()
	if rows != len(y) {
		return fmt.Errorf("lda: %d labels for %d rows", len(y), rows)
	}

	classes, idx := classIndex(y)
	if len(classes) < 2 {
		return fmt.Errorf("lda: need at least two classes")
	}
	l.classes = classes
	k := len(classes)

	means := mat.NewDense(k, cols, nil)
	counts := make([]int, k)
	for i, label := range y {
		ci := idx[label]
		counts[ci]++
		for j := 0; j < cols; j++ {
			means.Set(ci, j, means.At(ci, j)+b.Feats.At(i, j))
		}
	}
	for ci := 0; ci < k; ci++ {
		if counts[ci] == 0 {
			return fmt.Errorf("lda: empty class %s", classes[ci])
		}
		for j := 0; j < cols; j++ {
			means.Set(ci, j, means.At(ci, j)/float64(counts[ci]))
		}
	}

	// pooled within-class covariance
	cov := mat.NewDense(cols, cols, nil)
	diff := make([]float64, cols)
	for i, label := range y {
		ci := idx[label]
		for j := 0; j < cols; j++ {
			diff[j] = b.Feats.At(i, j) - means.At(ci, j)
		}
		for a := 0; a < cols; a++ {
			for bIdx := 0; bIdx < cols; bIdx++ {
				cov.Set(a, bIdx, cov.At(a, bIdx)+diff[a]*diff[bIdx])
			}
		}
	}
	denom := float64(rows - k)
	if denom < 1 {
		denom = 1
	}
	cov.Scale(1/denom, cov)

	shrink := l.Shrinkage
	if shrink <= 0 {
		shrink = 1e-6
	}
	var trace float64
	for j := 0; j < cols; j++ {
		trace += cov.At(j, j)
	}
	mu := trace / float64(cols)
	if mu < spdEps {
		mu = spdEps
	}
	cov.Scale(1-shrink, cov)
	for j := 0; j < cols; j++ {
		cov.Set(j, j, cov.At(j, j)+shrink*mu)
	}

	inv, err := symPow(cov, -1)
	if err != nil {
		return fmt.Errorf("lda: %w", err)
	}

	l.weights = mat.NewDense(k, cols, nil)
	l.weights.Mul(means, inv)
	l.bias = make([]float64, k)
	for ci := 0; ci < k; ci++ {
		var quad float64
		for j := 0; j < cols; j++ {
			quad += l.weights.At(ci, j) * means.At(ci, j)
		}
		prior := float64(counts[ci]) / float64(rows)
		l.bias[ci] = -0.5*quad + math.Log(prior)
	}
	return nil
}

func (l *LDA) scores(b *Batch) (*mat.Dense, error) {
	if l.weights == nil {
		return nil, fmt.Errorf("lda: not fitted")
	}
	if b.Feats == nil {
		return nil, fmt.Errorf("lda: input is not vectorized")
	}
	rows, _ := b.Feats.Dims()
	k := len(l.classes)
	out := mat.NewDense(rows, k, nil)
	out.Mul(b.Feats, l.weights.T())
	for i := 0; i < rows; i++ {
		for ci := 0; ci < k; ci++ {
			out.Set(i, ci, out.At(i, ci)+l.bias[ci])
		}
	}
	return out, nil
}

func (l *LDA) Predict(b *Batch) ([]string, error) {
	s, err := l.scores(b)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(s, l.classes), nil
}

func (l *LDA) Proba(b *Batch) (*mat.Dense, error) {
	s, err := l.scores(b)
	if err != nil {
		return nil, err
	}
	softmaxRows(s)
	return s, nil
}

func (l *LDA) Classes() []string { return l.classes }

func (l *LDA) Clone() Classifier { return &LDA{Shrinkage: l.Shrinkage} }

// LogisticRegression is one-vs-rest L2-regularized logistic regression
// trained by gradient descent.
type LogisticRegression struct {
	C         float64
	MaxIter   int
	LearnRate float64

	classes []string
	weights *mat.Dense // k x p
	bias    []float64
}

func (lr *LogisticRegression) params() (c, rate float64, iters int) {
	c = lr.C
	if c <= 0 {
		c = 1
	}
	rate = lr.LearnRate
	if rate <= 0 {
		rate = 0.1
	}
	iters = lr.MaxIter
	if iters <= 0 {
		iters = 200
	}
	return c, rate, iters
}

func (lr *LogisticRegression) Fit(b *Batch, y []string) error {
	if b.Feats == nil {
		return fmt.Errorf("logreg: input is not vectorized")
	}
	rows, cols := b.Feats.Dims()
	if rows != len(y) {
		return fmt.Errorf("logreg: %d labels for %d rows", len(y), rows)
	}
	classes, idx := classIndex(y)
	if len(classes) < 2 {
		return fmt.Errorf("logreg: need at least two classes")
	}
	lr.classes = classes
	k := len(classes)

	c, rate, iters := lr.params()
	lambda := 1 / (c * float64(rows))

	lr.weights = mat.NewDense(k, cols, nil)
	lr.bias = make([]float64, k)

	gradW := make([]float64, cols)
	for ci := 0; ci < k; ci++ {
		w := lr.weights.RawRowView(ci)
		for iter := 0; iter < iters; iter++ {
			for j := range gradW {
				gradW[j] = lambda * w[j]
			}
			var gradB float64
			for i := 0; i < rows; i++ {
				var z float64
				for j := 0; j < cols; j++ {
					z += w[j] * b.Feats.At(i, j)
				}
				z += lr.bias[ci]
				p := sigmoid(z)
				target := 0.0
				if idx[y[i]] == ci {
					target = 1.0
				}
				g := (p - target) / float64(rows)
				for j := 0; j < cols; j++ {
					gradW[j] += g * b.Feats.At(i, j)
				}
				gradB += g
			}
			for j := range w {
				w[j] -= rate * gradW[j]
			}
			lr.bias[ci] -= rate * gradB
		}
	}
	return nil
}

func (lr *LogisticRegression) scores(b *Batch) (*mat.Dense, error) {
	if lr.weights == nil {
		return nil, fmt.Errorf("logreg: not fitted")
	}
	if b.Feats == nil {
		return nil, fmt.Errorf("logreg: input is not vectorized")
	}
	rows, _ := b.Feats.Dims()
	k := len(lr.classes)
	out := mat.NewDense(rows, k, nil)
	out.Mul(b.Feats, lr.weights.T())
	for i := 0; i < rows; i++ {
		for ci := 0; ci < k; ci++ {
			out.Set(i, ci, sigmoid(out.At(i, ci)+lr.bias[ci]))
		}
	}
	return out, nil
}

func (lr *LogisticRegression) Predict(b *Batch) ([]string, error) {
	s, err := lr.scores(b)
	if err != nil {
		return nil, err
	}
	return argmaxLabels(s, lr.classes), nil
}

func (lr *LogisticRegression) Proba(b *Batch) (*mat.Dense, error) {
	s, err := lr.scores(b)
	if err != nil {
		return nil, err
	}
	normalizeRows(s)
	return s, nil
}

func (lr *LogisticRegression) Classes() []string { return lr.classes }

func (lr *LogisticRegression) Clone() Classifier {
	return &LogisticRegression{C: lr.C, MaxIter: lr.MaxIter, LearnRate: lr.LearnRate}
}

// MDM classifies covariance trials by minimum distance to the per-class
// mean. Metric is "riemann" (affine-invariant) or "logeuclid".
type MDM struct {
	Metric string

	classes []string
	means   []*mat.Dense
}

func (m *MDM) metric() string {
	if m.Metric == "" {
		return "riemann"
	}
	return m.Metric
}

func (m *MDM) Fit(b *Batch, y []string) error {
	if b.Trials == nil {
		return fmt.Errorf("mdm: input must be covariance trials")
	}
	if len(b.Trials) != len(y) {
		return fmt.Errorf("mdm: %d labels for %d trials", len(y), len(b.Trials))
	}
	for i, bands := range b.Trials {
		if len(bands) != 1 {
			return fmt.Errorf("mdm: trial %d has %d bands, expected 1", i, len(bands))
		}
	}

	classes, idx := classIndex(y)
	if len(classes) < 2 {
		return fmt.Errorf("mdm: need at least two classes")
	}
	m.classes = classes

	grouped := make([][]*mat.Dense, len(classes))
	for i, bands := range b.Trials {
		ci := idx[y[i]]
		grouped[ci] = append(grouped[ci], bands[0])
	}

	m.means = make([]*mat.Dense, len(classes))
	for ci, ms := range grouped {
		var mean *mat.Dense
		var err error
		switch m.metric() {
		case "riemann":
			mean, err = meanRiemann(ms)
		case "logeuclid":
			mean, err = meanLogEuclid(ms)
		default:
			return fmt.Errorf("mdm: unknown metric %q", m.Metric)
		}
		if err != nil {
			return fmt.Errorf("mdm: class %s: %w", classes[ci], err)
		}
		m.means[ci] = mean
	}
	return nil
}

func (m *MDM) distances(b *Batch) (*mat.Dense, error) {
	if m.means == nil {
		return nil, fmt.Errorf("mdm: not fitted")
	}
	if b.Trials == nil {
		return nil, fmt.Errorf("mdm: input must be covariance trials")
	}
	out := mat.NewDense(len(b.Trials), len(m.classes), nil)
	for i, bands := range b.Trials {
		for ci, mean := range m.means {
			var d float64
			var err error
			switch m.metric() {
			case "riemann":
				d, err = distRiemann(mean, bands[0])
			default:
				d, err = distLogEuclid(mean, bands[0])
			}
			if err != nil {
				return nil, fmt.Errorf("mdm: trial %d: %w", i, err)
			}
			out.Set(i, ci, d)
		}
	}
	return out, nil
}

func (m *MDM) Predict(b *Batch) ([]string, error) {
	dists, err := m.distances(b)
	if err != nil {
		return nil, err
	}
	rows, k := dists.Dims()
	out := make([]string, rows)
	for i := 0; i < rows; i++ {
		best := 0
		for ci := 1; ci < k; ci++ {
			if dists.At(i, ci) < dists.At(i, best) {
				best = ci
			}
		}
		out[i] = m.classes[best]
	}
	return out, nil
}

func (m *MDM) Proba(b *Batch) (*mat.Dense, error) {
	dists, err := m.distances(b)
	if err != nil {
		return nil, err
	}
	// closer mean, higher score
	dists.Scale(-1, dists)
	softmaxRows(dists)
	return dists, nil
}

func (m *MDM) Classes() []string { return m.classes }

func (m *MDM) Clone() Classifier { return &MDM{Metric: m.Metric} }

// Dummy predicts the most frequent training label, a floor for real
// classifiers to beat.
type Dummy struct {
	classes []string
	priors  []float64
	best    int
}

func (d *Dummy) Fit(b *Batch, y []string) error {
	if len(y) == 0 {
		return fmt.Errorf("dummy: no labels")
	}
	classes, idx := classIndex(y)
	d.classes = classes
	d.priors = make([]float64, len(classes))
	for _, l := range y {
		d.priors[idx[l]]++
	}
	d.best = 0
	for ci := range d.priors {
		d.priors[ci] /= float64(len(y))
		if d.priors[ci] > d.priors[d.best] {
			d.best = ci
		}
	}
	return nil
}

func (d *Dummy) Predict(b *Batch) ([]string, error) {
	if d.classes == nil {
		return nil, fmt.Errorf("dummy: not fitted")
	}
	out := make([]string, b.Len())
	for i := range out {
		out[i] = d.classes[d.best]
	}
	return out, nil
}

func (d *Dummy) Proba(b *Batch) (*mat.Dense, error) {
	if d.classes == nil {
		return nil, fmt.Errorf("dummy: not fitted")
	}
	n := b.Len()
	out := mat.NewDense(n, len(d.classes), nil)
	for i := 0; i < n; i++ {
		out.SetRow(i, d.priors)
	}
	return out, nil
}

func (d *Dummy) Classes() []string { return d.classes }

func (d *Dummy) Clone() Classifier { return &Dummy{} }

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

func argmaxLabels(s *mat.Dense, classes []string) []string {
	rows, k := s.Dims()
	out := make([]string, rows)
	for i := 0; i < rows; i++ {
		best := 0
		for ci := 1; ci < k; ci++ {
			if s.At(i, ci) > s.At(i, best) {
				best = ci
			}
		}
		out[i] = classes[best]
	}
	return out
}

func softmaxRows(s *mat.Dense) {
	rows, k := s.Dims()
	for i := 0; i < rows; i++ {
		max := s.At(i, 0)
		for ci := 1; ci < k; ci++ {
			if s.At(i, ci) > max {
				max = s.At(i, ci)
			}
		}
		var sum float64
		for ci := 0; ci < k; ci++ {
			v := math.Exp(s.At(i, ci) - max)
			s.Set(i, ci, v)
			sum += v
		}
		for ci := 0; ci < k; ci++ {
			s.Set(i, ci, s.At(i, ci)/sum)
		}
	}
}

func normalizeRows(s *mat.Dense) {
	rows, k := s.Dims()
	for i := 0; i < rows; i++ {
		var sum float64
		for ci := 0; ci < k; ci++ {
			sum += s.At(i, ci)
		}
		if sum <= 0 {
			for ci := 0; ci < k; ci++ {
				s.Set(i, ci, 1/float64(k))
			}
			continue
		}
		for ci := 0; ci < k; ci++ {
			s.Set(i, ci, s.At(i, ci)/sum)
		}
	}
}
