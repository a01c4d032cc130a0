package pipeline

import (
	"fmt"
	"sort"

	"github.com/neurobench/neurobench/pkg/types"
	"gonum.org/v1/gonum/mat"
)

// Batch is the data container flowing through a pipeline. Trials holds one
// matrix per band per trial (time series or covariances, depending on the
// preceding steps); Feats is set once a step has reduced trials to a flat
// feature matrix. Exactly one of the two is active at any point.
type Batch struct {
	Trials [][]*mat.Dense
	Feats  *mat.Dense
}

// NewBatch wraps epoched data in a Batch without copying the matrices.
func NewBatch(ep *types.Epochs) *Batch {
	trials := make([][]*mat.Dense, ep.Len())
	for i, tr := range ep.X {
		trials[i] = tr.Bands
	}
	return &Batch{Trials: trials}
}

func (b *Batch) Len() int {
	if b.Feats != nil {
		r, _ := b.Feats.Dims()
		return r
	}
	return len(b.Trials)
}

// Transformer is a fit/transform pipeline stage.
type Transformer interface {
	Fit(b *Batch, y []string) error
	Transform(b *Batch) (*Batch, error)
	Clone() Transformer
}

// Classifier is the terminal pipeline stage. Proba returns one row per
// trial with per-class scores in Classes() order, rows summing to one.
type Classifier interface {
	Fit(b *Batch, y []string) error
	Predict(b *Batch) ([]string, error)
	Proba(b *Batch) (*mat.Dense, error)
	Classes() []string
	Clone() Classifier
}

// Pipeline chains transformers into a classifier. It is built from a
// Definition and stays tied to it so Clone can produce a fresh unfitted
// copy for each evaluation fold.
type Pipeline struct {
	Name  string
	steps []Transformer
	clf   Classifier
	def   *Definition
}

// Fit runs the fit/transform chain and fits the classifier on the result.
func (p *Pipeline) Fit(b *Batch, y []string) error {
	if len(y) != b.Len() {
		return fmt.Errorf("pipeline %s: %d labels for %d trials", p.Name, len(y), b.Len())
	}
	var err error
	for _, s := range p.steps {
		if err = s.Fit(b, y); err != nil {
			return fmt.Errorf("pipeline %s: %w", p.Name, err)
		}
		if b, err = s.Transform(b); err != nil {
			return fmt.Errorf("pipeline %s: %w", p.Name, err)
		}
	}
	if err = p.clf.Fit(b, y); err != nil {
		return fmt.Errorf("pipeline %s: %w", p.Name, err)
	}
	return nil
}

func (p *Pipeline) transform(b *Batch) (*Batch, error) {
	var err error
	for _, s := range p.steps {
		if b, err = s.Transform(b); err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", p.Name, err)
		}
	}
	return b, nil
}

// Predict returns a label per trial.
func (p *Pipeline) Predict(b *Batch) ([]string, error) {
	b, err := p.transform(b)
	if err != nil {
		return nil, err
	}
	return p.clf.Predict(b)
}

// Proba returns per-class scores per trial.
func (p *Pipeline) Proba(b *Batch) (*mat.Dense, error) {
	b, err := p.transform(b)
	if err != nil {
		return nil, err
	}
	return p.clf.Proba(b)
}

// ProbaOf returns the score column for one class.
func (p *Pipeline) ProbaOf(b *Batch, class string) ([]float64, error) {
	probs, err := p.Proba(b)
	if err != nil {
		return nil, err
	}
	classes := p.clf.Classes()
	col := -1
	for i, c := range classes {
		if c == class {
			col = i
			break
		}
	}
	if col < 0 {
		return nil, fmt.Errorf("pipeline %s: class %s not fitted", p.Name, class)
	}
	rows, _ := probs.Dims()
	out := make([]float64, rows)
	for i := range out {
		out[i] = probs.At(i, col)
	}
	return out, nil
}

// Clone returns a fresh unfitted pipeline with the same configuration.
func (p *Pipeline) Clone() *Pipeline {
	steps := make([]Transformer, len(p.steps))
	for i, s := range p.steps {
		steps[i] = s.Clone()
	}
	return &Pipeline{Name: p.Name, steps: steps, clf: p.clf.Clone(), def: p.def}
}

// Definition returns the definition the pipeline was built from, nil for
// hand-assembled pipelines.
func (p *Pipeline) Definition() *Definition {
	return p.def
}

// New assembles a pipeline from explicit stages.
func New(name string, clf Classifier, steps ...Transformer) *Pipeline {
	return &Pipeline{Name: name, steps: steps, clf: clf}
}

// classIndex maps sorted unique labels to column indices.
func classIndex(y []string) ([]string, map[string]int) {
	seen := make(map[string]struct{})
	for _, l := range y {
		seen[l] = struct{}{}
	}
	classes := make([]string, 0, len(seen))
	for c := range seen {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	idx := make(map[string]int, len(classes))
	for i, c := range classes {
		idx[c] = i
	}
	return classes, idx
}
