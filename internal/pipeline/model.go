package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/mat"
)

// stateExporter is implemented by stages that expose their learned
// parameters for export.
type stateExporter interface {
	fittedState() (string, map[string]any)
}

// StageState is the exported snapshot of one fitted stage.
type StageState struct {
	Name  string         `json:"name"`
	State map[string]any `json:"state,omitempty"`
}

// ModelDump is the JSON form of a fitted pipeline: every stage in chain
// order, classifier last.
type ModelDump struct {
	Pipeline string       `json:"pipeline"`
	Stages   []StageState `json:"stages"`
}

// FittedState snapshots the learned parameters of every stage. Stages
// without learned state report only their name.
func (p *Pipeline) FittedState() ModelDump {
	dump := ModelDump{Pipeline: p.Name}
	for _, s := range p.steps {
		dump.Stages = append(dump.Stages, stageState(s))
	}
	dump.Stages = append(dump.Stages, stageState(p.clf))
	return dump
}

func stageState(stage any) StageState {
	if e, ok := stage.(stateExporter); ok {
		name, state := e.fittedState()
		return StageState{Name: name, State: state}
	}
	return StageState{Name: fmt.Sprintf("%T", stage)}
}

// SaveModel writes the fitted pipeline snapshot as indented JSON,
// creating parent directories as needed.
func SaveModel(path string, p *Pipeline) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(p.FittedState(), "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func denseRows(m *mat.Dense) [][]float64 {
	if m == nil {
		return nil
	}
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := 0; i < r; i++ {
		row := make([]float64, c)
		for j := 0; j < c; j++ {
			row[j] = m.At(i, j)
		}
		out[i] = row
	}
	return out
}

func (c *Covariances) fittedState() (string, map[string]any) {
	return "Covariances", map[string]any{"estimator": c.Estimator}
}

func (c *CSP) fittedState() (string, map[string]any) {
	filters := make([][][]float64, len(c.filters))
	for band, fs := range c.filters {
		filters[band] = denseRows(fs[0])
	}
	return "CSP", map[string]any{
		"nfilter": c.nfilter(),
		"filters": filters,
	}
}

func (l *LogVariance) fittedState() (string, map[string]any) {
	return "LogVariance", nil
}

func (v *Vectorizer) fittedState() (string, map[string]any) {
	return "Vectorizer", nil
}

func (s *StandardScaler) fittedState() (string, map[string]any) {
	return "StandardScaler", map[string]any{
		"mean":  s.mean,
		"scale": s.scale,
	}
}

func (l *LDA) fittedState() (string, map[string]any) {
	return "LDA", map[string]any{
		"shrinkage": l.Shrinkage,
		"classes":   l.classes,
		"weights":   denseRows(l.weights),
		"bias":      l.bias,
	}
}

func (lr *LogisticRegression) fittedState() (string, map[string]any) {
	c, rate, iters := lr.params()
	return "LogisticRegression", map[string]any{
		"c":          c,
		"learn_rate": rate,
		"max_iter":   iters,
		"classes":    lr.classes,
		"weights":    denseRows(lr.weights),
		"bias":       lr.bias,
	}
}

func (m *MDM) fittedState() (string, map[string]any) {
	means := make([][][]float64, len(m.means))
	for i, mean := range m.means {
		means[i] = denseRows(mean)
	}
	return "MDM", map[string]any{
		"metric":  m.metric(),
		"classes": m.classes,
		"means":   means,
	}
}

func (d *Dummy) fittedState() (string, map[string]any) {
	return "Dummy", map[string]any{
		"classes": d.classes,
		"priors":  d.priors,
	}
}
