package pipeline

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// StepSpec names one pipeline stage and its parameters.
type StepSpec struct {
	Name       string         `yaml:"name" json:"name"`
	Parameters map[string]any `yaml:"parameters,omitempty" json:"parameters,omitempty"`
}

// Definition is the on-disk description of a pipeline: an ordered stage
// list ending in a classifier, the paradigms it applies to, and an
// optional hyperparameter grid keyed by stage name.
type Definition struct {
	Name      string                      `yaml:"name" json:"name"`
	Paradigms []string                    `yaml:"paradigms,omitempty" json:"paradigms,omitempty"`
	Steps     []StepSpec                  `yaml:"pipeline" json:"pipeline"`
	ParamGrid map[string]map[string][]any `yaml:"param_grid,omitempty" json:"param_grid,omitempty"`
}

// ParseDefinition decodes a single YAML pipeline description.
func ParseDefinition(data []byte) (*Definition, error) {
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("failed to parse pipeline: %w", err)
	}
	if def.Name == "" {
		return nil, fmt.Errorf("pipeline has no name")
	}
	if len(def.Steps) == 0 {
		return nil, fmt.Errorf("pipeline %s has no steps", def.Name)
	}
	return &def, nil
}

// LoadDefinition reads a pipeline description from a YAML file.
func LoadDefinition(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return ParseDefinition(data)
}

// SupportsParadigm reports whether the definition applies to the named
// paradigm. An empty paradigm list applies everywhere.
func (d *Definition) SupportsParadigm(name string) bool {
	if len(d.Paradigms) == 0 {
		return true
	}
	for _, p := range d.Paradigms {
		if p == name {
			return true
		}
	}
	return false
}

// Build assembles the pipeline described by the definition.
func (d *Definition) Build() (*Pipeline, error) {
	return d.BuildWith(nil)
}

// BuildWith assembles the pipeline with parameter overrides layered on
// top of the definition, keyed by stage name. Grid search uses this to
// instantiate each candidate.
func (d *Definition) BuildWith(overrides map[string]map[string]any) (*Pipeline, error) {
	var steps []Transformer
	var clf Classifier

	for i, spec := range d.Steps {
		params := mergeParams(spec.Parameters, overrides[spec.Name])
		last := i == len(d.Steps)-1

		if last {
			c, err := newClassifier(spec.Name, params)
			if err != nil {
				return nil, fmt.Errorf("pipeline %s: %w", d.Name, err)
			}
			clf = c
			break
		}
		t, err := newTransformer(spec.Name, params)
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", d.Name, err)
		}
		steps = append(steps, t)
	}
	if clf == nil {
		return nil, fmt.Errorf("pipeline %s: last step %s is not a classifier", d.Name, d.Steps[len(d.Steps)-1].Name)
	}
	return &Pipeline{Name: d.Name, steps: steps, clf: clf, def: d}, nil
}

// GridCandidates expands the parameter grid into the full cartesian
// product of override sets. A definition without a grid yields a single
// empty candidate.
func (d *Definition) GridCandidates() []map[string]map[string]any {
	if len(d.ParamGrid) == 0 {
		return []map[string]map[string]any{nil}
	}

	type axis struct {
		step, param string
		values      []any
	}
	var axes []axis
	stepNames := make([]string, 0, len(d.ParamGrid))
	for s := range d.ParamGrid {
		stepNames = append(stepNames, s)
	}
	sort.Strings(stepNames)
	for _, s := range stepNames {
		paramNames := make([]string, 0, len(d.ParamGrid[s]))
		for p := range d.ParamGrid[s] {
			paramNames = append(paramNames, p)
		}
		sort.Strings(paramNames)
		for _, p := range paramNames {
			axes = append(axes, axis{step: s, param: p, values: d.ParamGrid[s][p]})
		}
	}

	candidates := []map[string]map[string]any{{}}
	for _, ax := range axes {
		var next []map[string]map[string]any
		for _, base := range candidates {
			for _, v := range ax.values {
				cand := make(map[string]map[string]any, len(base)+1)
				for s, ps := range base {
					cp := make(map[string]any, len(ps))
					for k, pv := range ps {
						cp[k] = pv
					}
					cand[s] = cp
				}
				if cand[ax.step] == nil {
					cand[ax.step] = make(map[string]any)
				}
				cand[ax.step][ax.param] = v
				next = append(next, cand)
			}
		}
		candidates = next
	}
	return candidates
}

func mergeParams(base, over map[string]any) map[string]any {
	if len(over) == 0 {
		return base
	}
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}

func newTransformer(name string, params map[string]any) (Transformer, error) {
	switch name {
	case "Covariances":
		return &Covariances{Estimator: paramString(params, "estimator", "scm")}, nil
	case "CSP":
		n, err := paramInt(params, "nfilter", 4)
		if err != nil {
			return nil, fmt.Errorf("step CSP: %w", err)
		}
		return &CSP{NFilter: n}, nil
	case "LogVariance":
		return &LogVariance{}, nil
	case "Vectorizer":
		return &Vectorizer{}, nil
	case "StandardScaler":
		return &StandardScaler{}, nil
	default:
		return nil, fmt.Errorf("unknown transformer %q", name)
	}
}

func newClassifier(name string, params map[string]any) (Classifier, error) {
	switch name {
	case "LDA":
		s, err := paramFloat(params, "shrinkage", 0)
		if err != nil {
			return nil, fmt.Errorf("step LDA: %w", err)
		}
		return &LDA{Shrinkage: s}, nil
	case "LogisticRegression":
		c, err := paramFloat(params, "C", 1)
		if err != nil {
			return nil, fmt.Errorf("step LogisticRegression: %w", err)
		}
		iters, err := paramInt(params, "max_iter", 200)
		if err != nil {
			return nil, fmt.Errorf("step LogisticRegression: %w", err)
		}
		return &LogisticRegression{C: c, MaxIter: iters}, nil
	case "MDM":
		return &MDM{Metric: paramString(params, "metric", "riemann")}, nil
	case "DummyClassifier":
		return &Dummy{}, nil
	default:
		return nil, fmt.Errorf("unknown classifier %q", name)
	}
}

func paramString(params map[string]any, key, def string) string {
	v, ok := params[key]
	if !ok {
		return def
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func paramInt(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, fmt.Errorf("parameter %s: expected integer, got %T", key, v)
	}
}

func paramFloat(params map[string]any, key string, def float64) (float64, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("parameter %s: expected number, got %T", key, v)
	}
}
