package benchmark

import (
	"context"
	"fmt"

	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/internal/evaluation"
	"github.com/neurobench/neurobench/internal/paradigm"
	"github.com/neurobench/neurobench/internal/pipeline"
	"github.com/neurobench/neurobench/internal/results"
	"github.com/neurobench/neurobench/pkg/types"
)

// Spec describes one benchmark run: which evaluation scheme, which
// paradigm, which datasets, scored with every registered pipeline that
// supports the paradigm.
type Spec struct {
	Evaluation string                    `json:"evaluation"`
	Paradigm   string                    `json:"paradigm"`
	Datasets   []string                  `json:"datasets,omitempty"` // empty means all valid registered datasets
	Pipelines  []string                  `json:"pipelines,omitempty"`
	Subjects   []int                     `json:"subjects,omitempty"`
	Folds      int                       `json:"folds,omitempty"`
	Seed       int64                     `json:"seed,omitempty"`
	GridSearch bool                      `json:"grid_search,omitempty"`
	Curve      *evaluation.LearningCurve `json:"learning_curve,omitempty"`
	// SaveModels dumps every fitted model under the runner's model
	// directory.
	SaveModels bool `json:"save_models,omitempty"`
	// Force re-evaluates subjects that already have cached results.
	Force bool `json:"force,omitempty"`
}

// Context names the results file a spec writes to.
func (s *Spec) Context() string {
	return fmt.Sprintf("%s_%s", s.Paradigm, s.Evaluation)
}

// Runner executes benchmark specs against the registries.
type Runner struct {
	Datasets  *dataset.Registry
	Pipelines *pipeline.Registry
	Store     *results.Store
	// ModelDir is where fitted models land when a spec asks for them.
	ModelDir string
	// Progress, when set, receives completed and total unit counts. A
	// unit is one (dataset, subject, pipeline) combination.
	Progress func(done, total int)
}

// NewParadigm builds a paradigm by its registered name.
func NewParadigm(name string, cfg paradigm.Config) (paradigm.Paradigm, error) {
	switch name {
	case "MotorImagery":
		return paradigm.NewMotorImagery(cfg)
	case "LeftRightImagery":
		return paradigm.NewLeftRightImagery(cfg)
	case "FilterBankMotorImagery":
		return paradigm.NewFilterBankMotorImagery(cfg)
	case "FilterBankLeftRightImagery":
		return paradigm.NewFilterBankLeftRightImagery(cfg)
	case "P300":
		return paradigm.NewP300(cfg)
	case "BaseP300":
		return paradigm.NewBaseP300(cfg)
	case "SSVEP":
		return paradigm.NewSSVEP(cfg)
	case "FilterBankSSVEP":
		return paradigm.NewFilterBankSSVEP(cfg)
	case "RestingStateToP300Adapter":
		return paradigm.NewRestingStateToP300Adapter(cfg)
	default:
		return nil, fmt.Errorf("unknown paradigm %q", name)
	}
}

// ParadigmNames lists the paradigms NewParadigm accepts.
func ParadigmNames() []string {
	return []string{
		"MotorImagery", "LeftRightImagery",
		"FilterBankMotorImagery", "FilterBankLeftRightImagery",
		"P300", "BaseP300",
		"SSVEP", "FilterBankSSVEP",
		"RestingStateToP300Adapter",
	}
}

// Run executes the spec: for every selected dataset it builds the
// applicable pipelines, skips already-computed subjects unless forced,
// evaluates the rest and persists the rows. Returns all rows produced.
func (r *Runner) Run(ctx context.Context, spec *Spec) ([]types.Result, error) {
	p, err := NewParadigm(spec.Paradigm, paradigm.Config{})
	if err != nil {
		return nil, err
	}

	defs := r.Pipelines.ForParadigm(spec.Paradigm)
	if len(spec.Pipelines) > 0 {
		defs, err = r.selectPipelines(spec)
		if err != nil {
			return nil, err
		}
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("no pipelines support paradigm %s", spec.Paradigm)
	}

	datasets, err := r.selectDatasets(spec)
	if err != nil {
		return nil, err
	}

	digests := make(map[string]string, len(defs))
	for _, def := range defs {
		digest, err := def.Digest()
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: %w", def.Name, err)
		}
		digests[def.Name] = digest
	}

	modelDir := ""
	if spec.SaveModels {
		if r.ModelDir == "" {
			return nil, fmt.Errorf("model saving requested but no model directory is configured")
		}
		modelDir = r.ModelDir
	}

	done := 0
	total := 0
	plans := make([]evalPlan, 0, len(datasets))
	for _, d := range datasets {
		plan, err := r.plan(spec, d, defs, digests)
		if err != nil {
			return nil, err
		}
		total += plan.units()
		plans = append(plans, plan)
	}

	var all []types.Result
	for _, plan := range plans {
		for _, grp := range plan.groups {
			eval, err := evaluation.New(spec.Evaluation, evaluation.Options{
				Paradigm:      p,
				Subjects:      grp.subjects,
				Folds:         spec.Folds,
				Seed:          spec.Seed,
				GridSearch:    spec.GridSearch,
				LearningCurve: spec.Curve,
				ModelDir:      modelDir,
				Progress: func() {
					done++
					if r.Progress != nil {
						r.Progress(done, total)
					}
				},
			})
			if err != nil {
				return nil, err
			}
			if !eval.IsValid(plan.dataset) {
				return nil, fmt.Errorf("dataset %s is not valid for %s under %s",
					plan.dataset.Code(), spec.Paradigm, spec.Evaluation)
			}

			rows, err := eval.Evaluate(ctx, plan.dataset, grp.pipes)
			if err != nil {
				return nil, fmt.Errorf("dataset %s: %w", plan.dataset.Code(), err)
			}
			if r.Store != nil {
				if err := r.Store.Add(rows, digests); err != nil {
					return nil, err
				}
			}
			all = append(all, rows...)
		}
	}
	return all, nil
}

// evalGroup holds pipelines that still need the same subject set, so one
// evaluation can process them together and load each subject's data once.
type evalGroup struct {
	subjects []int
	pipes    []*pipeline.Pipeline
}

type evalPlan struct {
	dataset dataset.Dataset
	groups  []evalGroup
}

func (p evalPlan) units() int {
	n := 0
	for _, g := range p.groups {
		n += len(g.subjects) * len(g.pipes)
	}
	return n
}

// plan decides, per pipeline, which subjects still need computing on a
// dataset, consulting the results cache unless the spec forces a rerun.
// A pipeline already cached for some subjects is re-evaluated only on the
// missing ones.
func (r *Runner) plan(spec *Spec, d dataset.Dataset, defs []*pipeline.Definition, digests map[string]string) (evalPlan, error) {
	subjects := d.Subjects()
	if len(spec.Subjects) > 0 {
		subjects = spec.Subjects
	}

	var missing map[string][]int
	if !spec.Force && r.Store != nil {
		missing = r.Store.NotYetComputed(digests, d.Code(), subjects)
	} else {
		missing = make(map[string][]int, len(defs))
		for _, def := range defs {
			missing[def.Name] = subjects
		}
	}

	plan := evalPlan{dataset: d}
	groupIdx := make(map[string]int)
	for _, def := range defs {
		need, ok := missing[def.Name]
		if !ok || len(need) == 0 {
			continue
		}
		pipe, err := def.Build()
		if err != nil {
			return evalPlan{}, err
		}
		key := fmt.Sprint(need)
		i, ok := groupIdx[key]
		if !ok {
			i = len(plan.groups)
			groupIdx[key] = i
			plan.groups = append(plan.groups, evalGroup{subjects: need})
		}
		plan.groups[i].pipes = append(plan.groups[i].pipes, pipe)
	}
	return plan, nil
}

func (r *Runner) selectDatasets(spec *Spec) ([]dataset.Dataset, error) {
	if len(spec.Datasets) > 0 {
		out := make([]dataset.Dataset, 0, len(spec.Datasets))
		for _, code := range spec.Datasets {
			d, err := r.Datasets.Get(code)
			if err != nil {
				return nil, err
			}
			out = append(out, d)
		}
		return out, nil
	}

	// every registered dataset the paradigm accepts
	var out []dataset.Dataset
	for _, d := range r.Datasets.All() {
		p, err := NewParadigm(spec.Paradigm, paradigm.Config{})
		if err != nil {
			return nil, err
		}
		if p.IsValid(d) {
			out = append(out, d)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no registered dataset matches paradigm %s", spec.Paradigm)
	}
	return out, nil
}

func (r *Runner) selectPipelines(spec *Spec) ([]*pipeline.Definition, error) {
	out := make([]*pipeline.Definition, 0, len(spec.Pipelines))
	for _, name := range spec.Pipelines {
		def, err := r.Pipelines.Get(name)
		if err != nil {
			return nil, err
		}
		if !def.SupportsParadigm(spec.Paradigm) {
			return nil, fmt.Errorf("pipeline %s does not support paradigm %s", name, spec.Paradigm)
		}
		out = append(out, def)
	}
	return out, nil
}
