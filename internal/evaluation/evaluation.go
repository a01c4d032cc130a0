package evaluation

import (
	"context"
	"fmt"
	"math/rand"
	"path/filepath"
	"sort"
	"time"

	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/internal/paradigm"
	"github.com/neurobench/neurobench/internal/pipeline"
	"github.com/neurobench/neurobench/pkg/types"
)

// Evaluation scores pipelines on one dataset under a splitting scheme.
type Evaluation interface {
	Name() string
	IsValid(d dataset.Dataset) bool
	Evaluate(ctx context.Context, d dataset.Dataset, pipes []*pipeline.Pipeline) ([]types.Result, error)
}

// Options configures an evaluation scheme.
type Options struct {
	Paradigm paradigm.Paradigm
	// Subjects restricts evaluation to a subset. Empty means all.
	Subjects []int
	// Folds is the cross-validation fold count, default 5.
	Folds int
	// Seed drives every random split, making runs reproducible.
	Seed int64
	// GridSearch enables inner cross-validation over each pipeline's
	// parameter grid before the outer fit.
	GridSearch bool
	// LearningCurve, when set, scores nested training subsets instead of
	// the full training split. Within-session only.
	LearningCurve *LearningCurve
	// ModelDir, when set, dumps the fitted model of every evaluation
	// unit beneath it as JSON.
	ModelDir string
	// Progress is called after each (subject, pipeline) unit completes.
	Progress func()
}

// LearningCurve describes training-set subsampling. Policy is "ratio"
// (fractions of the training split) or "per_class" (absolute trials per
// class). Values must increase; NPerms must match in length and decrease,
// so larger subsets are permuted fewer times.
type LearningCurve struct {
	Policy string
	Values []float64
	NPerms []int
}

func (lc *LearningCurve) validate() error {
	switch lc.Policy {
	case "ratio", "per_class":
	default:
		return fmt.Errorf("unknown data size policy %q", lc.Policy)
	}
	if len(lc.Values) == 0 {
		return fmt.Errorf("data size values are empty")
	}
	if len(lc.NPerms) != len(lc.Values) {
		return fmt.Errorf("%d permutation counts for %d data sizes", len(lc.NPerms), len(lc.Values))
	}
	for i := 1; i < len(lc.Values); i++ {
		if lc.Values[i] <= lc.Values[i-1] {
			return fmt.Errorf("data size values must be strictly increasing")
		}
		if lc.NPerms[i] > lc.NPerms[i-1] {
			return fmt.Errorf("permutation counts must be non-increasing")
		}
	}
	for _, n := range lc.NPerms {
		if n < 1 {
			return fmt.Errorf("permutation counts must be positive")
		}
	}
	return nil
}

func (o *Options) validate() error {
	if o.Paradigm == nil {
		return fmt.Errorf("evaluation requires a paradigm")
	}
	if o.LearningCurve != nil {
		if err := o.LearningCurve.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Options) folds() int {
	if o.Folds > 0 {
		return o.Folds
	}
	return 5
}

func (o *Options) subjects(d dataset.Dataset) ([]int, error) {
	if len(o.Subjects) == 0 {
		return d.Subjects(), nil
	}
	if err := dataset.ValidateSubjects(d, o.Subjects); err != nil {
		return nil, err
	}
	out := make([]int, len(o.Subjects))
	copy(out, o.Subjects)
	sort.Ints(out)
	return out, nil
}

func (o *Options) tick() {
	if o.Progress != nil {
		o.Progress()
	}
}

// fitAndScore fits a fresh clone on the training indices and scores it on
// the test indices. Returns the score and the fit time in seconds.
func fitAndScore(p *pipeline.Pipeline, ep *types.Epochs, train, test []int, scoring string) (score, fitTime float64, err error) {
	clone := p.Clone()

	trainEp := ep.Select(train)
	start := time.Now()
	if err := clone.Fit(pipeline.NewBatch(trainEp), trainEp.Labels); err != nil {
		return 0, 0, err
	}
	fitTime = time.Since(start).Seconds()

	testEp := ep.Select(test)
	score, err = scorePipeline(clone, testEp, scoring)
	if err != nil {
		return 0, 0, err
	}
	return score, fitTime, nil
}

// scorePipeline scores an already fitted pipeline on held-out epochs.
func scorePipeline(p *pipeline.Pipeline, ep *types.Epochs, scoring string) (float64, error) {
	b := pipeline.NewBatch(ep)
	switch scoring {
	case paradigm.ScoreAccuracy:
		pred, err := p.Predict(b)
		if err != nil {
			return 0, err
		}
		var hits float64
		for i, l := range pred {
			if l == ep.Labels[i] {
				hits++
			}
		}
		return hits / float64(len(pred)), nil

	case paradigm.ScoreROCAUC:
		classes := ep.Classes()
		if len(classes) != 2 {
			return 0, fmt.Errorf("roc_auc scoring requires two classes, got %d", len(classes))
		}
		pos := classes[1]
		scores, err := p.ProbaOf(b, pos)
		if err != nil {
			return 0, err
		}
		truth := make([]bool, len(ep.Labels))
		for i, l := range ep.Labels {
			truth[i] = l == pos
		}
		return rocAUC(scores, truth)

	default:
		return 0, fmt.Errorf("unknown scoring %q", scoring)
	}
}

// rocAUC computes the area under the ROC curve from the rank statistic,
// with tied scores sharing their average rank.
func rocAUC(scores []float64, truth []bool) (float64, error) {
	var npos, nneg float64
	for _, t := range truth {
		if t {
			npos++
		} else {
			nneg++
		}
	}
	if npos == 0 || nneg == 0 {
		return 0, fmt.Errorf("roc_auc needs both classes in the test split")
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool { return scores[order[a]] < scores[order[b]] })

	ranks := make([]float64, len(scores))
	for i := 0; i < len(order); {
		j := i
		for j < len(order) && scores[order[j]] == scores[order[i]] {
			j++
		}
		avg := float64(i+j+1) / 2
		for k := i; k < j; k++ {
			ranks[order[k]] = avg
		}
		i = j
	}

	var rankSum float64
	for i, t := range truth {
		if t {
			rankSum += ranks[i]
		}
	}
	return (rankSum - npos*(npos+1)/2) / (npos * nneg), nil
}

// stratifiedKFold deals each class round-robin into k shuffled folds and
// returns the test index set of every fold.
func stratifiedKFold(labels []string, k int, rng *rand.Rand) ([][]int, error) {
	if k < 2 {
		return nil, fmt.Errorf("need at least 2 folds, got %d", k)
	}
	byClass := make(map[string][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	for _, idx := range byClass {
		if len(idx) < k {
			return nil, fmt.Errorf("class with %d trials cannot fill %d folds", len(idx), k)
		}
	}

	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	folds := make([][]int, k)
	for _, c := range classes {
		idx := byClass[c]
		rng.Shuffle(len(idx), func(a, b int) { idx[a], idx[b] = idx[b], idx[a] })
		for i, v := range idx {
			folds[i%k] = append(folds[i%k], v)
		}
	}
	for _, f := range folds {
		sort.Ints(f)
	}
	return folds, nil
}

// complement returns all indices in [0, n) not present in the sorted test set.
func complement(n int, test []int) []int {
	inTest := make(map[int]struct{}, len(test))
	for _, i := range test {
		inTest[i] = struct{}{}
	}
	out := make([]int, 0, n-len(test))
	for i := 0; i < n; i++ {
		if _, ok := inTest[i]; !ok {
			out = append(out, i)
		}
	}
	return out
}

// subsample draws a stratified subset of the training indices according to
// the learning curve policy. For "ratio" the value is a fraction of the
// training set, for "per_class" an absolute trial count per class.
func subsample(labels []string, train []int, lc *LearningCurve, value float64, rng *rand.Rand) ([]int, error) {
	byClass := make(map[string][]int)
	for _, i := range train {
		byClass[labels[i]] = append(byClass[labels[i]], i)
	}
	classes := make([]string, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Strings(classes)

	var out []int
	for _, c := range classes {
		idx := byClass[c]
		var take int
		switch lc.Policy {
		case "ratio":
			take = int(value * float64(len(idx)))
		case "per_class":
			take = int(value)
			if take > len(idx) {
				return nil, fmt.Errorf("requested %d trials per class but class %s has %d in the training split", take, c, len(idx))
			}
		}
		if take < 1 {
			take = 1
		}
		if take > len(idx) {
			take = len(idx)
		}
		shuffled := make([]int, len(idx))
		copy(shuffled, idx)
		rng.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		out = append(out, shuffled[:take]...)
	}
	sort.Ints(out)
	return out, nil
}

// selectCandidate runs inner cross-validation over a pipeline's parameter
// grid and returns the best-scoring candidate rebuilt unfitted, along with
// the winning override map. Pipelines without a grid come back unchanged
// with nil overrides.
func selectCandidate(p *pipeline.Pipeline, ep *types.Epochs, train []int, scoring string, rng *rand.Rand) (*pipeline.Pipeline, map[string]map[string]any, error) {
	def := p.Definition()
	if def == nil || len(def.ParamGrid) == 0 {
		return p, nil, nil
	}

	trainEp := ep.Select(train)
	innerFolds, err := stratifiedKFold(trainEp.Labels, 3, rng)
	if err != nil {
		return nil, nil, fmt.Errorf("grid search on %s: %w", p.Name, err)
	}

	best := -1.0
	var bestPipe *pipeline.Pipeline
	var bestParams map[string]map[string]any
	for _, cand := range def.GridCandidates() {
		candidate, err := def.BuildWith(cand)
		if err != nil {
			return nil, nil, err
		}
		var total float64
		n := len(trainEp.Labels)
		for _, test := range innerFolds {
			s, _, err := fitAndScore(candidate, trainEp, complement(n, test), test, scoring)
			if err != nil {
				return nil, nil, fmt.Errorf("grid search on %s: %w", p.Name, err)
			}
			total += s
		}
		mean := total / float64(len(innerFolds))
		if mean > best {
			best = mean
			bestPipe = candidate
			bestParams = cand
		}
	}
	return bestPipe, bestParams, nil
}

// modelPath lays out fitted model dumps, one directory per evaluation
// unit: <dir>/<scheme>/<dataset>/<subject>/.../<pipeline>/model.json.
func modelPath(dir, scheme string, parts ...string) string {
	elems := append([]string{dir, scheme}, parts...)
	return filepath.Join(append(elems, "model.json")...)
}

// seedFor derives a per-unit seed so results do not depend on iteration
// order across subjects and sessions.
func seedFor(base int64, parts ...string) int64 {
	h := base
	for _, p := range parts {
		for _, c := range p {
			h = h*31 + int64(c)
		}
	}
	return h
}
