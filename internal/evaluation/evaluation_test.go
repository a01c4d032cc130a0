package evaluation

import (
	"context"
	"encoding/json"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/neurobench/neurobench/internal/dataset"
	"github.com/neurobench/neurobench/internal/paradigm"
	"github.com/neurobench/neurobench/internal/pipeline"
	"github.com/neurobench/neurobench/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func imageryFake(t *testing.T) (*dataset.FakeDataset, paradigm.Paradigm) {
	t.Helper()
	ds := dataset.NewFakeDataset(dataset.FakeConfig{
		Paradigm:  "imagery",
		NSubjects: 2,
		NSessions: 2,
		NRuns:     1,
	})
	p, err := paradigm.NewMotorImagery(paradigm.Config{})
	require.NoError(t, err)
	return ds, p
}

func mdmPipeline() *pipeline.Pipeline {
	return pipeline.New("cov+mdm", &pipeline.MDM{Metric: "logeuclid"}, &pipeline.Covariances{Estimator: "oas"})
}

func TestWithinSessionRowCount(t *testing.T) {
	ds, p := imageryFake(t)
	eval, err := NewWithinSession(Options{Paradigm: p, Seed: 42})
	require.NoError(t, err)
	require.True(t, eval.IsValid(ds))

	results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.NoError(t, err)

	// one row per subject per session
	assert.Len(t, results, 4)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
		assert.Equal(t, "cov+mdm", r.Pipeline)
		assert.Equal(t, ds.Code(), r.Dataset)
		assert.Equal(t, 3, r.Channels)
		assert.Equal(t, 30, r.Samples)
		assert.False(t, r.Evaluated.IsZero())
	}
}

func TestWithinSessionSeparatesFakeClasses(t *testing.T) {
	ds, p := imageryFake(t)
	eval, err := NewWithinSession(Options{Paradigm: p, Seed: 42})
	require.NoError(t, err)

	results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.NoError(t, err)
	for _, r := range results {
		assert.Greater(t, r.Score, 0.6)
	}
}

func TestWithinSessionReproducible(t *testing.T) {
	ds, p := imageryFake(t)

	run := func() []types.Result {
		eval, err := NewWithinSession(Options{Paradigm: p, Seed: 42})
		require.NoError(t, err)
		results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
		require.NoError(t, err)
		return results
	}

	a, b := run(), run()
	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Score, b[i].Score)
	}
}

func TestWithinSessionSubjectSubset(t *testing.T) {
	ds, p := imageryFake(t)
	eval, err := NewWithinSession(Options{Paradigm: p, Seed: 1, Subjects: []int{2}})
	require.NoError(t, err)

	results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, 2, r.Subject)
	}

	bad, err := NewWithinSession(Options{Paradigm: p, Subjects: []int{99}})
	require.NoError(t, err)
	_, err = bad.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.Error(t, err)
}

func TestWithinSessionROCAUC(t *testing.T) {
	ds := dataset.NewFakeDataset(dataset.FakeConfig{
		Paradigm:  "p300",
		Events:    []string{"Target", "NonTarget"},
		NSubjects: 1,
		NSessions: 1,
		NRuns:     1,
	})
	p, err := paradigm.NewP300(paradigm.Config{})
	require.NoError(t, err)

	eval, err := NewWithinSession(Options{Paradigm: p, Seed: 7})
	require.NoError(t, err)
	results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Greater(t, results[0].Score, 0.6)
}

func TestLearningCurveValidation(t *testing.T) {
	_, p := imageryFake(t)

	cases := []struct {
		name string
		lc   *LearningCurve
	}{
		{"bad policy", &LearningCurve{Policy: "bogus", Values: []float64{0.5}, NPerms: []int{1}}},
		{"empty values", &LearningCurve{Policy: "ratio", NPerms: []int{1}}},
		{"length mismatch", &LearningCurve{Policy: "ratio", Values: []float64{0.2, 0.5}, NPerms: []int{3}}},
		{"values not increasing", &LearningCurve{Policy: "ratio", Values: []float64{0.5, 0.2}, NPerms: []int{3, 2}}},
		{"perms increasing", &LearningCurve{Policy: "ratio", Values: []float64{0.2, 0.5}, NPerms: []int{2, 3}}},
		{"zero perms", &LearningCurve{Policy: "ratio", Values: []float64{0.5}, NPerms: []int{0}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewWithinSession(Options{Paradigm: p, LearningCurve: tc.lc})
			require.Error(t, err)
		})
	}
}

func TestLearningCurveRatio(t *testing.T) {
	ds, p := imageryFake(t)
	lc := &LearningCurve{Policy: "ratio", Values: []float64{0.4, 0.8}, NPerms: []int{2, 1}}
	eval, err := NewWithinSession(Options{Paradigm: p, Seed: 42, Subjects: []int{1}, LearningCurve: lc})
	require.NoError(t, err)

	results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.NoError(t, err)

	// per session: 2 perms at the small size, 1 at the large
	assert.Len(t, results, 2*3)
	for _, r := range results {
		// mean subsample size over folds: 8 training trials per class
		// per fold, 3 kept at ratio 0.4 and 6 at 0.8, 3 classes
		assert.Contains(t, []int{9, 18}, r.DataSize)
		assert.Equal(t, r.DataSize, r.Samples)
	}
}

func TestLearningCurvePerClass(t *testing.T) {
	ds, p := imageryFake(t)
	lc := &LearningCurve{Policy: "per_class", Values: []float64{2, 5}, NPerms: []int{2, 1}}
	eval, err := NewWithinSession(Options{Paradigm: p, Seed: 42, Subjects: []int{1}, LearningCurve: lc})
	require.NoError(t, err)

	results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.NoError(t, err)
	for _, r := range results {
		assert.Contains(t, []int{6, 15}, r.DataSize)
	}
}

func TestLearningCurvePerClassTooLarge(t *testing.T) {
	ds, p := imageryFake(t)
	// only 10 trials per class exist in a session, 8 survive a fold split
	lc := &LearningCurve{Policy: "per_class", Values: []float64{100}, NPerms: []int{1}}
	eval, err := NewWithinSession(Options{Paradigm: p, Seed: 42, Subjects: []int{1}, LearningCurve: lc})
	require.NoError(t, err)

	_, err = eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.Error(t, err)
}

func TestCrossSessionRowCount(t *testing.T) {
	ds, p := imageryFake(t)
	eval, err := NewCrossSession(Options{Paradigm: p, Seed: 42})
	require.NoError(t, err)
	require.True(t, eval.IsValid(ds))

	results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.NoError(t, err)

	// each session held out once per subject
	assert.Len(t, results, 4)
	for _, r := range results {
		// trained on the other session
		assert.Equal(t, 30, r.Samples)
	}
}

func TestCrossSessionRejectsSingleSession(t *testing.T) {
	ds := dataset.NewFakeDataset(dataset.FakeConfig{Paradigm: "imagery", NSessions: 1})
	p, err := paradigm.NewMotorImagery(paradigm.Config{})
	require.NoError(t, err)

	eval, err := NewCrossSession(Options{Paradigm: p})
	require.NoError(t, err)
	assert.False(t, eval.IsValid(ds))
	_, err = eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.Error(t, err)
}

func TestCrossSessionRejectsLearningCurve(t *testing.T) {
	_, p := imageryFake(t)
	lc := &LearningCurve{Policy: "ratio", Values: []float64{0.5}, NPerms: []int{1}}
	_, err := NewCrossSession(Options{Paradigm: p, LearningCurve: lc})
	require.Error(t, err)
	_, err = NewCrossSubject(Options{Paradigm: p, LearningCurve: lc})
	require.Error(t, err)
}

func TestCrossSubjectRowCount(t *testing.T) {
	ds, p := imageryFake(t)
	eval, err := NewCrossSubject(Options{Paradigm: p, Seed: 42})
	require.NoError(t, err)
	require.True(t, eval.IsValid(ds))

	results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.NoError(t, err)

	// one row per held-out subject per session
	assert.Len(t, results, 4)
	for _, r := range results {
		// trained on the other subject's 60 trials
		assert.Equal(t, 60, r.Samples)
	}
}

func TestCrossSubjectNeedsTwoSubjects(t *testing.T) {
	ds, p := imageryFake(t)
	eval, err := NewCrossSubject(Options{Paradigm: p, Subjects: []int{1}})
	require.NoError(t, err)

	_, err = eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.Error(t, err)
}

func TestGridSearchSelectsCandidate(t *testing.T) {
	ds, p := imageryFake(t)

	def, err := pipeline.ParseDefinition([]byte(`
name: grid
pipeline:
  - name: Covariances
    parameters:
      estimator: oas
  - name: MDM
param_grid:
  MDM:
    metric: [riemann, logeuclid]
`))
	require.NoError(t, err)
	pipe, err := def.Build()
	require.NoError(t, err)

	eval, err := NewWithinSession(Options{Paradigm: p, Seed: 42, Subjects: []int{1}, GridSearch: true})
	require.NoError(t, err)
	results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{pipe})
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// the winning overrides travel with every row
	for _, r := range results {
		require.NotNil(t, r.Params)
		metric, ok := r.Params["MDM"]["metric"].(string)
		require.True(t, ok)
		assert.Contains(t, []string{"riemann", "logeuclid"}, metric)
	}
}

func TestGridSearchParamsOnCrossSession(t *testing.T) {
	ds, p := imageryFake(t)

	def, err := pipeline.ParseDefinition([]byte(`
name: grid
pipeline:
  - name: Covariances
    parameters:
      estimator: oas
  - name: MDM
param_grid:
  MDM:
    metric: [riemann, logeuclid]
`))
	require.NoError(t, err)
	pipe, err := def.Build()
	require.NoError(t, err)

	eval, err := NewCrossSession(Options{Paradigm: p, Seed: 42, Subjects: []int{1}, GridSearch: true})
	require.NoError(t, err)
	results, err := eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{pipe})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		require.NotNil(t, r.Params)
		assert.Contains(t, r.Params, "MDM")
	}
}

func TestWithinSessionSavesModels(t *testing.T) {
	ds, p := imageryFake(t)
	dir := t.TempDir()
	eval, err := NewWithinSession(Options{Paradigm: p, Seed: 42, Subjects: []int{1}, ModelDir: dir})
	require.NoError(t, err)

	_, err = eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.NoError(t, err)

	for _, session := range []string{"session_0", "session_1"} {
		path := filepath.Join(dir, "Models_WithinSession", ds.Code(), "1", session, "cov+mdm", "model.json")
		data, err := os.ReadFile(path)
		require.NoError(t, err)

		var dump pipeline.ModelDump
		require.NoError(t, json.Unmarshal(data, &dump))
		assert.Equal(t, "cov+mdm", dump.Pipeline)
		require.Len(t, dump.Stages, 2)
		assert.Equal(t, "MDM", dump.Stages[1].Name)
		assert.NotEmpty(t, dump.Stages[1].State["means"])
	}
}

func TestCrossSubjectSavesModels(t *testing.T) {
	ds, p := imageryFake(t)
	dir := t.TempDir()
	eval, err := NewCrossSubject(Options{Paradigm: p, Seed: 42, ModelDir: dir})
	require.NoError(t, err)

	_, err = eval.Evaluate(context.Background(), ds, []*pipeline.Pipeline{mdmPipeline()})
	require.NoError(t, err)

	for _, subject := range []string{"1", "2"} {
		path := filepath.Join(dir, "Models_CrossSubject", ds.Code(), subject, "cov+mdm", "model.json")
		_, err := os.Stat(path)
		require.NoError(t, err)
	}
}

func TestEvaluationFactory(t *testing.T) {
	_, p := imageryFake(t)
	for _, name := range []string{"WithinSession", "CrossSession", "CrossSubject"} {
		eval, err := New(name, Options{Paradigm: p})
		require.NoError(t, err)
		assert.Equal(t, name, eval.Name())
	}
	_, err := New("Nope", Options{Paradigm: p})
	require.Error(t, err)

	_, err = New("WithinSession", Options{})
	require.Error(t, err)
}

func TestEvaluateCancelled(t *testing.T) {
	ds, p := imageryFake(t)
	eval, err := NewWithinSession(Options{Paradigm: p, Seed: 42})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = eval.Evaluate(ctx, ds, []*pipeline.Pipeline{mdmPipeline()})
	require.ErrorIs(t, err, context.Canceled)
}

func TestROCAUC(t *testing.T) {
	perfect, err := rocAUC([]float64{0.1, 0.2, 0.8, 0.9}, []bool{false, false, true, true})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, perfect, 1e-12)

	inverted, err := rocAUC([]float64{0.9, 0.8, 0.2, 0.1}, []bool{false, false, true, true})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, inverted, 1e-12)

	tied, err := rocAUC([]float64{0.5, 0.5, 0.5, 0.5}, []bool{false, false, true, true})
	require.NoError(t, err)
	assert.InDelta(t, 0.5, tied, 1e-12)

	_, err = rocAUC([]float64{0.5, 0.5}, []bool{true, true})
	require.Error(t, err)
}

func TestStratifiedKFold(t *testing.T) {
	labels := []string{"a", "a", "a", "a", "b", "b", "b", "b", "c", "c", "c", "c"}
	rng := rand.New(rand.NewSource(1))

	folds, err := stratifiedKFold(labels, 4, rng)
	require.NoError(t, err)
	require.Len(t, folds, 4)

	seen := make(map[int]int)
	for _, f := range folds {
		// every fold carries one trial of each class
		counts := make(map[string]int)
		for _, i := range f {
			seen[i]++
			counts[labels[i]]++
		}
		assert.Equal(t, map[string]int{"a": 1, "b": 1, "c": 1}, counts)
	}
	assert.Len(t, seen, 12)
	for _, n := range seen {
		assert.Equal(t, 1, n)
	}

	_, err = stratifiedKFold([]string{"a", "a", "b"}, 2, rng)
	require.Error(t, err)

	_, err = stratifiedKFold(labels, 1, rng)
	require.Error(t, err)
}
